package model

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
)

type NotificationKind string

const (
	NotificationKindJob     NotificationKind = "job"
	NotificationKindResume  NotificationKind = "resume"
	NotificationKindCompany NotificationKind = "company"
	NotificationKindSystem  NotificationKind = "system"
)

func (k NotificationKind) Valid() bool {
	switch k {
	case NotificationKindJob, NotificationKindResume, NotificationKindCompany, NotificationKindSystem:
		return true
	}
	return false
}

// Notification is one row per recipient. Only the recipient mutates it, and
// only to mark it read or delete it.
type Notification struct {
	ID         uuid.UUID        `json:"id" db:"id"`
	UserID     uuid.UUID        `json:"recipient" db:"user_id"`
	Title      string           `json:"title" db:"title"`
	Content    string           `json:"content" db:"content"`
	Kind       NotificationKind `json:"kind" db:"kind"`
	TargetKind *string          `json:"targetKind,omitempty" db:"target_kind"`
	TargetID   *uuid.UUID       `json:"targetId,omitempty" db:"target_id"`
	Payload    JSONMap          `json:"payload,omitempty" db:"payload"`
	IsRead     bool             `json:"isRead" db:"is_read"`
	ReadAt     *time.Time       `json:"readAt,omitempty" db:"read_at"`
	CreatedAt  time.Time        `json:"createdAt" db:"created_at"`
	UpdatedAt  time.Time        `json:"updatedAt" db:"updated_at"`
	DeletedAt  *time.Time       `json:"-" db:"deleted_at"`
}

// NotificationInput is the sender-controlled part of a notification.
type NotificationInput struct {
	Title      string           `json:"title" binding:"required,max=200"`
	Content    string           `json:"content" binding:"max=4000"`
	Kind       NotificationKind `json:"kind" binding:"required,notification_kind"`
	TargetKind *string          `json:"targetKind,omitempty" binding:"omitempty,max=50"`
	TargetID   *uuid.UUID       `json:"targetId,omitempty"`
	Payload    JSONMap          `json:"payload,omitempty"`
}

var (
	ErrNotificationTitle  = errors.New("title is required")
	ErrNotificationKind   = errors.New("kind must be one of job, resume, company, system")
	ErrNotificationTarget = errors.New("targetKind and targetId must be set together")
)

func (in NotificationInput) Validate() error {
	if strings.TrimSpace(in.Title) == "" {
		return ErrNotificationTitle
	}
	if !in.Kind.Valid() {
		return ErrNotificationKind
	}
	if (in.TargetKind == nil) != (in.TargetID == nil) {
		return ErrNotificationTarget
	}
	return nil
}

// NewNotification builds an unread row for recipient stamped with now.
func NewNotification(recipient uuid.UUID, in NotificationInput, now time.Time) *Notification {
	return &Notification{
		ID:         NewID(),
		UserID:     recipient,
		Title:      in.Title,
		Content:    in.Content,
		Kind:       in.Kind,
		TargetKind: in.TargetKind,
		TargetID:   in.TargetID,
		Payload:    in.Payload,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
}

type NotificationPage struct {
	Result []*Notification `json:"result"`
	Meta   PageMeta        `json:"meta"`
}
