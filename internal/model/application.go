package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

type ApplicationStatus string

const (
	ApplicationStatusPending   ApplicationStatus = "PENDING"
	ApplicationStatusReviewing ApplicationStatus = "REVIEWING"
	ApplicationStatusApproved  ApplicationStatus = "APPROVED"
	ApplicationStatusRejected  ApplicationStatus = "REJECTED"
)

var applicationTransitions = map[ApplicationStatus][]ApplicationStatus{
	ApplicationStatusPending:   {ApplicationStatusReviewing, ApplicationStatusApproved, ApplicationStatusRejected},
	ApplicationStatusReviewing: {ApplicationStatusApproved, ApplicationStatusRejected},
}

// ApplicationStatuses lists every status in lifecycle order.
var ApplicationStatuses = []ApplicationStatus{
	ApplicationStatusPending,
	ApplicationStatusReviewing,
	ApplicationStatusApproved,
	ApplicationStatusRejected,
}

func (s ApplicationStatus) Valid() bool {
	switch s {
	case ApplicationStatusPending, ApplicationStatusReviewing, ApplicationStatusApproved, ApplicationStatusRejected:
		return true
	}
	return false
}

// Terminal reports whether employers can no longer move the application.
func (s ApplicationStatus) Terminal() bool {
	return s == ApplicationStatusApproved || s == ApplicationStatusRejected
}

func (s ApplicationStatus) CanTransitionTo(next ApplicationStatus) bool {
	for _, allowed := range applicationTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

// ParseApplicationStatus accepts any letter case.
func ParseApplicationStatus(raw string) (ApplicationStatus, error) {
	status := ApplicationStatus(strings.ToUpper(strings.TrimSpace(raw)))
	if !status.Valid() {
		return "", fmt.Errorf("unknown application status %q", raw)
	}
	return status, nil
}

// StatusChange is one entry of an application's history.
type StatusChange struct {
	Status    ApplicationStatus `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Actor     uuid.UUID         `json:"actor"`
}

// StatusHistory is stored as a JSONB array on the application row.
type StatusHistory []StatusChange

func (h StatusHistory) Value() (driver.Value, error) {
	if h == nil {
		h = StatusHistory{}
	}
	b, err := json.Marshal(h)
	if err != nil {
		return nil, fmt.Errorf("failed to encode status history: %w", err)
	}
	return string(b), nil
}

func (h *StatusHistory) Scan(src interface{}) error {
	raw, err := jsonBytes(src)
	if err != nil {
		return err
	}
	if raw == nil {
		*h = StatusHistory{}
		return nil
	}
	return json.Unmarshal(raw, h)
}

// Last returns the most recent entry.
func (h StatusHistory) Last() (StatusChange, bool) {
	if len(h) == 0 {
		return StatusChange{}, false
	}
	return h[len(h)-1], true
}

type Application struct {
	ID          uuid.UUID         `json:"id" db:"id"`
	CandidateID uuid.UUID         `json:"candidateId" db:"candidate_id"`
	JobID       uuid.UUID         `json:"jobId" db:"job_id"`
	CompanyID   uuid.UUID         `json:"companyId" db:"company_id"`
	CVID        uuid.UUID         `json:"cvId" db:"cv_id"`
	CoverLetter string            `json:"coverLetter" db:"cover_letter"`
	Status      ApplicationStatus `json:"status" db:"status"`
	History     StatusHistory     `json:"history" db:"history"`
	CreatedAt   time.Time         `json:"createdAt" db:"created_at"`
	UpdatedAt   time.Time         `json:"updatedAt" db:"updated_at"`
	DeletedAt   *time.Time        `json:"-" db:"deleted_at"`
}

// ApplicationFilter narrows list and count queries. Nil fields are ignored.
type ApplicationFilter struct {
	CandidateID *uuid.UUID
	JobID       *uuid.UUID
	CompanyID   *uuid.UUID
	Status      ApplicationStatus
}

type ApplicationPage struct {
	Result []*Application `json:"result"`
	Meta   PageMeta       `json:"meta"`
}

// StatusCounts is the aggregate returned by the stats endpoints.
type StatusCounts struct {
	Total    int                       `json:"total"`
	ByStatus map[ApplicationStatus]int `json:"byStatus"`
}

// NewStatusCounts fills in zero counts for statuses missing from counts.
func NewStatusCounts(counts map[ApplicationStatus]int) *StatusCounts {
	out := &StatusCounts{ByStatus: make(map[ApplicationStatus]int, len(ApplicationStatuses))}
	for _, status := range ApplicationStatuses {
		out.ByStatus[status] = counts[status]
		out.Total += counts[status]
	}
	return out
}
