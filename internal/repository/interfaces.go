package repository

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/jobboard-api/internal/model"
)

// ErrNotFound is returned when a row is absent, soft-deleted, or not owned
// by the caller the query was scoped to.
var ErrNotFound = errors.New("record not found")

// All repository interfaces in one file
type (
	ApplicationRepository interface {
		Create(ctx context.Context, app *model.Application) error
		// Get excludes withdrawn applications.
		Get(ctx context.Context, id uuid.UUID) (*model.Application, error)
		// AppendStatus sets the status and appends change to the history in
		// a single-row update, returning the stored application.
		AppendStatus(ctx context.Context, id uuid.UUID, change model.StatusChange) (*model.Application, error)
		SoftDelete(ctx context.Context, id uuid.UUID, at time.Time) error
		List(ctx context.Context, filter model.ApplicationFilter, opts model.ListOptions) ([]*model.Application, int, error)
		CountByStatus(ctx context.Context, filter model.ApplicationFilter) (map[model.ApplicationStatus]int, error)
	}

	NotificationRepository interface {
		Create(ctx context.Context, n *model.Notification) error
		CreateBatch(ctx context.Context, ns []*model.Notification) error
		// ListByUser returns the user's visible rows newest first.
		ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*model.Notification, error)
		Counts(ctx context.Context, userID uuid.UUID) (total int, unread int, err error)
		CountUnread(ctx context.Context, userID uuid.UUID) (int, error)
		// MarkRead sets read_at only on the first read.
		MarkRead(ctx context.Context, id, userID uuid.UUID, at time.Time) (*model.Notification, error)
		MarkAllRead(ctx context.Context, userID uuid.UUID, at time.Time) (int64, error)
		SoftDelete(ctx context.Context, id, userID uuid.UUID, at time.Time) error
		// PurgeDeleted removes rows soft-deleted before cutoff.
		PurgeDeleted(ctx context.Context, cutoff time.Time) (int64, error)
	}

	// DirectoryRepository reads records owned by the profile, CV and company
	// services.
	DirectoryRepository interface {
		GetCV(ctx context.Context, id uuid.UUID) (*model.CV, error)
		GetJob(ctx context.Context, id uuid.UUID) (*model.Job, error)
		ListCompanyHR(ctx context.Context, companyID uuid.UUID) ([]uuid.UUID, error)
		GetContact(ctx context.Context, userID uuid.UUID) (*model.Contact, error)
	}
)
