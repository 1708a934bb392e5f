package postgres

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"github.com/jwalitptl/jobboard-api/internal/model"
	"github.com/jwalitptl/jobboard-api/internal/repository"
)

const notificationColumns = `
	id, user_id, title, content, kind, target_kind, target_id, payload,
	is_read, read_at, created_at, updated_at, deleted_at`

// Postgres caps a statement at 65535 parameters; 13 columns per row keeps
// a chunk of this size well below it.
const notificationBatchSize = 500

const insertNotification = `
	INSERT INTO notifications (
		id, user_id, title, content, kind, target_kind, target_id, payload,
		is_read, read_at, created_at, updated_at
	) VALUES (
		:id, :user_id, :title, :content, :kind, :target_kind, :target_id, :payload,
		:is_read, :read_at, :created_at, :updated_at
	)`

type notificationRepository struct {
	BaseRepository
}

func NewNotificationRepository(base BaseRepository) repository.NotificationRepository {
	return &notificationRepository{base}
}

func (r *notificationRepository) Create(ctx context.Context, n *model.Notification) (err error) {
	defer r.observe("notification.create")(&err)

	if _, err = r.db.NamedExecContext(ctx, insertNotification, n); err != nil {
		return errors.Wrap(err, "failed to create notification")
	}
	return nil
}

// CreateBatch writes all rows with one multi-row INSERT per chunk.
func (r *notificationRepository) CreateBatch(ctx context.Context, ns []*model.Notification) (err error) {
	defer r.observe("notification.create_batch")(&err)

	for start := 0; start < len(ns); start += notificationBatchSize {
		end := start + notificationBatchSize
		if end > len(ns) {
			end = len(ns)
		}

		rows := make([]model.Notification, 0, end-start)
		for _, n := range ns[start:end] {
			rows = append(rows, *n)
		}
		if _, err = r.db.NamedExecContext(ctx, insertNotification, rows); err != nil {
			return errors.Wrap(err, "failed to create notifications")
		}
	}
	return nil
}

func (r *notificationRepository) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) (_ []*model.Notification, err error) {
	defer r.observe("notification.list")(&err)

	query := `SELECT ` + notificationColumns + `
		FROM notifications
		WHERE user_id = $1 AND deleted_at IS NULL
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`
	notifications := []*model.Notification{}
	if err = r.db.SelectContext(ctx, &notifications, query, userID, limit, offset); err != nil {
		return nil, errors.Wrap(err, "failed to list notifications")
	}
	return notifications, nil
}

func (r *notificationRepository) Counts(ctx context.Context, userID uuid.UUID) (total int, unread int, err error) {
	defer r.observe("notification.counts")(&err)

	query := `
		SELECT COUNT(*) AS total, COUNT(*) FILTER (WHERE NOT is_read) AS unread
		FROM notifications
		WHERE user_id = $1 AND deleted_at IS NULL
	`
	var row struct {
		Total  int `db:"total"`
		Unread int `db:"unread"`
	}
	if err = r.db.GetContext(ctx, &row, query, userID); err != nil {
		return 0, 0, errors.Wrap(err, "failed to count notifications")
	}
	return row.Total, row.Unread, nil
}

func (r *notificationRepository) CountUnread(ctx context.Context, userID uuid.UUID) (_ int, err error) {
	defer r.observe("notification.count_unread")(&err)

	query := `
		SELECT COUNT(*)
		FROM notifications
		WHERE user_id = $1 AND is_read = FALSE AND deleted_at IS NULL
	`
	var count int
	if err = r.db.GetContext(ctx, &count, query, userID); err != nil {
		return 0, errors.Wrap(err, "failed to count unread notifications")
	}
	return count, nil
}

func (r *notificationRepository) MarkRead(ctx context.Context, id, userID uuid.UUID, at time.Time) (_ *model.Notification, err error) {
	defer r.observe("notification.mark_read")(&err)

	query := `
		UPDATE notifications
		SET is_read = TRUE,
			read_at = COALESCE(read_at, $3),
			updated_at = CASE WHEN is_read THEN updated_at ELSE $3 END
		WHERE id = $1 AND user_id = $2 AND deleted_at IS NULL
		RETURNING ` + notificationColumns

	var n model.Notification
	if err = r.db.GetContext(ctx, &n, query, id, userID, at); err != nil {
		return nil, errors.Wrap(notFound(err), "failed to mark notification read")
	}
	return &n, nil
}

func (r *notificationRepository) MarkAllRead(ctx context.Context, userID uuid.UUID, at time.Time) (_ int64, err error) {
	defer r.observe("notification.mark_all_read")(&err)

	query := `
		UPDATE notifications
		SET is_read = TRUE, read_at = $2, updated_at = $2
		WHERE user_id = $1 AND is_read = FALSE AND deleted_at IS NULL
	`
	result, err := r.db.ExecContext(ctx, query, userID, at)
	if err != nil {
		return 0, errors.Wrap(err, "failed to mark notifications read")
	}
	return expectAffected(result)
}

func (r *notificationRepository) SoftDelete(ctx context.Context, id, userID uuid.UUID, at time.Time) (err error) {
	defer r.observe("notification.soft_delete")(&err)

	query := `
		UPDATE notifications
		SET deleted_at = $3, updated_at = $3
		WHERE id = $1 AND user_id = $2 AND deleted_at IS NULL
	`
	result, err := r.db.ExecContext(ctx, query, id, userID, at)
	if err != nil {
		return errors.Wrap(err, "failed to delete notification")
	}

	rows, err := expectAffected(result)
	if err != nil {
		return err
	}
	if rows == 0 {
		return errors.Wrap(repository.ErrNotFound, "failed to delete notification")
	}
	return nil
}

func (r *notificationRepository) PurgeDeleted(ctx context.Context, cutoff time.Time) (_ int64, err error) {
	defer r.observe("notification.purge_deleted")(&err)

	query := `DELETE FROM notifications WHERE deleted_at IS NOT NULL AND deleted_at < $1`
	result, err := r.db.ExecContext(ctx, query, cutoff)
	if err != nil {
		return 0, errors.Wrap(err, "failed to purge notifications")
	}
	return expectAffected(result)
}
