package notification

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/jwalitptl/jobboard-api/internal/model"
	"github.com/jwalitptl/jobboard-api/internal/repository"
	apperrors "github.com/jwalitptl/jobboard-api/pkg/errors"
	"github.com/jwalitptl/jobboard-api/pkg/metrics"
)

// Deliverer pushes stored notifications to live connections.
type Deliverer interface {
	Deliver(ctx context.Context, n *model.Notification) int
	DeliverBulk(ctx context.Context, ns []*model.Notification) int
}

type Service struct {
	repo      repository.NotificationRepository
	deliverer Deliverer
	metrics   *metrics.Metrics
	logger    zerolog.Logger
	now       func() time.Time
}

func NewService(repo repository.NotificationRepository, deliverer Deliverer, m *metrics.Metrics, logger zerolog.Logger) *Service {
	return &Service{
		repo:      repo,
		deliverer: deliverer,
		metrics:   m,
		logger:    logger.With().Str("component", "notifications").Logger(),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Create stores one notification for recipient and then pushes it to the
// recipient's live connections. The push outcome never affects the result.
func (s *Service) Create(ctx context.Context, recipient string, in model.NotificationInput) (*model.Notification, error) {
	userID, err := uuid.Parse(recipient)
	if err != nil {
		return nil, apperrors.BadRequest(fmt.Sprintf("invalid recipient %q", recipient), err)
	}
	if err := in.Validate(); err != nil {
		return nil, apperrors.BadRequest(err.Error(), err)
	}

	n := model.NewNotification(userID, in, s.now())
	if err := s.repo.Create(ctx, n); err != nil {
		return nil, apperrors.Internal(fmt.Errorf("failed to create notification: %w", err))
	}
	s.metrics.NotificationsPersisted.Inc()

	s.deliverer.Deliver(ctx, n)
	return n, nil
}

// CreateBulk stores one independent row per recipient in a single batch
// write and then delivers each row on its own. Any invalid recipient
// rejects the whole batch before anything is written.
func (s *Service) CreateBulk(ctx context.Context, recipients []string, in model.NotificationInput) ([]*model.Notification, error) {
	if err := in.Validate(); err != nil {
		return nil, apperrors.BadRequest(err.Error(), err)
	}
	if len(recipients) == 0 {
		return []*model.Notification{}, nil
	}

	now := s.now()
	ns := make([]*model.Notification, 0, len(recipients))
	for _, recipient := range recipients {
		userID, err := uuid.Parse(recipient)
		if err != nil {
			return nil, apperrors.BadRequest(fmt.Sprintf("invalid recipient %q", recipient), err)
		}
		ns = append(ns, model.NewNotification(userID, in, now))
	}

	if err := s.repo.CreateBatch(ctx, ns); err != nil {
		return nil, apperrors.Internal(fmt.Errorf("failed to create notifications: %w", err))
	}
	s.metrics.NotificationsPersisted.Add(float64(len(ns)))

	delivered := s.deliverer.DeliverBulk(ctx, ns)
	s.logger.Debug().
		Int("recipients", len(ns)).
		Int("delivered", delivered).
		Msg("bulk notification sent")
	return ns, nil
}

// ListForUser returns one page of the user's notifications, newest first,
// with the total and unread counts in the page meta.
func (s *Service) ListForUser(ctx context.Context, userID uuid.UUID, opts model.ListOptions) (*model.NotificationPage, error) {
	opts = opts.Normalize()

	total, unread, err := s.repo.Counts(ctx, userID)
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	rows, err := s.repo.ListByUser(ctx, userID, opts.PageSize, opts.Offset())
	if err != nil {
		return nil, apperrors.Internal(err)
	}

	meta := model.NewPageMeta(opts, total)
	meta.UnreadCount = &unread
	return &model.NotificationPage{Result: rows, Meta: meta}, nil
}

func (s *Service) UnreadCount(ctx context.Context, userID uuid.UUID) (int, error) {
	count, err := s.repo.CountUnread(ctx, userID)
	if err != nil {
		return 0, apperrors.Internal(err)
	}
	return count, nil
}

// MarkRead marks the user's notification read. Reading an already read
// row returns it unchanged.
func (s *Service) MarkRead(ctx context.Context, id, userID uuid.UUID) (*model.Notification, error) {
	n, err := s.repo.MarkRead(ctx, id, userID, s.now())
	if err != nil {
		return nil, translate("notification", err)
	}
	return n, nil
}

func (s *Service) MarkAllRead(ctx context.Context, userID uuid.UUID) (int64, error) {
	updated, err := s.repo.MarkAllRead(ctx, userID, s.now())
	if err != nil {
		return 0, apperrors.Internal(err)
	}
	return updated, nil
}

func (s *Service) Remove(ctx context.Context, id, userID uuid.UUID) error {
	if err := s.repo.SoftDelete(ctx, id, userID, s.now()); err != nil {
		return translate("notification", err)
	}
	return nil
}

func translate(resource string, err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.NotFound(resource, err)
	}
	return apperrors.Internal(err)
}
