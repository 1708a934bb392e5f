package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/jwalitptl/jobboard-api/internal/email"
	"github.com/jwalitptl/jobboard-api/internal/matching"
	"github.com/jwalitptl/jobboard-api/internal/model"
	"github.com/jwalitptl/jobboard-api/internal/repository"
	apperrors "github.com/jwalitptl/jobboard-api/pkg/errors"
	"github.com/jwalitptl/jobboard-api/pkg/metrics"
)

// fallbackJobTitle names the job in candidate notices when the job lookup
// fails.
const fallbackJobTitle = "the position"

// Notifier stores notifications and pushes them to live connections.
type Notifier interface {
	Create(ctx context.Context, recipient string, in model.NotificationInput) (*model.Notification, error)
	CreateBulk(ctx context.Context, recipients []string, in model.NotificationInput) ([]*model.Notification, error)
}

type CreateInput struct {
	CandidateID uuid.UUID
	JobID       uuid.UUID
	CVID        uuid.UUID
	CoverLetter string
}

type Service struct {
	repo      repository.ApplicationRepository
	directory repository.DirectoryRepository
	notifier  Notifier
	matcher   matching.Queue
	mailer    email.Service
	metrics   *metrics.Metrics
	logger    zerolog.Logger
	now       func() time.Time
}

func NewService(
	repo repository.ApplicationRepository,
	directory repository.DirectoryRepository,
	notifier Notifier,
	matcher matching.Queue,
	mailer email.Service,
	m *metrics.Metrics,
	logger zerolog.Logger,
) *Service {
	return &Service{
		repo:      repo,
		directory: directory,
		notifier:  notifier,
		matcher:   matcher,
		mailer:    mailer,
		metrics:   m,
		logger:    logger.With().Str("component", "applications").Logger(),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Create stores a PENDING application for the candidate. Telling the
// company's HR users and queueing CV matching happen afterwards and never
// fail the call.
func (s *Service) Create(ctx context.Context, in CreateInput) (*model.Application, error) {
	cv, err := s.directory.GetCV(ctx, in.CVID)
	if err != nil {
		return nil, translate("cv", err)
	}
	if cv.OwnerID != in.CandidateID {
		return nil, apperrors.Forbidden("cv does not belong to the candidate")
	}
	job, err := s.directory.GetJob(ctx, in.JobID)
	if err != nil {
		return nil, translate("job", err)
	}

	now := s.now()
	app := &model.Application{
		ID:          model.NewID(),
		CandidateID: in.CandidateID,
		JobID:       job.ID,
		CompanyID:   job.CompanyID,
		CVID:        cv.ID,
		CoverLetter: in.CoverLetter,
		Status:      model.ApplicationStatusPending,
		History: model.StatusHistory{{
			Status:    model.ApplicationStatusPending,
			Timestamp: now,
			Actor:     in.CandidateID,
		}},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.repo.Create(ctx, app); err != nil {
		return nil, apperrors.Internal(fmt.Errorf("failed to create application: %w", err))
	}
	s.metrics.StatusTransitions.WithLabelValues(string(app.Status)).Inc()

	// Best effort: the application exists once stored, whatever HR or the
	// matching queue make of it.
	s.bestEffort(ctx, "notify_hr", app.ID, func(ctx context.Context) error {
		return s.notifyHR(ctx, app, job)
	})
	s.bestEffort(ctx, "enqueue_matching", app.ID, func(ctx context.Context) error {
		return s.matcher.Enqueue(ctx, matching.Job{
			ApplicationID: app.ID,
			JobID:         app.JobID,
			CandidateID:   app.CandidateID,
			CVID:          app.CVID,
			EnqueuedAt:    now,
		})
	})

	s.logger.Info().
		Str("application_id", app.ID.String()).
		Str("job_id", app.JobID.String()).
		Msg("application created")
	return app, nil
}

func (s *Service) notifyHR(ctx context.Context, app *model.Application, job *model.Job) error {
	hr, err := s.directory.ListCompanyHR(ctx, job.CompanyID)
	if err != nil {
		return fmt.Errorf("list company hr: %w", err)
	}
	recipients := make([]string, 0, len(hr))
	for _, id := range hr {
		recipients = append(recipients, id.String())
	}
	_, err = s.notifier.CreateBulk(ctx, recipients, newApplicationNotice(app, job))
	return err
}

// Transition moves the application to next on behalf of actor and tells the
// candidate. Asking for the current status again is a no-op that returns
// the stored application unchanged.
func (s *Service) Transition(ctx context.Context, id uuid.UUID, next model.ApplicationStatus, actor uuid.UUID) (*model.Application, error) {
	if !next.Valid() {
		return nil, apperrors.BadRequest(fmt.Sprintf("invalid status %q", next), nil)
	}

	app, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, translate("application", err)
	}
	if app.Status == next {
		return app, nil
	}
	if !app.Status.CanTransitionTo(next) {
		return nil, apperrors.Conflict(fmt.Sprintf("cannot move application from %s to %s", app.Status, next), nil)
	}

	updated, err := s.repo.AppendStatus(ctx, id, model.StatusChange{
		Status:    next,
		Timestamp: s.now(),
		Actor:     actor,
	})
	if err != nil {
		return nil, translate("application", err)
	}
	s.metrics.StatusTransitions.WithLabelValues(string(next)).Inc()

	notice := statusNotice(updated, s.jobTitle(ctx, updated.JobID))

	// Best effort: the transition is committed, the candidate learns about
	// it when delivery works.
	s.bestEffort(ctx, "notify_candidate", updated.ID, func(ctx context.Context) error {
		_, err := s.notifier.Create(ctx, updated.CandidateID.String(), notice)
		return err
	})
	s.bestEffort(ctx, "email_candidate", updated.ID, func(ctx context.Context) error {
		contact, err := s.directory.GetContact(ctx, updated.CandidateID)
		if err != nil {
			return fmt.Errorf("candidate contact: %w", err)
		}
		return s.mailer.SendCustom(ctx, contact.Email, notice.Title, notice.Content)
	})

	s.logger.Info().
		Str("application_id", updated.ID.String()).
		Str("from", string(app.Status)).
		Str("to", string(next)).
		Str("actor", actor.String()).
		Msg("application status changed")
	return updated, nil
}

func (s *Service) jobTitle(ctx context.Context, jobID uuid.UUID) string {
	job, err := s.directory.GetJob(ctx, jobID)
	if err != nil || job.Title == "" {
		return fallbackJobTitle
	}
	return job.Title
}

// Withdraw tombstones a PENDING application owned by candidate and drops
// its match result. Nobody is notified.
func (s *Service) Withdraw(ctx context.Context, id, candidate uuid.UUID) error {
	app, err := s.repo.Get(ctx, id)
	if err != nil {
		return translate("application", err)
	}
	if app.CandidateID != candidate {
		return apperrors.Forbidden("only the applying candidate can withdraw an application")
	}
	if app.Status != model.ApplicationStatusPending {
		return apperrors.Conflict(fmt.Sprintf("cannot withdraw a %s application", app.Status), nil)
	}

	if err := s.repo.SoftDelete(ctx, id, s.now()); err != nil {
		return translate("application", err)
	}

	// Best effort: a stale match result is harmless once the application
	// is gone.
	s.bestEffort(ctx, "delete_match_result", id, func(ctx context.Context) error {
		return s.matcher.DeleteResult(ctx, id)
	})

	s.logger.Info().Str("application_id", id.String()).Msg("application withdrawn")
	return nil
}

// Get returns a live application. Candidates only see their own; anyone
// else's reads as absent.
func (s *Service) Get(ctx context.Context, id uuid.UUID, candidate *uuid.UUID) (*model.Application, error) {
	app, err := s.repo.Get(ctx, id)
	if err != nil {
		return nil, translate("application", err)
	}
	if candidate != nil && app.CandidateID != *candidate {
		return nil, apperrors.NotFound("application", nil)
	}
	return app, nil
}

func (s *Service) List(ctx context.Context, filter model.ApplicationFilter, opts model.ListOptions) (*model.ApplicationPage, error) {
	opts = opts.Normalize()
	if opts.Status != "" && !opts.Status.Valid() {
		return nil, apperrors.BadRequest(fmt.Sprintf("invalid status %q", opts.Status), nil)
	}

	apps, total, err := s.repo.List(ctx, filter, opts)
	if err != nil {
		return nil, apperrors.Internal(fmt.Errorf("failed to list applications: %w", err))
	}
	return &model.ApplicationPage{
		Result: apps,
		Meta:   model.NewPageMeta(opts, total),
	}, nil
}

func (s *Service) ListForCandidate(ctx context.Context, candidate uuid.UUID, opts model.ListOptions) (*model.ApplicationPage, error) {
	return s.List(ctx, model.ApplicationFilter{CandidateID: &candidate}, opts)
}

func (s *Service) ListForJob(ctx context.Context, jobID uuid.UUID, opts model.ListOptions) (*model.ApplicationPage, error) {
	return s.List(ctx, model.ApplicationFilter{JobID: &jobID}, opts)
}

// CountByStatus aggregates live applications across a company's jobs.
func (s *Service) CountByStatus(ctx context.Context, companyID uuid.UUID) (*model.StatusCounts, error) {
	return s.count(ctx, model.ApplicationFilter{CompanyID: &companyID})
}

// CountByJob aggregates live applications for one job.
func (s *Service) CountByJob(ctx context.Context, jobID uuid.UUID) (*model.StatusCounts, error) {
	return s.count(ctx, model.ApplicationFilter{JobID: &jobID})
}

func (s *Service) count(ctx context.Context, filter model.ApplicationFilter) (*model.StatusCounts, error) {
	counts, err := s.repo.CountByStatus(ctx, filter)
	if err != nil {
		return nil, apperrors.Internal(fmt.Errorf("failed to count applications: %w", err))
	}
	return model.NewStatusCounts(counts), nil
}

func translate(resource string, err error) error {
	if errors.Is(err, repository.ErrNotFound) {
		return apperrors.NotFound(resource, err)
	}
	return apperrors.Internal(fmt.Errorf("%s: %w", resource, err))
}
