// Package testutil holds in-memory repositories that mirror the Postgres
// queries closely enough for service and handler tests.
package testutil

import (
	"bytes"
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/jwalitptl/jobboard-api/internal/model"
	"github.com/jwalitptl/jobboard-api/internal/repository"
)

type Notifications struct {
	mu   sync.Mutex
	rows []*model.Notification
	// Err, when set, fails every write.
	Err error
}

func NewNotifications() *Notifications {
	return &Notifications{}
}

var _ repository.NotificationRepository = (*Notifications)(nil)

func (s *Notifications) Create(ctx context.Context, n *model.Notification) error {
	return s.CreateBatch(ctx, []*model.Notification{n})
}

func (s *Notifications) CreateBatch(ctx context.Context, ns []*model.Notification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Err != nil {
		return s.Err
	}
	for _, n := range ns {
		row := *n
		s.rows = append(s.rows, &row)
	}
	return nil
}

// Has reports whether a row with id is stored, deleted or not.
func (s *Notifications) Has(id uuid.UUID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, row := range s.rows {
		if row.ID == id {
			return true
		}
	}
	return false
}

// visible returns the user's live rows ordered like the Postgres query:
// created_at DESC, id DESC.
func (s *Notifications) visible(userID uuid.UUID) []*model.Notification {
	var out []*model.Notification
	for i := len(s.rows) - 1; i >= 0; i-- {
		row := s.rows[i]
		if row.UserID == userID && row.DeletedAt == nil {
			out = append(out, row)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return newer(out[i].CreatedAt, out[j].CreatedAt, out[i].ID, out[j].ID)
	})
	return out
}

func (s *Notifications) ListByUser(ctx context.Context, userID uuid.UUID, limit, offset int) ([]*model.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows := s.visible(userID)
	out := []*model.Notification{}
	for i := offset; i < len(rows) && len(out) < limit; i++ {
		row := *rows[i]
		out = append(out, &row)
	}
	return out, nil
}

func (s *Notifications) Counts(ctx context.Context, userID uuid.UUID) (int, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rows := s.visible(userID)
	unread := 0
	for _, row := range rows {
		if !row.IsRead {
			unread++
		}
	}
	return len(rows), unread, nil
}

func (s *Notifications) CountUnread(ctx context.Context, userID uuid.UUID) (int, error) {
	_, unread, err := s.Counts(ctx, userID)
	return unread, err
}

func (s *Notifications) MarkRead(ctx context.Context, id, userID uuid.UUID, at time.Time) (*model.Notification, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, row := range s.rows {
		if row.ID != id || row.UserID != userID || row.DeletedAt != nil {
			continue
		}
		if !row.IsRead {
			row.IsRead = true
			readAt := at
			row.ReadAt = &readAt
			row.UpdatedAt = at
		}
		out := *row
		return &out, nil
	}
	return nil, repository.ErrNotFound
}

func (s *Notifications) MarkAllRead(ctx context.Context, userID uuid.UUID, at time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var updated int64
	for _, row := range s.rows {
		if row.UserID == userID && row.DeletedAt == nil && !row.IsRead {
			row.IsRead = true
			readAt := at
			row.ReadAt = &readAt
			row.UpdatedAt = at
			updated++
		}
	}
	return updated, nil
}

func (s *Notifications) SoftDelete(ctx context.Context, id, userID uuid.UUID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, row := range s.rows {
		if row.ID == id && row.UserID == userID && row.DeletedAt == nil {
			deletedAt := at
			row.DeletedAt = &deletedAt
			return nil
		}
	}
	return repository.ErrNotFound
}

func (s *Notifications) PurgeDeleted(ctx context.Context, cutoff time.Time) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.rows[:0]
	var purged int64
	for _, row := range s.rows {
		if row.DeletedAt != nil && row.DeletedAt.Before(cutoff) {
			purged++
			continue
		}
		kept = append(kept, row)
	}
	s.rows = kept
	return purged, nil
}

type Applications struct {
	mu   sync.Mutex
	rows map[uuid.UUID]*model.Application
	// order keeps insertion order for stable listing
	order []uuid.UUID
}

func NewApplications() *Applications {
	return &Applications{rows: make(map[uuid.UUID]*model.Application)}
}

var _ repository.ApplicationRepository = (*Applications)(nil)

func copyApplication(app *model.Application) *model.Application {
	out := *app
	out.History = append(model.StatusHistory(nil), app.History...)
	return &out
}

func (s *Applications) Create(ctx context.Context, app *model.Application) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rows[app.ID] = copyApplication(app)
	s.order = append(s.order, app.ID)
	return nil
}

func (s *Applications) Get(ctx context.Context, id uuid.UUID) (*model.Application, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	app, ok := s.rows[id]
	if !ok || app.DeletedAt != nil {
		return nil, repository.ErrNotFound
	}
	return copyApplication(app), nil
}

func (s *Applications) AppendStatus(ctx context.Context, id uuid.UUID, change model.StatusChange) (*model.Application, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	app, ok := s.rows[id]
	if !ok || app.DeletedAt != nil {
		return nil, repository.ErrNotFound
	}
	app.Status = change.Status
	app.History = append(app.History, change)
	app.UpdatedAt = change.Timestamp
	return copyApplication(app), nil
}

func (s *Applications) SoftDelete(ctx context.Context, id uuid.UUID, at time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	app, ok := s.rows[id]
	if !ok || app.DeletedAt != nil {
		return repository.ErrNotFound
	}
	deletedAt := at
	app.DeletedAt = &deletedAt
	return nil
}

func (s *Applications) matching(filter model.ApplicationFilter) []*model.Application {
	var out []*model.Application
	for _, id := range s.order {
		app := s.rows[id]
		switch {
		case app.DeletedAt != nil:
		case filter.CandidateID != nil && app.CandidateID != *filter.CandidateID:
		case filter.JobID != nil && app.JobID != *filter.JobID:
		case filter.CompanyID != nil && app.CompanyID != *filter.CompanyID:
		case filter.Status != "" && app.Status != filter.Status:
		default:
			out = append(out, app)
		}
	}
	return out
}

func (s *Applications) List(ctx context.Context, filter model.ApplicationFilter, opts model.ListOptions) ([]*model.Application, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	opts = opts.Normalize()
	if opts.Status != "" {
		filter.Status = opts.Status
	}
	rows := s.matching(filter)

	sort.SliceStable(rows, func(i, j int) bool {
		a, b := rows[i], rows[j]
		switch opts.Sort {
		case model.SortCreatedAsc:
			return newer(b.CreatedAt, a.CreatedAt, b.ID, a.ID)
		case model.SortUpdatedAsc:
			return newer(b.UpdatedAt, a.UpdatedAt, b.ID, a.ID)
		case model.SortUpdatedDesc:
			return newer(a.UpdatedAt, b.UpdatedAt, a.ID, b.ID)
		default:
			return newer(a.CreatedAt, b.CreatedAt, a.ID, b.ID)
		}
	})

	out := []*model.Application{}
	for i := opts.Offset(); i < len(rows) && len(out) < opts.PageSize; i++ {
		out = append(out, copyApplication(rows[i]))
	}
	return out, len(rows), nil
}

func (s *Applications) CountByStatus(ctx context.Context, filter model.ApplicationFilter) (map[model.ApplicationStatus]int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	counts := make(map[model.ApplicationStatus]int)
	for _, app := range s.matching(filter) {
		counts[app.Status]++
	}
	return counts, nil
}

type Directory struct {
	mu       sync.Mutex
	CVs      map[uuid.UUID]*model.CV
	Jobs     map[uuid.UUID]*model.Job
	HR       map[uuid.UUID][]uuid.UUID
	Contacts map[uuid.UUID]*model.Contact
	// HRErr, when set, fails ListCompanyHR.
	HRErr error
}

func NewDirectory() *Directory {
	return &Directory{
		CVs:      make(map[uuid.UUID]*model.CV),
		Jobs:     make(map[uuid.UUID]*model.Job),
		HR:       make(map[uuid.UUID][]uuid.UUID),
		Contacts: make(map[uuid.UUID]*model.Contact),
	}
}

var _ repository.DirectoryRepository = (*Directory)(nil)

// AddJob stores a job of a new company staffed by hr and returns it.
func (d *Directory) AddJob(title string, hr ...uuid.UUID) *model.Job {
	d.mu.Lock()
	defer d.mu.Unlock()

	job := &model.Job{ID: uuid.New(), CompanyID: uuid.New(), Title: title}
	d.Jobs[job.ID] = job
	d.HR[job.CompanyID] = hr
	return job
}

// AddCV stores a CV owned by owner and returns it.
func (d *Directory) AddCV(owner uuid.UUID) *model.CV {
	d.mu.Lock()
	defer d.mu.Unlock()

	cv := &model.CV{ID: uuid.New(), OwnerID: owner, FileName: "cv.pdf"}
	d.CVs[cv.ID] = cv
	return cv
}

func (d *Directory) GetCV(ctx context.Context, id uuid.UUID) (*model.CV, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if cv, ok := d.CVs[id]; ok {
		return cv, nil
	}
	return nil, repository.ErrNotFound
}

func (d *Directory) GetJob(ctx context.Context, id uuid.UUID) (*model.Job, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if job, ok := d.Jobs[id]; ok {
		return job, nil
	}
	return nil, repository.ErrNotFound
}

func (d *Directory) ListCompanyHR(ctx context.Context, companyID uuid.UUID) ([]uuid.UUID, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.HRErr != nil {
		return nil, d.HRErr
	}
	return append([]uuid.UUID(nil), d.HR[companyID]...), nil
}

func (d *Directory) GetContact(ctx context.Context, userID uuid.UUID) (*model.Contact, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if contact, ok := d.Contacts[userID]; ok {
		return contact, nil
	}
	return nil, repository.ErrNotFound
}

// newer orders (at, id) pairs descending, the way Postgres sorts
// "ts DESC, id DESC" with uuids compared bytewise.
func newer(aAt, bAt time.Time, aID, bID uuid.UUID) bool {
	if !aAt.Equal(bAt) {
		return aAt.After(bAt)
	}
	return bytes.Compare(aID[:], bID[:]) > 0
}
