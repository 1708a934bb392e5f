package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jwalitptl/jobboard-api/internal/model"
	"github.com/jwalitptl/jobboard-api/internal/repository"
)

var applicationRowColumns = []string{
	"id", "candidate_id", "job_id", "company_id", "cv_id", "cover_letter",
	"status", "history", "created_at", "updated_at", "deleted_at",
}

func TestApplicationCreate(t *testing.T) {
	base, mock := newMockBase(t)
	repo := NewApplicationRepository(base)

	now := time.Now().UTC()
	candidate := uuid.New()
	app := &model.Application{
		ID:          uuid.New(),
		CandidateID: candidate,
		JobID:       uuid.New(),
		CompanyID:   uuid.New(),
		CVID:        uuid.New(),
		Status:      model.ApplicationStatusPending,
		History:     model.StatusHistory{{Status: model.ApplicationStatusPending, Timestamp: now, Actor: candidate}},
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	mock.ExpectExec("INSERT INTO applications").
		WithArgs(
			app.ID,
			app.CandidateID,
			app.JobID,
			app.CompanyID,
			app.CVID,
			"",
			"PENDING",
			sqlmock.AnyArg(), // history
			now,
			now,
		).
		WillReturnResult(sqlmock.NewResult(0, 1))

	require.NoError(t, repo.Create(context.Background(), app))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplicationGetNotFound(t *testing.T) {
	base, mock := newMockBase(t)
	repo := NewApplicationRepository(base)
	id := uuid.New()

	mock.ExpectQuery("FROM applications").
		WithArgs(id).
		WillReturnRows(sqlmock.NewRows(applicationRowColumns))

	_, err := repo.Get(context.Background(), id)
	assert.ErrorIs(t, err, repository.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplicationAppendStatus(t *testing.T) {
	base, mock := newMockBase(t)
	repo := NewApplicationRepository(base)

	id, candidate, hr := uuid.New(), uuid.New(), uuid.New()
	created := time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)
	changed := created.Add(time.Hour)
	change := model.StatusChange{Status: model.ApplicationStatusReviewing, Timestamp: changed, Actor: hr}

	history := `[{"status":"PENDING","timestamp":"2024-03-01T09:00:00Z","actor":"` + candidate.String() + `"},` +
		`{"status":"REVIEWING","timestamp":"2024-03-01T10:00:00Z","actor":"` + hr.String() + `"}]`
	rows := sqlmock.NewRows(applicationRowColumns).AddRow(
		id.String(), candidate.String(), uuid.NewString(), uuid.NewString(), uuid.NewString(), "hello",
		"REVIEWING", []byte(history), created, changed, nil,
	)

	mock.ExpectQuery(`UPDATE applications\s+SET status = \$2, history = history \|\| \$3::jsonb`).
		WithArgs(id, "REVIEWING", sqlmock.AnyArg(), changed).
		WillReturnRows(rows)

	app, err := repo.AppendStatus(context.Background(), id, change)
	require.NoError(t, err)

	assert.Equal(t, model.ApplicationStatusReviewing, app.Status)
	require.Len(t, app.History, 2)
	last, _ := app.History.Last()
	assert.Equal(t, app.Status, last.Status)
	assert.Equal(t, hr, last.Actor)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplicationSoftDeleteTwice(t *testing.T) {
	base, mock := newMockBase(t)
	repo := NewApplicationRepository(base)
	id := uuid.New()
	at := time.Now()

	mock.ExpectExec("UPDATE applications").WithArgs(id, at).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("UPDATE applications").WithArgs(id, at).WillReturnResult(sqlmock.NewResult(0, 0))

	require.NoError(t, repo.SoftDelete(context.Background(), id, at))
	assert.ErrorIs(t, repo.SoftDelete(context.Background(), id, at), repository.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplicationList(t *testing.T) {
	base, mock := newMockBase(t)
	repo := NewApplicationRepository(base)
	jobID := uuid.New()

	mock.ExpectQuery(`SELECT COUNT\(\*\) FROM applications WHERE deleted_at IS NULL AND job_id = \$1 AND status = \$2`).
		WithArgs(jobID, "PENDING").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(int64(12)))
	mock.ExpectQuery(`ORDER BY updated_at DESC, id DESC\s+LIMIT \$3 OFFSET \$4`).
		WithArgs(jobID, "PENDING", 5, 5).
		WillReturnRows(sqlmock.NewRows(applicationRowColumns))

	opts := model.ListOptions{Page: 2, PageSize: 5, Status: model.ApplicationStatusPending, Sort: model.SortUpdatedDesc}
	apps, total, err := repo.List(context.Background(), model.ApplicationFilter{JobID: &jobID}, opts)
	require.NoError(t, err)

	assert.Equal(t, 12, total)
	assert.Empty(t, apps)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestApplicationCountByStatus(t *testing.T) {
	base, mock := newMockBase(t)
	repo := NewApplicationRepository(base)
	companyID := uuid.New()

	mock.ExpectQuery(`GROUP BY status`).
		WithArgs(companyID).
		WillReturnRows(sqlmock.NewRows([]string{"status", "count"}).
			AddRow("PENDING", int64(4)).
			AddRow("APPROVED", int64(1)))

	counts, err := repo.CountByStatus(context.Background(), model.ApplicationFilter{CompanyID: &companyID})
	require.NoError(t, err)

	assert.Equal(t, map[model.ApplicationStatus]int{
		model.ApplicationStatusPending:  4,
		model.ApplicationStatusApproved: 1,
	}, counts)
	assert.NoError(t, mock.ExpectationsWereMet())
}
