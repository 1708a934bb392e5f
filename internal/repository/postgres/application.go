package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"github.com/jwalitptl/jobboard-api/internal/model"
	"github.com/jwalitptl/jobboard-api/internal/repository"
)

const applicationColumns = `
	id, candidate_id, job_id, company_id, cv_id, cover_letter,
	status, history, created_at, updated_at, deleted_at`

var applicationOrder = map[model.SortKey]string{
	model.SortCreatedAsc:  "created_at ASC, id ASC",
	model.SortCreatedDesc: "created_at DESC, id DESC",
	model.SortUpdatedAsc:  "updated_at ASC, id ASC",
	model.SortUpdatedDesc: "updated_at DESC, id DESC",
}

type applicationRepository struct {
	BaseRepository
}

func NewApplicationRepository(base BaseRepository) repository.ApplicationRepository {
	return &applicationRepository{base}
}

func (r *applicationRepository) Create(ctx context.Context, app *model.Application) (err error) {
	defer r.observe("application.create")(&err)

	query := `
		INSERT INTO applications (
			id, candidate_id, job_id, company_id, cv_id, cover_letter,
			status, history, created_at, updated_at
		) VALUES (
			$1, $2, $3, $4, $5, $6, $7, $8, $9, $10
		)
	`
	_, err = r.db.ExecContext(ctx, query,
		app.ID,
		app.CandidateID,
		app.JobID,
		app.CompanyID,
		app.CVID,
		app.CoverLetter,
		app.Status,
		app.History,
		app.CreatedAt,
		app.UpdatedAt,
	)
	if err != nil {
		return errors.Wrap(err, "failed to create application")
	}
	return nil
}

func (r *applicationRepository) Get(ctx context.Context, id uuid.UUID) (_ *model.Application, err error) {
	defer r.observe("application.get")(&err)

	query := `SELECT ` + applicationColumns + `
		FROM applications
		WHERE id = $1 AND deleted_at IS NULL
	`
	var app model.Application
	if err = r.db.GetContext(ctx, &app, query, id); err != nil {
		return nil, errors.Wrap(notFound(err), "failed to get application")
	}
	return &app, nil
}

func (r *applicationRepository) AppendStatus(ctx context.Context, id uuid.UUID, change model.StatusChange) (_ *model.Application, err error) {
	defer r.observe("application.append_status")(&err)

	query := `
		UPDATE applications
		SET status = $2, history = history || $3::jsonb, updated_at = $4
		WHERE id = $1 AND deleted_at IS NULL
		RETURNING ` + applicationColumns

	var app model.Application
	err = r.db.GetContext(ctx, &app, query,
		id,
		change.Status,
		model.StatusHistory{change},
		change.Timestamp,
	)
	if err != nil {
		return nil, errors.Wrap(notFound(err), "failed to append application status")
	}
	return &app, nil
}

func (r *applicationRepository) SoftDelete(ctx context.Context, id uuid.UUID, at time.Time) (err error) {
	defer r.observe("application.soft_delete")(&err)

	query := `
		UPDATE applications
		SET deleted_at = $2, updated_at = $2
		WHERE id = $1 AND deleted_at IS NULL
	`
	result, err := r.db.ExecContext(ctx, query, id, at)
	if err != nil {
		return errors.Wrap(err, "failed to withdraw application")
	}

	rows, err := expectAffected(result)
	if err != nil {
		return err
	}
	if rows == 0 {
		return errors.Wrap(repository.ErrNotFound, "failed to withdraw application")
	}
	return nil
}

func (r *applicationRepository) List(ctx context.Context, filter model.ApplicationFilter, opts model.ListOptions) (_ []*model.Application, _ int, err error) {
	defer r.observe("application.list")(&err)

	opts = opts.Normalize()
	if opts.Status != "" {
		filter.Status = opts.Status
	}
	where, args := applicationWhere(filter)

	var total int
	countQuery := `SELECT COUNT(*) FROM applications WHERE ` + where
	if err = r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, errors.Wrap(err, "failed to count applications")
	}

	order, ok := applicationOrder[opts.Sort]
	if !ok {
		order = applicationOrder[model.SortCreatedDesc]
	}
	query := fmt.Sprintf(`SELECT %s
		FROM applications
		WHERE %s
		ORDER BY %s
		LIMIT $%d OFFSET $%d`,
		applicationColumns, where, order, len(args)+1, len(args)+2)

	apps := []*model.Application{}
	if err = r.db.SelectContext(ctx, &apps, query, append(args, opts.PageSize, opts.Offset())...); err != nil {
		return nil, 0, errors.Wrap(err, "failed to list applications")
	}
	return apps, total, nil
}

func (r *applicationRepository) CountByStatus(ctx context.Context, filter model.ApplicationFilter) (_ map[model.ApplicationStatus]int, err error) {
	defer r.observe("application.count_by_status")(&err)

	where, args := applicationWhere(filter)
	query := `
		SELECT status, COUNT(*) AS count
		FROM applications
		WHERE ` + where + `
		GROUP BY status
	`
	var rows []struct {
		Status model.ApplicationStatus `db:"status"`
		Count  int                     `db:"count"`
	}
	if err = r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, errors.Wrap(err, "failed to count applications by status")
	}

	counts := make(map[model.ApplicationStatus]int, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}

func applicationWhere(filter model.ApplicationFilter) (string, []interface{}) {
	conditions := []string{"deleted_at IS NULL"}
	var args []interface{}

	add := func(column string, value interface{}) {
		args = append(args, value)
		conditions = append(conditions, fmt.Sprintf("%s = $%d", column, len(args)))
	}
	if filter.CandidateID != nil {
		add("candidate_id", *filter.CandidateID)
	}
	if filter.JobID != nil {
		add("job_id", *filter.JobID)
	}
	if filter.CompanyID != nil {
		add("company_id", *filter.CompanyID)
	}
	if filter.Status != "" {
		add("status", filter.Status)
	}
	return strings.Join(conditions, " AND "), args
}
