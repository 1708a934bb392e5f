package postgres

import (
	"context"

	"github.com/cockroachdb/errors"
	"github.com/google/uuid"

	"github.com/jwalitptl/jobboard-api/internal/model"
	"github.com/jwalitptl/jobboard-api/internal/repository"
)

// HR members of a company carry this role in company_members.
const companyRoleHR = "hr"

type directoryRepository struct {
	BaseRepository
}

func NewDirectoryRepository(base BaseRepository) repository.DirectoryRepository {
	return &directoryRepository{base}
}

func (r *directoryRepository) GetCV(ctx context.Context, id uuid.UUID) (_ *model.CV, err error) {
	defer r.observe("directory.get_cv")(&err)

	query := `
		SELECT id, owner_id, file_name
		FROM cvs
		WHERE id = $1 AND deleted_at IS NULL
	`
	var cv model.CV
	if err = r.db.GetContext(ctx, &cv, query, id); err != nil {
		return nil, errors.Wrap(notFound(err), "failed to get cv")
	}
	return &cv, nil
}

func (r *directoryRepository) GetJob(ctx context.Context, id uuid.UUID) (_ *model.Job, err error) {
	defer r.observe("directory.get_job")(&err)

	query := `
		SELECT id, company_id, title
		FROM jobs
		WHERE id = $1 AND deleted_at IS NULL
	`
	var job model.Job
	if err = r.db.GetContext(ctx, &job, query, id); err != nil {
		return nil, errors.Wrap(notFound(err), "failed to get job")
	}
	return &job, nil
}

func (r *directoryRepository) ListCompanyHR(ctx context.Context, companyID uuid.UUID) (_ []uuid.UUID, err error) {
	defer r.observe("directory.list_company_hr")(&err)

	query := `
		SELECT user_id
		FROM company_members
		WHERE company_id = $1 AND role = $2
		ORDER BY user_id
	`
	ids := []uuid.UUID{}
	if err = r.db.SelectContext(ctx, &ids, query, companyID, companyRoleHR); err != nil {
		return nil, errors.Wrap(err, "failed to list company hr")
	}
	return ids, nil
}

func (r *directoryRepository) GetContact(ctx context.Context, userID uuid.UUID) (_ *model.Contact, err error) {
	defer r.observe("directory.get_contact")(&err)

	query := `
		SELECT id, email, name
		FROM users
		WHERE id = $1
	`
	var contact model.Contact
	if err = r.db.GetContext(ctx, &contact, query, userID); err != nil {
		return nil, errors.Wrap(notFound(err), "failed to get contact")
	}
	return &contact, nil
}
