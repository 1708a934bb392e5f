package postgres

import (
	"context"
	_ "embed"

	"github.com/cockroachdb/errors"
	"github.com/jmoiron/sqlx"
)

//go:embed schema.sql
var schema string

// Migrate creates the tables this service needs when they are absent. The
// directory tables are owned elsewhere and only created for local setups.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	if _, err := db.ExecContext(ctx, schema); err != nil {
		return errors.Wrap(err, "failed to apply schema")
	}
	return nil
}
