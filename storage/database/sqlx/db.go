package sqlxrepos

import (
	"database/sql"

	"github.com/jmoiron/sqlx"
)

// Wrap adapts an open *sql.DB for the sqlx repositories.
func Wrap(db *sql.DB) *sqlx.DB {
	return sqlx.NewDb(db, "postgres")
}
