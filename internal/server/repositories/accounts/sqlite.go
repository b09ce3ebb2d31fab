package accounts

import (
	"errors"

	"github.com/dmitrijs2005/identityd/internal/dbx"
	"modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

var sqliteDialect = dialect{
	isUniqueViolation: func(err error) bool {
		var sErr *sqlite.Error
		return errors.As(err, &sErr) && sErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE
	},
}

// NewSQLiteRepository returns a Repository for SQLite via modernc.org/sqlite.
func NewSQLiteRepository(db dbx.DBTX) *SQLRepository {
	return newSQLRepository(db, sqliteDialect)
}
