// Package repositories implements SQLite persistence for domain entities.
//
// Key Implementations:
//   - [SessionRepository] : Server-side session documents addressed by the id carried in the signed session cookie
//
// Sessions are hard deleted. Expired rows are removed by [SessionRepository.DeleteExpired], which the
// "sessions prune" command and the server's prune loop run.
package repositories

import (
	"database/sql"
	"fmt"
)

// requireRows returns notFound (wrapped with id) when a write touched no rows.
func requireRows(result sql.Result, notFound error, id string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("%w: %s", notFound, id)
	}
	return nil
}
