package store

import (
	"context"
	"database/sql"
	"fmt"
)

// ListApplications returns the raw rollup rows, largest total first.
func (s *Store) ListApplications(ctx context.Context) ([]Application, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT app_name, total_time, last_used FROM applications ORDER BY total_time DESC, app_name ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("list applications: %w", err)
	}
	defer rows.Close()

	var apps []Application
	for rows.Next() {
		var a Application
		var lastUsed sql.NullString
		if err := rows.Scan(&a.AppName, &a.TotalTime, &lastUsed); err != nil {
			return nil, err
		}
		if lastUsed.Valid {
			t := parseTime(lastUsed.String)
			a.LastUsed = &t
		}
		apps = append(apps, a)
	}
	return apps, rows.Err()
}
