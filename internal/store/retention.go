package store

import (
	"context"
	"fmt"
	"time"
)

// CleanupOldData deletes activities dated strictly before today minus
// retentionDays and returns how many were removed. Tasks, folders and
// application rollups are left untouched.
func (s *Store) CleanupOldData(ctx context.Context, retentionDays int) (int64, error) {
	if retentionDays < 0 {
		return 0, fmt.Errorf("cleanup: negative retention %d: %w", retentionDays, ErrInvalidArgument)
	}
	now := s.now().In(s.loc)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, s.loc)
	cutoff := today.AddDate(0, 0, -retentionDays).Format(dateLayout)

	res, err := s.db.ExecContext(ctx, `DELETE FROM activities WHERE date < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("cleanup activities: %w", err)
	}
	n, _ := res.RowsAffected()
	return n, nil
}
