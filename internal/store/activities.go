package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

type rowScanner interface {
	Scan(dest ...any) error
}

const activityColumns = `a.id, a.task_id, a.app_name, a.window_title, a.start_time, a.end_time, a.duration, a.date`

func scanActivity(row rowScanner) (*Activity, error) {
	a := &Activity{}
	var startTime string
	var endTime sql.NullString
	var duration sql.NullInt64
	if err := row.Scan(&a.ID, &a.TaskID, &a.AppName, &a.WindowTitle, &startTime, &endTime, &duration, &a.Date); err != nil {
		return nil, err
	}
	a.StartTime = parseTime(startTime)
	if endTime.Valid {
		t := parseTime(endTime.String)
		a.EndTime = &t
	}
	if duration.Valid {
		d := duration.Int64
		a.Duration = &d
	}
	return a, nil
}

// StartActivity opens a new activity for taskID. Any activity still open is
// closed in the same transaction, so at most one is ever open.
func (s *Store) StartActivity(ctx context.Context, taskID int64, rawApp, windowTitle string) (int64, error) {
	app := s.norm.Normalize(rawApp, windowTitle)
	now := s.now()
	nowStr := formatTime(now)

	var id int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := taskFolder(tx, taskID); err != nil {
			return err
		}
		if err := closeOpenActivities(tx, now); err != nil {
			return err
		}

		res, err := tx.Exec(
			`INSERT INTO activities (task_id, app_name, window_title, start_time, date, created_at)
			 VALUES (?, ?, ?, ?, ?, ?)`,
			taskID, app, windowTitle, nowStr, s.DateOf(now), nowStr,
		)
		if err != nil {
			return fmt.Errorf("insert activity: %w", err)
		}
		id, _ = res.LastInsertId()

		_, err = tx.Exec(
			`INSERT INTO applications (app_name, last_used) VALUES (?, ?)
			 ON CONFLICT(app_name) DO UPDATE SET last_used = excluded.last_used`,
			app, nowStr,
		)
		if err != nil {
			return fmt.Errorf("upsert application: %w", err)
		}
		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("start activity: %w", err)
	}
	return id, nil
}

// EndActivity closes an open activity. Missing or already closed
// activities are left alone.
func (s *Store) EndActivity(ctx context.Context, id int64) error {
	now := s.now()
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		return closeActivity(tx, id, now)
	})
	if err != nil {
		return fmt.Errorf("end activity %d: %w", id, err)
	}
	return nil
}

func closeOpenActivities(tx *sql.Tx, now time.Time) error {
	rows, err := tx.Query(`SELECT id FROM activities WHERE end_time IS NULL`)
	if err != nil {
		return fmt.Errorf("find open activities: %w", err)
	}
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return err
		}
		ids = append(ids, id)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return err
	}

	for _, id := range ids {
		if err := closeActivity(tx, id, now); err != nil {
			return err
		}
	}
	return nil
}

func closeActivity(tx *sql.Tx, id int64, now time.Time) error {
	var startStr, app string
	err := tx.QueryRow(
		`SELECT start_time, app_name FROM activities WHERE id = ? AND end_time IS NULL`, id,
	).Scan(&startStr, &app)
	if err == sql.ErrNoRows {
		return nil
	}
	if err != nil {
		return fmt.Errorf("get activity start: %w", err)
	}

	end := now.UTC().Truncate(time.Second)
	duration := int64(end.Sub(parseTime(startStr)) / time.Second)
	if duration < 0 {
		duration = 0
	}

	res, err := tx.Exec(
		`UPDATE activities SET end_time = ?, duration = ? WHERE id = ? AND end_time IS NULL`,
		formatTime(end), duration, id,
	)
	if err != nil {
		return fmt.Errorf("close activity: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 || duration == 0 {
		return nil
	}

	_, err = tx.Exec(
		`INSERT INTO applications (app_name, total_time, last_used) VALUES (?, ?, ?)
		 ON CONFLICT(app_name) DO UPDATE SET total_time = total_time + excluded.total_time, last_used = excluded.last_used`,
		app, duration, formatTime(end),
	)
	if err != nil {
		return fmt.Errorf("update application total: %w", err)
	}
	return nil
}

func (s *Store) GetActivity(ctx context.Context, id int64) (*Activity, error) {
	a, err := scanActivity(s.db.QueryRowContext(ctx,
		`SELECT `+activityColumns+` FROM activities a WHERE a.id = ?`, id,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("activity %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get activity %d: %w", id, err)
	}
	return a, nil
}

// GetActiveActivity returns the most recently started open activity, or nil
// when nothing is being tracked.
func (s *Store) GetActiveActivity(ctx context.Context) (*Activity, error) {
	a, err := scanActivity(s.db.QueryRowContext(ctx,
		`SELECT `+activityColumns+` FROM activities a
		 WHERE a.end_time IS NULL ORDER BY a.start_time DESC, a.id DESC LIMIT 1`,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get active activity: %w", err)
	}
	return a, nil
}

// ListActivities returns activities matching f, newest first.
func (s *Store) ListActivities(ctx context.Context, f ActivityFilter) ([]Activity, error) {
	query := `SELECT ` + activityColumns + ` FROM activities a`
	var args []any

	if f.FolderID != nil {
		query += ` JOIN tasks t ON t.id = a.task_id AND t.folder_id = ?`
		args = append(args, *f.FolderID)
	}
	query += ` WHERE 1=1`
	if f.Date != "" {
		query += ` AND a.date = ?`
		args = append(args, f.Date)
	}
	if f.From != "" {
		query += ` AND a.date >= ?`
		args = append(args, f.From)
	}
	if f.To != "" {
		query += ` AND a.date <= ?`
		args = append(args, f.To)
	}
	if f.TaskID != nil {
		query += ` AND a.task_id = ?`
		args = append(args, *f.TaskID)
	}
	if f.AppName != "" {
		query += ` AND a.app_name = ?`
		args = append(args, f.AppName)
	}
	if f.ClosedOnly {
		query += ` AND a.duration IS NOT NULL`
	}
	query += ` ORDER BY a.start_time DESC, a.id DESC`
	if f.Limit > 0 {
		query += fmt.Sprintf(` LIMIT %d`, f.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list activities: %w", err)
	}
	defer rows.Close()

	var activities []Activity
	for rows.Next() {
		a, err := scanActivity(rows)
		if err != nil {
			return nil, err
		}
		activities = append(activities, *a)
	}
	return activities, rows.Err()
}
