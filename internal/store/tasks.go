package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

const taskColumns = `id, folder_id, title, description, created_at, updated_at`

func scanTask(row rowScanner) (*Task, error) {
	t := &Task{}
	var createdAt, updatedAt string
	if err := row.Scan(&t.ID, &t.FolderID, &t.Title, &t.Description, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	t.CreatedAt = parseTime(createdAt)
	t.UpdatedAt = parseTime(updatedAt)
	return t, nil
}

// CreateTask adds a task to folderID. A nil or unknown folder puts the task
// in the default folder.
func (s *Store) CreateTask(ctx context.Context, folderID *int64, title, description string) (*Task, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return nil, fmt.Errorf("create task: empty title: %w", ErrInvalidArgument)
	}

	var id int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		target, err := resolveFolder(tx, folderID)
		if err != nil {
			return err
		}
		now := formatTime(s.now())
		res, err := tx.Exec(
			`INSERT INTO tasks (folder_id, title, description, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
			target, title, strings.TrimSpace(description), now, now,
		)
		if err != nil {
			return fmt.Errorf("insert task: %w", err)
		}
		id, _ = res.LastInsertId()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetTask(ctx, id)
}

func resolveFolder(tx *sql.Tx, folderID *int64) (int64, error) {
	if folderID != nil {
		var id int64
		err := tx.QueryRow(`SELECT id FROM folders WHERE id = ?`, *folderID).Scan(&id)
		if err == nil {
			return id, nil
		}
		if err != sql.ErrNoRows {
			return 0, fmt.Errorf("resolve folder %d: %w", *folderID, err)
		}
	}
	return defaultFolderID(tx)
}

func (s *Store) GetTask(ctx context.Context, id int64) (*Task, error) {
	t, err := scanTask(s.db.QueryRowContext(ctx, `SELECT `+taskColumns+` FROM tasks WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("task %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get task %d: %w", id, err)
	}
	return t, nil
}

// ListTasks returns tasks, most recently updated first. A non-nil folderID
// restricts the list to that folder.
func (s *Store) ListTasks(ctx context.Context, folderID *int64) ([]Task, error) {
	query := `SELECT ` + taskColumns + ` FROM tasks`
	var args []any
	if folderID != nil {
		query += ` WHERE folder_id = ?`
		args = append(args, *folderID)
	}
	query += ` ORDER BY updated_at DESC, id DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	defer rows.Close()

	var tasks []Task
	for rows.Next() {
		t, err := scanTask(rows)
		if err != nil {
			return nil, err
		}
		tasks = append(tasks, *t)
	}
	return tasks, rows.Err()
}

// UpdateTask applies patch and always bumps updated_at.
func (s *Store) UpdateTask(ctx context.Context, id int64, patch TaskPatch) (*Task, error) {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := taskFolder(tx, id); err != nil {
			return err
		}
		sets := []string{"updated_at = ?"}
		args := []any{formatTime(s.now())}
		if patch.Title != nil {
			title := strings.TrimSpace(*patch.Title)
			if title == "" {
				return fmt.Errorf("update task: empty title: %w", ErrInvalidArgument)
			}
			sets = append(sets, "title = ?")
			args = append(args, title)
		}
		if patch.Description != nil {
			sets = append(sets, "description = ?")
			args = append(args, strings.TrimSpace(*patch.Description))
		}
		args = append(args, id)
		if _, err := tx.Exec(`UPDATE tasks SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...); err != nil {
			return fmt.Errorf("update task: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetTask(ctx, id)
}

// MoveTask reassigns a task to another folder, bumping the task and both
// folders.
func (s *Store) MoveTask(ctx context.Context, id, folderID int64) (*Task, error) {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		from, err := taskFolder(tx, id)
		if err != nil {
			return err
		}
		var to int64
		err = tx.QueryRow(`SELECT id FROM folders WHERE id = ?`, folderID).Scan(&to)
		if err == sql.ErrNoRows {
			return fmt.Errorf("folder %d: %w", folderID, ErrNotFound)
		}
		if err != nil {
			return fmt.Errorf("get folder %d: %w", folderID, err)
		}

		now := formatTime(s.now())
		if _, err := tx.Exec(`UPDATE tasks SET folder_id = ?, updated_at = ? WHERE id = ?`, to, now, id); err != nil {
			return fmt.Errorf("move task: %w", err)
		}
		if _, err := tx.Exec(`UPDATE folders SET updated_at = ? WHERE id IN (?, ?)`, now, from, to); err != nil {
			return fmt.Errorf("touch folders: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetTask(ctx, id)
}

// DeleteTask removes a task together with all of its activities.
func (s *Store) DeleteTask(ctx context.Context, id int64) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		folderID, err := taskFolder(tx, id)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(`DELETE FROM tasks WHERE id = ?`, id); err != nil {
			return fmt.Errorf("delete task: %w", err)
		}
		if _, err := tx.Exec(`UPDATE folders SET updated_at = ? WHERE id = ?`, formatTime(s.now()), folderID); err != nil {
			return fmt.Errorf("touch folder: %w", err)
		}
		return nil
	})
}

func taskFolder(tx *sql.Tx, id int64) (int64, error) {
	var folderID int64
	err := tx.QueryRow(`SELECT folder_id FROM tasks WHERE id = ?`, id).Scan(&folderID)
	if err == sql.ErrNoRows {
		return 0, fmt.Errorf("task %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return 0, fmt.Errorf("get task %d: %w", id, err)
	}
	return folderID, nil
}
