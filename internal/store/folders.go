package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

const folderColumns = `id, name, is_default, created_at, updated_at`

func scanFolder(row rowScanner) (*Folder, error) {
	f := &Folder{}
	var createdAt, updatedAt string
	var isDefault int
	if err := row.Scan(&f.ID, &f.Name, &isDefault, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	f.IsDefault = isDefault == 1
	f.CreatedAt = parseTime(createdAt)
	f.UpdatedAt = parseTime(updatedAt)
	return f, nil
}

func (s *Store) CreateFolder(ctx context.Context, name string) (*Folder, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("create folder: empty name: %w", ErrInvalidArgument)
	}

	var id int64
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if err := checkFolderName(tx, name, 0); err != nil {
			return err
		}
		now := formatTime(s.now())
		res, err := tx.Exec(
			`INSERT INTO folders (name, created_at, updated_at) VALUES (?, ?, ?)`,
			name, now, now,
		)
		if err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("folder %q: %w", name, ErrDuplicateName)
			}
			return fmt.Errorf("insert folder: %w", err)
		}
		id, _ = res.LastInsertId()
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetFolder(ctx, id)
}

// checkFolderName fails with ErrDuplicateName when another folder (other
// than exceptID) already uses name, ignoring case.
func checkFolderName(tx *sql.Tx, name string, exceptID int64) error {
	var id int64
	err := tx.QueryRow(`SELECT id FROM folders WHERE name = ? COLLATE NOCASE AND id != ?`, name, exceptID).Scan(&id)
	if err == sql.ErrNoRows {
		return nil
	}
	if err != nil {
		return fmt.Errorf("check folder name: %w", err)
	}
	return fmt.Errorf("folder %q: %w", name, ErrDuplicateName)
}

func (s *Store) GetFolder(ctx context.Context, id int64) (*Folder, error) {
	f, err := scanFolder(s.db.QueryRowContext(ctx,
		`SELECT `+folderColumns+` FROM folders WHERE id = ?`, id,
	))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("folder %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get folder %d: %w", id, err)
	}
	return f, nil
}

func (s *Store) DefaultFolder(ctx context.Context) (*Folder, error) {
	f, err := scanFolder(s.db.QueryRowContext(ctx,
		`SELECT `+folderColumns+` FROM folders WHERE is_default = 1`,
	))
	if err != nil {
		return nil, fmt.Errorf("get default folder: %w", err)
	}
	return f, nil
}

func defaultFolderID(tx *sql.Tx) (int64, error) {
	var id int64
	if err := tx.QueryRow(`SELECT id FROM folders WHERE is_default = 1`).Scan(&id); err != nil {
		return 0, fmt.Errorf("get default folder: %w", err)
	}
	return id, nil
}

// lockFolder loads a folder inside tx and rejects the default folder before
// anything is written.
func lockFolder(tx *sql.Tx, id int64) (*Folder, error) {
	f, err := scanFolder(tx.QueryRow(`SELECT `+folderColumns+` FROM folders WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("folder %d: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get folder %d: %w", id, err)
	}
	if f.IsDefault {
		return nil, fmt.Errorf("folder %d: %w", id, ErrProtected)
	}
	return f, nil
}

func (s *Store) RenameFolder(ctx context.Context, id int64, name string) (*Folder, error) {
	err := s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := lockFolder(tx, id); err != nil {
			return err
		}
		name = strings.TrimSpace(name)
		if name == "" {
			return fmt.Errorf("rename folder: empty name: %w", ErrInvalidArgument)
		}
		if err := checkFolderName(tx, name, id); err != nil {
			return err
		}
		_, err := tx.Exec(
			`UPDATE folders SET name = ?, updated_at = ? WHERE id = ?`,
			name, formatTime(s.now()), id,
		)
		if err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("folder %q: %w", name, ErrDuplicateName)
			}
			return fmt.Errorf("rename folder: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return s.GetFolder(ctx, id)
}

// DeleteFolder moves the folder's tasks to the default folder and removes
// the folder.
func (s *Store) DeleteFolder(ctx context.Context, id int64) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		if _, err := lockFolder(tx, id); err != nil {
			return err
		}
		defaultID, err := defaultFolderID(tx)
		if err != nil {
			return err
		}
		if _, err := tx.Exec(`UPDATE tasks SET folder_id = ? WHERE folder_id = ?`, defaultID, id); err != nil {
			return fmt.Errorf("reassign tasks: %w", err)
		}
		if _, err := tx.Exec(`DELETE FROM folders WHERE id = ?`, id); err != nil {
			return fmt.Errorf("delete folder: %w", err)
		}
		if _, err := tx.Exec(`UPDATE folders SET updated_at = ? WHERE id = ?`, formatTime(s.now()), defaultID); err != nil {
			return fmt.Errorf("touch default folder: %w", err)
		}
		return nil
	})
}

// ListFoldersWithStats returns every folder with its task count and the
// summed duration of its tasks' closed activities. The default folder comes
// first, the rest alphabetically ignoring case.
func (s *Store) ListFoldersWithStats(ctx context.Context) ([]FolderStats, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT f.id, f.name, f.is_default, f.created_at, f.updated_at,
		       (SELECT COUNT(*) FROM tasks t WHERE t.folder_id = f.id),
		       (SELECT COALESCE(SUM(a.duration), 0)
		          FROM activities a
		          JOIN tasks t ON t.id = a.task_id
		         WHERE t.folder_id = f.id AND a.duration IS NOT NULL)
		FROM folders f
		ORDER BY f.is_default DESC, f.name COLLATE NOCASE ASC, f.id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list folders: %w", err)
	}
	defer rows.Close()

	var folders []FolderStats
	for rows.Next() {
		var fs FolderStats
		var createdAt, updatedAt string
		var isDefault int
		if err := rows.Scan(&fs.ID, &fs.Name, &isDefault, &createdAt, &updatedAt, &fs.TaskCount, &fs.TotalDuration); err != nil {
			return nil, err
		}
		fs.IsDefault = isDefault == 1
		fs.CreatedAt = parseTime(createdAt)
		fs.UpdatedAt = parseTime(updatedAt)
		folders = append(folders, fs)
	}
	return folders, rows.Err()
}
