package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/sadopc/focustrack/internal/normalize"
	_ "modernc.org/sqlite"
)

const currentVersion = 2

// DefaultFolderName is the name given to the protected default folder.
const DefaultFolderName = "Default"

// ImportedTaskTitle owns activities recorded before tasks existed.
const ImportedTaskTitle = "Imported activity"

type Store struct {
	db   *sql.DB
	norm *normalize.Normalizer
	now  func() time.Time
	loc  *time.Location
}

// Option configures a Store.
type Option func(*Store)

// WithClock overrides the wall clock used for timestamps and dates.
func WithClock(now func() time.Time) Option {
	return func(s *Store) { s.now = now }
}

// WithLocation sets the zone used to derive an activity's calendar date.
func WithLocation(loc *time.Location) Option {
	return func(s *Store) { s.loc = loc }
}

// WithNormalizer sets the normalizer applied when activities are opened.
func WithNormalizer(n *normalize.Normalizer) Option {
	return func(s *Store) { s.norm = n }
}

// New opens (or creates) the SQLite database at dbPath and runs migrations.
func New(dbPath string, opts ...Option) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// One connection serializes every read-modify-write unit.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("exec pragma %q: %w", p, err)
		}
	}

	s := &Store{db: db, now: time.Now, loc: time.Local}
	for _, opt := range opts {
		opt(s)
	}
	if s.norm == nil {
		s.norm = normalize.New()
	}
	if s.loc == nil {
		s.loc = time.Local
	}

	ctx := context.Background()
	if err := s.migrate(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	if err := s.reconcile(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("reconcile: %w", err)
	}
	return s, nil
}

// NewMemory creates an in-memory store for testing.
func NewMemory(opts ...Option) (*Store, error) {
	return New(":memory:", opts...)
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Now returns the store's clock reading.
func (s *Store) Now() time.Time {
	return s.now()
}

// DateOf formats t as the local calendar date used by activities.
func (s *Store) DateOf(t time.Time) string {
	return t.In(s.loc).Format(dateLayout)
}

// Today returns the current local calendar date.
func (s *Store) Today() string {
	return s.DateOf(s.now())
}

func (s *Store) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (s *Store) migrate(ctx context.Context) error {
	var version int
	err := s.db.QueryRowContext(ctx, "PRAGMA user_version").Scan(&version)
	if err != nil {
		return fmt.Errorf("read user_version: %w", err)
	}

	if version >= currentVersion {
		return nil
	}

	steps := []func(*sql.Tx) error{s.migrateV1, s.migrateV2}
	for v := version; v < currentVersion; v++ {
		step := steps[v]
		next := v + 1
		err := s.withTx(ctx, func(tx *sql.Tx) error {
			if err := step(tx); err != nil {
				return fmt.Errorf("v%d: %w", next, err)
			}
			_, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", next))
			return err
		})
		if err != nil {
			return err
		}
	}
	return nil
}

// migrateV1 is the application-only schema: activities were attributed to
// nothing but the focused application.
func (s *Store) migrateV1(tx *sql.Tx) error {
	const ddl = `
	CREATE TABLE IF NOT EXISTS activities (
		id           INTEGER PRIMARY KEY AUTOINCREMENT,
		app_name     TEXT NOT NULL,
		window_title TEXT NOT NULL DEFAULT '',
		start_time   TEXT NOT NULL,
		end_time     TEXT,
		duration     INTEGER,
		date         TEXT NOT NULL,
		created_at   TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ','now'))
	);

	CREATE TABLE IF NOT EXISTS applications (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		app_name    TEXT NOT NULL UNIQUE,
		total_time  INTEGER NOT NULL DEFAULT 0,
		last_used   TEXT,
		created_at  TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ','now'))
	);

	CREATE INDEX IF NOT EXISTS idx_activities_date  ON activities(date);
	CREATE INDEX IF NOT EXISTS idx_activities_app   ON activities(app_name);
	CREATE INDEX IF NOT EXISTS idx_activities_start ON activities(start_time);
	`
	_, err := tx.Exec(ddl)
	return err
}

// migrateV2 introduces folders and tasks and makes every activity belong to
// a task.
func (s *Store) migrateV2(tx *sql.Tx) error {
	const ddl = `
	CREATE TABLE IF NOT EXISTS folders (
		id          INTEGER PRIMARY KEY AUTOINCREMENT,
		name        TEXT NOT NULL UNIQUE COLLATE NOCASE,
		is_default  INTEGER NOT NULL DEFAULT 0,
		created_at  TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ','now')),
		updated_at  TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ','now'))
	);

	CREATE UNIQUE INDEX IF NOT EXISTS idx_folders_default ON folders(is_default) WHERE is_default = 1;

	CREATE TABLE IF NOT EXISTS tasks (
		id           INTEGER PRIMARY KEY AUTOINCREMENT,
		folder_id    INTEGER REFERENCES folders(id) ON DELETE SET NULL,
		title        TEXT NOT NULL,
		description  TEXT NOT NULL DEFAULT '',
		created_at   TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ','now')),
		updated_at   TEXT NOT NULL DEFAULT (strftime('%Y-%m-%dT%H:%M:%SZ','now'))
	);

	CREATE INDEX IF NOT EXISTS idx_tasks_folder ON tasks(folder_id);

	ALTER TABLE activities ADD COLUMN task_id INTEGER REFERENCES tasks(id) ON DELETE CASCADE;

	CREATE INDEX IF NOT EXISTS idx_activities_task ON activities(task_id);

	CREATE TABLE IF NOT EXISTS settings (
		key   TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);
	`
	if _, err := tx.Exec(ddl); err != nil {
		return err
	}

	now := formatTime(s.now())
	defaultID, err := ensureDefaultFolder(tx, now)
	if err != nil {
		return err
	}

	return adoptTasklessActivities(tx, defaultID, now)
}

// adoptTasklessActivities attaches activities without a live task to an
// imported task in the default folder. The column is nullable because
// SQLite cannot add a NOT NULL foreign key with ALTER TABLE.
func adoptTasklessActivities(tx *sql.Tx, defaultID int64, now string) error {
	const orphan = `task_id IS NULL OR task_id NOT IN (SELECT id FROM tasks)`
	var legacy int
	if err := tx.QueryRow(`SELECT COUNT(*) FROM activities WHERE ` + orphan).Scan(&legacy); err != nil {
		return fmt.Errorf("count legacy activities: %w", err)
	}
	if legacy == 0 {
		return nil
	}
	res, err := tx.Exec(
		`INSERT INTO tasks (folder_id, title, description, created_at, updated_at) VALUES (?, ?, ?, ?, ?)`,
		defaultID, ImportedTaskTitle, "Activity recorded before tasks were introduced", now, now,
	)
	if err != nil {
		return fmt.Errorf("insert imported task: %w", err)
	}
	taskID, _ := res.LastInsertId()
	if _, err := tx.Exec(`UPDATE activities SET task_id = ? WHERE `+orphan, taskID); err != nil {
		return fmt.Errorf("attach legacy activities: %w", err)
	}
	return nil
}

func ensureDefaultFolder(tx *sql.Tx, now string) (int64, error) {
	var id int64
	err := tx.QueryRow(`SELECT id FROM folders WHERE is_default = 1`).Scan(&id)
	if err == nil {
		return id, nil
	}
	if err != sql.ErrNoRows {
		return 0, fmt.Errorf("find default folder: %w", err)
	}

	// A user folder may already carry the default name; promote it.
	err = tx.QueryRow(`SELECT id FROM folders WHERE name = ? COLLATE NOCASE`, DefaultFolderName).Scan(&id)
	if err == nil {
		_, err = tx.Exec(`UPDATE folders SET is_default = 1, updated_at = ? WHERE id = ?`, now, id)
		return id, err
	}
	if err != sql.ErrNoRows {
		return 0, fmt.Errorf("find folder %q: %w", DefaultFolderName, err)
	}

	res, err := tx.Exec(
		`INSERT INTO folders (name, is_default, created_at, updated_at) VALUES (?, 1, ?, ?)`,
		DefaultFolderName, now, now,
	)
	if err != nil {
		return 0, fmt.Errorf("insert default folder: %w", err)
	}
	return res.LastInsertId()
}

// reconcile makes sure the default folder exists, that no task is left
// without a folder and that no activity is left without a task.
func (s *Store) reconcile(ctx context.Context) error {
	return s.withTx(ctx, func(tx *sql.Tx) error {
		now := formatTime(s.now())
		defaultID, err := ensureDefaultFolder(tx, now)
		if err != nil {
			return err
		}
		_, err = tx.Exec(
			`UPDATE tasks SET folder_id = ?
			 WHERE folder_id IS NULL OR folder_id NOT IN (SELECT id FROM folders)`,
			defaultID,
		)
		if err != nil {
			return fmt.Errorf("reassign orphan tasks: %w", err)
		}
		return adoptTasklessActivities(tx, defaultID, now)
	})
}

// DefaultDBPath returns ~/.config/focustrack/focustrack.db
func DefaultDBPath() (string, error) {
	cfg, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(cfg, "focustrack", "focustrack.db"), nil
}
