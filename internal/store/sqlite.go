// ABOUTME: SQLite implementation of the Store interface using modernc.org/sqlite
// ABOUTME: Provides user, material and project persistence with automatic schema creation

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// Ensure SQLiteStore implements Store.
var _ Store = (*SQLiteStore)(nil)

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	if path != ":memory:" {
		dir := filepath.Dir(path)
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("creating database directory: %w", err)
		}
	}

	// Pragmas in the DSN apply to every pooled connection, not just the first.
	dsn := path
	if path != ":memory:" {
		dsn = "file:" + path + "?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Every :memory: connection is its own database, so pin the pool to one.
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	// Enable WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	if path == ":memory:" {
		if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
			db.Close()
			return nil, fmt.Errorf("enabling foreign keys: %w", err)
		}
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

// createSchema creates the database tables if they don't exist
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS users (
			id            TEXT PRIMARY KEY,
			email         TEXT NOT NULL UNIQUE,
			password_hash TEXT NOT NULL,
			username      TEXT NOT NULL DEFAULT '',
			created_at    TEXT NOT NULL
		);

		CREATE TABLE IF NOT EXISTS materials (
			id         TEXT PRIMARY KEY,
			name       TEXT NOT NULL,
			unit       TEXT NOT NULL,
			coverage   REAL NOT NULL,
			image_data TEXT,
			image_key  TEXT,
			created_by TEXT NOT NULL,
			created_at TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_materials_created ON materials(created_at);

		CREATE TABLE IF NOT EXISTS projects (
			id                   TEXT PRIMARY KEY,
			user_id              TEXT NOT NULL,
			title                TEXT NOT NULL,
			date                 TEXT NOT NULL,
			dimensions_json      TEXT NOT NULL,
			calculated_materials TEXT NOT NULL,
			created_at           TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_projects_user ON projects(user_id, created_at);
	`

	_, err := s.db.Exec(schema)
	return err
}

// Ping checks that the database answers queries
func (s *SQLiteStore) Ping(ctx context.Context) error {
	if err := s.db.PingContext(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// CreateUser inserts a new user. The UNIQUE constraint on email is the only
// duplicate check, so concurrent signups for one email cannot both succeed.
func (s *SQLiteStore) CreateUser(ctx context.Context, user *User) error {
	// The caller's struct is only updated once the insert succeeds.
	row := *user
	if row.ID == "" {
		row.ID = uuid.New().String()
	}
	if row.CreatedAt.IsZero() {
		row.CreatedAt = time.Now().UTC()
	}
	row.Email = NormalizeEmail(row.Email)

	query := `
		INSERT INTO users (id, email, password_hash, username, created_at)
		VALUES (?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		row.ID,
		row.Email,
		row.PasswordHash,
		row.Username,
		formatTime(row.CreatedAt),
	)
	if err != nil {
		if isUniqueConstraintError(err) {
			return ErrEmailTaken
		}
		return s.wrapError("inserting user", err)
	}

	*user = row
	s.logger.Info("created user", "id", user.ID)
	return nil
}

// GetUserByEmail retrieves a user by email
func (s *SQLiteStore) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	query := `
		SELECT id, email, password_hash, username, created_at
		FROM users
		WHERE email = ?
	`

	var user User
	var createdAtStr string

	err := s.db.QueryRowContext(ctx, query, NormalizeEmail(email)).Scan(
		&user.ID,
		&user.Email,
		&user.PasswordHash,
		&user.Username,
		&createdAtStr,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, s.wrapError("querying user by email", err)
	}

	user.CreatedAt, err = parseTime(createdAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}

	return &user, nil
}

// DeleteUser removes a user by email
func (s *SQLiteStore) DeleteUser(ctx context.Context, email string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM users WHERE email = ?", NormalizeEmail(email))
	if err != nil {
		return s.wrapError("deleting user", err)
	}
	return requireAffected(result)
}

// CreateMaterial inserts a catalog entry
func (s *SQLiteStore) CreateMaterial(ctx context.Context, m *Material) error {
	if m.ID == "" {
		m.ID = uuid.New().String()
	}
	if m.CreatedAt.IsZero() {
		m.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO materials (id, name, unit, coverage, image_data, image_key, created_by, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`

	_, err := s.db.ExecContext(ctx, query,
		m.ID,
		m.Name,
		m.Unit,
		m.Coverage,
		nullString(m.ImageData),
		nullString(m.ImageKey),
		m.CreatedBy,
		formatTime(m.CreatedAt),
	)
	if err != nil {
		return s.wrapError("inserting material", err)
	}
	return nil
}

// GetMaterial retrieves a catalog entry by ID
func (s *SQLiteStore) GetMaterial(ctx context.Context, id string) (*Material, error) {
	query := `
		SELECT id, name, unit, coverage, image_data, image_key, created_by, created_at
		FROM materials
		WHERE id = ?
	`

	m, err := scanMaterial(s.db.QueryRowContext(ctx, query, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, s.wrapError("querying material", err)
	}
	return m, nil
}

// ListMaterials returns the whole catalog, oldest first
func (s *SQLiteStore) ListMaterials(ctx context.Context) ([]*Material, error) {
	query := `
		SELECT id, name, unit, coverage, image_data, image_key, created_by, created_at
		FROM materials
		ORDER BY created_at ASC, id ASC
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, s.wrapError("querying materials", err)
	}
	defer rows.Close()

	materials := make([]*Material, 0)
	for rows.Next() {
		m, err := scanMaterial(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning material: %w", err)
		}
		materials = append(materials, m)
	}
	if err := rows.Err(); err != nil {
		return nil, s.wrapError("iterating materials", err)
	}

	return materials, nil
}

// DeleteMaterial removes a catalog entry
func (s *SQLiteStore) DeleteMaterial(ctx context.Context, id string) error {
	result, err := s.db.ExecContext(ctx, "DELETE FROM materials WHERE id = ?", id)
	if err != nil {
		return s.wrapError("deleting material", err)
	}
	return requireAffected(result)
}

// CreateProject saves a project calculation
func (s *SQLiteStore) CreateProject(ctx context.Context, p *Project) error {
	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	if p.Date.IsZero() {
		p.Date = p.CreatedAt
	}

	dims, err := json.Marshal(p.Dimensions)
	if err != nil {
		return fmt.Errorf("encoding dimensions: %w", err)
	}
	mats, err := json.Marshal(p.CalculatedMaterials)
	if err != nil {
		return fmt.Errorf("encoding calculated materials: %w", err)
	}

	query := `
		INSERT INTO projects (id, user_id, title, date, dimensions_json, calculated_materials, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`

	_, err = s.db.ExecContext(ctx, query,
		p.ID,
		p.UserID,
		p.Title,
		formatTime(p.Date),
		string(dims),
		string(mats),
		formatTime(p.CreatedAt),
	)
	if err != nil {
		return s.wrapError("inserting project", err)
	}
	return nil
}

// ListProjectsByUser returns the projects saved by one user, oldest first
func (s *SQLiteStore) ListProjectsByUser(ctx context.Context, userID string) ([]*Project, error) {
	query := `
		SELECT id, user_id, title, date, dimensions_json, calculated_materials, created_at
		FROM projects
		WHERE user_id = ?
		ORDER BY created_at ASC, id ASC
	`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, s.wrapError("querying projects", err)
	}
	defer rows.Close()

	projects := make([]*Project, 0)
	for rows.Next() {
		var p Project
		var dateStr, dimsJSON, matsJSON, createdAtStr string
		if err := rows.Scan(&p.ID, &p.UserID, &p.Title, &dateStr, &dimsJSON, &matsJSON, &createdAtStr); err != nil {
			return nil, fmt.Errorf("scanning project: %w", err)
		}
		if p.Date, err = parseTime(dateStr); err != nil {
			return nil, fmt.Errorf("parsing date: %w", err)
		}
		if p.CreatedAt, err = parseTime(createdAtStr); err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		if err := json.Unmarshal([]byte(dimsJSON), &p.Dimensions); err != nil {
			return nil, fmt.Errorf("decoding dimensions: %w", err)
		}
		if err := json.Unmarshal([]byte(matsJSON), &p.CalculatedMaterials); err != nil {
			return nil, fmt.Errorf("decoding calculated materials: %w", err)
		}
		projects = append(projects, &p)
	}
	if err := rows.Err(); err != nil {
		return nil, s.wrapError("iterating projects", err)
	}

	return projects, nil
}

// rowScanner is satisfied by *sql.Row and *sql.Rows
type rowScanner interface {
	Scan(dest ...any) error
}

func scanMaterial(row rowScanner) (*Material, error) {
	var m Material
	var imageData, imageKey sql.NullString
	var createdAtStr string

	if err := row.Scan(&m.ID, &m.Name, &m.Unit, &m.Coverage, &imageData, &imageKey, &m.CreatedBy, &createdAtStr); err != nil {
		return nil, err
	}

	m.ImageData = imageData.String
	m.ImageKey = imageKey.String

	var err error
	m.CreatedAt, err = parseTime(createdAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	return &m, nil
}

// wrapError classifies a driver error, mapping connection-level failures to ErrUnavailable
func (s *SQLiteStore) wrapError(op string, err error) error {
	if isUnavailableError(err) {
		s.logger.Error("database unavailable", "op", op, "error", err)
		return fmt.Errorf("%s: %w: %v", op, ErrUnavailable, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// isUniqueConstraintError checks if an error is a unique constraint violation.
func isUniqueConstraintError(err error) bool {
	// SQLite returns "UNIQUE constraint failed" in the error message
	return err != nil && strings.Contains(err.Error(), "UNIQUE constraint failed")
}

// isUnavailableError reports errors that mean the database itself is gone,
// as opposed to a bad query.
func isUnavailableError(err error) bool {
	if errors.Is(err, sql.ErrConnDone) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "database is closed") ||
		strings.Contains(msg, "unable to open database") ||
		strings.Contains(msg, "disk I/O error")
}

func requireAffected(result sql.Result) error {
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func parseTime(s string) (time.Time, error) {
	return time.Parse(time.RFC3339Nano, s)
}
