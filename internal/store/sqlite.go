// ABOUTME: SQLite implementation of the Store interface using modernc.org/sqlite
// ABOUTME: Provides server/provider/end-user persistence with automatic schema creation

package store

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

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

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	// Enable foreign keys
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
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
		CREATE TABLE IF NOT EXISTS servers (
			id TEXT PRIMARY KEY,
			tenant_id TEXT NOT NULL,
			name TEXT NOT NULL,
			auth_type TEXT NOT NULL DEFAULT 'BASE',
			enabled INTEGER NOT NULL DEFAULT 1,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_servers_tenant ON servers(tenant_id);

		CREATE TABLE IF NOT EXISTS jwt_providers (
			id TEXT PRIMARY KEY,
			tenant_id TEXT NOT NULL,
			server_id TEXT NOT NULL,
			name TEXT NOT NULL,
			jwks_url TEXT NOT NULL,
			enabled INTEGER NOT NULL DEFAULT 1,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL,
			FOREIGN KEY (server_id) REFERENCES servers(id)
		);

		CREATE INDEX IF NOT EXISTS idx_jwt_providers_server ON jwt_providers(server_id);

		CREATE TABLE IF NOT EXISTS end_users (
			id TEXT PRIMARY KEY,
			tenant_id TEXT NOT NULL,
			email TEXT NOT NULL,
			enabled INTEGER NOT NULL DEFAULT 1,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		);

		CREATE UNIQUE INDEX IF NOT EXISTS idx_end_users_tenant_email
			ON end_users(tenant_id, email);
	`

	_, err := s.db.Exec(schema)
	return err
}

// CreateServer inserts a new server configuration.
func (s *SQLiteStore) CreateServer(ctx context.Context, server *Server) error {
	now := time.Now().UTC()
	if server.CreatedAt.IsZero() {
		server.CreatedAt = now
	}
	server.UpdatedAt = now
	if server.AuthType == "" {
		server.AuthType = AuthTypeBase
	}

	query := `
		INSERT INTO servers (id, tenant_id, name, auth_type, enabled, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		server.ID,
		server.TenantID,
		server.Name,
		server.AuthType,
		boolToInt(server.Enabled),
		server.CreatedAt.Format(time.RFC3339Nano),
		server.UpdatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("inserting server: %w", err)
	}
	return nil
}

// GetServer retrieves a server by ID.
func (s *SQLiteStore) GetServer(ctx context.Context, id string) (*Server, error) {
	query := `
		SELECT id, tenant_id, name, auth_type, enabled, created_at, updated_at
		FROM servers
		WHERE id = ?
	`

	var server Server
	var enabled int
	var createdAtStr, updatedAtStr string

	err := s.db.QueryRowContext(ctx, query, id).Scan(
		&server.ID,
		&server.TenantID,
		&server.Name,
		&server.AuthType,
		&enabled,
		&createdAtStr,
		&updatedAtStr,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying server: %w", err)
	}

	server.Enabled = enabled != 0
	server.CreatedAt = parseTime(createdAtStr)
	server.UpdatedAt = parseTime(updatedAtStr)
	return &server, nil
}

// SetServerEnabled toggles the enabled flag on a server.
func (s *SQLiteStore) SetServerEnabled(ctx context.Context, id string, enabled bool) error {
	return s.setEnabled(ctx, "servers", id, enabled)
}

// CreateJwtProvider inserts a new JWT provider record.
func (s *SQLiteStore) CreateJwtProvider(ctx context.Context, provider *JwtProvider) error {
	now := time.Now().UTC()
	if provider.CreatedAt.IsZero() {
		provider.CreatedAt = now
	}
	provider.UpdatedAt = now

	query := `
		INSERT INTO jwt_providers (id, tenant_id, server_id, name, jwks_url, enabled, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		provider.ID,
		provider.TenantID,
		provider.ServerID,
		provider.Name,
		provider.JwksURL,
		boolToInt(provider.Enabled),
		provider.CreatedAt.Format(time.RFC3339Nano),
		provider.UpdatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("inserting jwt provider: %w", err)
	}
	return nil
}

// GetEnabledJwtProvider retrieves the enabled JWT provider for a server.
// Returns ErrNotFound when the server has no enabled provider.
func (s *SQLiteStore) GetEnabledJwtProvider(ctx context.Context, serverID string) (*JwtProvider, error) {
	query := `
		SELECT id, tenant_id, server_id, name, jwks_url, enabled, created_at, updated_at
		FROM jwt_providers
		WHERE server_id = ? AND enabled = 1
		ORDER BY created_at
		LIMIT 1
	`

	var p JwtProvider
	var enabled int
	var createdAtStr, updatedAtStr string

	err := s.db.QueryRowContext(ctx, query, serverID).Scan(
		&p.ID,
		&p.TenantID,
		&p.ServerID,
		&p.Name,
		&p.JwksURL,
		&enabled,
		&createdAtStr,
		&updatedAtStr,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying jwt provider: %w", err)
	}

	p.Enabled = enabled != 0
	p.CreatedAt = parseTime(createdAtStr)
	p.UpdatedAt = parseTime(updatedAtStr)
	return &p, nil
}

// SetJwtProviderEnabled toggles the enabled flag on a JWT provider.
func (s *SQLiteStore) SetJwtProviderEnabled(ctx context.Context, id string, enabled bool) error {
	return s.setEnabled(ctx, "jwt_providers", id, enabled)
}

// CreateEndUser inserts a new end user record.
func (s *SQLiteStore) CreateEndUser(ctx context.Context, user *EndUser) error {
	now := time.Now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now

	query := `
		INSERT INTO end_users (id, tenant_id, email, enabled, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.ExecContext(ctx, query,
		user.ID,
		user.TenantID,
		user.Email,
		boolToInt(user.Enabled),
		user.CreatedAt.Format(time.RFC3339Nano),
		user.UpdatedAt.Format(time.RFC3339Nano),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return ErrDuplicate
		}
		return fmt.Errorf("inserting end user: %w", err)
	}
	return nil
}

// GetEndUserByEmail retrieves an end user by email scoped to a tenant.
func (s *SQLiteStore) GetEndUserByEmail(ctx context.Context, tenantID, email string) (*EndUser, error) {
	query := `
		SELECT id, tenant_id, email, enabled, created_at, updated_at
		FROM end_users
		WHERE tenant_id = ? AND email = ?
	`

	var u EndUser
	var enabled int
	var createdAtStr, updatedAtStr string

	err := s.db.QueryRowContext(ctx, query, tenantID, email).Scan(
		&u.ID,
		&u.TenantID,
		&u.Email,
		&enabled,
		&createdAtStr,
		&updatedAtStr,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying end user: %w", err)
	}

	u.Enabled = enabled != 0
	u.CreatedAt = parseTime(createdAtStr)
	u.UpdatedAt = parseTime(updatedAtStr)
	return &u, nil
}

// SetEndUserEnabled toggles the enabled flag on an end user.
func (s *SQLiteStore) SetEndUserEnabled(ctx context.Context, id string, enabled bool) error {
	return s.setEnabled(ctx, "end_users", id, enabled)
}

// setEnabled updates the enabled flag and updated_at on any of the three tables.
func (s *SQLiteStore) setEnabled(ctx context.Context, table, id string, enabled bool) error {
	query := fmt.Sprintf("UPDATE %s SET enabled = ?, updated_at = ? WHERE id = ?", table)
	res, err := s.db.ExecContext(ctx, query,
		boolToInt(enabled),
		time.Now().UTC().Format(time.RFC3339Nano),
		id,
	)
	if err != nil {
		return fmt.Errorf("updating %s: %w", table, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

// isUniqueViolation reports whether err is a SQLite unique constraint error.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(err.Error(), "UNIQUE constraint failed") ||
		strings.Contains(err.Error(), "PRIMARY KEY constraint failed")
}
