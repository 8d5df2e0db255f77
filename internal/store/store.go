// ABOUTME: Store interface and data types for mcp-gateway persistence
// ABOUTME: Defines Server, JwtProvider, EndUser structs and the point-lookup contract

package store

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// ErrDuplicate is returned when creating an entity that already exists
var ErrDuplicate = errors.New("already exists")

// AuthType constants for server authentication configuration
const (
	AuthTypeBase = "BASE" // bearer token bound to a registered end user
	AuthTypeJWT  = "JWT"  // third-party JWT verified against a provider JWKS
)

// Server is a tenant-owned MCP server configuration. The auth subsystem
// reads it to decide which authentication strategy applies; it is mutated
// only by the admin console.
type Server struct {
	ID        string
	TenantID  string
	Name      string
	AuthType  string // "BASE" or "JWT"; empty defaults to BASE
	Enabled   bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// JwtProvider is a tenant-scoped JWKS provider referenced by JWT-typed
// servers. A JWT server authenticates only against an enabled provider.
type JwtProvider struct {
	ID        string
	TenantID  string
	ServerID  string
	Name      string
	JwksURL   string
	Enabled   bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// EndUser is a pre-registered caller for BASE-authenticated servers,
// scoped to a tenant and identified by email.
type EndUser struct {
	ID        string
	TenantID  string
	Email     string
	Enabled   bool
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Store defines the persistence contract for the auth subsystem. The read
// paths are simple point lookups; the create/update paths exist for the
// admin console and the bootstrap command.
type Store interface {
	// Servers
	CreateServer(ctx context.Context, server *Server) error
	GetServer(ctx context.Context, id string) (*Server, error)
	SetServerEnabled(ctx context.Context, id string, enabled bool) error

	// JWT providers
	CreateJwtProvider(ctx context.Context, provider *JwtProvider) error
	GetEnabledJwtProvider(ctx context.Context, serverID string) (*JwtProvider, error)
	SetJwtProviderEnabled(ctx context.Context, id string, enabled bool) error

	// End users
	CreateEndUser(ctx context.Context, user *EndUser) error
	GetEndUserByEmail(ctx context.Context, tenantID, email string) (*EndUser, error)
	SetEndUserEnabled(ctx context.Context, id string, enabled bool) error

	// Close releases the underlying resources
	Close() error
}
