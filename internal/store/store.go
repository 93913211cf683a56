// ABOUTME: Store interfaces and data types for trowel persistence
// ABOUTME: Defines User, Material, Project and the Store interface the server depends on

package store

import (
	"context"
	"errors"
	"strings"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// ErrEmailTaken is returned when a user with the same email already exists.
// Backends report it from their own uniqueness constraint, never from a pre-check.
var ErrEmailTaken = errors.New("email already registered")

// ErrUnavailable is returned when the backing database cannot be reached
var ErrUnavailable = errors.New("store unavailable")

// User is a registered account. Email is the unique key.
type User struct {
	ID           string
	Email        string
	PasswordHash string // bcrypt hash
	Username     string
	CreatedAt    time.Time
}

// Material is an entry in the shared materials catalog
type Material struct {
	ID        string
	Name      string
	Unit      string
	Coverage  float64
	ImageData string // inline base64 image, empty when offloaded or absent
	ImageKey  string // blob key when the image lives in object storage
	CreatedBy string // user ID
	CreatedAt time.Time
}

// CalculatedMaterial is one line of a project's material estimate
type CalculatedMaterial struct {
	Name string  `json:"name" bson:"name"`
	Qty  float64 `json:"qty" bson:"qty"`
	Unit string  `json:"unit,omitempty" bson:"unit,omitempty"`
}

// Project is a saved calculation owned by a user
type Project struct {
	ID                  string
	UserID              string
	Title               string
	Date                time.Time
	Dimensions          map[string]float64
	CalculatedMaterials []CalculatedMaterial
	CreatedAt           time.Time
}

// UserStore persists credentials
type UserStore interface {
	CreateUser(ctx context.Context, user *User) error
	GetUserByEmail(ctx context.Context, email string) (*User, error)
	DeleteUser(ctx context.Context, email string) error
}

// CatalogStore persists the materials catalog
type CatalogStore interface {
	CreateMaterial(ctx context.Context, m *Material) error
	GetMaterial(ctx context.Context, id string) (*Material, error)
	ListMaterials(ctx context.Context) ([]*Material, error)
	DeleteMaterial(ctx context.Context, id string) error
}

// ProjectStore persists saved project calculations
type ProjectStore interface {
	CreateProject(ctx context.Context, p *Project) error
	ListProjectsByUser(ctx context.Context, userID string) ([]*Project, error)
}

// Store is the full persistence surface used by the server
type Store interface {
	UserStore
	CatalogStore
	ProjectStore

	// Ping reports whether the backing database is reachable
	Ping(ctx context.Context) error

	// Close releases any resources held by the store
	Close() error
}

// NormalizeEmail trims and lower-cases an email so lookups and the
// uniqueness constraint agree on a single spelling.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
