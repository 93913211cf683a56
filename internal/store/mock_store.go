// ABOUTME: Mock Store implementation for testing
// ABOUTME: Allows tests to run without SQLite or MongoDB

package store

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MockStore is an in-memory Store implementation for testing.
// The email index is checked and written under one lock, which is the
// in-memory equivalent of a unique constraint.
type MockStore struct {
	mu        sync.RWMutex
	users     map[string]*User     // keyed by normalized email
	materials map[string]*Material // keyed by material ID
	projects  map[string]*Project  // keyed by project ID

	unavailable bool
}

// Ensure MockStore implements Store.
var _ Store = (*MockStore)(nil)

// NewMockStore creates a new MockStore.
func NewMockStore() *MockStore {
	return &MockStore{
		users:     make(map[string]*User),
		materials: make(map[string]*Material),
		projects:  make(map[string]*Project),
	}
}

// SetUnavailable makes every later call fail with ErrUnavailable until reset.
func (m *MockStore) SetUnavailable(down bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.unavailable = down
}

func (m *MockStore) check() error {
	if m.unavailable {
		return ErrUnavailable
	}
	return nil
}

// Ping reports ErrUnavailable when the mock is marked unavailable.
func (m *MockStore) Ping(ctx context.Context) error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.check()
}

// Close is a no-op.
func (m *MockStore) Close() error {
	return nil
}

// CreateUser stores a new user, failing with ErrEmailTaken on a duplicate email.
func (m *MockStore) CreateUser(ctx context.Context, user *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(); err != nil {
		return err
	}

	email := NormalizeEmail(user.Email)
	if _, exists := m.users[email]; exists {
		return ErrEmailTaken
	}

	u := *user
	if u.ID == "" {
		u.ID = uuid.New().String()
	}
	if u.CreatedAt.IsZero() {
		u.CreatedAt = time.Now().UTC()
	}
	u.Email = email

	m.users[email] = &u
	*user = u
	return nil
}

// GetUserByEmail retrieves a user by email.
func (m *MockStore) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.check(); err != nil {
		return nil, err
	}

	u, ok := m.users[NormalizeEmail(email)]
	if !ok {
		return nil, ErrNotFound
	}

	// Return a copy
	result := *u
	return &result, nil
}

// DeleteUser removes a user by email.
func (m *MockStore) DeleteUser(ctx context.Context, email string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(); err != nil {
		return err
	}

	key := NormalizeEmail(email)
	if _, ok := m.users[key]; !ok {
		return ErrNotFound
	}
	delete(m.users, key)
	return nil
}

// CreateMaterial stores a catalog entry.
func (m *MockStore) CreateMaterial(ctx context.Context, mat *Material) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(); err != nil {
		return err
	}

	if mat.ID == "" {
		mat.ID = uuid.New().String()
	}
	if mat.CreatedAt.IsZero() {
		mat.CreatedAt = time.Now().UTC()
	}

	c := *mat
	m.materials[c.ID] = &c
	return nil
}

// GetMaterial retrieves a catalog entry by ID.
func (m *MockStore) GetMaterial(ctx context.Context, id string) (*Material, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.check(); err != nil {
		return nil, err
	}

	mat, ok := m.materials[id]
	if !ok {
		return nil, ErrNotFound
	}
	result := *mat
	return &result, nil
}

// ListMaterials returns the catalog ordered by creation time.
func (m *MockStore) ListMaterials(ctx context.Context) ([]*Material, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.check(); err != nil {
		return nil, err
	}

	result := make([]*Material, 0, len(m.materials))
	for _, mat := range m.materials {
		c := *mat
		result = append(result, &c)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}

// DeleteMaterial removes a catalog entry.
func (m *MockStore) DeleteMaterial(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(); err != nil {
		return err
	}

	if _, ok := m.materials[id]; !ok {
		return ErrNotFound
	}
	delete(m.materials, id)
	return nil
}

// CreateProject stores a project calculation.
func (m *MockStore) CreateProject(ctx context.Context, p *Project) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.check(); err != nil {
		return err
	}

	if p.ID == "" {
		p.ID = uuid.New().String()
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now().UTC()
	}
	if p.Date.IsZero() {
		p.Date = p.CreatedAt
	}

	c := *p
	c.CalculatedMaterials = append([]CalculatedMaterial(nil), p.CalculatedMaterials...)
	m.projects[c.ID] = &c
	return nil
}

// ListProjectsByUser returns one user's projects ordered by creation time.
func (m *MockStore) ListProjectsByUser(ctx context.Context, userID string) ([]*Project, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if err := m.check(); err != nil {
		return nil, err
	}

	result := make([]*Project, 0)
	for _, p := range m.projects {
		if p.UserID != userID {
			continue
		}
		c := *p
		result = append(result, &c)
	}
	sort.Slice(result, func(i, j int) bool {
		if result[i].CreatedAt.Equal(result[j].CreatedAt) {
			return result[i].ID < result[j].ID
		}
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result, nil
}
