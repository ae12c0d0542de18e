package auth

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/platinummonkey/pantry/pkg/storage"
)

// memoryStore is an in-process UserStore and TokenStore for tests
type memoryStore struct {
	mu      sync.Mutex
	users   map[int64]*User
	tokens  map[string]*Token
	nextID  int64
	lookups int
	failErr error
}

func newMemoryStore() *memoryStore {
	return &memoryStore{
		users:  make(map[int64]*User),
		tokens: make(map[string]*Token),
	}
}

func (m *memoryStore) CreateUser(ctx context.Context, user *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == user.Email {
			return storage.ErrConflict
		}
	}
	m.nextID++
	user.ID = m.nextID
	user.CreatedAt = time.Now().UTC()
	user.UpdatedAt = user.CreatedAt
	stored := *user
	m.users[user.ID] = &stored
	return nil
}

func (m *memoryStore) GetUserByID(ctx context.Context, id int64) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	copied := *u
	return &copied, nil
}

func (m *memoryStore) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			copied := *u
			return &copied, nil
		}
	}
	return nil, storage.ErrNotFound
}

func (m *memoryStore) UpdateUser(ctx context.Context, user *User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.users[user.ID]; !ok {
		return storage.ErrNotFound
	}
	stored := *user
	m.users[user.ID] = &stored
	return nil
}

func (m *memoryStore) LookupToken(ctx context.Context, key string) (*Token, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.lookups++
	if m.failErr != nil {
		return nil, m.failErr
	}
	t, ok := m.tokens[key]
	if !ok {
		return nil, storage.ErrNotFound
	}
	copied := *t
	user := *m.users[t.UserID]
	copied.User = &user
	return &copied, nil
}

func (m *memoryStore) GetOrCreateToken(ctx context.Context, userID int64, key string) (*Token, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.tokens {
		if t.UserID == userID {
			copied := *t
			return &copied, false, nil
		}
	}
	t := &Token{Key: key, UserID: userID, CreatedAt: time.Now().UTC()}
	m.tokens[key] = t
	copied := *t
	return &copied, true, nil
}

func (m *memoryStore) DeleteToken(ctx context.Context, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.tokens[key]; !ok {
		return storage.ErrNotFound
	}
	delete(m.tokens, key)
	return nil
}

func (m *memoryStore) DeleteInactiveUserTokens(ctx context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var removed []string
	for key, t := range m.tokens {
		if u := m.users[t.UserID]; u != nil && !u.IsActive {
			removed = append(removed, key)
			delete(m.tokens, key)
		}
	}
	return removed, nil
}

func (m *memoryStore) lookupCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lookups
}

// addUserWithToken stores a user and its token directly
func (m *memoryStore) addUserWithToken(email string, active bool, key string) *User {
	user := &User{Email: email, IsActive: active}
	_ = m.CreateUser(context.Background(), user)
	_, _, _ = m.GetOrCreateToken(context.Background(), user.ID, key)
	return user
}

// countingCSRF records how often it was consulted
type countingCSRF struct {
	reason string
	calls  int
}

func (c *countingCSRF) Check(*http.Request) string {
	c.calls++
	return c.reason
}

// fastHasher avoids bcrypt cost in tests that do not exercise hashing
type fastHasher struct{}

func (fastHasher) Hash(password string) (string, error) {
	if err := ValidatePassword(password); err != nil {
		return "", err
	}
	return "plain:" + password, nil
}

func (fastHasher) Verify(hash, password string) bool {
	return hash == "plain:"+password
}
