package usecase_test

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/ErlanBelekov/account-service/internal/domain"
	"github.com/ErlanBelekov/account-service/internal/repository"
)

// ---- user store ----

type memUserRepo struct {
	mu    sync.Mutex
	seq   int
	users map[string]*domain.User

	// Optional failure injection; nil means use the in-memory behaviour.
	createErr   error
	findErr     error
	markErr     error
	listErr     error
	updateErr   error
	markedCalls int
}

func newMemUserRepo() *memUserRepo {
	return &memUserRepo{users: make(map[string]*domain.User)}
}

func (r *memUserRepo) Create(_ context.Context, nu domain.NewUser) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.createErr != nil {
		return nil, r.createErr
	}
	for _, u := range r.users {
		if strings.EqualFold(u.Email, nu.Email) || u.DisplayName == nu.DisplayName {
			return nil, fmt.Errorf("insert user: %w", repository.ErrConflict)
		}
	}
	r.seq++
	u := &domain.User{
		ID:           fmt.Sprintf("user-%d", r.seq),
		Email:        nu.Email,
		DisplayName:  nu.DisplayName,
		PasswordHash: nu.PasswordHash,
		IsActive:     true,
		Role:         nu.Role,
		CreatedAt:    time.Now(),
	}
	r.users[u.ID] = u
	cp := *u
	return &cp, nil
}

func (r *memUserRepo) FindByID(_ context.Context, id string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.findErr != nil {
		return nil, r.findErr
	}
	u, ok := r.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (r *memUserRepo) FindByEmail(_ context.Context, email string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.findErr != nil {
		return nil, r.findErr
	}
	for _, u := range r.users {
		if strings.EqualFold(u.Email, email) {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (r *memUserRepo) UpdatePassword(_ context.Context, id, hash string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.updateErr != nil {
		return nil, r.updateErr
	}
	u, ok := r.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	u.PasswordHash = hash
	cp := *u
	return &cp, nil
}

func (r *memUserRepo) UpdateDisplayName(_ context.Context, id, name string) (*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.updateErr != nil {
		return nil, r.updateErr
	}
	for _, other := range r.users {
		if other.ID != id && other.DisplayName == name {
			return nil, repository.ErrConflict
		}
	}
	u, ok := r.users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	u.DisplayName = name
	cp := *u
	return &cp, nil
}

func (r *memUserRepo) MarkVerified(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.markedCalls++
	if r.markErr != nil {
		return r.markErr
	}
	u, ok := r.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	u.IsVerified = true
	return nil
}

func (r *memUserRepo) List(_ context.Context, limit, offset int) ([]*domain.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.listErr != nil {
		return nil, r.listErr
	}
	out := make([]*domain.User, 0, len(r.users))
	for i := 1; i <= r.seq; i++ {
		if u, ok := r.users[fmt.Sprintf("user-%d", i)]; ok {
			cp := *u
			out = append(out, &cp)
		}
	}
	if offset >= len(out) {
		return nil, nil
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (r *memUserRepo) CountByState(context.Context) (domain.UserCounts, error) {
	return domain.UserCounts{}, nil
}

func (r *memUserRepo) add(u domain.User) *domain.User {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.seq++
	if u.ID == "" {
		u.ID = fmt.Sprintf("user-%d", r.seq)
	}
	r.users[u.ID] = &u
	return &u
}

func (r *memUserRepo) get(id string) domain.User {
	r.mu.Lock()
	defer r.mu.Unlock()
	return *r.users[id]
}

// ---- cache ----

type cacheEntry struct {
	value     []byte
	expiresAt time.Time
}

type memCache struct {
	mu      sync.Mutex
	now     func() time.Time
	entries map[string]cacheEntry

	setErr    error
	getErr    error
	deleteErr error
	lastTTL   time.Duration
}

func newMemCache(now func() time.Time) *memCache {
	return &memCache{now: now, entries: make(map[string]cacheEntry)}
}

func (c *memCache) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.setErr != nil {
		return c.setErr
	}
	c.lastTTL = ttl
	c.entries[key] = cacheEntry{value: value, expiresAt: c.now().Add(ttl)}
	return nil
}

func (c *memCache) Get(_ context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return nil, c.getErr
	}
	e, ok := c.entries[key]
	if !ok || !c.now().Before(e.expiresAt) {
		return nil, repository.ErrNotFound
	}
	return e.value, nil
}

func (c *memCache) Delete(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.deleteErr != nil {
		return c.deleteErr
	}
	delete(c.entries, key)
	return nil
}

func (c *memCache) SetNX(_ context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if e, ok := c.entries[key]; ok && c.now().Before(e.expiresAt) {
		return false, nil
	}
	c.entries[key] = cacheEntry{value: value, expiresAt: c.now().Add(ttl)}
	return true, nil
}

func (c *memCache) put(key string, value []byte) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = cacheEntry{value: value, expiresAt: c.now().Add(time.Hour)}
}

// ---- publisher ----

type published struct {
	routingKey string
	payload    any
}

type fakePublisher struct {
	mu     sync.Mutex
	err    error
	events []published
}

func (p *fakePublisher) Publish(_ context.Context, routingKey string, payload any) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.err != nil {
		return p.err
	}
	p.events = append(p.events, published{routingKey: routingKey, payload: payload})
	return nil
}

// ---- hasher ----

// fakeHasher avoids bcrypt cost in unit tests.
type fakeHasher struct {
	hashErr error
}

func (h fakeHasher) Hash(plain string) (string, error) {
	if h.hashErr != nil {
		return "", h.hashErr
	}
	return "hashed:" + plain, nil
}

func (fakeHasher) Verify(plain, hash string) bool {
	return hash == "hashed:"+plain
}

// ---- clock ----

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 3, 1, 9, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}
