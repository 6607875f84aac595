package memory

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/iliyamo/hotel-booking/internal/model"
	"github.com/iliyamo/hotel-booking/internal/repository"
	"github.com/iliyamo/hotel-booking/internal/utils"
)

// Users mirrors repository.UserRepo in memory.
type Users struct {
	mu     sync.Mutex
	byID   map[uint64]model.User
	nextID uint64
}

func NewUsers() *Users { return &Users{byID: map[uint64]model.User{}} }

func (u *Users) Create(_ context.Context, email, name, password string, role model.Role, cost int) (uint64, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return 0, err
	}
	u.mu.Lock()
	defer u.mu.Unlock()
	for _, existing := range u.byID {
		if existing.Email == email {
			return 0, repository.ErrEmailExists
		}
	}
	u.nextID++
	now := time.Now().UTC()
	u.byID[u.nextID] = model.User{
		ID: u.nextID, Email: email, Name: strings.TrimSpace(name), PasswordHash: hash,
		Role: role, CreatedAt: now, UpdatedAt: now,
	}
	return u.nextID, nil
}

func (u *Users) GetByEmail(_ context.Context, email string) (model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	u.mu.Lock()
	defer u.mu.Unlock()
	for _, existing := range u.byID {
		if existing.Email == email {
			return existing, nil
		}
	}
	return model.User{}, fmt.Errorf("user %s: %w", email, repository.ErrNotFound)
}

func (u *Users) GetByID(_ context.Context, id uint64) (model.User, error) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if existing, ok := u.byID[id]; ok {
		return existing, nil
	}
	return model.User{}, fmt.Errorf("user %d: %w", id, repository.ErrNotFound)
}

type refresh struct {
	userID  uint64
	exp     time.Time
	revoked bool
}

// Tokens mirrors repository.TokenRepo in memory.
type Tokens struct {
	mu     sync.Mutex
	byHash map[string]*refresh
}

func NewTokens() *Tokens { return &Tokens{byHash: map[string]*refresh{}} }

func (t *Tokens) StoreRefresh(_ context.Context, userID uint64, tokenHash string, exp time.Time) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.byHash[tokenHash] = &refresh{userID: userID, exp: exp}
	return nil
}

func (t *Tokens) ValidateRefresh(_ context.Context, tokenHash string) (uint64, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	r, ok := t.byHash[tokenHash]
	if !ok || r.revoked || time.Now().UTC().After(r.exp) {
		return 0, fmt.Errorf("refresh token: %w", repository.ErrNotFound)
	}
	return r.userID, nil
}

func (t *Tokens) RevokeByHash(_ context.Context, tokenHash string) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if r, ok := t.byHash[tokenHash]; ok {
		r.revoked = true
	}
	return nil
}

func (t *Tokens) RevokeAllForUser(_ context.Context, userID uint64) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, r := range t.byHash {
		if r.userID == userID {
			r.revoked = true
		}
	}
	return nil
}
