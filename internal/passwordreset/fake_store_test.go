package passwordreset

import (
	"context"
	"sort"
	"sync"
	"time"

	"inventario/backend/internal/models"
	"inventario/backend/internal/repository"

	"github.com/google/uuid"
)

// memStore é um repository.Store em memória. Transações são serializadas por txMu
// e desfeitas restaurando um snapshot.
type memStore struct {
	txMu sync.Mutex
	mu   sync.Mutex

	users  map[uuid.UUID]models.User
	tokens map[uuid.UUID]models.PasswordResetToken

	// falha forçada para um método específico
	failOn string
	failErr error
}

func newMemStore() *memStore {
	return &memStore{
		users:  make(map[uuid.UUID]models.User),
		tokens: make(map[uuid.UUID]models.PasswordResetToken),
	}
}

func (m *memStore) fail(method string) error {
	if m.failOn == method {
		return m.failErr
	}
	return nil
}

func (m *memStore) addUser(u models.User) models.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	m.users[u.ID] = u
	return u
}

func (m *memStore) addToken(t models.PasswordResetToken) models.PasswordResetToken {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t.ID == uuid.Nil {
		t.ID = uuid.New()
	}
	m.tokens[t.ID] = t
	return t
}

func (m *memStore) token(id uuid.UUID) (models.PasswordResetToken, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tokens[id]
	return t, ok
}

func (m *memStore) user(id uuid.UUID) models.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.users[id]
}

func (m *memStore) tokensFor(email string) []models.PasswordResetToken {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []models.PasswordResetToken
	for _, t := range m.tokens {
		if t.Email == email {
			out = append(out, t)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	return out
}

func (m *memStore) Transaction(ctx context.Context, fn func(tx repository.Store) error) error {
	m.txMu.Lock()
	defer m.txMu.Unlock()

	m.mu.Lock()
	users := make(map[uuid.UUID]models.User, len(m.users))
	for k, v := range m.users {
		users[k] = v
	}
	tokens := make(map[uuid.UUID]models.PasswordResetToken, len(m.tokens))
	for k, v := range m.tokens {
		tokens[k] = v
	}
	m.mu.Unlock()

	if err := fn(m); err != nil {
		m.mu.Lock()
		m.users, m.tokens = users, tokens
		m.mu.Unlock()
		return err
	}
	return nil
}

func (m *memStore) LatestResetTokenByEmail(ctx context.Context, email string) (*models.PasswordResetToken, error) {
	list := m.tokensFor(email)
	if len(list) == 0 {
		return nil, repository.ErrNotFound
	}
	return &list[0], nil
}

func (m *memStore) DeleteResetTokensForUser(ctx context.Context, userID uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, t := range m.tokens {
		if t.UserID == userID {
			delete(m.tokens, id)
		}
	}
	return nil
}

func (m *memStore) CreateResetToken(ctx context.Context, token *models.PasswordResetToken) error {
	if err := m.fail("CreateResetToken"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if token.ID == uuid.Nil {
		token.ID = uuid.New()
	}
	m.tokens[token.ID] = *token
	return nil
}

func (m *memStore) FindActiveResetToken(ctx context.Context, email, code string, now time.Time) (*models.PasswordResetToken, error) {
	for _, t := range m.tokensFor(email) {
		if t.Code == code && t.ExpiresAt.After(now) && !t.IsUsed && !t.IsValidated {
			return &t, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memStore) MarkResetTokenValidated(ctx context.Context, id uuid.UUID) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tokens[id]
	if !ok || t.IsValidated {
		return repository.ErrConflict
	}
	t.IsValidated = true
	m.tokens[id] = t
	return nil
}

func (m *memStore) ExpireSiblingResetTokens(ctx context.Context, userID, keepID uuid.UUID, at time.Time) error {
	if err := m.fail("ExpireSiblingResetTokens"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, t := range m.tokens {
		if t.UserID == userID && id != keepID {
			t.ExpiresAt = at
			m.tokens[id] = t
		}
	}
	return nil
}

func (m *memStore) FindCommittableResetToken(ctx context.Context, userID uuid.UUID, email string, now time.Time) (*models.PasswordResetToken, error) {
	for _, t := range m.tokensFor(email) {
		if t.UserID == userID && t.IsValidated && !t.IsUsed && t.ExpiresAt.After(now) {
			return &t, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memStore) MarkResetTokenUsed(ctx context.Context, id uuid.UUID, usedAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	t, ok := m.tokens[id]
	if !ok || t.IsUsed {
		return repository.ErrConflict
	}
	t.IsUsed = true
	t.UsedAt = &usedAt
	m.tokens[id] = t
	return nil
}

func (m *memStore) DeleteExpiredResetTokens(ctx context.Context, before time.Time) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var n int64
	for id, t := range m.tokens {
		if t.ExpiresAt.Before(before) {
			delete(m.tokens, id)
			n++
		}
	}
	return n, nil
}

func (m *memStore) FindActiveAccountByEmail(ctx context.Context, email string) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email && u.IsActive {
			return &u, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *memStore) FindActiveAccountByID(ctx context.Context, id uuid.UUID) (*models.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok || !u.IsActive {
		return nil, repository.ErrNotFound
	}
	return &u, nil
}

func (m *memStore) LockAccount(ctx context.Context, id uuid.UUID) error {
	return nil // txMu já serializa
}

func (m *memStore) UpdatePasswordHash(ctx context.Context, userID uuid.UUID, hash string) error {
	if err := m.fail("UpdatePasswordHash"); err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return repository.ErrNotFound
	}
	u.PasswordHash = hash
	m.users[userID] = u
	return nil
}

func (m *memStore) UpdatePasswordHashByEmail(ctx context.Context, email, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for id, u := range m.users {
		if u.Email == email {
			u.PasswordHash = hash
			m.users[id] = u
			return nil
		}
	}
	return repository.ErrNotFound
}
