package service

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"time"

	"eventhub/internal/describe"
	"eventhub/internal/models"
	"eventhub/internal/queue"
	"eventhub/internal/repository"
)

type memAccounts struct {
	mu       sync.Mutex
	accounts map[models.Role]map[string]models.Account
	setErr   error
}

func newMemAccounts() *memAccounts {
	return &memAccounts{accounts: map[models.Role]map[string]models.Account{
		models.RoleAdmin: {},
		models.RoleUser:  {},
	}}
}

func (m *memAccounts) Create(_ context.Context, account models.Account) (models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.accounts[account.Role][account.Email]; ok {
		return models.Account{}, repository.ErrEmailTaken
	}
	account.CreatedAt = time.Now()
	m.accounts[account.Role][account.Email] = account
	return account, nil
}

func (m *memAccounts) FindByEmail(_ context.Context, role models.Role, email string) (models.Account, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	account, ok := m.accounts[role][email]
	if !ok {
		return models.Account{}, repository.ErrAccountNotFound
	}
	return account, nil
}

func (m *memAccounts) SetToken(_ context.Context, role models.Role, id string, token string, expiresAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.setErr != nil {
		return m.setErr
	}
	for email, account := range m.accounts[role] {
		if account.ID == id {
			account.CurrentToken = &token
			account.TokenExpiresAt = &expiresAt
			m.accounts[role][email] = account
			return nil
		}
	}
	return repository.ErrAccountNotFound
}

// plainHasher keeps tests fast; bcrypt itself is covered in security.
type plainHasher struct{}

func (plainHasher) Hash(_ context.Context, password string) ([]byte, error) {
	return []byte("h:" + password), nil
}

func (plainHasher) Verify(_ context.Context, password string, hash []byte) (bool, error) {
	return bytes.Equal(hash, []byte("h:"+password)), nil
}

type memEvents struct {
	mu        sync.Mutex
	events    []models.Event
	createErr error
}

func (m *memEvents) Create(_ context.Context, event models.Event) (models.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return models.Event{}, m.createErr
	}
	event.CreatedAt = time.Now()
	m.events = append(m.events, event)
	return event, nil
}

func (m *memEvents) Query(_ context.Context, q repository.EventQuery) ([]models.Event, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]models.Event, 0)
	for _, e := range m.events {
		if q.Matches(e) {
			out = append(out, e)
		}
	}
	return out, nil
}

func (m *memEvents) ListByCreator(ctx context.Context, email string) ([]models.Event, error) {
	return m.Query(ctx, repository.EventQuery{CreatedBy: email})
}

type memBlobs struct {
	mu       sync.Mutex
	objects  map[string][]byte
	storeErr error
	next     int
}

func newMemBlobs() *memBlobs {
	return &memBlobs{objects: map[string][]byte{}}
}

func (m *memBlobs) Store(_ context.Context, data []byte, mimeType string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.storeErr != nil {
		return "", m.storeErr
	}
	m.next++
	ref := mimeType + "/" + string(rune('a'+m.next))
	m.objects[ref] = data
	return ref, nil
}

func (m *memBlobs) Remove(_ context.Context, ref string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.objects, ref)
	return nil
}

func (m *memBlobs) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.objects)
}

type stubDescriber struct {
	text  string
	calls int
}

func (s *stubDescriber) Describe(context.Context, describe.Details) string {
	s.calls++
	return s.text
}

type memTasks struct {
	tasks []queue.Task
	err   error
}

func (m *memTasks) Publish(_ context.Context, task queue.Task) error {
	if m.err != nil {
		return m.err
	}
	m.tasks = append(m.tasks, task)
	return nil
}

var errStorage = errors.New("storage unavailable")
