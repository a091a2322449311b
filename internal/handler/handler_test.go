package handler

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"golang.org/x/crypto/bcrypt"

	"hackhub/backend/internal/model"
	"hackhub/backend/internal/repository"
	"hackhub/backend/internal/service"
	"hackhub/backend/internal/ws"
)

// In-memory stores standing in for the postgres repositories.

type memMessages struct {
	mu    sync.Mutex
	byID  map[string]*model.Message
	order []string
	ts    time.Time
}

func newMemMessages() *memMessages {
	return &memMessages{
		byID: make(map[string]*model.Message),
		ts:   time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
	}
}

func (s *memMessages) Append(_ context.Context, msg *model.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if msg.ID == "" {
		msg.ID = uuid.New().String()
	}
	if msg.Channel == "" {
		msg.Channel = model.DefaultChannel
	}
	msg.CreatedAt = s.ts
	s.ts = s.ts.Add(time.Second)
	stored := *msg
	s.byID[msg.ID] = &stored
	s.order = append(s.order, msg.ID)
	return nil
}

func (s *memMessages) FindByID(_ context.Context, id string) (*model.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg, ok := s.byID[id]
	if !ok {
		return nil, repository.ErrMessageNotFound
	}
	out := *msg
	return &out, nil
}

func (s *memMessages) visible(channel string) []model.Message {
	var out []model.Message
	for _, id := range s.order {
		m := s.byID[id]
		if m.Channel == channel && !m.IsDeleted {
			out = append(out, *m)
		}
	}
	return out
}

func (s *memMessages) Page(_ context.Context, channel, _ string, limit int) ([]model.Message, bool, string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.visible(channel)
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, false, "", nil
}

func (s *memMessages) PageByNumber(_ context.Context, channel string, page, limit int) ([]model.Message, int64, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all := s.visible(channel)
	total := int64(len(all))

	start := (page - 1) * limit
	if start > len(all) {
		start = len(all)
	}
	end := start + limit
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], total, int64(page*limit) < total, nil
}

func (s *memMessages) Search(_ context.Context, channel, query string, limit int) ([]model.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Message
	for _, id := range s.order {
		m := s.byID[id]
		if m.IsDeleted || (channel != "" && m.Channel != channel) {
			continue
		}
		if strings.Contains(strings.ToLower(m.Text), strings.ToLower(query)) ||
			strings.Contains(strings.ToLower(m.AuthorName), strings.ToLower(query)) {
			out = append(out, *m)
		}
	}
	return out, nil
}

func (s *memMessages) ByAuthor(_ context.Context, authorID string, limit int) ([]model.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []model.Message
	for _, id := range s.order {
		m := s.byID[id]
		if m.AuthorID == authorID && !m.IsDeleted {
			out = append(out, *m)
		}
	}
	return out, nil
}

func (s *memMessages) Mutate(_ context.Context, id string, fn func(*model.Message) error) (*model.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	msg, ok := s.byID[id]
	if !ok {
		return nil, repository.ErrMessageNotFound
	}
	work := *msg
	if err := fn(&work); err != nil {
		return nil, err
	}
	stored := work
	s.byID[id] = &stored
	out := work
	return &out, nil
}

func (s *memMessages) MarkDelivered(_ context.Context, ids []string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var n int64
	for _, id := range ids {
		if m, ok := s.byID[id]; ok && m.Status == model.MessageStatusSent {
			m.Status = model.MessageStatusDelivered
			n++
		}
	}
	return n, nil
}

type memUsers struct {
	mu    sync.Mutex
	users map[string]*model.User
}

func newMemUsers(users ...*model.User) *memUsers {
	s := &memUsers{users: make(map[string]*model.User)}
	for _, u := range users {
		s.users[u.ID] = u
	}
	return s
}

func (s *memUsers) Create(_ context.Context, user *model.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[user.ID] = user
	return nil
}

func (s *memUsers) GetByID(_ context.Context, id string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return nil, repository.ErrUserNotFound
	}
	out := *u
	return &out, nil
}

func (s *memUsers) GetByEmail(_ context.Context, email string) (*model.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if u.Email == email {
			out := *u
			return &out, nil
		}
	}
	return nil, repository.ErrUserNotFound
}

func (s *memUsers) SetPushToken(_ context.Context, id, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[id]
	if !ok {
		return repository.ErrUserNotFound
	}
	u.PushToken = token
	return nil
}

func (s *memUsers) PushTokensExcept(_ context.Context, excludeUserID string) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var tokens []string
	for _, u := range s.users {
		if u.ID != excludeUserID && u.PushToken != "" {
			tokens = append(tokens, u.PushToken)
		}
	}
	return tokens, nil
}

type openLimiter struct{}

func (openLimiter) Admit(string) bool { return true }

// testAPI bundles a fully wired router with the stores behind it.
type testAPI struct {
	router   *mux.Router
	hub      *ws.Hub
	messages *memMessages
	users    *memUsers
	engine   *service.Engine
}

func mustHash(t *testing.T, password string) string {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		t.Fatal(err)
	}
	return string(hash)
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()

	messages := newMemMessages()
	users := newMemUsers(
		&model.User{ID: "u-alice", Name: "Alice", Email: "alice@example.com"},
		&model.User{ID: "u-bob", Name: "Bob", Email: "bob@example.com"},
		&model.User{ID: "u-admin", Name: "Admin", Email: "admin@example.com", Role: model.RoleAdmin},
	)

	hub := ws.NewHub()
	t.Cleanup(hub.Shutdown)

	engine := service.NewEngine(messages, users, nil, openLimiter{}, service.LogDispatcher{})
	identity := service.NewIdentityService(users)

	router := mux.NewRouter()
	api := router.PathPrefix("/api").Subrouter()
	NewMessageHandler(engine, messages, users, hub).RegisterRoutes(api)
	NewUserHandler(identity).RegisterRoutes(api)
	NewUploadHandler(nil).RegisterRoutes(api)
	NewGatewayHandler(hub, engine, identity).RegisterRoutes(api)

	return &testAPI{
		router:   router,
		hub:      hub,
		messages: messages,
		users:    users,
		engine:   engine,
	}
}
