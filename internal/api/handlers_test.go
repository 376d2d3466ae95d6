package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/wanwatch/wanwatch-server/internal/config"
	"github.com/wanwatch/wanwatch-server/internal/engine"
	"github.com/wanwatch/wanwatch-server/internal/mailer"
	"github.com/wanwatch/wanwatch-server/internal/metrics"
	"github.com/wanwatch/wanwatch-server/internal/models"
	"github.com/wanwatch/wanwatch-server/internal/storage"
	"github.com/wanwatch/wanwatch-server/pkg/crypto"
)

// apiStore implements the slice of storage.Store these handler tests touch.
type apiStore struct {
	storage.Store

	mu sync.Mutex

	usersByEmail map[string]*models.User
	usersByID    map[uuid.UUID]*models.User
	events       []*models.Event
	processed    map[uuid.UUID]bool
	configs      map[uuid.UUID]*models.Config
}

func newAPIStore() *apiStore {
	return &apiStore{
		usersByEmail: make(map[string]*models.User),
		usersByID:    make(map[uuid.UUID]*models.User),
		processed:    make(map[uuid.UUID]bool),
		configs:      make(map[uuid.UUID]*models.Config),
	}
}

func (s *apiStore) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.usersByEmail[email]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return user, nil
}

func (s *apiStore) GetUser(ctx context.Context, id uuid.UUID) (*models.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	user, ok := s.usersByID[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return user, nil
}

func (s *apiStore) UpdateUser(ctx context.Context, user *models.User) error { return nil }

func (s *apiStore) CreateEvent(ctx context.Context, event *models.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if event.ID == uuid.Nil {
		event.ID = uuid.New()
	}
	s.events = append(s.events, event)
	return nil
}

func (s *apiStore) MarkEventProcessed(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.processed[id] = true
	return nil
}

func (s *apiStore) FindOpenNotifications(ctx context.Context, serial string) ([]*models.Notification, error) {
	return nil, nil
}

func (s *apiStore) GetCustomerDevicesBySerial(ctx context.Context, serial string) ([]*models.CustomerDevice, error) {
	return nil, nil
}

func (s *apiStore) GetConfig(ctx context.Context, id uuid.UUID) (*models.Config, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	config, ok := s.configs[id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return config, nil
}

func (s *apiStore) UpdateConfig(ctx context.Context, config *models.Config) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.configs[config.ID]; !ok {
		return storage.ErrNotFound
	}
	s.configs[config.ID] = config
	return nil
}

func newTestServer(t *testing.T, store *apiStore) *RESTServer {
	t.Helper()

	cfg := &config.Config{}
	cfg.Server.Name = "outage-server"
	cfg.JWT.Secret = "test-secret"
	cfg.JWT.AccessTokenTTL = 15 * time.Minute
	cfg.JWT.RefreshTokenTTL = time.Hour

	eng := engine.New(store, nil, nil)
	return NewRESTServer(cfg, store, eng, mailer.New(mailer.Config{}), metrics.New())
}

func addUser(t *testing.T, store *apiStore, email, password string) *models.User {
	t.Helper()

	hash, err := crypto.HashPassword(password)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}

	user := &models.User{
		ID:           uuid.New(),
		Email:        email,
		PasswordHash: hash,
		IsActive:     true,
	}
	store.usersByEmail[email] = user
	store.usersByID[user.ID] = user
	return user
}

func TestHandleHealth(t *testing.T) {
	t.Parallel()

	server := newTestServer(t, newAPIStore())

	req := httptest.NewRequest("GET", "/api/v1/health", nil)
	rec := httptest.NewRecorder()
	server.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestHandleIngestEvent(t *testing.T) {
	t.Parallel()

	store := newAPIStore()
	server := newTestServer(t, store)

	body, _ := json.Marshal(map[string]interface{}{
		"type":   "wan_lost",
		"serial": "SN600",
	})

	req := httptest.NewRequest("POST", "/api/v1/events", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	server.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, want 201: %s", rec.Code, rec.Body.String())
	}
	if len(store.events) != 1 {
		t.Fatalf("expected 1 stored event, got %d", len(store.events))
	}

	// Unknown serial: correlation skips but the event is still processed.
	event := store.events[0]
	if !store.processed[event.ID] {
		t.Fatal("event not processed inline")
	}
	if event.Date.IsZero() {
		t.Fatal("missing date not defaulted")
	}
}

func TestHandleIngestEvent_BadBody(t *testing.T) {
	t.Parallel()

	server := newTestServer(t, newAPIStore())

	req := httptest.NewRequest("POST", "/api/v1/events", bytes.NewReader([]byte("{nope")))
	rec := httptest.NewRecorder()
	server.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want 400", rec.Code)
	}
}

func TestHandleLogin(t *testing.T) {
	t.Parallel()

	store := newAPIStore()
	addUser(t, store, "ops@acme.example", "hunter22")
	server := newTestServer(t, store)

	body, _ := json.Marshal(map[string]string{
		"email":    "ops@acme.example",
		"password": "hunter22",
	})

	req := httptest.NewRequest("POST", "/api/v1/auth/login", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	server.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}

	var resp struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("unmarshal response: %v", err)
	}
	if resp.AccessToken == "" {
		t.Fatal("empty access token")
	}

	// The issued token must authenticate a protected endpoint.
	me := httptest.NewRequest("GET", "/api/v1/users/me", nil)
	me.Header.Set("Authorization", "Bearer "+resp.AccessToken)
	meRec := httptest.NewRecorder()
	server.router.ServeHTTP(meRec, me)

	if meRec.Code != http.StatusOK {
		t.Fatalf("users/me status = %d, want 200: %s", meRec.Code, meRec.Body.String())
	}
}

func TestHandleLogin_WrongPassword(t *testing.T) {
	t.Parallel()

	store := newAPIStore()
	addUser(t, store, "ops@acme.example", "hunter22")
	server := newTestServer(t, store)

	body, _ := json.Marshal(map[string]string{
		"email":    "ops@acme.example",
		"password": "wrong",
	})

	req := httptest.NewRequest("POST", "/api/v1/auth/login", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	server.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestProtectedRouteRequiresToken(t *testing.T) {
	t.Parallel()

	server := newTestServer(t, newAPIStore())

	req := httptest.NewRequest("GET", "/api/v1/notifications", nil)
	rec := httptest.NewRecorder()
	server.router.ServeHTTP(rec, req)

	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("status = %d, want 401", rec.Code)
	}
}

func TestHandleToggleFullOutage(t *testing.T) {
	t.Parallel()

	store := newAPIStore()
	config := &models.Config{ID: uuid.New(), WaitTime: 60}
	store.configs[config.ID] = config
	server := newTestServer(t, store)

	req := httptest.NewRequest("PATCH", "/", nil)
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", config.ID.String())
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))

	rec := httptest.NewRecorder()
	server.HandleToggleFullOutage(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200: %s", rec.Code, rec.Body.String())
	}
	if !store.configs[config.ID].EnableFullOutageNotification {
		t.Fatal("flag not flipped on")
	}

	rec = httptest.NewRecorder()
	server.HandleToggleFullOutage(rec, req)
	if store.configs[config.ID].EnableFullOutageNotification {
		t.Fatal("flag not flipped back off")
	}
}

func TestHandleToggleFullOutage_NotFound(t *testing.T) {
	t.Parallel()

	server := newTestServer(t, newAPIStore())

	req := httptest.NewRequest("PATCH", "/", nil)
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add("id", uuid.New().String())
	req = req.WithContext(context.WithValue(req.Context(), chi.RouteCtxKey, rctx))

	rec := httptest.NewRecorder()
	server.HandleToggleFullOutage(rec, req)

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
}
