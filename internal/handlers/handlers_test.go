package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"eventhub/internal/config"
	"eventhub/internal/describe"
	"eventhub/internal/models"
	"eventhub/internal/repository"
	"eventhub/internal/security"
	"eventhub/internal/service"
)

func init() {
	gin.SetMode(gin.TestMode)
}

var jpegData = []byte{0xff, 0xd8, 0xff, 0xe0, 0x00, 0x10, 'J', 'F', 'I', 'F', 0x00}

type accountTable struct {
	mu   sync.Mutex
	rows map[models.Role]map[string]models.Account
}

func (a *accountTable) Create(_ context.Context, account models.Account) (models.Account, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.rows == nil {
		a.rows = map[models.Role]map[string]models.Account{models.RoleAdmin: {}, models.RoleUser: {}}
	}
	if _, ok := a.rows[account.Role][account.Email]; ok {
		return models.Account{}, repository.ErrEmailTaken
	}
	account.CreatedAt = time.Now()
	a.rows[account.Role][account.Email] = account
	return account, nil
}

func (a *accountTable) FindByEmail(_ context.Context, role models.Role, email string) (models.Account, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	account, ok := a.rows[role][email]
	if !ok {
		return models.Account{}, repository.ErrAccountNotFound
	}
	return account, nil
}

func (a *accountTable) SetToken(_ context.Context, role models.Role, id string, token string, expiresAt time.Time) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	for email, account := range a.rows[role] {
		if account.ID == id {
			account.CurrentToken = &token
			account.TokenExpiresAt = &expiresAt
			a.rows[role][email] = account
			return nil
		}
	}
	return repository.ErrAccountNotFound
}

type plainHasher struct{}

func (plainHasher) Hash(_ context.Context, pw string) ([]byte, error) { return []byte("h:" + pw), nil }

func (plainHasher) Verify(_ context.Context, pw string, hash []byte) (bool, error) {
	return string(hash) == "h:"+pw, nil
}

type eventTable struct {
	mu     sync.Mutex
	events []models.Event
}

func (e *eventTable) Create(_ context.Context, event models.Event) (models.Event, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	event.CreatedAt = time.Now()
	e.events = append(e.events, event)
	return event, nil
}

func (e *eventTable) Query(_ context.Context, q repository.EventQuery) ([]models.Event, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]models.Event, 0)
	for _, ev := range e.events {
		if q.Matches(ev) {
			out = append(out, ev)
		}
	}
	return out, nil
}

func (e *eventTable) ListByCreator(ctx context.Context, email string) ([]models.Event, error) {
	return e.Query(ctx, repository.EventQuery{CreatedBy: email})
}

type blobBucket struct {
	mu   sync.Mutex
	objs map[string][]byte
}

func (b *blobBucket) Store(_ context.Context, data []byte, mimeType string) (string, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.objs == nil {
		b.objs = map[string][]byte{}
	}
	ref := "2025/03/01/obj" + string(rune('0'+len(b.objs))) + ".jpg"
	b.objs[ref] = data
	return ref, nil
}

func (b *blobBucket) Remove(_ context.Context, ref string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.objs, ref)
	return nil
}

func (b *blobBucket) URL(ref string) string {
	return "http://cdn.test/" + ref
}

type testEnv struct {
	router *gin.Engine
	events *eventTable
	blobs  *blobBucket
}

func newTestEnv(t *testing.T, now time.Time) *testEnv {
	t.Helper()

	cfg := &config.AppConfig{Environment: "test"}
	cfg.Events.MaxImageBytes = 5 << 20

	accounts := &accountTable{}
	events := &eventTable{}
	blobs := &blobBucket{}
	tokens := security.NewTokenManager("test-secret", 24*time.Hour)

	authSvc := service.NewAuthService(accounts, plainHasher{}, tokens, zerolog.Nop())
	eventSvc := service.NewEventService(events, blobs, describe.NewDescriber(describe.Static{}, time.Second, zerolog.Nop()), nil,
		service.EventServiceConfig{Location: time.UTC}, zerolog.Nop()).
		WithClock(func() time.Time { return now })

	h := NewHandlerSet(zerolog.Nop(), cfg, Deps{
		Auth:     authSvc,
		Events:   eventSvc,
		Tokens:   tokens,
		Accounts: accounts,
		Images:   blobs,
		Checks: []HealthCheck{
			{Name: "database", Ping: func(context.Context) error { return nil }},
		},
	})

	engine := gin.New()
	engine.HandleMethodNotAllowed = true
	h.Register(engine.Group("/api"))
	h.RegisterFallbacks(engine)

	return &testEnv{router: engine, events: events, blobs: blobs}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &out), rec.Body.String())
	return out
}

func (e *testEnv) login(t *testing.T, role, email, password, name string) string {
	t.Helper()
	registerPath := "/api/admin/register"
	if role == "user" {
		registerPath = "/api/user/signup"
	}
	rec := e.do(t, http.MethodPost, registerPath, "", gin.H{"name": name, "email": email, "password": password})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = e.do(t, http.MethodPost, "/api/"+role+"/login", "", gin.H{"email": email, "password": password})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	return decode[loginResponse](t, rec).Token
}

type eventForm struct {
	fields   map[string]string
	filename string
	mime     string
	data     []byte
}

func defaultForm() eventForm {
	return eventForm{
		fields: map[string]string{
			"title":      "Jazz Night",
			"venue":      "New Delhi Hall",
			"start_date": "2025-03-10",
			"end_date":   "2025-03-10",
			"time":       "19:00",
			"cost_type":  "free",
		},
		filename: "poster.jpg",
		mime:     "image/jpeg",
		data:     jpegData,
	}
}

func (e *testEnv) postEvent(t *testing.T, token string, form eventForm) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	for k, v := range form.fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	if form.data != nil {
		hdr := make(textproto.MIMEHeader)
		hdr.Set("Content-Disposition", `form-data; name="image"; filename="`+form.filename+`"`)
		hdr.Set("Content-Type", form.mime)
		part, err := mw.CreatePart(hdr)
		require.NoError(t, err)
		_, err = part.Write(form.data)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/admin/events", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func TestAdminRegisterLoginAndCreateEvent(t *testing.T) {
	env := newTestEnv(t, time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC))
	token := env.login(t, "admin", "alice@example.com", "password1", "Alice")

	rec := env.postEvent(t, token, defaultForm())
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[createEventResponse](t, rec)
	assert.Equal(t, "/admin/dashboard", created.Redirect)
	assert.Equal(t, "alice@example.com", created.Event.CreatedBy)
	assert.Equal(t, "http://cdn.test/"+created.Event.Image, created.Event.ImageURL)

	rec = env.do(t, http.MethodGet, "/api/admin/dashboard", token, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	dashboard := decode[eventsResponse](t, rec)
	require.Len(t, dashboard.Events, 1)
	assert.Equal(t, created.Event.ID, dashboard.Events[0].ID)
}

func TestLoginResponseCarriesRedirect(t *testing.T) {
	env := newTestEnv(t, time.Now())

	rec := env.do(t, http.MethodPost, "/api/user/signup", "", gin.H{"name": "Bob Smith", "email": "bob@example.com", "password": "Secret#123"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/user/login", "", gin.H{"email": "bob@example.com", "password": "Secret#123"})
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[loginResponse](t, rec)
	assert.Equal(t, "/user/home", resp.Redirect)
	assert.NotEmpty(t, resp.Token)

	rec = env.do(t, http.MethodPost, "/api/user/login", "", gin.H{"email": "bob@example.com", "password": "wrong"})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, "Invalid credentials", decode[map[string]string](t, rec)["error"])
}

func TestRegisterErrors(t *testing.T) {
	env := newTestEnv(t, time.Now())

	rec := env.do(t, http.MethodPost, "/api/admin/register", "", gin.H{"name": "Alice", "email": "alice@example.com", "password": "1234567"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/admin/register", "", gin.H{"name": "Alice", "email": "alice@example.com", "password": "12345678"})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/admin/register", "", gin.H{"name": "Other", "email": "alice@example.com", "password": "12345678"})
	assert.Equal(t, http.StatusConflict, rec.Code)

	req := httptest.NewRequest(http.MethodPost, "/api/admin/register", strings.NewReader("{not json"))
	req.Header.Set("Content-Type", "application/json")
	rec = httptest.NewRecorder()
	env.router.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Invalid JSON", decode[map[string]string](t, rec)["error"])
}

func TestCreateEventValidation(t *testing.T) {
	env := newTestEnv(t, time.Now())
	token := env.login(t, "admin", "alice@example.com", "password1", "Alice")

	bad := defaultForm()
	bad.fields["start_date"] = "2025-03-12"
	bad.fields["end_date"] = "2025-03-11"
	rec := env.postEvent(t, token, bad)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Start date must be before end date", decode[map[string]string](t, rec)["error"])

	noImage := defaultForm()
	noImage.data = nil
	rec = env.postEvent(t, token, noImage)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "Image is required", decode[map[string]string](t, rec)["error"])

	gif := defaultForm()
	gif.filename = "poster.gif"
	rec = env.postEvent(t, token, gif)
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	assert.Empty(t, env.events.events)
	assert.Empty(t, env.blobs.objs)
}

func TestCreateEventRequiresAdmin(t *testing.T) {
	env := newTestEnv(t, time.Now())
	userToken := env.login(t, "user", "bob@example.com", "Secret#123", "Bob")

	rec := env.postEvent(t, userToken, defaultForm())
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.postEvent(t, "", defaultForm())
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestNewerLoginSupersedesToken(t *testing.T) {
	env := newTestEnv(t, time.Now())
	first := env.login(t, "admin", "alice@example.com", "password1", "Alice")

	rec := env.do(t, http.MethodPost, "/api/admin/login", "", gin.H{"email": "alice@example.com", "password": "password1"})
	require.Equal(t, http.StatusOK, rec.Code)
	second := decode[loginResponse](t, rec).Token

	assert.Equal(t, http.StatusUnauthorized, env.do(t, http.MethodGet, "/api/admin/dashboard", first, nil).Code)
	assert.Equal(t, http.StatusOK, env.do(t, http.MethodGet, "/api/admin/dashboard", second, nil).Code)
}

func TestUserDashboardFilters(t *testing.T) {
	now := time.Date(2025, 3, 10, 9, 0, 0, 0, time.UTC)
	env := newTestEnv(t, now)
	adminToken := env.login(t, "admin", "alice@example.com", "password1", "Alice")
	userToken := env.login(t, "user", "bob@example.com", "Secret#123", "Bob Smith")

	for _, f := range []struct{ title, venue, date, cost string }{
		{"Delhi Jazz", "New Delhi Hall", "2025-03-10", "free"},
		{"Mumbai Rock", "Mumbai Dome", "2025-03-12", "paid"},
		{"Later", "Delhi Park", "2025-04-01", "free"},
	} {
		form := defaultForm()
		form.fields["title"], form.fields["venue"] = f.title, f.venue
		form.fields["start_date"], form.fields["end_date"] = f.date, f.date
		form.fields["cost_type"] = f.cost
		require.Equal(t, http.StatusCreated, env.postEvent(t, adminToken, form).Code)
	}

	titles := func(query string) []string {
		rec := env.do(t, http.MethodGet, "/api/user/dashboard"+query, userToken, nil)
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		resp := decode[userDashboardResponse](t, rec)
		assert.Equal(t, "Bob Smith", resp.User.Name)
		assert.Equal(t, "bob@example.com", resp.User.Email)
		out := make([]string, 0, len(resp.Events))
		for _, e := range resp.Events {
			out = append(out, e.Title)
		}
		return out
	}

	assert.Equal(t, []string{"Delhi Jazz", "Mumbai Rock", "Later"}, titles(""))
	assert.Equal(t, []string{"Delhi Jazz", "Later"}, titles("?type=free"))
	assert.Equal(t, []string{"Delhi Jazz", "Later"}, titles("?location=del"))
	assert.Equal(t, []string{"Delhi Jazz"}, titles("?date=today"))
	assert.Equal(t, []string{"Delhi Jazz", "Mumbai Rock"}, titles("?date=week"))
	assert.Equal(t, []string{"Mumbai Rock", "Later"}, titles("?date=2025-03-11"))
	assert.Equal(t, []string{}, titles("?location=paris"))

	assert.Equal(t, []string{}, titles("?type=cheap"))
	assert.Equal(t, []string{"Delhi Jazz", "Mumbai Rock", "Later"}, titles("?date=tomorrow"))

	rec := env.do(t, http.MethodGet, "/api/user/dashboard", adminToken, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestGenerateDescriptionEndpoint(t *testing.T) {
	env := newTestEnv(t, time.Now())
	token := env.login(t, "admin", "alice@example.com", "password1", "Alice")

	body := gin.H{"title": "Jazz", "venue": "Hall", "start_date": "2025-03-10", "end_date": "2025-03-10", "time": "19:00", "cost_type": "paid"}
	rec := env.do(t, http.MethodPost, "/api/admin/generate-description", token, body)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, describe.FallbackText, decode[descriptionResponse](t, rec).Description)

	body["cost_type"] = "donation"
	rec = env.do(t, http.MethodPost, "/api/admin/generate-description", token, body)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestFallbackRoutes(t *testing.T) {
	env := newTestEnv(t, time.Now())

	rec := env.do(t, http.MethodGet, "/api/admin/login", "", nil)
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
	assert.Equal(t, "Invalid request method", decode[map[string]string](t, rec)["error"])

	rec = env.do(t, http.MethodGet, "/api/nowhere", "", nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestHealth(t *testing.T) {
	env := newTestEnv(t, time.Now())
	rec := env.do(t, http.MethodGet, "/api/healthz", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "ok", decode[healthResponse](t, rec).Checks["database"])

	h := NewHandlerSet(zerolog.Nop(), &config.AppConfig{}, Deps{Checks: []HealthCheck{
		{Name: "cache", Ping: func(context.Context) error { return errors.New("down") }},
	}})
	engine := gin.New()
	h.Register(engine.Group("/api"))
	rec = httptest.NewRecorder()
	engine.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/healthz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Equal(t, "degraded", decode[healthResponse](t, rec).Status)
}
