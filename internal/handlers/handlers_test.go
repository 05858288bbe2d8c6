package handlers

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/mindsight/journal/config"
	"github.com/mindsight/journal/internal/annotate"
	"github.com/mindsight/journal/internal/services"
	"github.com/mindsight/journal/internal/session"
	"github.com/mindsight/journal/internal/storage"
	"github.com/mindsight/journal/internal/store/memory"
	"github.com/mindsight/journal/types"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

type stubGenerator struct {
	mu    sync.Mutex
	reply string
	err   error
	calls int
}

func (g *stubGenerator) Generate(context.Context, string) (string, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.calls++
	return g.reply, g.err
}

func (g *stubGenerator) callCount() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.calls
}

type memoryObjects struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func (m *memoryObjects) Put(_ context.Context, key string, r io.Reader, _ int64, _ string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.objects == nil {
		m.objects = map[string][]byte{}
	}
	m.objects[key] = data
	return nil
}

func (m *memoryObjects) Get(_ context.Context, key string) (io.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	data, ok := m.objects[key]
	if !ok {
		return nil, storage.ErrObjectNotFound
	}
	return io.NopCloser(bytes.NewReader(data)), nil
}

type testApp struct {
	server  *httptest.Server
	users   *memory.UserRepository
	entries *memory.EntryRepository
}

func newTestApp(t *testing.T, generator annotate.Generator, objects services.ObjectStore) *testApp {
	t.Helper()

	logger := zerolog.Nop()
	users := memory.NewUserRepository()
	entries := memory.NewEntryRepository()

	userService := services.NewUserService(users, nil, logger)
	entryService := services.NewEntryService(entries, annotate.NewAnalyzer(generator, annotate.WithTimeout(time.Second)), nil, logger)
	exportService := services.NewExportService(users, entries, objects, logger)

	sessions := session.NewManager(session.CookieStore{}, config.SessionConfig{CookieName: "mindsight_session", TTL: time.Hour}, "test-secret")
	view, err := NewView(sessions, logger)
	require.NoError(t, err)

	router := chi.NewRouter()
	router.Use(LoadUser(userService, sessions, logger))
	router.Get("/", Index(view))
	router.Get("/healthz", Healthz)
	router.Route("/auth", func(r chi.Router) {
		AuthRouter(r, NewAuthHandler(userService, sessions, view, logger), nil)
	})
	router.Route("/entries", func(r chi.Router) {
		EntryRouter(r, NewEntryHandler(entryService, exportService, sessions, view, logger))
	})

	server := httptest.NewServer(router)
	t.Cleanup(server.Close)

	return &testApp{server: server, users: users, entries: entries}
}

type testClient struct {
	t    *testing.T
	base string
	http *http.Client
}

func (a *testApp) client(t *testing.T) *testClient {
	t.Helper()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	return &testClient{
		t:    t,
		base: a.server.URL,
		http: &http.Client{
			Jar: jar,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

func (c *testClient) get(path string) (*http.Response, string) {
	c.t.Helper()
	resp, err := c.http.Get(c.base + path)
	require.NoError(c.t, err)
	return resp, readBody(c.t, resp)
}

func (c *testClient) post(path string, form url.Values) (*http.Response, string) {
	c.t.Helper()
	resp, err := c.http.PostForm(c.base+path, form)
	require.NoError(c.t, err)
	return resp, readBody(c.t, resp)
}

func (c *testClient) registerAndLogin(username, password string) {
	c.t.Helper()
	resp, _ := c.post("/auth/register", url.Values{"username": {username}, "password": {password}})
	require.Equal(c.t, http.StatusFound, resp.StatusCode)
	resp, _ = c.post("/auth/login", url.Values{"username": {username}, "password": {password}})
	require.Equal(c.t, http.StatusFound, resp.StatusCode)
}

func readBody(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	var buf bytes.Buffer
	_, err := buf.ReadFrom(resp.Body)
	require.NoError(t, err)
	return buf.String()
}

func newEntry(userID int, text string) types.Entry {
	return types.Entry{UserID: userID, Text: text, Mood: "happy", Reflection: "Great!"}
}

func (a *testApp) userID(t *testing.T, username string) int {
	t.Helper()
	user, err := a.users.GetByUsername(context.Background(), username)
	require.NoError(t, err)
	return user.ID
}

func TestRegister(t *testing.T) {
	app := newTestApp(t, nil, nil)
	c := app.client(t)

	resp, body := c.get("/auth/register")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, body, "Register")

	resp, _ = c.post("/auth/register", url.Values{"username": {"newuser"}, "password": {"newpass"}})
	require.Equal(t, http.StatusFound, resp.StatusCode)
	require.Equal(t, "/auth/login", resp.Header.Get("Location"))

	_, err := app.users.GetByUsername(context.Background(), "newuser")
	require.NoError(t, err)
}

func TestRegisterValidatesInput(t *testing.T) {
	app := newTestApp(t, nil, nil)
	c := app.client(t)

	_, body := c.post("/auth/register", url.Values{"username": {""}, "password": {"test"}})
	require.Contains(t, body, "Username is required.")

	_, body = c.post("/auth/register", url.Values{"username": {"test"}, "password": {""}})
	require.Contains(t, body, "Password is required.")

	resp, _ := c.post("/auth/register", url.Values{"username": {"alice"}, "password": {"pw"}})
	require.Equal(t, http.StatusFound, resp.StatusCode)

	resp, body = c.post("/auth/register", url.Values{"username": {"alice"}, "password": {"other"}})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, body, "User alice is already registered.")
}

func TestLoginAndLogout(t *testing.T) {
	app := newTestApp(t, nil, nil)
	c := app.client(t)

	resp, _ := c.post("/auth/register", url.Values{"username": {"testuser"}, "password": {"testpass"}})
	require.Equal(t, http.StatusFound, resp.StatusCode)

	resp, _ = c.get("/auth/login")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	_, body := c.post("/auth/login", url.Values{"username": {"wronguser"}, "password": {"testpass"}})
	require.Contains(t, body, "Incorrect username.")

	_, body = c.post("/auth/login", url.Values{"username": {"testuser"}, "password": {"wrongpass"}})
	require.Contains(t, body, "Incorrect password.")

	resp, _ = c.post("/auth/login", url.Values{"username": {"testuser"}, "password": {"testpass"}})
	require.Equal(t, http.StatusFound, resp.StatusCode)
	require.Equal(t, "/", resp.Header.Get("Location"))

	_, body = c.get("/")
	require.Contains(t, body, "Mindsight - Smart Journal")
	require.Contains(t, body, "testuser")

	resp, _ = c.get("/auth/logout")
	require.Equal(t, http.StatusFound, resp.StatusCode)
	require.Equal(t, "/", resp.Header.Get("Location"))

	resp, _ = c.get("/entries/list")
	require.Equal(t, http.StatusFound, resp.StatusCode)
	require.Equal(t, "/auth/login", resp.Header.Get("Location"))
}

func TestEntryRoutesRequireLogin(t *testing.T) {
	app := newTestApp(t, nil, nil)
	c := app.client(t)

	for _, tc := range []struct {
		method string
		path   string
	}{
		{http.MethodGet, "/entries/add"},
		{http.MethodPost, "/entries/add"},
		{http.MethodGet, "/entries/list"},
		{http.MethodPost, "/entries/1/delete"},
		{http.MethodPost, "/entries/export"},
	} {
		var resp *http.Response
		if tc.method == http.MethodGet {
			resp, _ = c.get(tc.path)
		} else {
			resp, _ = c.post(tc.path, url.Values{})
		}
		require.Equal(t, http.StatusFound, resp.StatusCode, tc.path)
		require.Equal(t, "/auth/login", resp.Header.Get("Location"), tc.path)
	}
}

func TestAddEntryAnnotatesAndFlashes(t *testing.T) {
	gen := &stubGenerator{reply: "MOOD: happy\nREFLECTION: Nice!"}
	app := newTestApp(t, gen, nil)
	c := app.client(t)
	c.registerAndLogin("alice", "pw")

	resp, body := c.get("/entries/add")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, body, "New Journal Entry")

	resp, _ = c.post("/entries/add", url.Values{"text": {"Great day!"}})
	require.Equal(t, http.StatusFound, resp.StatusCode)
	require.Equal(t, "/entries/list", resp.Header.Get("Location"))

	_, body = c.get("/entries/list")
	require.Contains(t, body, "Entry saved successfully!")
	require.Contains(t, body, "Great day!")
	require.Contains(t, body, "happy")
	require.Contains(t, body, "Nice!")

	_, body = c.get("/entries/list")
	require.NotContains(t, body, "Entry saved successfully!")

	entries, err := app.entries.ListByUser(context.Background(), app.userID(t, "alice"))
	require.NoError(t, err)
	require.Len(t, entries, 1)
	require.Equal(t, "happy", entries[0].Mood)
	require.Equal(t, "Nice!", entries[0].Reflection)
}

func TestAddEntryRejectsEmptyText(t *testing.T) {
	gen := &stubGenerator{reply: "MOOD: happy"}
	app := newTestApp(t, gen, nil)
	c := app.client(t)
	c.registerAndLogin("alice", "pw")

	resp, body := c.post("/entries/add", url.Values{"text": {""}})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Contains(t, body, "Journal entry text is required.")
	require.Zero(t, gen.callCount())

	entries, err := app.entries.ListByUser(context.Background(), app.userID(t, "alice"))
	require.NoError(t, err)
	require.Empty(t, entries)
}

func TestAddEntryFallsBackWhenAnnotationFails(t *testing.T) {
	gen := &stubGenerator{err: errors.New("upstream unavailable")}
	app := newTestApp(t, gen, nil)
	c := app.client(t)
	c.registerAndLogin("alice", "pw")

	resp, _ := c.post("/entries/add", url.Values{"text": {"Rough day"}})
	require.Equal(t, http.StatusFound, resp.StatusCode)

	_, body := c.get("/entries/list")
	require.Contains(t, body, "Rough day")
	require.Contains(t, body, "neutral")
	require.Contains(t, body, "Unable to generate reflection at this time.")
}

func TestListShowsOnlyOwnEntries(t *testing.T) {
	app := newTestApp(t, nil, nil)

	user1 := app.client(t)
	user1.registerAndLogin("user1", "pass1")
	app.entries.Insert(newEntry(app.userID(t, "user1"), "User1 entry"))

	user2 := app.client(t)
	user2.registerAndLogin("user2", "pass2")

	_, body := user2.get("/entries/list")
	require.NotContains(t, body, "User1 entry")
	require.Contains(t, body, "No entries yet")

	_, body = user1.get("/entries/list")
	require.Contains(t, body, "User1 entry")
}

func TestDeleteEntry(t *testing.T) {
	app := newTestApp(t, nil, nil)

	owner := app.client(t)
	owner.registerAndLogin("user1", "pass1")
	entry := app.entries.Insert(newEntry(app.userID(t, "user1"), "Test entry"))

	other := app.client(t)
	other.registerAndLogin("user2", "pass2")

	resp, _ := other.post("/entries/"+strconv.Itoa(entry.ID)+"/delete", nil)
	require.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, _ = owner.post("/entries/9999/delete", nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = owner.post("/entries/not-a-number/delete", nil)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, _ = owner.post("/entries/"+strconv.Itoa(entry.ID)+"/delete", nil)
	require.Equal(t, http.StatusFound, resp.StatusCode)
	require.Equal(t, "/entries/list", resp.Header.Get("Location"))

	_, body := owner.get("/entries/list")
	require.Contains(t, body, "Entry deleted successfully!")
	require.NotContains(t, body, "Test entry")

	_, err := app.entries.Get(context.Background(), entry.ID)
	require.Error(t, err)
}

func TestExportNotConfigured(t *testing.T) {
	app := newTestApp(t, nil, nil)
	c := app.client(t)
	c.registerAndLogin("alice", "pw")

	_, body := c.get("/entries/list")
	require.NotContains(t, body, "/entries/export")

	resp, _ := c.post("/entries/export", nil)
	require.Equal(t, http.StatusFound, resp.StatusCode)

	_, body = c.get("/entries/list")
	require.Contains(t, body, "Export is not configured.")

	resp, _ = c.get("/entries/exports/1.json")
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestExportWritesObject(t *testing.T) {
	objects := &memoryObjects{}
	app := newTestApp(t, nil, objects)
	c := app.client(t)
	c.registerAndLogin("alice", "pw")
	app.entries.Insert(newEntry(app.userID(t, "alice"), "Exported entry"))

	resp, _ := c.post("/entries/export", nil)
	require.Equal(t, http.StatusFound, resp.StatusCode)
	location := resp.Header.Get("Location")
	require.True(t, strings.HasPrefix(location, "/entries/exports/"), location)

	objects.mu.Lock()
	require.Len(t, objects.objects, 1)
	for key, data := range objects.objects {
		require.True(t, strings.HasPrefix(key, "exports/alice/"), key)
		require.Contains(t, string(data), "Exported entry")
		require.Equal(t, "/entries/exports/"+strings.TrimPrefix(key, "exports/alice/"), location)
	}
	objects.mu.Unlock()

	resp, body := c.get(location)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, "application/json", resp.Header.Get("Content-Type"))
	require.Contains(t, resp.Header.Get("Content-Disposition"), "attachment")
	require.Contains(t, body, "Exported entry")
}

func TestExportDownloadScopedToOwner(t *testing.T) {
	objects := &memoryObjects{}
	app := newTestApp(t, nil, objects)
	alice := app.client(t)
	alice.registerAndLogin("alice", "pw")
	app.entries.Insert(newEntry(app.userID(t, "alice"), "Private thoughts"))

	resp, _ := alice.post("/entries/export", nil)
	require.Equal(t, http.StatusFound, resp.StatusCode)
	location := resp.Header.Get("Location")

	bob := app.client(t)
	bob.registerAndLogin("bob", "pw")
	resp, body := bob.get(location)
	require.Equal(t, http.StatusNotFound, resp.StatusCode)
	require.NotContains(t, body, "Private thoughts")

	resp, _ = bob.get("/entries/exports/..%2Falice%2F" + strings.TrimPrefix(location, "/entries/exports/"))
	require.Equal(t, http.StatusNotFound, resp.StatusCode)

	anon := app.client(t)
	resp, _ = anon.get(location)
	require.Equal(t, http.StatusFound, resp.StatusCode)
	require.Equal(t, "/auth/login", resp.Header.Get("Location"))
}

func TestHealthz(t *testing.T) {
	rec := httptest.NewRecorder()
	Healthz(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	require.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}
