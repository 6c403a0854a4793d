package http

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/steinfletcher/apitest"
	jsonpath "github.com/steinfletcher/apitest-jsonpath"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"moodtrack/internal/auth"
	"moodtrack/internal/repository"
	"moodtrack/internal/repository/sqlite"
	"moodtrack/internal/service"
	"moodtrack/internal/storage"
)

const (
	cookieName = "moodtrack_session"
	tokenTTL   = time.Hour
)

func init() {
	gin.SetMode(gin.TestMode)
}

type testClock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *testClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *testClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

type testServer struct {
	router *gin.Engine
	clock  *testClock
}

type serverOption func(cfg *Config, entries repository.EntryRepository)

func withExportStore(store storage.Service) serverOption {
	return func(cfg *Config, entries repository.EntryRepository) {
		cfg.Exports = service.NewExportService(entries, store, service.ExportConfig{
			Bucket:    "exports",
			KeyPrefix: "moodtrack-exports",
		}, cfg.Logger)
	}
}

func withLoginRedirect(url string) serverOption {
	return func(cfg *Config, _ repository.EntryRepository) { cfg.LoginRedirect = url }
}

func newTestServer(t *testing.T, opts ...serverOption) *testServer {
	t.Helper()

	db, err := sqlite.Open(filepath.Join(t.TempDir(), "moodtrack.db"))
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	_, err = sqlite.Migrate(context.Background(), db)
	require.NoError(t, err)

	log, _ := test.NewNullLogger()
	clock := &testClock{now: time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)}
	codec, err := auth.NewTokenCodec([]byte("test-secret-0123456789"), auth.WithClock(clock.Now))
	require.NoError(t, err)

	userRepo := sqlite.NewUserRepository(db)
	entryRepo := sqlite.NewEntryRepository(db)

	cfg := Config{
		Users:      service.NewUserService(userRepo, auth.NewBcryptHasher(bcrypt.MinCost)),
		Entries:    service.NewEntryService(entryRepo),
		Exports:    service.NewExportService(entryRepo, nil, service.ExportConfig{}, log),
		Codec:      codec,
		Resolver:   auth.NewResolver(codec, userRepo, tokenTTL, log),
		TokenTTL:   tokenTTL,
		CookieName: cookieName,
		Logger:     log,
	}
	for _, opt := range opts {
		opt(&cfg, entryRepo)
	}

	router := gin.New()
	NewHandler(cfg).RegisterRoutes(router)
	return &testServer{router: router, clock: clock}
}

func (s *testServer) api() *apitest.APITest {
	return apitest.New().Handler(s.router)
}

func (s *testServer) signup(t *testing.T, name, username, password string) {
	t.Helper()
	s.api().
		Post("/api/signup").
		JSON(fmt.Sprintf(`{"name":%q,"username":%q,"password":%q}`, name, username, password)).
		Expect(t).
		Status(http.StatusCreated).
		End()
}

func (s *testServer) login(t *testing.T, username, password string) string {
	t.Helper()
	var token TokenResponse
	s.api().
		Post("/api/login").
		FormData("username", username).
		FormData("password", password).
		Expect(t).
		Status(http.StatusOK).
		Assert(decodeJSON(&token)).
		End()
	require.NotEmpty(t, token.AccessToken)
	return token.AccessToken
}

func decodeJSON(v any) apitest.Assert {
	return func(res *http.Response, _ *http.Request) error {
		return json.NewDecoder(res.Body).Decode(v)
	}
}

func captureCookies(dst *[]*http.Cookie) apitest.Assert {
	return func(res *http.Response, _ *http.Request) error {
		*dst = res.Cookies()
		return nil
	}
}

func findCookie(cookies []*http.Cookie, name string) *http.Cookie {
	for _, c := range cookies {
		if c.Name == name {
			return c
		}
	}
	return nil
}

func bearer(token string) string {
	return "Bearer " + token
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t)
	srv.api().
		Get("/api/health").
		Expect(t).
		Status(http.StatusOK).
		Assert(jsonpath.Equal("$.ok", "ok")).
		End()
}

func TestSignup(t *testing.T) {
	srv := newTestServer(t)

	srv.api().
		Post("/api/signup").
		JSON(`{"name":"Alice","username":"alice","password":"correct horse"}`).
		Expect(t).
		Status(http.StatusCreated).
		Assert(jsonpath.Equal("$.username", "alice")).
		Assert(jsonpath.Equal("$.name", "Alice")).
		Assert(jsonpath.Present("$.id")).
		Assert(jsonpath.NotPresent("$.password_hash")).
		End()

	srv.api().
		Post("/api/signup").
		JSON(`{"name":"Other Alice","username":"alice","password":"another secret"}`).
		Expect(t).
		Status(http.StatusConflict).
		End()

	srv.api().
		Post("/api/signup").
		JSON(`{"name":"Bob","username":"bob","password":"short"}`).
		Expect(t).
		Status(http.StatusBadRequest).
		End()

	srv.api().
		Post("/api/signup").
		JSON(`{"name":"","username":"carol","password":"long enough"}`).
		Expect(t).
		Status(http.StatusBadRequest).
		End()
}

func TestLogin(t *testing.T) {
	srv := newTestServer(t)
	srv.signup(t, "Alice", "alice", "correct horse")

	var cookies []*http.Cookie
	srv.api().
		Post("/api/login").
		JSON(`{"username":"alice","password":"correct horse"}`).
		Expect(t).
		Status(http.StatusOK).
		Assert(jsonpath.Equal("$.token_type", "bearer")).
		Assert(jsonpath.Equal("$.expires_in", float64(3600))).
		Assert(jsonpath.Present("$.access_token")).
		Assert(captureCookies(&cookies)).
		End()

	session := findCookie(cookies, cookieName)
	require.NotNil(t, session)
	assert.NotEmpty(t, session.Value)
	assert.True(t, session.HttpOnly)
	assert.Equal(t, http.SameSiteLaxMode, session.SameSite)
	assert.Equal(t, 3600, session.MaxAge)
}

func TestLogin_FailuresAreIndistinguishable(t *testing.T) {
	srv := newTestServer(t)
	srv.signup(t, "Alice", "alice", "correct horse")

	for _, form := range [][2]string{
		{"alice", "wrong password"},
		{"mallory", "correct horse"},
	} {
		srv.api().
			Post("/api/login").
			FormData("username", form[0]).
			FormData("password", form[1]).
			Expect(t).
			Status(http.StatusUnauthorized).
			Header("WWW-Authenticate", "Bearer").
			Body(`{"error":"Incorrect username or password"}`).
			End()
	}

	srv.api().
		Post("/api/login").
		FormData("username", "alice").
		Expect(t).
		Status(http.StatusBadRequest).
		End()
}

func TestEntries_AreIsolatedPerUser(t *testing.T) {
	srv := newTestServer(t)
	srv.signup(t, "Alice", "alice", "alice-password")
	srv.signup(t, "Bob", "bob", "bob-password")
	alice := srv.login(t, "alice", "alice-password")
	bob := srv.login(t, "bob", "bob-password")

	srv.api().
		Get("/api/me").
		Header("Authorization", bearer(alice)).
		Expect(t).
		Status(http.StatusOK).
		Assert(jsonpath.Equal("$.username", "alice")).
		End()

	var created EntryResponse
	srv.api().
		Post("/api/entries").
		Header("Authorization", bearer(alice)).
		JSON(`{"mood_score":4,"comment":"sunny walk"}`).
		Expect(t).
		Status(http.StatusCreated).
		Assert(decodeJSON(&created)).
		End()
	require.NotZero(t, created.ID)
	assert.Equal(t, 4, created.MoodScore)
	require.NotNil(t, created.Comment)
	assert.Equal(t, "sunny walk", *created.Comment)

	srv.api().
		Get("/api/entries").
		Header("Authorization", bearer(alice)).
		Expect(t).
		Status(http.StatusOK).
		Assert(jsonpath.Len("$", 1)).
		Assert(jsonpath.Equal("$[0].comment", "sunny walk")).
		End()

	srv.api().
		Get("/api/entries").
		Header("Authorization", bearer(bob)).
		Expect(t).
		Status(http.StatusOK).
		Body(`[]`).
		End()

	path := fmt.Sprintf("/api/entries/%d", created.ID)
	srv.api().
		Get(path).
		Header("Authorization", bearer(bob)).
		Expect(t).
		Status(http.StatusNotFound).
		End()
	srv.api().
		Put(path).
		Header("Authorization", bearer(bob)).
		JSON(`{"mood_score":1}`).
		Expect(t).
		Status(http.StatusNotFound).
		End()
	srv.api().
		Delete(path).
		Header("Authorization", bearer(bob)).
		Expect(t).
		Status(http.StatusNotFound).
		End()

	srv.api().
		Get(path).
		Header("Authorization", bearer(alice)).
		Expect(t).
		Status(http.StatusOK).
		Assert(jsonpath.Equal("$.mood_score", float64(4))).
		End()
}

func TestEntries_RejectOutOfRangeScore(t *testing.T) {
	srv := newTestServer(t)
	srv.signup(t, "Alice", "alice", "alice-password")
	token := srv.login(t, "alice", "alice-password")

	for _, body := range []string{
		`{"mood_score":6}`,
		`{"mood_score":0,"comment":"flat"}`,
		`{"comment":"no score"}`,
		`not json`,
	} {
		srv.api().
			Post("/api/entries").
			Header("Authorization", bearer(token)).
			JSON(body).
			Expect(t).
			Status(http.StatusBadRequest).
			End()
	}

	srv.api().
		Get("/api/entries").
		Header("Authorization", bearer(token)).
		Expect(t).
		Status(http.StatusOK).
		Body(`[]`).
		End()
}

func TestEntries_UpdateDeleteAndPaging(t *testing.T) {
	srv := newTestServer(t)
	srv.signup(t, "Alice", "alice", "alice-password")
	token := srv.login(t, "alice", "alice-password")

	var ids []int64
	for score := 1; score <= 3; score++ {
		var created EntryResponse
		srv.api().
			Post("/api/entries").
			Header("Authorization", bearer(token)).
			JSON(fmt.Sprintf(`{"mood_score":%d}`, score)).
			Expect(t).
			Status(http.StatusCreated).
			Assert(decodeJSON(&created)).
			End()
		ids = append(ids, created.ID)
	}

	srv.api().
		Get("/api/entries").
		Header("Authorization", bearer(token)).
		Query("limit", "2").
		Expect(t).
		Status(http.StatusOK).
		Assert(jsonpath.Len("$", 2)).
		End()
	srv.api().
		Get("/api/entries").
		Header("Authorization", bearer(token)).
		Query("limit", "2").
		Query("offset", "2").
		Expect(t).
		Status(http.StatusOK).
		Assert(jsonpath.Len("$", 1)).
		End()
	srv.api().
		Get("/api/entries").
		Header("Authorization", bearer(token)).
		Query("limit", "-1").
		Expect(t).
		Status(http.StatusBadRequest).
		End()

	path := fmt.Sprintf("/api/entries/%d", ids[0])
	srv.api().
		Put(path).
		Header("Authorization", bearer(token)).
		JSON(`{"mood_score":5,"comment":"better"}`).
		Expect(t).
		Status(http.StatusOK).
		Assert(jsonpath.Equal("$.mood_score", float64(5))).
		Assert(jsonpath.Equal("$.comment", "better")).
		End()
	srv.api().
		Put(path).
		Header("Authorization", bearer(token)).
		JSON(`{"mood_score":9}`).
		Expect(t).
		Status(http.StatusBadRequest).
		End()

	srv.api().
		Delete(path).
		Header("Authorization", bearer(token)).
		Expect(t).
		Status(http.StatusNoContent).
		End()
	srv.api().
		Get(path).
		Header("Authorization", bearer(token)).
		Expect(t).
		Status(http.StatusNotFound).
		End()

	srv.api().
		Get("/api/entries/abc").
		Header("Authorization", bearer(token)).
		Expect(t).
		Status(http.StatusBadRequest).
		End()
}

func TestSessionCookieAuthenticates(t *testing.T) {
	srv := newTestServer(t)
	srv.signup(t, "Alice", "alice", "alice-password")
	srv.signup(t, "Bob", "bob", "bob-password")
	alice := srv.login(t, "alice", "alice-password")
	bob := srv.login(t, "bob", "bob-password")

	srv.api().
		Get("/api/me").
		Cookie(cookieName, alice).
		Expect(t).
		Status(http.StatusOK).
		Assert(jsonpath.Equal("$.username", "alice")).
		End()

	srv.api().
		Get("/api/me").
		Cookie(cookieName, alice).
		Header("Authorization", bearer(bob)).
		Expect(t).
		Status(http.StatusOK).
		Assert(jsonpath.Equal("$.username", "bob")).
		End()
}

func TestUnauthenticatedRequests(t *testing.T) {
	srv := newTestServer(t)
	srv.signup(t, "Alice", "alice", "alice-password")
	token := srv.login(t, "alice", "alice-password")

	srv.api().
		Get("/api/me").
		Expect(t).
		Status(http.StatusUnauthorized).
		Header("WWW-Authenticate", "Bearer").
		End()

	srv.api().
		Get("/api/entries").
		Header("Authorization", bearer("not-a-token")).
		Expect(t).
		Status(http.StatusUnauthorized).
		End()

	tampered := token[:len(token)-1] + flipChar(token[len(token)-1])
	srv.api().
		Get("/api/me").
		Header("Authorization", bearer(tampered)).
		Expect(t).
		Status(http.StatusUnauthorized).
		End()

	var cookies []*http.Cookie
	srv.api().
		Get("/api/me").
		Cookie(cookieName, "stale").
		Expect(t).
		Status(http.StatusUnauthorized).
		Assert(captureCookies(&cookies)).
		End()
	cleared := findCookie(cookies, cookieName)
	require.NotNil(t, cleared)
	assert.Empty(t, cleared.Value)
	assert.Negative(t, cleared.MaxAge)
}

func TestExpiredTokenIsRejected(t *testing.T) {
	srv := newTestServer(t)
	srv.signup(t, "Alice", "alice", "alice-password")
	token := srv.login(t, "alice", "alice-password")

	srv.clock.Advance(tokenTTL)
	srv.api().
		Get("/api/me").
		Header("Authorization", bearer(token)).
		Expect(t).
		Status(http.StatusOK).
		End()

	srv.clock.Advance(time.Second)
	srv.api().
		Get("/api/me").
		Header("Authorization", bearer(token)).
		Expect(t).
		Status(http.StatusUnauthorized).
		End()
}

func TestUnauthenticatedBrowserIsRedirected(t *testing.T) {
	srv := newTestServer(t, withLoginRedirect("/login"))

	srv.api().
		Get("/api/me").
		Header("Accept", "text/html,application/xhtml+xml;q=0.9").
		Expect(t).
		Status(http.StatusSeeOther).
		Header("Location", "/login").
		End()

	srv.api().
		Get("/api/me").
		Header("Accept", "application/json").
		Expect(t).
		Status(http.StatusUnauthorized).
		End()
}

func TestLogoutClearsCookie(t *testing.T) {
	srv := newTestServer(t)

	var cookies []*http.Cookie
	srv.api().
		Post("/api/logout").
		Expect(t).
		Status(http.StatusNoContent).
		Assert(captureCookies(&cookies)).
		End()

	cleared := findCookie(cookies, cookieName)
	require.NotNil(t, cleared)
	assert.Empty(t, cleared.Value)
}

func TestExports_DisabledWithoutStorage(t *testing.T) {
	srv := newTestServer(t)
	srv.signup(t, "Alice", "alice", "alice-password")
	token := srv.login(t, "alice", "alice-password")

	srv.api().
		Post("/api/exports").
		Header("Authorization", bearer(token)).
		Expect(t).
		Status(http.StatusServiceUnavailable).
		End()
}

func TestExports_UploadListAndPurge(t *testing.T) {
	store := newMemStore()
	srv := newTestServer(t, withExportStore(store))
	srv.signup(t, "Alice", "alice", "alice-password")
	token := srv.login(t, "alice", "alice-password")

	srv.api().
		Post("/api/entries").
		Header("Authorization", bearer(token)).
		JSON(`{"mood_score":3}`).
		Expect(t).
		Status(http.StatusCreated).
		End()

	var export ExportResponse
	srv.api().
		Post("/api/exports").
		Header("Authorization", bearer(token)).
		Expect(t).
		Status(http.StatusCreated).
		Assert(decodeJSON(&export)).
		End()
	assert.Equal(t, 1, export.Count)
	assert.True(t, strings.HasPrefix(export.Key, "moodtrack-exports/user-1/"))
	assert.Equal(t, "https://storage.test/"+export.Key, export.URL)

	srv.api().
		Get("/api/exports").
		Header("Authorization", bearer(token)).
		Expect(t).
		Status(http.StatusOK).
		Assert(jsonpath.Len("$", 1)).
		Assert(jsonpath.Equal("$[0].key", export.Key)).
		End()

	srv.api().
		Delete("/api/exports").
		Header("Authorization", bearer(token)).
		Expect(t).
		Status(http.StatusNoContent).
		End()
	assert.Empty(t, store.keys())
}

func flipChar(b byte) string {
	if b == 'A' {
		return "B"
	}
	return "A"
}

type memStore struct {
	mu      sync.Mutex
	objects map[string][]byte
}

func newMemStore() *memStore {
	return &memStore{objects: map[string][]byte{}}
}

func (m *memStore) Upload(_ context.Context, body io.Reader, opts storage.UploadOptions) (string, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.objects[opts.Key] = data
	return "s3://" + opts.Bucket + "/" + opts.Key, nil
}

func (m *memStore) ListObjects(_ context.Context, _, prefix string) ([]storage.ObjectInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []storage.ObjectInfo
	for key, data := range m.objects {
		if strings.HasPrefix(key, prefix) {
			out = append(out, storage.ObjectInfo{Key: key, Size: int64(len(data))})
		}
	}
	return out, nil
}

func (m *memStore) DeletePrefix(_ context.Context, _, prefix string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for key := range m.objects {
		if strings.HasPrefix(key, prefix) {
			delete(m.objects, key)
		}
	}
	return nil
}

func (m *memStore) GetObjectURL(_ context.Context, _, key string, _ time.Duration) (string, error) {
	return "https://storage.test/" + key, nil
}

func (m *memStore) keys() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []string
	for key := range m.objects {
		out = append(out, key)
	}
	return out
}
