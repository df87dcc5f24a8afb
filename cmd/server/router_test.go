package main

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/imhighyat/book-swap-api/internal/api"
	"github.com/imhighyat/book-swap-api/internal/config"
	"github.com/imhighyat/book-swap-api/internal/domain"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

func testConfig(redisAddr string) *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			Port:            8080,
			LogLevel:        "error",
			ShutdownTimeout: time.Second,
			CORSOrigin:      "*",
		},
		Storage: config.StorageConfig{Driver: "memory"},
		Redis: config.RedisConfig{
			Addr:     redisAddr,
			CacheTTL: time.Minute,
			LockTTL:  5 * time.Second,
		},
		Catalog: config.CatalogConfig{
			BaseURL:           "http://127.0.0.1:1",
			PageSize:          10,
			Timeout:           time.Second,
			RequestsPerSecond: 10,
		},
		Reconcile: config.ReconcileConfig{
			Enabled:     true,
			Interval:    time.Hour,
			SettleGrace: time.Minute,
		},
	}
}

func newTestApplication(t *testing.T, redisAddr string) *application {
	t.Helper()

	l := slog.New(slog.NewTextHandler(io.Discard, nil))
	app, err := newApplication(context.Background(), testConfig(redisAddr), l)
	require.NoError(t, err)
	t.Cleanup(app.cleanup)
	return app
}

type client struct {
	t      *testing.T
	server *httptest.Server
}

func (c client) do(method, path string, body interface{}) (*http.Response, []byte) {
	c.t.Helper()

	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(c.t, err)
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequest(method, c.server.URL+path, reader)
	require.NoError(c.t, err)
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.server.Client().Do(req)
	require.NoError(c.t, err)
	defer func() { _ = resp.Body.Close() }()

	data, err := io.ReadAll(resp.Body)
	require.NoError(c.t, err)
	return resp, data
}

func (c client) createUser(username string) api.UserResponse {
	c.t.Helper()
	resp, body := c.do(http.MethodPost, "/users", api.CreateUserRequest{
		FirstName:   "Sam",
		LastName:    "Reader",
		Email:       username + "@example.com",
		Username:    username,
		Password:    "correct-horse",
		PhoneNumber: "555-0100",
		Address: api.AddressPayload{
			Street: "1 Main St",
			City:   "Springfield",
			State:  "IL",
			Zip:    "62701",
		},
	})
	require.Equal(c.t, http.StatusCreated, resp.StatusCode, string(body))

	var user api.UserResponse
	require.NoError(c.t, json.Unmarshal(body, &user))
	return user
}

func (c client) addBook(userID, isbn string) api.LibraryEntryResponse {
	c.t.Helper()
	resp, body := c.do(http.MethodPost, "/users/"+userID+"/books", api.AddBookRequest{ISBN: isbn})
	require.Equal(c.t, http.StatusCreated, resp.StatusCode, string(body))

	var entry api.LibraryEntryResponse
	require.NoError(c.t, json.Unmarshal(body, &entry))
	return entry
}

func catalogBook(t *testing.T, app *application, title, isbn string) {
	t.Helper()
	book, err := domain.NewBook(title, []string{"Isaac Asimov"}, []string{isbn}, nil, "")
	require.NoError(t, err)
	_, _, err = app.bookStore.UpsertByISBN(context.Background(), book)
	require.NoError(t, err)
}

func TestRouterSwapFlow(t *testing.T) {
	tests := []struct {
		name  string
		redis bool
	}{
		{name: "in-process lock", redis: false},
		{name: "redis lock and cache", redis: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			addr := ""
			if tt.redis {
				addr = miniredis.RunT(t).Addr()
			}
			app := newTestApplication(t, addr)
			if tt.redis {
				require.NotNil(t, app.redis)
			}

			server := httptest.NewServer(app.setupRouter())
			defer server.Close()
			c := client{t: t, server: server}

			catalogBook(t, app, "Foundation", "9780553293357")
			catalogBook(t, app, "I, Robot", "9780553382563")

			alice := c.createUser("alice")
			bob := c.createUser("bob")
			wanted := c.addBook(bob.ID, "9780553293357")
			offered := c.addBook(alice.ID, "9780553382563")

			resp, body := c.do(http.MethodPost, "/users/"+alice.ID+"/requests", api.CreateSwapRequest{
				RequestTo:        bob.ID,
				RequestedEntryID: wanted.ID,
				TradedEntryID:    offered.ID,
			})
			require.Equal(t, http.StatusCreated, resp.StatusCode, string(body))
			assert.NotEmpty(t, resp.Header.Get("X-Trace-ID"))

			var created api.SwapRequestResponse
			require.NoError(t, json.Unmarshal(body, &created))
			assert.Equal(t, "pending", created.Status)

			resp, body = c.do(http.MethodPut, "/users/"+bob.ID+"/requests/"+created.ID,
				api.UpdateSwapRequest{Status: "accepted"})
			require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

			var accepted api.SwapRequestResponse
			require.NoError(t, json.Unmarshal(body, &accepted))
			assert.Equal(t, "accepted", accepted.Status)

			resp, body = c.do(http.MethodGet, "/users/"+alice.ID+"/books", nil)
			require.Equal(t, http.StatusOK, resp.StatusCode, string(body))
			var aliceBooks []api.LibraryEntryResponse
			require.NoError(t, json.Unmarshal(body, &aliceBooks))
			require.Len(t, aliceBooks, 1)
			assert.Equal(t, wanted.BookID, aliceBooks[0].BookID)
			assert.False(t, aliceBooks[0].HasPendingRequest)

			report, err := app.reconcileService.Sweep(context.Background())
			require.NoError(t, err)
			for kind, n := range report {
				assert.Zero(t, n, "unexpected %s repairs after a clean swap", kind)
			}

			_, body = c.do(http.MethodGet, "/metrics", nil)
			assert.Contains(t, string(body), "bookswap_request_transitions_total")
			assert.Contains(t, string(body), "bookswap_http_requests_total")
		})
	}
}

func TestRouterHealthAndCORS(t *testing.T) {
	app := newTestApplication(t, "")
	server := httptest.NewServer(app.setupRouter())
	defer server.Close()
	c := client{t: t, server: server}

	resp, body := c.do(http.MethodGet, "/health", nil)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "OK", string(body))
	assert.Equal(t, "*", resp.Header.Get("Access-Control-Allow-Origin"))

	req, err := http.NewRequest(http.MethodOptions, server.URL+"/users", nil)
	require.NoError(t, err)
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	preflight, err := server.Client().Do(req)
	require.NoError(t, err)
	_ = preflight.Body.Close()
	assert.Equal(t, http.StatusNoContent, preflight.StatusCode)

	resp, body = c.do(http.MethodGet, "/no-such-route", nil)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode, string(body))
}

func TestNewApplicationRejectsUnknownDriver(t *testing.T) {
	cfg := testConfig("")
	cfg.Storage.Driver = "sqlite"

	_, err := newApplication(context.Background(), cfg, slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unsupported storage driver")
}

func TestNewApplicationRedisUnavailable(t *testing.T) {
	mr := miniredis.RunT(t)
	addr := mr.Addr()
	mr.Close()

	_, err := newApplication(context.Background(), testConfig(addr), slog.New(slog.NewTextHandler(io.Discard, nil)))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to connect to redis")
}
