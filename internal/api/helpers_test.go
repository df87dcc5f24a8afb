package api

import (
	"bytes"
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/imhighyat/book-swap-api/internal/api/middleware"
	"github.com/imhighyat/book-swap-api/internal/catalog"
	"github.com/imhighyat/book-swap-api/internal/domain"
	"github.com/imhighyat/book-swap-api/internal/events"
	"github.com/imhighyat/book-swap-api/internal/platform/memory"
	"github.com/imhighyat/book-swap-api/internal/service"
	"github.com/imhighyat/book-swap-api/internal/service/auth"
	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// MockProvider is a testify mock of catalog.Provider.
type MockProvider struct {
	mock.Mock
}

func (m *MockProvider) Search(ctx context.Context, q catalog.Query) (*catalog.Result, error) {
	args := m.Called(ctx, q)
	if res := args.Get(0); res != nil {
		return res.(*catalog.Result), args.Error(1)
	}
	return nil, args.Error(1)
}

type testAPI struct {
	router   http.Handler
	db       *memory.Database
	books    *memory.BookStore
	provider *MockProvider
}

func newTestAPI(t *testing.T) *testAPI {
	t.Helper()

	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	db := memory.NewDatabase()
	users := memory.NewUserStore(db)
	books := memory.NewBookStore(db)
	library := memory.NewLibraryStore(db)
	requests := memory.NewRequestStore(db)
	provider := &MockProvider{}

	userService, err := service.NewUserService(users, auth.NewBcryptHasher(bcrypt.MinCost), log)
	require.NoError(t, err)
	libraryService, err := service.NewLibraryService(users, books, library, log)
	require.NoError(t, err)
	requestService, err := service.NewRequestService(service.RequestDeps{
		Users:     users,
		Library:   library,
		Requests:  requests,
		Locker:    service.NewKeyedMutex(),
		Events:    events.NewInMemoryEventEmitter(log),
		RetryBase: time.Millisecond,
	}, log)
	require.NoError(t, err)
	catalogService, err := service.NewCatalogService(books, provider, log)
	require.NoError(t, err)

	r := chi.NewRouter()
	r.Use(middleware.NewTraceMiddleware(log))
	RegisterRoutes(r, Handlers{
		Users:    NewUserHandler(userService, libraryService, log),
		Requests: NewRequestHandler(requestService, log),
		Catalog:  NewCatalogHandler(catalogService, log),
	})

	return &testAPI{router: r, db: db, books: books, provider: provider}
}

func (a *testAPI) do(t *testing.T, method, path string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var reader io.Reader
	switch b := body.(type) {
	case nil:
	case string:
		reader = bytes.NewBufferString(b)
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	if reader != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	rec := httptest.NewRecorder()
	a.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), "body: %s", rec.Body.String())
	return v
}

func errorMessage(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	resp := decode[struct {
		Error   string `json:"error"`
		TraceID string `json:"trace_id"`
	}](t, rec)
	require.NotEmpty(t, resp.TraceID, "error responses carry the trace id")
	return resp.Error
}

func userBody(username string) CreateUserRequest {
	return CreateUserRequest{
		FirstName:   "Jane",
		LastName:    "Reader",
		Email:       username + "@example.com",
		Username:    username,
		Password:    "correct-horse",
		PhoneNumber: "555-0100",
		Address: AddressPayload{
			Street: "1 Main St",
			City:   "Springfield",
			State:  "IL",
			Zip:    "62701",
		},
	}
}

func (a *testAPI) createUser(t *testing.T, username string) UserResponse {
	t.Helper()
	rec := a.do(t, http.MethodPost, "/users", userBody(username))
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[UserResponse](t, rec)
}

func (a *testAPI) catalogBook(t *testing.T, title, isbn string) *domain.Book {
	t.Helper()
	book, err := domain.NewBook(title, []string{"Frank Herbert"}, []string{isbn}, nil, "")
	require.NoError(t, err)
	saved, _, err := a.books.UpsertByISBN(context.Background(), book)
	require.NoError(t, err)
	return saved
}

func (a *testAPI) addBook(t *testing.T, userID, isbn string) LibraryEntryResponse {
	t.Helper()
	rec := a.do(t, http.MethodPost, "/users/"+userID+"/books", AddBookRequest{ISBN: isbn})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	return decode[LibraryEntryResponse](t, rec)
}
