package service

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/imhighyat/book-swap-api/internal/domain"
	"github.com/imhighyat/book-swap-api/internal/events"
	"github.com/imhighyat/book-swap-api/internal/platform/memory"
	"github.com/imhighyat/book-swap-api/internal/store"
	"github.com/stretchr/testify/require"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// recordingHandler keeps every emitted event.
type recordingHandler struct {
	mu     sync.Mutex
	events []*events.RequestEvent
}

func (h *recordingHandler) HandleEvent(_ context.Context, event *events.RequestEvent) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.events = append(h.events, event)
	return nil
}

func (h *recordingHandler) types() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, 0, len(h.events))
	for _, e := range h.events {
		out = append(out, e.Type)
	}
	return out
}

// faultyLibrary fails selected transfers once.
type faultyLibrary struct {
	store.LibraryStore
	mu           sync.Mutex
	failTransfer map[uuid.UUID]error
}

func (f *faultyLibrary) TransferEntry(
	ctx context.Context,
	entryID, from, to uuid.UUID,
	pending bool,
) (*domain.LibraryEntry, error) {
	f.mu.Lock()
	err, ok := f.failTransfer[entryID]
	delete(f.failTransfer, entryID)
	f.mu.Unlock()
	if ok {
		return nil, err
	}
	return f.LibraryStore.TransferEntry(ctx, entryID, from, to, pending)
}

// faultyRequests fails the next failMarkSettled calls to MarkSettled.
type faultyRequests struct {
	store.RequestStore
	mu              sync.Mutex
	failMarkSettled int
}

func (f *faultyRequests) MarkSettled(ctx context.Context, id uuid.UUID, version int64) (*domain.Request, error) {
	f.mu.Lock()
	fail := f.failMarkSettled > 0
	if fail {
		f.failMarkSettled--
	}
	f.mu.Unlock()
	if fail {
		return nil, fmt.Errorf("connection reset")
	}
	return f.RequestStore.MarkSettled(ctx, id, version)
}

type fixture struct {
	db       *memory.Database
	users    *memory.UserStore
	books    *memory.BookStore
	library  *faultyLibrary
	requests *faultyRequests
	recorder *recordingHandler
	deps     RequestDeps
	svc      RequestService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	db := memory.NewDatabase()
	f := &fixture{
		db:       db,
		users:    memory.NewUserStore(db),
		books:    memory.NewBookStore(db),
		library:  &faultyLibrary{LibraryStore: memory.NewLibraryStore(db), failTransfer: map[uuid.UUID]error{}},
		requests: &faultyRequests{RequestStore: memory.NewRequestStore(db)},
		recorder: &recordingHandler{},
	}

	emitter := events.NewInMemoryEventEmitter(discardLogger())
	emitter.RegisterHandler(f.recorder)

	f.deps = RequestDeps{
		Users:          f.users,
		Library:        f.library,
		Requests:       f.requests,
		Locker:         NewKeyedMutex(),
		Events:         emitter,
		ReleaseRetries: 2,
		RetryBase:      time.Millisecond,
	}

	svc, err := NewRequestService(f.deps, discardLogger())
	require.NoError(t, err)
	f.svc = svc
	return f
}

func (f *fixture) user(t *testing.T, username string) *domain.User {
	t.Helper()

	u, err := domain.NewUser("Test", "User", username+"@example.com", username, "password123", "555-0100",
		domain.Address{Street: "1 Main St", City: "Springfield", State: "IL", Zip: "62701"})
	require.NoError(t, err)
	u.PasswordHash = "hash"
	require.NoError(t, f.users.Create(context.Background(), u))
	return u
}

func (f *fixture) entry(t *testing.T, owner *domain.User, title string) *domain.LibraryEntry {
	t.Helper()

	book, err := domain.NewBook(title, []string{"Some Author"}, nil, nil, "")
	require.NoError(t, err)
	stored, _, err := f.books.UpsertByISBN(context.Background(), book)
	require.NoError(t, err)

	entry, err := domain.NewLibraryEntry(owner.ID, stored.ID)
	require.NoError(t, err)
	require.NoError(t, f.library.AddEntry(context.Background(), entry))
	return entry
}

func (f *fixture) getEntry(t *testing.T, id uuid.UUID) *domain.LibraryEntry {
	t.Helper()
	e, err := f.library.GetEntry(context.Background(), id)
	require.NoError(t, err)
	return e
}

func (f *fixture) getRequest(t *testing.T, id uuid.UUID) *domain.Request {
	t.Helper()
	r, err := f.requests.GetByID(context.Background(), id)
	require.NoError(t, err)
	return r
}

// requireFlagInvariant checks that every listed entry is flagged exactly
// when a pending request names it as the requested entry.
func (f *fixture) requireFlagInvariant(t *testing.T, entries ...*domain.LibraryEntry) {
	t.Helper()
	ctx := context.Background()

	for _, e := range entries {
		current := f.getEntry(t, e.ID)
		pending, err := f.requests.FindPendingByEntry(ctx, e.ID)
		require.NoError(t, err)

		want := false
		for _, r := range pending {
			if r.RequestedEntryID == e.ID {
				want = true
			}
		}
		require.Equal(t, want, current.HasPendingRequest, "pending flag of entry %s", e.ID)
	}
}

func ptr[T any](v T) *T { return &v }
