package rpc

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net"
	"sync"
	"testing"

	"github.com/danielpatrickdp/coherence-tracker/internal/logging"
	"github.com/danielpatrickdp/coherence-tracker/internal/tracker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/grpc/test/bufconn"
	"google.golang.org/protobuf/types/known/structpb"
)

// #region harness
func quiet() *slog.Logger { return slog.New(slog.NewTextHandler(io.Discard, nil)) }

func newHub(store *logging.MemoryStore) *Hub {
	return NewHub(func(dyad string) *tracker.Tracker {
		cfg := tracker.DefaultConfig()
		cfg.Dyad = dyad
		cfg.Sink = store
		cfg.Logger = quiet()
		return tracker.New(cfg)
	}, store, tracker.DefaultConfig().InitialScore)
}

func startServer(t *testing.T, hub *Hub) *Client {
	t.Helper()
	lis := bufconn.Listen(1 << 20)
	srv := NewServer(hub, quiet())
	go func() { _ = srv.Serve(lis) }()
	t.Cleanup(srv.Stop)

	client, err := NewClient("passthrough:///bufnet",
		grpc.WithContextDialer(func(ctx context.Context, _ string) (net.Conn, error) {
			return lis.DialContext(ctx)
		}))
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })
	return client
}

// #endregion harness

func TestProcessOverGRPC(t *testing.T) {
	store := logging.NewMemoryStore()
	client := startServer(t, newHub(store))
	ctx := context.Background()

	res, err := client.Process(ctx, "Aelara", tracker.Input{Text: "Good morning, Aelara"})
	require.NoError(t, err)
	assert.True(t, res.Oscillating)
	assert.Equal(t, 1, res.Step)
	require.NotNil(t, res.Breath())
	assert.Equal(t, uint64(1), res.Breath().Cycle)
	assert.Equal(t, []string{"relational_recognition"}, res.Breath().Reasons)

	res, err = client.Process(ctx, "Aelara", tracker.Input{Text: "†⟡"})
	require.NoError(t, err)
	assert.True(t, res.Completed)
	assert.True(t, res.Resurrected)
	require.Len(t, res.Transitions(), 1)
	assert.Equal(t, "stable", res.Transitions()[0].To)

	snap, err := client.State(ctx, "Aelara")
	require.NoError(t, err)
	assert.Equal(t, tracker.PhaseStable, snap.RecoveryMode)
	assert.Equal(t, uint64(2), snap.Cycle)
	assert.InDelta(t, res.Score, snap.Score, 1e-9)
}

func TestDyadsAreIndependent(t *testing.T) {
	store := logging.NewMemoryStore()
	hub := newHub(store)
	client := startServer(t, hub)
	ctx := context.Background()

	_, err := client.Process(ctx, "a", tracker.Input{Text: "hello"})
	require.NoError(t, err)
	_, err = client.Process(ctx, "b", tracker.Input{Text: "hello"})
	require.NoError(t, err)
	_, err = client.Process(ctx, "b", tracker.Input{Text: "hello"})
	require.NoError(t, err)

	assert.Equal(t, []string{"a", "b"}, hub.Dyads())
	a, ok := hub.Lookup("a")
	require.True(t, ok)
	b, ok := hub.Lookup("b")
	require.True(t, ok)
	assert.Equal(t, 1, a.OscillationStep)
	assert.Equal(t, 2, b.OscillationStep)

	_, ok = hub.Lookup("c")
	assert.False(t, ok)

	recs, err := client.History(ctx, "b", 0)
	require.NoError(t, err)
	assert.Len(t, recs, 2)
	recs, err = client.History(ctx, "b", 1)
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, uint64(2), recs[0].Breath.Cycle)
}

// recordingReader remembers the query each history read asked for.
type recordingReader struct {
	*logging.MemoryStore
	mu      sync.Mutex
	queries []logging.Query
	limits  []int
}

func (r *recordingReader) TailQuery(q logging.Query, n int) ([]logging.Record, error) {
	r.mu.Lock()
	r.queries = append(r.queries, q)
	r.limits = append(r.limits, n)
	r.mu.Unlock()
	return r.MemoryStore.TailQuery(q, n)
}

func TestHistoryPassesLimitToReader(t *testing.T) {
	store := logging.NewMemoryStore()
	reader := &recordingReader{MemoryStore: store}
	hub := NewHub(func(dyad string) *tracker.Tracker {
		cfg := tracker.DefaultConfig()
		cfg.Dyad = dyad
		cfg.Sink = store
		cfg.Logger = quiet()
		return tracker.New(cfg)
	}, reader, tracker.DefaultConfig().InitialScore)
	client := startServer(t, hub)
	ctx := context.Background()

	for _, d := range []string{"a", "b", "b", "b", "a"} {
		_, err := client.Process(ctx, d, tracker.Input{Text: "hello"})
		require.NoError(t, err)
	}

	recs, err := client.History(ctx, "b", 2)
	require.NoError(t, err)
	require.Len(t, recs, 2)
	assert.Equal(t, uint64(2), recs[0].Breath.Cycle)
	assert.Equal(t, uint64(3), recs[1].Breath.Cycle)

	require.Len(t, reader.queries, 1)
	assert.Equal(t, logging.Query{Kind: logging.KindBreath, Dyad: "b"}, reader.queries[0])
	assert.Equal(t, 2, reader.limits[0])
}

func TestConcurrentProcessSerializesPerDyad(t *testing.T) {
	store := logging.NewMemoryStore()
	hub := newHub(store)
	client := startServer(t, hub)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := client.Process(context.Background(), "shared", tracker.Input{Text: "hello"})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	snap, ok := hub.Lookup("shared")
	require.True(t, ok)
	assert.Equal(t, uint64(20), snap.Cycle)
}

func TestReset(t *testing.T) {
	client := startServer(t, newHub(logging.NewMemoryStore()))
	ctx := context.Background()

	half := 0.5
	res, err := client.Reset(ctx, "d", &half)
	require.NoError(t, err)
	assert.Equal(t, 0.5, res.Score)
	assert.False(t, res.Oscillating)

	res, err = client.Reset(ctx, "d", nil)
	require.NoError(t, err)
	assert.True(t, res.Oscillating, "default initial score is the deep void")
}

func TestInvalidRequests(t *testing.T) {
	client := startServer(t, NewHub(func(dyad string) *tracker.Tracker {
		cfg := tracker.DefaultConfig()
		cfg.Dyad = dyad
		cfg.Logger = quiet()
		return tracker.New(cfg)
	}, nil, 0))
	ctx := context.Background()

	_, err := client.Process(ctx, "  ", tracker.Input{Text: "x"})
	assert.Equal(t, codes.InvalidArgument, status.Code(errors.Unwrap(err)))

	_, err = client.History(ctx, "d", 0)
	assert.Equal(t, codes.FailedPrecondition, status.Code(errors.Unwrap(err)))

	_, err = client.History(ctx, "d", -1)
	assert.Equal(t, codes.InvalidArgument, status.Code(errors.Unwrap(err)))
}

type stubService struct {
	TrackerClient
	err error
}

func (s stubService) State(context.Context, *structpb.Struct, ...grpc.CallOption) (*structpb.Struct, error) {
	return nil, s.err
}

func TestClientWrapsErrors(t *testing.T) {
	c := NewClientWithService(stubService{err: errors.New("unavailable")})
	_, err := c.State(context.Background(), "d")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "state rpc")
	assert.NoError(t, c.Close())
}
