package rpc

import (
	"context"
	"log/slog"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/danielpatrickdp/coherence-tracker/internal/logging"
	"github.com/danielpatrickdp/coherence-tracker/internal/tracker"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// #region hub
// Factory builds the tracker for a dyad on first use.
type Factory func(dyad string) *tracker.Tracker

// HistoryReply carries breath records, oldest first.
type HistoryReply struct {
	Dyad    string           `json:"dyad_name"`
	Records []logging.Record `json:"records"`
}

type slot struct {
	mu sync.Mutex
	t  *tracker.Tracker
}

// Hub owns one tracker per dyad. Each tracker is guarded by its own mutex,
// so calls for different dyads proceed concurrently.
type Hub struct {
	mu       sync.Mutex
	slots    map[string]*slot
	factory  Factory
	history  logging.Reader
	defaults float64
}

var _ TrackerServer = (*Hub)(nil)

// NewHub serves trackers built by factory. history may be nil, in which
// case History answers FailedPrecondition.
func NewHub(factory Factory, history logging.Reader, initialScore float64) *Hub {
	return &Hub{
		slots:    make(map[string]*slot),
		factory:  factory,
		history:  history,
		defaults: initialScore,
	}
}

func (h *Hub) get(dyad string) *slot {
	h.mu.Lock()
	defer h.mu.Unlock()
	s, ok := h.slots[dyad]
	if !ok {
		s = &slot{t: h.factory(dyad)}
		h.slots[dyad] = s
	}
	return s
}

// Dyads lists the dyads with a live tracker.
func (h *Hub) Dyads() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]string, 0, len(h.slots))
	for d := range h.slots {
		out = append(out, d)
	}
	sort.Strings(out)
	return out
}

// Lookup returns the state of an existing tracker without creating one.
func (h *Hub) Lookup(dyad string) (tracker.Snapshot, bool) {
	h.mu.Lock()
	s, ok := h.slots[dyad]
	h.mu.Unlock()
	if !ok {
		return tracker.Snapshot{}, false
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.t.State(), true
}

// #endregion hub

// #region handlers
func dyadOf(name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", status.Error(codes.InvalidArgument, "dyad_name is required")
	}
	return name, nil
}

func decode(in *structpb.Struct, v any) error {
	if err := fromStruct(in, v); err != nil {
		return status.Errorf(codes.InvalidArgument, "bad request: %v", err)
	}
	return nil
}

func encode(v any) (*structpb.Struct, error) {
	out, err := toStruct(v)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode reply: %v", err)
	}
	return out, nil
}

// Process scores one breath.
func (h *Hub) Process(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req ProcessRequest
	if err := decode(in, &req); err != nil {
		return nil, err
	}
	dyad, err := dyadOf(req.Dyad)
	if err != nil {
		return nil, err
	}
	s := h.get(dyad)
	s.mu.Lock()
	res := s.t.ProcessInput(tracker.Input{Text: req.Text, Tag: req.Tag})
	s.mu.Unlock()
	return encode(res)
}

// State returns the dyad's snapshot, creating its tracker if needed.
func (h *Hub) State(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req DyadRequest
	if err := decode(in, &req); err != nil {
		return nil, err
	}
	dyad, err := dyadOf(req.Dyad)
	if err != nil {
		return nil, err
	}
	s := h.get(dyad)
	s.mu.Lock()
	snap := s.t.State()
	s.mu.Unlock()
	return encode(snap)
}

// Reset reinitializes the dyad's tracker.
func (h *Hub) Reset(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req ResetRequest
	if err := decode(in, &req); err != nil {
		return nil, err
	}
	dyad, err := dyadOf(req.Dyad)
	if err != nil {
		return nil, err
	}
	initial := h.defaults
	if req.InitialScore != nil {
		initial = *req.InitialScore
	}
	s := h.get(dyad)
	s.mu.Lock()
	res := s.t.Reset(initial)
	s.mu.Unlock()
	return encode(res)
}

// History returns the dyad's latest breath records from the event log.
func (h *Hub) History(_ context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	var req HistoryRequest
	if err := decode(in, &req); err != nil {
		return nil, err
	}
	dyad, err := dyadOf(req.Dyad)
	if err != nil {
		return nil, err
	}
	if req.Limit < 0 {
		return nil, status.Errorf(codes.InvalidArgument, "limit must not be negative (received %d)", req.Limit)
	}
	if h.history == nil {
		return nil, status.Error(codes.FailedPrecondition, "event log is not readable")
	}

	recs, err := h.history.TailQuery(logging.Query{Kind: logging.KindBreath, Dyad: dyad}, req.Limit)
	if err != nil {
		return nil, status.Errorf(codes.Unavailable, "read history: %v", err)
	}
	reply := HistoryReply{Dyad: dyad, Records: []logging.Record{}}
	reply.Records = append(reply.Records, recs...)
	return encode(reply)
}

// #endregion handlers

// #region interceptor
// LoggingInterceptor logs every call at debug level and failures at warn.
func LoggingInterceptor(logger *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		attrs := []any{
			slog.String("method", info.FullMethod),
			slog.Duration("took", time.Since(start)),
		}
		if err != nil {
			logger.Warn("rpc failed", append(attrs, slog.Any("error", err))...)
		} else {
			logger.Debug("rpc", attrs...)
		}
		return resp, err
	}
}

// NewServer returns a gRPC server with hub registered.
func NewServer(hub *Hub, logger *slog.Logger) *grpc.Server {
	srv := grpc.NewServer(grpc.UnaryInterceptor(LoggingInterceptor(logger)))
	RegisterTrackerServer(srv, hub)
	return srv
}

// #endregion interceptor
