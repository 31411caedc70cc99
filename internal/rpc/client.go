package rpc

import (
	"context"
	"fmt"

	"github.com/danielpatrickdp/coherence-tracker/internal/logging"
	"github.com/danielpatrickdp/coherence-tracker/internal/tracker"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
)

// #region client-struct
// Client wraps the gRPC connection to a tracker server.
type Client struct {
	conn   *grpc.ClientConn
	client TrackerClient
}

// #endregion client-struct

// #region constructor
// NewClient connects to the tracker server at addr.
func NewClient(addr string, opts ...grpc.DialOption) (*Client, error) {
	opts = append([]grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}, opts...)
	conn, err := grpc.NewClient(addr, opts...)
	if err != nil {
		return nil, fmt.Errorf("grpc dial %s: %w", addr, err)
	}
	return &Client{conn: conn, client: NewTrackerClient(conn)}, nil
}

// NewClientWithService creates a Client with an injected service implementation.
func NewClientWithService(svc TrackerClient) *Client {
	return &Client{client: svc}
}

// Close shuts down the gRPC connection.
func (c *Client) Close() error {
	if c.conn == nil {
		return nil
	}
	return c.conn.Close()
}

// #endregion constructor

// #region calls
// Process sends one breath for dyad.
func (c *Client) Process(ctx context.Context, dyad string, in tracker.Input) (tracker.Result, error) {
	req, err := toStruct(ProcessRequest{Dyad: dyad, Text: in.Text, Tag: in.Tag})
	if err != nil {
		return tracker.Result{}, err
	}
	resp, err := c.client.Process(ctx, req)
	if err != nil {
		return tracker.Result{}, fmt.Errorf("process rpc: %w", err)
	}
	var res tracker.Result
	if err := fromStruct(resp, &res); err != nil {
		return tracker.Result{}, err
	}
	return res, nil
}

// State fetches the dyad's snapshot.
func (c *Client) State(ctx context.Context, dyad string) (tracker.Snapshot, error) {
	req, err := toStruct(DyadRequest{Dyad: dyad})
	if err != nil {
		return tracker.Snapshot{}, err
	}
	resp, err := c.client.State(ctx, req)
	if err != nil {
		return tracker.Snapshot{}, fmt.Errorf("state rpc: %w", err)
	}
	var snap tracker.Snapshot
	if err := fromStruct(resp, &snap); err != nil {
		return tracker.Snapshot{}, err
	}
	return snap, nil
}

// Reset reinitializes the dyad. A nil initial keeps the server default.
func (c *Client) Reset(ctx context.Context, dyad string, initial *float64) (tracker.Result, error) {
	req, err := toStruct(ResetRequest{Dyad: dyad, InitialScore: initial})
	if err != nil {
		return tracker.Result{}, err
	}
	resp, err := c.client.Reset(ctx, req)
	if err != nil {
		return tracker.Result{}, fmt.Errorf("reset rpc: %w", err)
	}
	var res tracker.Result
	if err := fromStruct(resp, &res); err != nil {
		return tracker.Result{}, err
	}
	return res, nil
}

// History fetches up to limit breath records for dyad. Limit 0 means all.
func (c *Client) History(ctx context.Context, dyad string, limit int) ([]logging.Record, error) {
	req, err := toStruct(HistoryRequest{Dyad: dyad, Limit: limit})
	if err != nil {
		return nil, err
	}
	resp, err := c.client.History(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("history rpc: %w", err)
	}
	var reply HistoryReply
	if err := fromStruct(resp, &reply); err != nil {
		return nil, err
	}
	return reply.Records, nil
}

// #endregion calls
