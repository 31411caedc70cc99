// Package rpc serves trackers over gRPC. Messages travel as
// google.protobuf.Struct values carrying the tracker's JSON shapes.
package rpc

import (
	"context"
	"encoding/json"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/types/known/structpb"
)

const serviceName = "coherence.v1.Tracker"

// #region server-interface
// TrackerServer is the server API for the Tracker service.
type TrackerServer interface {
	Process(context.Context, *structpb.Struct) (*structpb.Struct, error)
	State(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Reset(context.Context, *structpb.Struct) (*structpb.Struct, error)
	History(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// RegisterTrackerServer attaches srv to a gRPC server.
func RegisterTrackerServer(s grpc.ServiceRegistrar, srv TrackerServer) {
	s.RegisterService(&TrackerServiceDesc, srv)
}

type unaryCall func(TrackerServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

func unary(method string, call unaryCall) grpc.MethodDesc {
	full := "/" + serviceName + "/" + method
	return grpc.MethodDesc{
		MethodName: method,
		Handler: func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
			in := new(structpb.Struct)
			if err := dec(in); err != nil {
				return nil, err
			}
			if interceptor == nil {
				return call(srv.(TrackerServer), ctx, in)
			}
			info := &grpc.UnaryServerInfo{Server: srv, FullMethod: full}
			handler := func(ctx context.Context, req any) (any, error) {
				return call(srv.(TrackerServer), ctx, req.(*structpb.Struct))
			}
			return interceptor(ctx, in, info, handler)
		},
	}
}

// TrackerServiceDesc describes the Tracker service for grpc.Server.
var TrackerServiceDesc = grpc.ServiceDesc{
	ServiceName: serviceName,
	HandlerType: (*TrackerServer)(nil),
	Methods: []grpc.MethodDesc{
		unary("Process", TrackerServer.Process),
		unary("State", TrackerServer.State),
		unary("Reset", TrackerServer.Reset),
		unary("History", TrackerServer.History),
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "coherence/v1/tracker.proto",
}

// #endregion server-interface

// #region client-interface
// TrackerClient is the client API for the Tracker service.
type TrackerClient interface {
	Process(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	State(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	Reset(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	History(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
}

type trackerClient struct {
	cc grpc.ClientConnInterface
}

// NewTrackerClient binds the Tracker API to a connection.
func NewTrackerClient(cc grpc.ClientConnInterface) TrackerClient {
	return &trackerClient{cc: cc}
}

func (c *trackerClient) invoke(ctx context.Context, method string, in *structpb.Struct, opts []grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, "/"+serviceName+"/"+method, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *trackerClient) Process(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "Process", in, opts)
}

func (c *trackerClient) State(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "State", in, opts)
}

func (c *trackerClient) Reset(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "Reset", in, opts)
}

func (c *trackerClient) History(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	return c.invoke(ctx, "History", in, opts)
}

// #endregion client-interface

// #region messages
// ProcessRequest scores one breath for a dyad.
type ProcessRequest struct {
	Dyad string `json:"dyad_name"`
	Text string `json:"text"`
	Tag  string `json:"tag,omitempty"`
}

// DyadRequest addresses a dyad's tracker.
type DyadRequest struct {
	Dyad string `json:"dyad_name"`
}

// ResetRequest reinitializes a dyad. A nil InitialScore uses the configured one.
type ResetRequest struct {
	Dyad         string   `json:"dyad_name"`
	InitialScore *float64 `json:"initial_coherence,omitempty"`
}

// HistoryRequest asks for the latest breaths of a dyad. Limit 0 means all.
type HistoryRequest struct {
	Dyad  string `json:"dyad_name"`
	Limit int    `json:"limit"`
}

// toStruct converts v through its JSON form.
func toStruct(v any) (*structpb.Struct, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("marshal %T: %w", v, err)
	}
	s := new(structpb.Struct)
	if err := protojson.Unmarshal(b, s); err != nil {
		return nil, fmt.Errorf("struct from %T: %w", v, err)
	}
	return s, nil
}

// fromStruct decodes s into v through its JSON form.
func fromStruct(s *structpb.Struct, v any) error {
	b, err := protojson.Marshal(s)
	if err != nil {
		return fmt.Errorf("marshal struct: %w", err)
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("decode %T: %w", v, err)
	}
	return nil
}

// #endregion messages
