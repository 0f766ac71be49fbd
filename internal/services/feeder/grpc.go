package feeder

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/LeonardoBeccarini/feeder/internal/model/messages"
)

// The control service carries JSON-shaped documents in google.protobuf.Struct
// so the CLI and the API share the same field names.
const (
	ControlServiceName = "feeder.v1.FeederControl"

	methodFeedNow        = "/feeder.v1.FeederControl/FeedNow"
	methodGetStatus      = "/feeder.v1.FeederControl/GetStatus"
	methodUpdateSchedule = "/feeder.v1.FeederControl/UpdateSchedule"
)

type ControlServer interface {
	FeedNow(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	GetStatus(context.Context, *emptypb.Empty) (*structpb.Struct, error)
	UpdateSchedule(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

func RegisterControlServer(s grpc.ServiceRegistrar, srv ControlServer) {
	s.RegisterService(&controlServiceDesc, srv)
}

func _Control_FeedNow_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ControlServer).FeedNow(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodFeedNow}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(ControlServer).FeedNow(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func _Control_GetStatus_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(emptypb.Empty)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ControlServer).GetStatus(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodGetStatus}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(ControlServer).GetStatus(ctx, req.(*emptypb.Empty))
	}
	return interceptor(ctx, in, info, handler)
}

func _Control_UpdateSchedule_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(ControlServer).UpdateSchedule(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: methodUpdateSchedule}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(ControlServer).UpdateSchedule(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

var controlServiceDesc = grpc.ServiceDesc{
	ServiceName: ControlServiceName,
	HandlerType: (*ControlServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "FeedNow", Handler: _Control_FeedNow_Handler},
		{MethodName: "GetStatus", Handler: _Control_GetStatus_Handler},
		{MethodName: "UpdateSchedule", Handler: _Control_UpdateSchedule_Handler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "feeder/v1/control.proto",
}

// ============== Server ==============

// GRPCHandler serves ControlServer on top of a Commander.
type GRPCHandler struct {
	cmd Commander
}

func NewGRPCHandler(cmd Commander) *GRPCHandler { return &GRPCHandler{cmd: cmd} }

// NewGRPCServer registers the control service and the standard health
// service, reporting SERVING for both.
func NewGRPCServer(cmd Commander, opts ...grpc.ServerOption) (*grpc.Server, *health.Server) {
	s := grpc.NewServer(opts...)
	RegisterControlServer(s, NewGRPCHandler(cmd))
	hs := health.NewServer()
	healthpb.RegisterHealthServer(s, hs)
	hs.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	hs.SetServingStatus(ControlServiceName, healthpb.HealthCheckResponse_SERVING)
	return s, hs
}

func grpcError(err error) error {
	switch {
	case errors.Is(err, ErrStopped):
		return status.Error(codes.Unavailable, err.Error())
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, context.Canceled):
		return status.FromContextError(err).Err()
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

// ============== RPC: FeedNow ==============

// FeedNow returns a CommandResult document. A failed dispense is reported in
// the document, not as an RPC error, so the partial event is not lost.
func (g *GRPCHandler) FeedNow(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	evt, err := g.cmd.FeedNow(ctx)
	if err != nil && evt.ID == "" {
		return nil, grpcError(err)
	}
	res := messages.CommandResult{Command: "feed", OK: err == nil, Feed: &evt}
	if err != nil {
		res.Error = err.Error()
	}
	return toStruct(res)
}

// ============== RPC: GetStatus ==============

func (g *GRPCHandler) GetStatus(_ context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	return toStruct(g.cmd.Status())
}

// ============== RPC: UpdateSchedule ==============

func (g *GRPCHandler) UpdateSchedule(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	upd := updateFromMap(in.AsMap())
	out, err := g.cmd.UpdateSchedule(ctx, upd)
	if err != nil && out.Fields == nil {
		return nil, grpcError(err)
	}
	res := messages.CommandResult{RequestID: upd.RequestID, Command: "schedule", Update: &out}
	switch {
	case err != nil:
		res.Error = err.Error()
	case out.Rejected():
		res.Error = "some fields were rejected"
	default:
		res.OK = true
	}
	return toStruct(res)
}

func toStruct(v any) (*structpb.Struct, error) {
	b, err := json.Marshal(v)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	var m map[string]any
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	s, err := structpb.NewStruct(m)
	if err != nil {
		return nil, status.Error(codes.Internal, err.Error())
	}
	return s, nil
}

func fromStruct(s *structpb.Struct, v any) error {
	b, err := json.Marshal(s.AsMap())
	if err != nil {
		return err
	}
	return json.Unmarshal(b, v)
}

// ============== Client ==============

// ControlClient is the CLI side of the control service.
type ControlClient struct {
	cc grpc.ClientConnInterface
}

func NewControlClient(cc grpc.ClientConnInterface) *ControlClient {
	return &ControlClient{cc: cc}
}

// DialControl opens a plaintext connection; the service is meant for the
// local network.
func DialControl(addr string) (*grpc.ClientConn, error) {
	cc, err := grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", addr, err)
	}
	return cc, nil
}

func (c *ControlClient) FeedNow(ctx context.Context) (messages.CommandResult, error) {
	var res messages.CommandResult
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, methodFeedNow, &emptypb.Empty{}, out); err != nil {
		return res, err
	}
	err := fromStruct(out, &res)
	return res, err
}

func (c *ControlClient) GetStatus(ctx context.Context) (messages.Status, error) {
	var st messages.Status
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, methodGetStatus, &emptypb.Empty{}, out); err != nil {
		return st, err
	}
	err := fromStruct(out, &st)
	return st, err
}

func (c *ControlClient) UpdateSchedule(ctx context.Context, upd messages.ConfigUpdate) (messages.CommandResult, error) {
	var res messages.CommandResult
	in, err := structpb.NewStruct(map[string]any{
		"request_id":         upd.RequestID,
		"time":               upd.Time,
		"quantity":           upd.Quantity,
		"dispenseDurationMs": upd.DispenseDurationMs,
	})
	if err != nil {
		return res, err
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, methodUpdateSchedule, in, out); err != nil {
		return res, err
	}
	err = fromStruct(out, &res)
	return res, err
}
