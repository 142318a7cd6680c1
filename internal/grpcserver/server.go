package grpcserver

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/starford/ofmock/internal/apperr"
	"github.com/starford/ofmock/internal/mockservice"
)

// Server implements MockServiceServer on top of a mockservice.Service.
type Server struct {
	UnimplementedMockServiceServer
	svc *mockservice.Service
}

// NewServer creates the MockService implementation.
func NewServer(svc *mockservice.Service) *Server {
	return &Server{svc: svc}
}

// New builds a grpc.Server with MockService and the standard health service
// registered. The returned health server reports SERVING for both.
func New(svc *mockservice.Service, logger *slog.Logger) (*grpc.Server, *health.Server) {
	if logger == nil {
		logger = slog.Default()
	}
	s := grpc.NewServer(
		grpc.ChainUnaryInterceptor(
			loggingInterceptor(logger),
			recoveryInterceptor(logger),
		),
	)
	RegisterMockServiceServer(s, NewServer(svc))

	healthSrv := health.NewServer()
	healthSrv.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	healthSrv.SetServingStatus(ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(s, healthSrv)
	return s, healthSrv
}

func loggingInterceptor(logger *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)
		attrs := []any{
			slog.String("method", info.FullMethod),
			slog.Duration("duration", time.Since(start)),
		}
		if err != nil {
			logger.Warn("grpc: call failed", append(attrs, slog.String("error", err.Error()))...)
		} else {
			logger.Debug("grpc: call", attrs...)
		}
		return resp, err
	}
}

func recoveryInterceptor(logger *slog.Logger) grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (resp any, err error) {
		defer func() {
			if r := recover(); r != nil {
				logger.Error("grpc: panic", slog.String("method", info.FullMethod), slog.Any("panic", r))
				err = status.Error(codes.Internal, "internal server error")
			}
		}()
		return handler(ctx, req)
	}
}

func (s *Server) ListContracts(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	args := in.AsMap()
	items := s.svc.ListContracts(ctx, stringArg(args, "category"))
	return toStruct(map[string]any{"contracts": items, "total": len(items)})
}

func (s *Server) GenerateRecords(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	args := in.AsMap()
	contract, schemaName := stringArg(args, "contract"), stringArg(args, "schema")
	if contract == "" || schemaName == "" {
		return nil, status.Error(codes.InvalidArgument, "contract and schema are required")
	}
	count, err := intArg(args, "count")
	if err != nil {
		return nil, err
	}
	res, err := s.svc.GenerateRecords(ctx, contract, schemaName, count, boolArg(args, "register"))
	if err != nil {
		return nil, toStatus(err)
	}
	return toStruct(res)
}

func (s *Server) FindCorrelated(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	args := in.AsMap()
	contract, field := stringArg(args, "contract"), stringArg(args, "field")
	value, ok := args["value"]
	if contract == "" || field == "" || !ok {
		return nil, status.Error(codes.InvalidArgument, "contract, field and value are required")
	}
	depth, err := intArg(args, "depth")
	if err != nil {
		return nil, err
	}
	if depth == 0 {
		depth = 1
	}
	res, err := s.svc.FindCorrelated(ctx, contract, field, value, depth)
	if err != nil {
		return nil, toStatus(err)
	}
	return toStruct(res)
}

func (s *Server) CorrelationGraph(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	if contract := stringArg(in.AsMap(), "contract"); contract != "" {
		return toStruct(map[string]any{"rules": s.svc.RulesFor(ctx, contract)})
	}
	return toStruct(s.svc.CorrelationGraph(ctx))
}

func (s *Server) BuildTree(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	args := in.AsMap()
	depth, err := intArg(args, "depth")
	if err != nil {
		return nil, err
	}
	fanOut, err := intArg(args, "fan_out")
	if err != nil {
		return nil, err
	}
	tree, err := s.svc.BuildTree(ctx, mockservice.TreeRequest{
		Contract: stringArg(args, "contract"),
		Schema:   stringArg(args, "schema"),
		Field:    stringArg(args, "field"),
		Value:    args["value"],
		Depth:    depth,
		FanOut:   fanOut,
	})
	if err != nil {
		return nil, toStatus(err)
	}
	return toStruct(tree)
}

// toStatus maps domain errors to gRPC status codes.
func toStatus(err error) error {
	switch {
	case errors.Is(err, apperr.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, apperr.ErrAlreadyExists):
		return status.Error(codes.AlreadyExists, err.Error())
	case errors.Is(err, apperr.ErrInvalidArgument),
		errors.Is(err, apperr.ErrMalformedSchema),
		errors.Is(err, apperr.ErrUnsupportedPattern),
		errors.Is(err, apperr.ErrIncompatibleConstraints):
		return status.Error(codes.InvalidArgument, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

// toStruct converts a JSON-serializable value into a Struct, going through
// encoding/json so struct tags shape the payload the same way as the REST API.
func toStruct(v any) (*structpb.Struct, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	var m map[string]any
	if err := json.Unmarshal(raw, &m); err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	out, err := structpb.NewStruct(m)
	if err != nil {
		return nil, status.Errorf(codes.Internal, "encode response: %v", err)
	}
	return out, nil
}

func stringArg(args map[string]any, key string) string {
	s, _ := args[key].(string)
	return s
}

func boolArg(args map[string]any, key string) bool {
	b, _ := args[key].(bool)
	return b
}

// intArg reads a whole number. Struct numbers are float64; absent keys yield 0.
func intArg(args map[string]any, key string) (int, error) {
	v, ok := args[key]
	if !ok || v == nil {
		return 0, nil
	}
	f, ok := v.(float64)
	if !ok || f != float64(int(f)) {
		return 0, status.Error(codes.InvalidArgument, fmt.Sprintf("%s must be an integer", key))
	}
	return int(f), nil
}
