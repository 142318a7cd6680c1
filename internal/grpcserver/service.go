// Package grpcserver exposes the ofmock operations over gRPC. Requests and
// responses are google.protobuf.Struct messages carrying the same JSON shapes
// as the REST API.
package grpcserver

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

// ServiceName is the fully qualified gRPC service name.
const ServiceName = "ofmock.v1.MockService"

const (
	methodListContracts    = "/" + ServiceName + "/ListContracts"
	methodGenerateRecords  = "/" + ServiceName + "/GenerateRecords"
	methodFindCorrelated   = "/" + ServiceName + "/FindCorrelated"
	methodCorrelationGraph = "/" + ServiceName + "/CorrelationGraph"
	methodBuildTree        = "/" + ServiceName + "/BuildTree"
)

// MockServiceServer is the server API for ofmock.v1.MockService.
type MockServiceServer interface {
	ListContracts(context.Context, *structpb.Struct) (*structpb.Struct, error)
	GenerateRecords(context.Context, *structpb.Struct) (*structpb.Struct, error)
	FindCorrelated(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CorrelationGraph(context.Context, *structpb.Struct) (*structpb.Struct, error)
	BuildTree(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// UnimplementedMockServiceServer can be embedded to have forward compatible implementations.
type UnimplementedMockServiceServer struct{}

func (UnimplementedMockServiceServer) ListContracts(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Errorf(codes.Unimplemented, "method ListContracts not implemented")
}
func (UnimplementedMockServiceServer) GenerateRecords(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Errorf(codes.Unimplemented, "method GenerateRecords not implemented")
}
func (UnimplementedMockServiceServer) FindCorrelated(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Errorf(codes.Unimplemented, "method FindCorrelated not implemented")
}
func (UnimplementedMockServiceServer) CorrelationGraph(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Errorf(codes.Unimplemented, "method CorrelationGraph not implemented")
}
func (UnimplementedMockServiceServer) BuildTree(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Errorf(codes.Unimplemented, "method BuildTree not implemented")
}

// RegisterMockServiceServer registers srv on s.
func RegisterMockServiceServer(s grpc.ServiceRegistrar, srv MockServiceServer) {
	s.RegisterService(&MockServiceDesc, srv)
}

type unaryCall func(srv MockServiceServer, ctx context.Context, in *structpb.Struct) (*structpb.Struct, error)

func unaryHandler(fullMethod string, call unaryCall) grpc.MethodHandler {
	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(MockServiceServer), ctx, in)
		}
		info := &grpc.UnaryServerInfo{
			Server:     srv,
			FullMethod: fullMethod,
		}
		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(MockServiceServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, info, handler)
	}
}

// MockServiceDesc is the grpc.ServiceDesc for ofmock.v1.MockService.
var MockServiceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*MockServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: "ListContracts",
			Handler:    unaryHandler(methodListContracts, MockServiceServer.ListContracts),
		},
		{
			MethodName: "GenerateRecords",
			Handler:    unaryHandler(methodGenerateRecords, MockServiceServer.GenerateRecords),
		},
		{
			MethodName: "FindCorrelated",
			Handler:    unaryHandler(methodFindCorrelated, MockServiceServer.FindCorrelated),
		},
		{
			MethodName: "CorrelationGraph",
			Handler:    unaryHandler(methodCorrelationGraph, MockServiceServer.CorrelationGraph),
		},
		{
			MethodName: "BuildTree",
			Handler:    unaryHandler(methodBuildTree, MockServiceServer.BuildTree),
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "ofmock/v1/mock.proto",
}

// Client calls ofmock.v1.MockService.
type Client struct {
	cc grpc.ClientConnInterface
}

// NewClient wraps an established connection.
func NewClient(cc grpc.ClientConnInterface) *Client {
	return &Client{cc: cc}
}

func (c *Client) invoke(ctx context.Context, method string, in map[string]any, opts ...grpc.CallOption) (map[string]any, error) {
	req, err := structpb.NewStruct(in)
	if err != nil {
		return nil, err
	}
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, method, req, out, opts...); err != nil {
		return nil, err
	}
	return out.AsMap(), nil
}

func (c *Client) ListContracts(ctx context.Context, in map[string]any, opts ...grpc.CallOption) (map[string]any, error) {
	return c.invoke(ctx, methodListContracts, in, opts...)
}

func (c *Client) GenerateRecords(ctx context.Context, in map[string]any, opts ...grpc.CallOption) (map[string]any, error) {
	return c.invoke(ctx, methodGenerateRecords, in, opts...)
}

func (c *Client) FindCorrelated(ctx context.Context, in map[string]any, opts ...grpc.CallOption) (map[string]any, error) {
	return c.invoke(ctx, methodFindCorrelated, in, opts...)
}

func (c *Client) CorrelationGraph(ctx context.Context, in map[string]any, opts ...grpc.CallOption) (map[string]any, error) {
	return c.invoke(ctx, methodCorrelationGraph, in, opts...)
}

func (c *Client) BuildTree(ctx context.Context, in map[string]any, opts ...grpc.CallOption) (map[string]any, error) {
	return c.invoke(ctx, methodBuildTree, in, opts...)
}
