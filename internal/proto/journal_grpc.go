// Package proto declares the diarysync.v1.JournalService gRPC contract. Messages
// are google.protobuf.Struct values; record.go maps them to Go types.
package proto

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"
)

const (
	JournalServiceName                    = "diarysync.v1.JournalService"
	JournalService_PutRecord_FullMethod   = "/diarysync.v1.JournalService/PutRecord"
	JournalService_ListRecords_FullMethod = "/diarysync.v1.JournalService/ListRecords"
)

type JournalServiceClient interface {
	PutRecord(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
	ListRecords(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error)
}

type journalServiceClient struct {
	cc grpc.ClientConnInterface
}

func NewJournalServiceClient(cc grpc.ClientConnInterface) JournalServiceClient {
	return &journalServiceClient{cc: cc}
}

func (c *journalServiceClient) PutRecord(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, JournalService_PutRecord_FullMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *journalServiceClient) ListRecords(ctx context.Context, in *structpb.Struct, opts ...grpc.CallOption) (*structpb.Struct, error) {
	out := new(structpb.Struct)
	if err := c.cc.Invoke(ctx, JournalService_ListRecords_FullMethod, in, out, opts...); err != nil {
		return nil, err
	}
	return out, nil
}

type JournalServiceServer interface {
	PutRecord(context.Context, *structpb.Struct) (*structpb.Struct, error)
	ListRecords(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

// UnimplementedJournalServiceServer can be embedded to keep forward
// compatibility.
type UnimplementedJournalServiceServer struct{}

func (UnimplementedJournalServiceServer) PutRecord(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method PutRecord not implemented")
}

func (UnimplementedJournalServiceServer) ListRecords(context.Context, *structpb.Struct) (*structpb.Struct, error) {
	return nil, status.Error(codes.Unimplemented, "method ListRecords not implemented")
}

func RegisterJournalServiceServer(s grpc.ServiceRegistrar, srv JournalServiceServer) {
	s.RegisterService(&JournalService_ServiceDesc, srv)
}

func _JournalService_PutRecord_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(JournalServiceServer).PutRecord(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: JournalService_PutRecord_FullMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(JournalServiceServer).PutRecord(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

func _JournalService_ListRecords_Handler(srv interface{}, ctx context.Context, dec func(interface{}) error, interceptor grpc.UnaryServerInterceptor) (interface{}, error) {
	in := new(structpb.Struct)
	if err := dec(in); err != nil {
		return nil, err
	}
	if interceptor == nil {
		return srv.(JournalServiceServer).ListRecords(ctx, in)
	}
	info := &grpc.UnaryServerInfo{Server: srv, FullMethod: JournalService_ListRecords_FullMethod}
	handler := func(ctx context.Context, req interface{}) (interface{}, error) {
		return srv.(JournalServiceServer).ListRecords(ctx, req.(*structpb.Struct))
	}
	return interceptor(ctx, in, info, handler)
}

var JournalService_ServiceDesc = grpc.ServiceDesc{
	ServiceName: JournalServiceName,
	HandlerType: (*JournalServiceServer)(nil),
	Methods: []grpc.MethodDesc{
		{MethodName: "PutRecord", Handler: _JournalService_PutRecord_Handler},
		{MethodName: "ListRecords", Handler: _JournalService_ListRecords_Handler},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "diarysync/v1/journal.proto",
}
