package grpc

import (
	"context"
	"errors"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	pb "github.com/dmitrijs2005/diarysync/internal/proto"
	"github.com/dmitrijs2005/diarysync/internal/server/records"
)

func (s *GRPCServer) PutRecord(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	userID, ok := userIDFromContext(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "unauthorized")
	}

	in, err := pb.RecordFromStruct(req)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	rec, err := s.records.Put(ctx, userID, records.PutInput{
		LocalID: in.LocalID,
		Title:   in.Title,
		Content: in.Content,
		Date:    in.Date,
	})
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}

	return toProto(rec).Struct(), nil
}

func (s *GRPCServer) ListRecords(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	userID, ok := userIDFromContext(ctx)
	if !ok {
		return nil, status.Error(codes.Unauthenticated, "unauthorized")
	}

	in, err := pb.ListRequestFromStruct(req)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	after := records.Cursor{ModifiedAt: in.Since, LocalID: in.AfterLocalID}
	recs, more, err := s.records.List(ctx, userID, after, in.Limit)
	if err != nil {
		return nil, s.toStatus(ctx, err)
	}

	page := pb.RecordPage{Records: make([]pb.Record, 0, len(recs)), More: more}
	for _, r := range recs {
		page.Records = append(page.Records, toProto(r))
	}
	return page.Struct(), nil
}

func (s *GRPCServer) toStatus(ctx context.Context, err error) error {
	if errors.Is(err, records.ErrInvalid) {
		return status.Error(codes.InvalidArgument, err.Error())
	}
	s.logger.Error(ctx, "records service failed", "error", err)
	return status.Error(codes.Internal, "internal error")
}

func toProto(r *records.Record) pb.Record {
	return pb.Record{
		RemoteID:   r.RemoteID,
		LocalID:    r.LocalID,
		Title:      r.Title,
		Content:    r.Content,
		Date:       r.Date,
		ModifiedAt: r.ModifiedAt,
	}
}
