package grpc

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"

	"github.com/dmitrijs2005/diarysync/internal/common"
	pb "github.com/dmitrijs2005/diarysync/internal/proto"
	"github.com/dmitrijs2005/diarysync/internal/server/auth"
)

func withToken(tok string) context.Context {
	return metadata.NewIncomingContext(context.Background(), metadata.Pairs(common.AccessTokenHeaderName, tok))
}

func TestInterceptor_UnprotectedMethod_AllowsWithoutToken(t *testing.T) {
	s := newServer(newFakeRecords())

	info := &grpc.UnaryServerInfo{FullMethod: "/pkg.Service/OtherMethod"}
	called := false
	h := func(ctx context.Context, req interface{}) (interface{}, error) {
		called = true
		return "ok", nil
	}

	resp, err := s.accessTokenInterceptor(context.Background(), nil, info, h)
	require.NoError(t, err)
	assert.True(t, called)
	assert.Equal(t, "ok", resp)
}

func TestInterceptor_ValidToken_SetsUserID(t *testing.T) {
	s := newServer(newFakeRecords())
	tok, err := auth.GenerateToken("user-7", s.jwtSecret, time.Hour)
	require.NoError(t, err)

	for _, method := range []string{pb.JournalService_PutRecord_FullMethod, pb.JournalService_ListRecords_FullMethod} {
		var got string
		h := func(ctx context.Context, req interface{}) (interface{}, error) {
			got, _ = userIDFromContext(ctx)
			return nil, nil
		}
		_, err := s.accessTokenInterceptor(withToken(tok), nil, &grpc.UnaryServerInfo{FullMethod: method}, h)
		require.NoError(t, err, method)
		assert.Equal(t, "user-7", got, method)
	}
}

func TestInterceptor_Rejects(t *testing.T) {
	s := newServer(newFakeRecords())

	expired, err := auth.GenerateToken("u", s.jwtSecret, -time.Minute)
	require.NoError(t, err)
	foreign, err := auth.GenerateToken("u", []byte("other"), time.Hour)
	require.NoError(t, err)

	tests := []struct {
		name string
		ctx  context.Context
	}{
		{name: "no metadata", ctx: context.Background()},
		{name: "empty token", ctx: withToken("")},
		{name: "garbage", ctx: withToken("abc")},
		{name: "expired", ctx: withToken(expired)},
		{name: "wrong secret", ctx: withToken(foreign)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := func(ctx context.Context, req interface{}) (interface{}, error) {
				t.Fatal("handler must not be called")
				return nil, nil
			}
			info := &grpc.UnaryServerInfo{FullMethod: pb.JournalService_PutRecord_FullMethod}
			_, err := s.accessTokenInterceptor(tt.ctx, nil, info, h)
			assert.Equal(t, codes.Unauthenticated, status.Code(err))
		})
	}
}
