// Package grpc serves the journal gRPC API backed by the records service.
package grpc

import (
	"context"
	"errors"
	"net"

	"google.golang.org/grpc"

	"github.com/dmitrijs2005/diarysync/internal/logging"
	pb "github.com/dmitrijs2005/diarysync/internal/proto"
	"github.com/dmitrijs2005/diarysync/internal/server/records"
)

type recordService interface {
	Put(ctx context.Context, userID string, in records.PutInput) (*records.Record, error)
	List(ctx context.Context, userID string, after records.Cursor, limit int) ([]*records.Record, bool, error)
}

type GRPCServer struct {
	pb.UnimplementedJournalServiceServer
	address   string
	records   recordService
	logger    logging.Logger
	jwtSecret []byte
}

func NewGRPCServer(a string, l logging.Logger, rs recordService, secretKey string) *GRPCServer {
	return &GRPCServer{
		address:   a,
		logger:    l.With("module", "grpc_server"),
		records:   rs,
		jwtSecret: []byte(secretKey),
	}
}

func (s *GRPCServer) newServer() *grpc.Server {
	srv := grpc.NewServer(grpc.ChainUnaryInterceptor(s.loggingInterceptor, s.accessTokenInterceptor))
	pb.RegisterJournalServiceServer(srv, s)
	return srv
}

// Run listens on the configured address until ctx is cancelled.
func (s *GRPCServer) Run(ctx context.Context) error {
	listen, err := net.Listen("tcp", s.address)
	if err != nil {
		return err
	}
	return s.Serve(ctx, listen)
}

// Serve accepts connections on lis until ctx is cancelled, then stops
// gracefully.
func (s *GRPCServer) Serve(ctx context.Context, lis net.Listener) error {
	srv := s.newServer()

	stopped := make(chan struct{})
	go func() {
		defer close(stopped)
		<-ctx.Done()
		s.logger.Info(context.Background(), "Stopping gRPC server...")
		srv.GracefulStop()
	}()

	s.logger.Info(ctx, "Starting gRPC server", "address", lis.Addr().String())

	if err := srv.Serve(lis); err != nil && !errors.Is(err, grpc.ErrServerStopped) {
		return err
	}
	<-stopped
	return nil
}
