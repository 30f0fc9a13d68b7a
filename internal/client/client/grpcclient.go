package client

import (
	"context"
	"fmt"
	"time"

	"github.com/dmitrijs2005/diarysync/internal/client/models"
	"github.com/dmitrijs2005/diarysync/internal/common"
	pb "github.com/dmitrijs2005/diarysync/internal/proto"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
)

const (
	defaultRPCTimeout = 15 * time.Second
	grpcPageSize      = 500
)

// GRPCClient pushes entries to a diarysync journal server.
type GRPCClient struct {
	endpointURL string
	conn        *grpc.ClientConn
	client      pb.JournalServiceClient
	accessToken string
	timeout     time.Duration
	dialOpts    []grpc.DialOption
	now         func() time.Time
}

type GRPCOption func(*GRPCClient)

// WithDialOptions appends dial options, e.g. a bufconn dialer in tests.
func WithDialOptions(opts ...grpc.DialOption) GRPCOption {
	return func(c *GRPCClient) { c.dialOpts = append(c.dialOpts, opts...) }
}

func WithRPCTimeout(d time.Duration) GRPCOption {
	return func(c *GRPCClient) { c.timeout = d }
}

func withAccessToken(ctx context.Context, token string) context.Context {
	md, _ := metadata.FromOutgoingContext(ctx)
	md = md.Copy()
	if md == nil {
		md = metadata.MD{}
	}
	md.Delete(common.AccessTokenHeaderName)
	md.Set(common.AccessTokenHeaderName, token)

	return metadata.NewOutgoingContext(ctx, md)
}

func (s *GRPCClient) accessTokenInterceptor(
	ctx context.Context,
	method string,
	req, reply interface{},
	cc *grpc.ClientConn,
	invoker grpc.UnaryInvoker,
	opts ...grpc.CallOption,
) error {
	if s.accessToken != "" {
		ctx = withAccessToken(ctx, s.accessToken)
	}
	return invoker(ctx, method, req, reply, cc, opts...)
}

func NewGRPCClient(endpointURL, accessToken string, opts ...GRPCOption) (*GRPCClient, error) {
	c := &GRPCClient{
		endpointURL: endpointURL,
		accessToken: accessToken,
		timeout:     defaultRPCTimeout,
		now:         time.Now,
	}
	for _, o := range opts {
		o(c)
	}
	if err := c.InitGRPCClient(); err != nil {
		return nil, err
	}
	return c, nil
}

func (s *GRPCClient) InitGRPCClient() error {
	opts := append([]grpc.DialOption{
		grpc.WithTransportCredentials(insecure.NewCredentials()),
		grpc.WithUnaryInterceptor(s.accessTokenInterceptor),
	}, s.dialOpts...)

	conn, err := grpc.NewClient(s.endpointURL, opts...)
	if err != nil {
		return err
	}
	s.conn = conn
	s.client = pb.NewJournalServiceClient(conn)
	return nil
}

func (s *GRPCClient) Close() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}

func (s *GRPCClient) Push(ctx context.Context, e *models.Entry) (string, error) {
	const op = "grpc.Push"
	if err := checkPushable(op, e); err != nil {
		return "", err
	}

	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	rec := pb.Record{
		RemoteID: e.RemoteID,
		LocalID:  e.ID,
		Title:    e.Title,
		Content:  e.Content,
		Date:     e.CreatedAt,
	}
	resp, err := s.client.PutRecord(ctx, rec.Struct())
	if err != nil {
		return "", s.mapError(op, err)
	}

	out, err := pb.RecordFromStruct(resp)
	if err != nil {
		return "", NewTransportError(op, fmt.Errorf("malformed response: %w", err))
	}
	if out.RemoteID == "" {
		return "", NewTransportError(op, fmt.Errorf("malformed response: empty remote id"))
	}
	return out.RemoteID, nil
}

// Pull walks the server listing page by page, each page starting after the
// last record of the previous one, so nothing past a server page cap is
// lost. A positive f.Limit keeps the newest f.Limit records by date.
func (s *GRPCClient) Pull(ctx context.Context, f models.PullFilter) ([]models.RemoteRecord, error) {
	const op = "grpc.Pull"

	req := pb.ListRequest{Since: f.Since, Limit: grpcPageSize}
	if f.Limit > 0 && f.Limit < grpcPageSize {
		req.Limit = f.Limit
	}

	var out []models.RemoteRecord
	for {
		page, err := s.listPage(ctx, req)
		if err != nil {
			return nil, s.mapError(op, err)
		}
		for _, r := range page.Records {
			out = append(out, models.RemoteRecord{
				RemoteID:   r.RemoteID,
				LocalID:    r.LocalID,
				Title:      r.Title,
				Content:    r.Content,
				Date:       r.Date,
				ModifiedAt: r.ModifiedAt,
			})
		}
		if !page.More {
			break
		}
		if len(page.Records) == 0 {
			return nil, NewTransportError(op, fmt.Errorf("malformed response: empty page with more records"))
		}
		last := page.Records[len(page.Records)-1]
		req.Since, req.AfterLocalID = last.ModifiedAt, last.LocalID
	}

	sortByDateDesc(out)
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (s *GRPCClient) listPage(ctx context.Context, req pb.ListRequest) (pb.RecordPage, error) {
	ctx, cancel := s.withTimeout(ctx)
	defer cancel()

	resp, err := s.client.ListRecords(ctx, req.Struct())
	if err != nil {
		return pb.RecordPage{}, err
	}
	page, err := pb.RecordPageFromStruct(resp)
	if err != nil {
		return pb.RecordPage{}, NewValidationError("grpc.Pull", err)
	}
	return page, nil
}

// Verify checks the token with a one-record listing.
func (s *GRPCClient) Verify(ctx context.Context) error {
	_, err := s.Pull(ctx, models.PullFilter{Since: s.now(), Limit: 1})
	return err
}

func (s *GRPCClient) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if s.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, s.timeout)
}

func (s *GRPCClient) mapError(op string, err error) error {
	if err == nil {
		return nil
	}
	st, ok := status.FromError(err)
	if !ok {
		return Classify(op, err)
	}
	switch st.Code() {
	case codes.Unauthenticated, codes.PermissionDenied:
		return NewAuthError(op, err)
	case codes.InvalidArgument, codes.FailedPrecondition, codes.OutOfRange, codes.NotFound:
		return NewValidationError(op, err)
	case codes.Unavailable, codes.DeadlineExceeded, codes.ResourceExhausted, codes.Aborted, codes.Internal, codes.Unknown:
		return NewTransportError(op, err)
	case codes.Canceled:
		return err
	default:
		return fmt.Errorf("%s: rpc error: %w", op, err)
	}
}
