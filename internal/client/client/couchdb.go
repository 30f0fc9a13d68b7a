package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-kivik/kivik/v4"
	_ "github.com/go-kivik/kivik/v4/couchdb"

	"github.com/dmitrijs2005/diarysync/internal/client/models"
)

const (
	couchDocPrefix = "entry:"
	couchPageSize  = 200
)

// couchDoc is recordDoc plus the CouchDB bookkeeping fields. modified_ns
// mirrors modified_at as an integer so Mango can compare it.
type couchDoc struct {
	ID  string `json:"_id,omitempty"`
	Rev string `json:"_rev,omitempty"`
	recordDoc
	ModifiedNS int64 `json:"modified_ns"`
}

type docStore interface {
	GetRev(ctx context.Context, id string) (string, error)
	Put(ctx context.Context, id string, doc any) (string, error)
	Find(ctx context.Context, query map[string]any) (docs []couchDoc, bookmark string, err error)
	Exists(ctx context.Context) (bool, error)
	Create(ctx context.Context) error
	Close() error
}

type kivikStore struct {
	client *kivik.Client
	dbName string
}

func (s *kivikStore) GetRev(ctx context.Context, id string) (string, error) {
	return s.client.DB(s.dbName).GetRev(ctx, id)
}

func (s *kivikStore) Put(ctx context.Context, id string, doc any) (string, error) {
	return s.client.DB(s.dbName).Put(ctx, id, doc)
}

func (s *kivikStore) Find(ctx context.Context, query map[string]any) ([]couchDoc, string, error) {
	rows := s.client.DB(s.dbName).Find(ctx, query)
	defer rows.Close()

	var docs []couchDoc
	for rows.Next() {
		var d couchDoc
		if err := rows.ScanDoc(&d); err != nil {
			return nil, "", err
		}
		docs = append(docs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, "", err
	}
	meta, err := rows.Metadata()
	if err != nil {
		return nil, "", err
	}
	return docs, meta.Bookmark, nil
}

func (s *kivikStore) Exists(ctx context.Context) (bool, error) {
	return s.client.DBExists(ctx, s.dbName)
}

func (s *kivikStore) Create(ctx context.Context) error {
	return s.client.CreateDB(ctx, s.dbName)
}

func (s *kivikStore) Close() error {
	return s.client.Close()
}

// CouchClient stores each entry as a CouchDB document with id entry:<local id>.
type CouchClient struct {
	store  docStore
	dbName string
	now    func() time.Time
}

func NewCouchClient(url, dbName string) (*CouchClient, error) {
	c, err := kivik.New("couch", url)
	if err != nil {
		return nil, fmt.Errorf("connect to couchdb: %w", err)
	}
	return newCouchClient(&kivikStore{client: c, dbName: dbName}, dbName), nil
}

func newCouchClient(s docStore, dbName string) *CouchClient {
	return &CouchClient{store: s, dbName: dbName, now: time.Now}
}

func (c *CouchClient) Close() error { return c.store.Close() }

func (c *CouchClient) Push(ctx context.Context, e *models.Entry) (string, error) {
	const op = "couchdb.Push"
	if err := checkPushable(op, e); err != nil {
		return "", err
	}

	id := e.RemoteID
	if id == "" {
		id = couchDocPrefix + e.ID
	}

	rev, err := c.store.GetRev(ctx, id)
	if err != nil && kivik.HTTPStatus(err) != http.StatusNotFound {
		return "", couchError(op, err)
	}

	rd := newRecordDoc(e, c.now())
	doc := couchDoc{ID: id, Rev: rev, recordDoc: rd, ModifiedNS: rd.ModifiedAt.UnixNano()}
	if _, err := c.store.Put(ctx, id, doc); err != nil {
		return "", couchError(op, err)
	}
	return id, nil
}

func (c *CouchClient) Pull(ctx context.Context, f models.PullFilter) ([]models.RemoteRecord, error) {
	const op = "couchdb.Pull"

	selector := map[string]any{FieldLocalID: map[string]any{"$exists": true}}
	if !f.Since.IsZero() {
		selector["modified_ns"] = map[string]any{"$gt": f.Since.UnixNano()}
	}

	var (
		out      []models.RemoteRecord
		bookmark string
	)
	for {
		q := map[string]any{"selector": selector, "limit": couchPageSize}
		if bookmark != "" {
			q["bookmark"] = bookmark
		}
		docs, next, err := c.store.Find(ctx, q)
		if err != nil {
			return nil, couchError(op, err)
		}
		for _, d := range docs {
			out = append(out, d.record(d.ID))
		}
		if len(docs) == 0 || next == "" || next == bookmark {
			break
		}
		bookmark = next
	}

	sortByDateDesc(out)
	if f.Limit > 0 && len(out) > f.Limit {
		out = out[:f.Limit]
	}
	return out, nil
}

func (c *CouchClient) Verify(ctx context.Context) error {
	const op = "couchdb.Verify"
	ok, err := c.store.Exists(ctx)
	if err != nil {
		return couchError(op, err)
	}
	if !ok {
		return NewValidationError(op, errors.New("database does not exist"))
	}
	return nil
}

// Provision creates the configured database. The parent argument is unused
// because CouchDB has no container above a database.
func (c *CouchClient) Provision(ctx context.Context, _ string) (string, error) {
	const op = "couchdb.Provision"
	if err := c.store.Create(ctx); err != nil {
		return "", couchError(op, err)
	}
	return c.dbName, nil
}

func couchError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	switch st := kivik.HTTPStatus(err); {
	case st == http.StatusUnauthorized || st == http.StatusForbidden:
		return NewAuthError(op, err)
	case st == http.StatusBadRequest || st == http.StatusNotFound || st == http.StatusPreconditionFailed:
		return NewValidationError(op, err)
	default:
		return NewTransportError(op, err)
	}
}
