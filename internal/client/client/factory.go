package client

import (
	"context"
	"fmt"
	"net/http"
	"time"
)

// Remote kinds accepted by NewRemote.
const (
	KindNotion  = "notion"
	KindGRPC    = "grpc"
	KindS3      = "s3"
	KindCouchDB = "couchdb"
)

var Kinds = []string{KindNotion, KindGRPC, KindS3, KindCouchDB}

type NotionConfig struct {
	Token      string       `json:"token" env:"NOTION_TOKEN"`
	DatabaseID string       `json:"database_id" env:"NOTION_DATABASE_ID"`
	ParentPage string       `json:"parent_page" env:"NOTION_PAGE_ID"`
	Schema     NotionSchema `json:"schema"`
}

type GRPCConfig struct {
	Address string `json:"address" env:"DIARY_GRPC_ADDRESS"`
	Token   string `json:"token" env:"DIARY_GRPC_TOKEN"`
}

type CouchConfig struct {
	URL      string `json:"url" env:"DIARY_COUCH_URL"`
	Database string `json:"database" env:"DIARY_COUCH_DB"`
}

// RemoteConfig selects and configures one remote.
type RemoteConfig struct {
	Kind    string        `json:"kind" env:"DIARY_REMOTE"`
	Timeout time.Duration `json:"-"`
	Notion  NotionConfig  `json:"notion"`
	GRPC    GRPCConfig    `json:"grpc"`
	S3      S3Config      `json:"s3"`
	CouchDB CouchConfig   `json:"couchdb"`
}

// NewRemote builds the remote selected by cfg.Kind. It does not contact the
// remote.
func NewRemote(ctx context.Context, cfg RemoteConfig) (Remote, error) {
	switch cfg.Kind {
	case KindNotion:
		hc := &http.Client{Timeout: cfg.Timeout}
		return NewNotionClient(cfg.Notion.Token, cfg.Notion.DatabaseID, cfg.Notion.Schema, hc), nil
	case KindGRPC:
		var opts []GRPCOption
		if cfg.Timeout > 0 {
			opts = append(opts, WithRPCTimeout(cfg.Timeout))
		}
		return NewGRPCClient(cfg.GRPC.Address, cfg.GRPC.Token, opts...)
	case KindS3:
		return NewS3Client(ctx, cfg.S3)
	case KindCouchDB:
		return NewCouchClient(cfg.CouchDB.URL, cfg.CouchDB.Database)
	default:
		return nil, fmt.Errorf("unknown remote %q", cfg.Kind)
	}
}
