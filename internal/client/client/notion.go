package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/dmitrijs2005/diarysync/internal/client/models"
	"github.com/jomei/notionapi"
)

const (
	notionChunkRunes    = 2000
	notionPageSize      = 100
	notionDatabaseTitle = "Journal Entries"
)

type notionPages interface {
	Create(ctx context.Context, req *notionapi.PageCreateRequest) (*notionapi.Page, error)
	Update(ctx context.Context, id notionapi.PageID, req *notionapi.PageUpdateRequest) (*notionapi.Page, error)
}

type notionDatabases interface {
	Get(ctx context.Context, id notionapi.DatabaseID) (*notionapi.Database, error)
	Query(ctx context.Context, id notionapi.DatabaseID, req *notionapi.DatabaseQueryRequest) (*notionapi.DatabaseQueryResponse, error)
	Create(ctx context.Context, req *notionapi.DatabaseCreateRequest) (*notionapi.Database, error)
}

// NotionClient stores each entry as a page of a Notion database.
type NotionClient struct {
	pages     notionPages
	databases notionDatabases
	schema    NotionSchema

	// mu guards databaseID, which Provision replaces.
	mu         sync.RWMutex
	databaseID notionapi.DatabaseID
}

func NewNotionClient(token, databaseID string, schema NotionSchema, httpClient *http.Client) *NotionClient {
	opts := []notionapi.ClientOption{}
	if httpClient != nil {
		opts = append(opts, notionapi.WithHTTPClient(httpClient))
	}
	c := notionapi.NewClient(notionapi.Token(token), opts...)
	return newNotionClient(c.Page, c.Database, databaseID, schema)
}

func newNotionClient(p notionPages, d notionDatabases, databaseID string, schema NotionSchema) *NotionClient {
	return &NotionClient{
		pages:      p,
		databases:  d,
		databaseID: notionapi.DatabaseID(databaseID),
		schema:     schema.withDefaults(),
	}
}

func (n *NotionClient) Close() error { return nil }

func (n *NotionClient) database() notionapi.DatabaseID {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.databaseID
}

func (n *NotionClient) Push(ctx context.Context, e *models.Entry) (string, error) {
	const op = "notion.Push"
	if err := checkPushable(op, e); err != nil {
		return "", err
	}
	props := n.properties(e)

	var (
		page *notionapi.Page
		err  error
	)
	if e.RemoteID != "" {
		page, err = n.pages.Update(ctx, notionapi.PageID(e.RemoteID), &notionapi.PageUpdateRequest{Properties: props})
	} else {
		page, err = n.pages.Create(ctx, &notionapi.PageCreateRequest{
			Parent: notionapi.Parent{
				Type:       notionapi.ParentTypeDatabaseID,
				DatabaseID: n.database(),
			},
			Properties: props,
		})
	}
	if err != nil {
		return "", notionError(op, err)
	}
	return page.ID.String(), nil
}

func (n *NotionClient) Pull(ctx context.Context, f models.PullFilter) ([]models.RemoteRecord, error) {
	const op = "notion.Pull"

	req := &notionapi.DatabaseQueryRequest{
		Sorts: []notionapi.SortObject{
			{Property: n.schema.DateProperty, Direction: notionapi.SortOrderDESC},
		},
		PageSize: notionPageSize,
	}
	if !f.Since.IsZero() {
		after := notionapi.Date(f.Since.UTC())
		req.Filter = &notionapi.TimestampFilter{
			Timestamp:      notionapi.TimestampLastEdited,
			LastEditedTime: &notionapi.DateFilterCondition{After: &after},
		}
	}
	if f.Limit > 0 && f.Limit < notionPageSize {
		req.PageSize = f.Limit
	}

	dbID := n.database()
	var out []models.RemoteRecord
pages:
	for {
		resp, err := n.databases.Query(ctx, dbID, req)
		if err != nil {
			return nil, notionError(op, err)
		}
		for i := range resp.Results {
			rec, err := n.record(&resp.Results[i])
			if err != nil {
				return nil, NewValidationError(op, err)
			}
			out = append(out, rec)
			if f.Limit > 0 && len(out) == f.Limit {
				break pages
			}
		}
		if !resp.HasMore || resp.NextCursor == "" {
			break
		}
		req.StartCursor = resp.NextCursor
	}
	sortByDateDesc(out)
	return out, nil
}

// Verify retrieves the database and checks that every mapped property
// exists with the expected type.
func (n *NotionClient) Verify(ctx context.Context) error {
	const op = "notion.Verify"

	db, err := n.databases.Get(ctx, n.database())
	if err != nil {
		return notionError(op, err)
	}

	want := map[string]notionapi.PropertyConfigType{
		n.schema.ContentProperty: notionapi.PropertyConfigTypeTitle,
		n.schema.DateProperty:    notionapi.PropertyConfigTypeDate,
		n.schema.LocalIDProperty: notionapi.PropertyConfigTypeRichText,
		n.schema.TitleProperty:   notionapi.PropertyConfigTypeRichText,
	}
	var errs []error
	for name, typ := range want {
		cfg, ok := db.Properties[name]
		if !ok || cfg == nil {
			errs = append(errs, fmt.Errorf("property %q is missing", name))
			continue
		}
		if got := cfg.GetType(); got != typ {
			errs = append(errs, fmt.Errorf("property %q has type %s, want %s", name, got, typ))
		}
	}
	if len(errs) > 0 {
		return NewValidationError(op, errors.Join(errs...))
	}
	return nil
}

// Provision creates a journal database under the parent page and switches
// the client to it.
func (n *NotionClient) Provision(ctx context.Context, parentPageID string) (string, error) {
	const op = "notion.Provision"
	if parentPageID == "" {
		return "", NewValidationError(op, errors.New("parent page id is empty"))
	}

	db, err := n.databases.Create(ctx, &notionapi.DatabaseCreateRequest{
		Parent: notionapi.Parent{
			Type:   notionapi.ParentTypePageID,
			PageID: notionapi.PageID(parentPageID),
		},
		Title: []notionapi.RichText{
			{Type: notionapi.ObjectTypeText, Text: &notionapi.Text{Content: notionDatabaseTitle}},
		},
		Properties: notionapi.PropertyConfigs{
			n.schema.ContentProperty: &notionapi.TitlePropertyConfig{Type: notionapi.PropertyConfigTypeTitle},
			n.schema.DateProperty:    &notionapi.DatePropertyConfig{Type: notionapi.PropertyConfigTypeDate},
			n.schema.LocalIDProperty: &notionapi.RichTextPropertyConfig{Type: notionapi.PropertyConfigTypeRichText},
			n.schema.TitleProperty:   &notionapi.RichTextPropertyConfig{Type: notionapi.PropertyConfigTypeRichText},
		},
	})
	if err != nil {
		return "", notionError(op, err)
	}
	n.mu.Lock()
	n.databaseID = notionapi.DatabaseID(db.ID.String())
	n.mu.Unlock()
	return db.ID.String(), nil
}

func (n *NotionClient) properties(e *models.Entry) notionapi.Properties {
	date := notionapi.Date(e.CreatedAt.UTC())
	return notionapi.Properties{
		n.schema.ContentProperty: &notionapi.TitleProperty{
			Type:  notionapi.PropertyTypeTitle,
			Title: richText(e.Content),
		},
		n.schema.DateProperty: &notionapi.DateProperty{
			Type: notionapi.PropertyTypeDate,
			Date: &notionapi.DateObject{Start: &date},
		},
		n.schema.LocalIDProperty: &notionapi.RichTextProperty{
			Type:     notionapi.PropertyTypeRichText,
			RichText: richText(e.ID),
		},
		n.schema.TitleProperty: &notionapi.RichTextProperty{
			Type:     notionapi.PropertyTypeRichText,
			RichText: richText(e.Title),
		},
	}
}

func (n *NotionClient) record(p *notionapi.Page) (models.RemoteRecord, error) {
	rec := models.RemoteRecord{
		RemoteID:   p.ID.String(),
		ModifiedAt: p.LastEditedTime,
	}
	for name, prop := range p.Properties {
		var err error
		switch name {
		case n.schema.ContentProperty:
			rec.Content, err = titleText(name, prop)
		case n.schema.TitleProperty:
			rec.Title, err = richTextText(name, prop)
		case n.schema.LocalIDProperty:
			rec.LocalID, err = richTextText(name, prop)
		case n.schema.DateProperty:
			rec.Date, err = dateValue(name, prop)
		}
		if err != nil {
			return models.RemoteRecord{}, fmt.Errorf("page %s: %w", p.ID, err)
		}
	}
	return rec, nil
}

// richText splits s into rich text objects of at most notionChunkRunes runes.
func richText(s string) []notionapi.RichText {
	if s == "" {
		return []notionapi.RichText{}
	}
	runes := []rune(s)
	out := make([]notionapi.RichText, 0, len(runes)/notionChunkRunes+1)
	for len(runes) > 0 {
		n := min(len(runes), notionChunkRunes)
		out = append(out, notionapi.RichText{
			Type: notionapi.ObjectTypeText,
			Text: &notionapi.Text{Content: string(runes[:n])},
		})
		runes = runes[n:]
	}
	return out
}

func plainText(rt []notionapi.RichText) string {
	var b strings.Builder
	for _, r := range rt {
		switch {
		case r.PlainText != "":
			b.WriteString(r.PlainText)
		case r.Text != nil:
			b.WriteString(r.Text.Content)
		}
	}
	return b.String()
}

func titleText(name string, p notionapi.Property) (string, error) {
	switch v := p.(type) {
	case *notionapi.TitleProperty:
		return plainText(v.Title), nil
	}
	return "", fmt.Errorf("property %q: want title, got %s", name, p.GetType())
}

func richTextText(name string, p notionapi.Property) (string, error) {
	switch v := p.(type) {
	case *notionapi.RichTextProperty:
		return plainText(v.RichText), nil
	}
	return "", fmt.Errorf("property %q: want rich_text, got %s", name, p.GetType())
}

func dateValue(name string, p notionapi.Property) (time.Time, error) {
	var d *notionapi.DateObject
	switch v := p.(type) {
	case *notionapi.DateProperty:
		d = v.Date
	default:
		return time.Time{}, fmt.Errorf("property %q: want date, got %s", name, p.GetType())
	}
	if d == nil || d.Start == nil {
		return time.Time{}, nil
	}
	return time.Time(*d.Start).UTC(), nil
}

// notionError maps API statuses onto the error kinds. Anything that is not
// an API error response is a transport failure.
func notionError(op string, err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	var apiErr *notionapi.Error
	if !errors.As(err, &apiErr) {
		return NewTransportError(op, err)
	}
	switch {
	case apiErr.Status == http.StatusUnauthorized || apiErr.Status == http.StatusForbidden:
		return NewAuthError(op, err)
	case apiErr.Status == http.StatusTooManyRequests || apiErr.Status >= 500:
		return NewTransportError(op, err)
	case apiErr.Status >= 400:
		return NewValidationError(op, err)
	default:
		return NewTransportError(op, err)
	}
}
