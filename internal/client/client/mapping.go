package client

import (
	"errors"
	"slices"
	"strings"
	"time"

	"github.com/dmitrijs2005/diarysync/internal/client/models"
)

// Field names used by the gRPC, S3 and CouchDB adapters.
const (
	FieldContent    = "content"
	FieldDate       = "date"
	FieldLocalID    = "local_id"
	FieldTitle      = "title"
	FieldModifiedAt = "modified_at"
)

// NotionSchema names the Notion database properties entries map to.
//
//	Content   -> ContentProperty (title)
//	CreatedAt -> DateProperty    (date)
//	ID        -> LocalIDProperty (rich_text)
//	Title     -> TitleProperty   (rich_text)
type NotionSchema struct {
	ContentProperty string `json:"content_property"`
	DateProperty    string `json:"date_property"`
	LocalIDProperty string `json:"local_id_property"`
	TitleProperty   string `json:"title_property"`
}

func DefaultNotionSchema() NotionSchema {
	return NotionSchema{
		ContentProperty: "Content",
		DateProperty:    "Date",
		LocalIDProperty: "LocalId",
		TitleProperty:   "Title",
	}
}

// withDefaults fills unset property names.
func (s NotionSchema) withDefaults() NotionSchema {
	d := DefaultNotionSchema()
	if s.ContentProperty == "" {
		s.ContentProperty = d.ContentProperty
	}
	if s.DateProperty == "" {
		s.DateProperty = d.DateProperty
	}
	if s.LocalIDProperty == "" {
		s.LocalIDProperty = d.LocalIDProperty
	}
	if s.TitleProperty == "" {
		s.TitleProperty = d.TitleProperty
	}
	return s
}

var (
	errEmptyContent = errors.New("content is empty")
	errNoLocalID    = errors.New("entry has no id")
)

// checkPushable rejects entries that cannot be mapped to any remote.
func checkPushable(op string, e *models.Entry) error {
	if e == nil || e.ID == "" {
		return NewValidationError(op, errNoLocalID)
	}
	if strings.TrimSpace(e.Content) == "" {
		return NewValidationError(op, errEmptyContent)
	}
	return nil
}

// recordDoc is the JSON document stored by the S3 and CouchDB adapters.
type recordDoc struct {
	LocalID    string    `json:"local_id"`
	Title      string    `json:"title"`
	Content    string    `json:"content"`
	Date       time.Time `json:"date"`
	ModifiedAt time.Time `json:"modified_at"`
}

func newRecordDoc(e *models.Entry, now time.Time) recordDoc {
	return recordDoc{
		LocalID:    e.ID,
		Title:      e.Title,
		Content:    e.Content,
		Date:       e.CreatedAt.UTC(),
		ModifiedAt: now.UTC(),
	}
}

func (d recordDoc) record(remoteID string) models.RemoteRecord {
	return models.RemoteRecord{
		RemoteID:   remoteID,
		LocalID:    d.LocalID,
		Title:      d.Title,
		Content:    d.Content,
		Date:       d.Date,
		ModifiedAt: d.ModifiedAt,
	}
}

// sortByDateDesc orders records by their date field, newest first. Records
// with equal dates keep the order the remote returned them in.
func sortByDateDesc(recs []models.RemoteRecord) {
	slices.SortStableFunc(recs, func(a, b models.RemoteRecord) int {
		return b.Date.Compare(a.Date)
	})
}
