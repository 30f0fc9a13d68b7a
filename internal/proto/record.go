package proto

import (
	"errors"
	"fmt"
	"time"

	"google.golang.org/protobuf/types/known/structpb"
)

// Struct keys of the wire mapping.
const (
	KeyRemoteID   = "remote_id"
	KeyLocalID    = "local_id"
	KeyTitle      = "title"
	KeyContent    = "content"
	KeyDate       = "date"
	KeyModifiedAt = "modified_at"
	KeySince        = "since"
	KeyAfterLocalID = "after_local_id"
	KeyLimit        = "limit"
	KeyRecords      = "records"
	KeyMore         = "more"
)

var ErrMissingField = errors.New("missing field")

// Record is one journal entry as exchanged with the journal server.
type Record struct {
	RemoteID   string
	LocalID    string
	Title      string
	Content    string
	Date       time.Time
	ModifiedAt time.Time
}

func (r Record) Struct() *structpb.Struct {
	f := map[string]*structpb.Value{
		KeyLocalID: structpb.NewStringValue(r.LocalID),
		KeyTitle:   structpb.NewStringValue(r.Title),
		KeyContent: structpb.NewStringValue(r.Content),
	}
	if r.RemoteID != "" {
		f[KeyRemoteID] = structpb.NewStringValue(r.RemoteID)
	}
	putTime(f, KeyDate, r.Date)
	putTime(f, KeyModifiedAt, r.ModifiedAt)
	return &structpb.Struct{Fields: f}
}

// RecordFromStruct decodes a record. local_id is required.
func RecordFromStruct(s *structpb.Struct) (Record, error) {
	f := s.GetFields()
	r := Record{
		RemoteID: f[KeyRemoteID].GetStringValue(),
		LocalID:  f[KeyLocalID].GetStringValue(),
		Title:    f[KeyTitle].GetStringValue(),
		Content:  f[KeyContent].GetStringValue(),
	}
	if r.LocalID == "" {
		return Record{}, fmt.Errorf("%w: %s", ErrMissingField, KeyLocalID)
	}
	var err error
	if r.Date, err = getTime(f, KeyDate); err != nil {
		return Record{}, err
	}
	if r.ModifiedAt, err = getTime(f, KeyModifiedAt); err != nil {
		return Record{}, err
	}
	return r, nil
}

// ListRequest asks for one page of records after the keyset position
// (Since, AfterLocalID). Without AfterLocalID the page starts strictly after
// Since.
type ListRequest struct {
	Since        time.Time
	AfterLocalID string
	Limit        int
}

func (l ListRequest) Struct() *structpb.Struct {
	f := map[string]*structpb.Value{}
	putTime(f, KeySince, l.Since)
	if l.AfterLocalID != "" {
		f[KeyAfterLocalID] = structpb.NewStringValue(l.AfterLocalID)
	}
	if l.Limit > 0 {
		f[KeyLimit] = structpb.NewNumberValue(float64(l.Limit))
	}
	return &structpb.Struct{Fields: f}
}

func ListRequestFromStruct(s *structpb.Struct) (ListRequest, error) {
	f := s.GetFields()
	since, err := getTime(f, KeySince)
	if err != nil {
		return ListRequest{}, err
	}
	return ListRequest{
		Since:        since,
		AfterLocalID: f[KeyAfterLocalID].GetStringValue(),
		Limit:        int(f[KeyLimit].GetNumberValue()),
	}, nil
}

// RecordPage is one listing page, oldest first. More reports that records
// after the last one remain.
type RecordPage struct {
	Records []Record
	More    bool
}

func (p RecordPage) Struct() *structpb.Struct {
	values := make([]*structpb.Value, 0, len(p.Records))
	for _, r := range p.Records {
		values = append(values, structpb.NewStructValue(r.Struct()))
	}
	return &structpb.Struct{Fields: map[string]*structpb.Value{
		KeyRecords: structpb.NewListValue(&structpb.ListValue{Values: values}),
		KeyMore:    structpb.NewBoolValue(p.More),
	}}
}

func RecordPageFromStruct(s *structpb.Struct) (RecordPage, error) {
	f := s.GetFields()
	values := f[KeyRecords].GetListValue().GetValues()
	out := RecordPage{Records: make([]Record, 0, len(values)), More: f[KeyMore].GetBoolValue()}
	for i, v := range values {
		r, err := RecordFromStruct(v.GetStructValue())
		if err != nil {
			return RecordPage{}, fmt.Errorf("record %d: %w", i, err)
		}
		out.Records = append(out.Records, r)
	}
	return out, nil
}

func putTime(f map[string]*structpb.Value, key string, t time.Time) {
	if t.IsZero() {
		return
	}
	f[key] = structpb.NewStringValue(t.UTC().Format(time.RFC3339Nano))
}

func getTime(f map[string]*structpb.Value, key string) (time.Time, error) {
	s := f[key].GetStringValue()
	if s == "" {
		return time.Time{}, nil
	}
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("field %s: %w", key, err)
	}
	return t, nil
}
