package models

import (
	"encoding/json"
	"fmt"
	"time"
)

type RecognitionType string

const (
	RecognitionRecognized RecognitionType = "recognized"
	RecognitionTempUser   RecognitionType = "temp_user"
	RecognitionUnknown    RecognitionType = "unknown"
)

// Timestamp is an ISO-8601 instant. Naive timestamps written by older
// corpora (no zone offset) are read as UTC; writes are always RFC 3339.
type Timestamp struct {
	time.Time
}

func NewTimestamp(t time.Time) Timestamp {
	return Timestamp{Time: t.UTC()}
}

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
}

func (t Timestamp) MarshalJSON() ([]byte, error) {
	if t.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(t.UTC().Format(time.RFC3339Nano))
}

func (t *Timestamp) UnmarshalJSON(b []byte) error {
	if string(b) == "null" {
		*t = Timestamp{}
		return nil
	}
	var s string
	if err := json.Unmarshal(b, &s); err != nil {
		return fmt.Errorf("timestamp: %w", err)
	}
	if s == "" {
		*t = Timestamp{}
		return nil
	}
	for _, layout := range timestampLayouts {
		if parsed, err := time.Parse(layout, s); err == nil {
			t.Time = parsed
			return nil
		}
	}
	return fmt.Errorf("timestamp: unrecognized format %q", s)
}

// Ptr returns nil for the zero timestamp.
func (t Timestamp) Ptr() *time.Time {
	if t.IsZero() {
		return nil
	}
	v := t.Time
	return &v
}

// MergeEvent is one entry of a person's append-only merge history.
type MergeEvent struct {
	MergedAt        Timestamp `json:"merged_at"`
	MergedSources   []string  `json:"merged_sources"`
	TotalFacesAdded int       `json:"total_faces_added"`
}

// Metadata is the metadata.json document stored next to a person's samples.
type Metadata struct {
	PersonID         string          `json:"person_id,omitempty"`
	CreatedAt        Timestamp       `json:"created_at"`
	LastUpdated      Timestamp       `json:"last_updated"`
	RecognitionType  RecognitionType `json:"recognition_type,omitempty"`
	Confidence       float64         `json:"confidence"`
	SourceImage      string          `json:"source_image,omitempty"`
	IsTempUser       *bool           `json:"is_temp_user,omitempty"`
	ClosestMatch     string          `json:"closest_match,omitempty"`
	Uncertain        bool            `json:"uncertain,omitempty"`
	CreatedFromMerge bool            `json:"created_from_merge,omitempty"`
	MergeHistory     []MergeEvent    `json:"merge_history"`

	// Extra holds keys written by other tools; they survive rewrites.
	Extra map[string]json.RawMessage `json:"-"`
}

var metadataKeys = []string{
	"person_id", "created_at", "last_updated", "recognition_type", "confidence",
	"source_image", "is_temp_user", "closest_match", "uncertain", "created_from_merge",
	"merge_history",
}

// Kind reports the stored classification. A missing flag means Permanent.
func (m *Metadata) Kind() Kind {
	if m.IsTempUser != nil && *m.IsTempUser {
		return KindTemporary
	}
	return KindPermanent
}

// HasKind reports whether the classification flag is present.
func (m *Metadata) HasKind() bool {
	return m.IsTempUser != nil
}

func (m *Metadata) SetKind(k Kind) {
	temp := k == KindTemporary
	m.IsTempUser = &temp
}

type metadataAlias Metadata

func (m Metadata) MarshalJSON() ([]byte, error) {
	a := metadataAlias(m)
	if a.MergeHistory == nil {
		a.MergeHistory = []MergeEvent{}
	}
	known, err := json.Marshal(a)
	if err != nil {
		return nil, err
	}
	if len(m.Extra) == 0 {
		return known, nil
	}

	fields := make(map[string]json.RawMessage, len(m.Extra)+len(metadataKeys))
	for k, v := range m.Extra {
		fields[k] = v
	}
	var own map[string]json.RawMessage
	if err := json.Unmarshal(known, &own); err != nil {
		return nil, err
	}
	for k, v := range own {
		fields[k] = v
	}
	return json.Marshal(fields)
}

func (m *Metadata) UnmarshalJSON(b []byte) error {
	var a metadataAlias
	if err := json.Unmarshal(b, &a); err != nil {
		return err
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(b, &fields); err != nil {
		return err
	}
	for _, k := range metadataKeys {
		delete(fields, k)
	}

	*m = Metadata(a)
	if len(fields) > 0 {
		m.Extra = fields
	}
	return nil
}
