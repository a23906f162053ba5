package models

import (
	"fmt"
	"strings"
	"time"
)

// Kind classifies a Person. It is fixed at creation and persisted in the
// person's metadata; it is never derived from the person id.
type Kind string

const (
	KindPermanent Kind = "permanent"
	KindTemporary Kind = "temporary"
)

// ParseKind accepts "permanent"/"temporary" (and the short forms "perm"/"temp").
// An empty string yields def.
func ParseKind(s string, def Kind) (Kind, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return def, nil
	case "permanent", "perm":
		return KindPermanent, nil
	case "temporary", "temp":
		return KindTemporary, nil
	default:
		return "", fmt.Errorf("unknown person kind %q", s)
	}
}

// Sample is one stored face image.
type Sample struct {
	Filename  string    `json:"filename"`
	Path      string    `json:"path"`
	CreatedAt time.Time `json:"created_at"`
	Size      int64     `json:"file_size"`
	Data      []byte    `json:"-"`
}

// PersonSummary is one entry of a group listing.
type PersonSummary struct {
	PersonID    string     `json:"person_id"`
	Kind        Kind       `json:"kind"`
	FaceCount   int        `json:"face_count"`
	CreatedAt   *time.Time `json:"created_at,omitempty"`
	LastUpdated *time.Time `json:"last_updated,omitempty"`
	Metadata    Metadata   `json:"metadata"`
}

// PersonListing partitions a group's persons by their stored kind.
type PersonListing struct {
	Permanent []PersonSummary `json:"permanent"`
	Temporary []PersonSummary `json:"temporary"`
}

func (l *PersonListing) Total() int {
	return len(l.Permanent) + len(l.Temporary)
}
