package models

import (
	"time"

	"github.com/google/uuid"
)

type EventType string

const (
	EventFaceAssigned  EventType = "face_assigned"
	EventPersonsMerged EventType = "persons_merged"
	EventGroupDeleted  EventType = "group_deleted"
)

// IdentityEvent is published after every durable change to a group.
type IdentityEvent struct {
	ID              uuid.UUID       `json:"id" db:"id"`
	Type            EventType       `json:"type" db:"type"`
	GroupID         string          `json:"group_id" db:"group_id"`
	PersonID        string          `json:"person_id,omitempty" db:"person_id"`
	IsNewPerson     bool            `json:"is_new_person,omitempty" db:"is_new_person"`
	IsTempUser      bool            `json:"is_temp_user,omitempty" db:"is_temp_user"`
	RecognitionType RecognitionType `json:"recognition_type,omitempty" db:"recognition_type"`
	Confidence      float64         `json:"confidence,omitempty" db:"confidence"`
	SourcePersonIDs []string        `json:"source_person_ids,omitempty" db:"source_person_ids"`
	SamplesMoved    int             `json:"samples_moved,omitempty" db:"samples_moved"`
	Timestamp       time.Time       `json:"timestamp" db:"timestamp"`
}

func NewIdentityEvent(t EventType, groupID string) IdentityEvent {
	return IdentityEvent{
		ID:        uuid.New(),
		Type:      t,
		GroupID:   groupID,
		Timestamp: time.Now().UTC(),
	}
}
