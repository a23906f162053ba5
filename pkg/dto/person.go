package dto

import "github.com/your-org/faceid/internal/models"

type PersonResponse struct {
	PersonID    string          `json:"person_id"`
	Kind        string          `json:"kind"`
	FaceCount   int             `json:"face_count"`
	CreatedAt   string          `json:"created_at,omitempty"`
	LastUpdated string          `json:"last_updated,omitempty"`
	Metadata    models.Metadata `json:"metadata"`
}

type PersonSummary struct {
	TotalUsers     int `json:"total_users"`
	PermanentUsers int `json:"permanent_users"`
	TemporaryUsers int `json:"temporary_users"`
}

type PersonGroups struct {
	Permanent []PersonResponse `json:"permanent"`
	Temporary []PersonResponse `json:"temporary"`
}

type PersonListResponse struct {
	GroupID string        `json:"group_id"`
	Users   PersonGroups  `json:"users"`
	Summary PersonSummary `json:"summary"`
}

type LastImageResponse struct {
	PersonID    string `json:"person_id"`
	Filename    string `json:"filename"`
	CreatedAt   string `json:"created_at"`
	FileSize    int64  `json:"file_size"`
	ImageBase64 string `json:"image_base64"`
}

type PruneResponse struct {
	GroupID string   `json:"group_id"`
	Pruned  []string `json:"pruned"`
}
