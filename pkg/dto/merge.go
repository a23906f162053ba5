package dto

import "github.com/your-org/faceid/internal/models"

type MergeRequest struct {
	SourcePersonIDs []string `json:"source_person_ids" binding:"required"`
	TargetPersonID  string   `json:"target_person_id" binding:"required"`
}

type MergedSource struct {
	PersonID       string           `json:"person_id"`
	FacesMoved     int              `json:"faces_moved"`
	WasTempUser    bool             `json:"was_temp_user"`
	SourceMetadata *models.Metadata `json:"source_metadata,omitempty"`
}

type MergeFailure struct {
	PersonID string `json:"person_id"`
	File     string `json:"file,omitempty"`
	Error    string `json:"error"`
}

type MergeResponse struct {
	GroupID          string         `json:"group_id"`
	TargetPersonID   string         `json:"target_person_id"`
	TargetExisted    bool           `json:"target_existed"`
	CreatedFromMerge bool           `json:"created_from_merge,omitempty"`
	MergedSources    []MergedSource `json:"merged_sources"`
	TotalFacesMoved  int            `json:"total_faces_moved"`
	Errors           []MergeFailure `json:"errors"`
}
