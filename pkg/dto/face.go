package dto

// IngestRequest carries base64-encoded images. Image is accepted for
// single-image clients.
type IngestRequest struct {
	Images     []string `json:"images"`
	Image      string   `json:"image"`
	SourceName string   `json:"source_name"`
}

type FacialArea struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

type FaceResult struct {
	FaceIndex             int        `json:"face_index"`
	FacialArea            FacialArea `json:"facial_area"`
	PersonID              string     `json:"person_id,omitempty"`
	IsNewPerson           bool       `json:"is_new_person"`
	IsTempUser            bool       `json:"is_temp_user"`
	Confidence            float64    `json:"confidence"`
	ConfidenceApproximate bool       `json:"confidence_approximate,omitempty"`
	RecognitionType       string     `json:"recognition_type,omitempty"`
	ClosestMatch          string     `json:"closest_match,omitempty"`
	Uncertain             bool       `json:"uncertain,omitempty"`
	SavedTo               string     `json:"saved_to,omitempty"`
	Error                 string     `json:"error,omitempty"`
}

type ImageResult struct {
	ImageIndex int          `json:"image_index"`
	ArchiveKey string       `json:"archive_key,omitempty"`
	Faces      []FaceResult `json:"faces"`
	Error      string       `json:"error,omitempty"`
}

type IngestResponse struct {
	GroupID        string        `json:"group_id"`
	Kind           string        `json:"kind"`
	Images         []ImageResult `json:"images"`
	FacesProcessed int           `json:"faces_processed"`
	FacesFailed    int           `json:"faces_failed"`
}

type RecognizedFace struct {
	FaceIndex             int        `json:"face_index"`
	FacialArea            FacialArea `json:"facial_area"`
	Recognized            bool       `json:"recognized"`
	PersonID              string     `json:"person_id,omitempty"`
	IsTempUser            bool       `json:"is_temp_user"`
	Confidence            float64    `json:"confidence"`
	ConfidenceApproximate bool       `json:"confidence_approximate,omitempty"`
	ClosestMatch          string     `json:"closest_match,omitempty"`
	Uncertain             bool       `json:"uncertain,omitempty"`
	Error                 string     `json:"error,omitempty"`
}

type RecognizeImageResult struct {
	ImageIndex int              `json:"image_index"`
	Faces      []RecognizedFace `json:"faces"`
	Error      string           `json:"error,omitempty"`
}

type RecognizeResponse struct {
	GroupID string                 `json:"group_id"`
	Images  []RecognizeImageResult `json:"images"`
}
