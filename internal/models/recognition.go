package models

import "path/filepath"

// Region is a face rectangle in source-image pixel coordinates.
type Region struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

// DetectedFace is one face returned by the detector, with its cropped image.
type DetectedFace struct {
	Region     Region  `json:"facial_area"`
	Confidence float64 `json:"confidence"`
	Image      []byte  `json:"-"`
}

// MatchRequest is what the recognizer needs to search a group's corpus.
type MatchRequest struct {
	Image           []byte
	ImagePath       string // scratch copy of Image, for recognizers that read from disk
	CorpusPath      string
	Model           string
	Metric          string
	DetectorBackend string
}

// Candidate is one ranked match. Distance is nil when the recognizer
// returned no usable distance column.
type Candidate struct {
	Identity string   `json:"identity"`
	Distance *float64 `json:"distance,omitempty"`
	Column   string   `json:"distance_column,omitempty"`
}

// PersonID is the directory that holds the matched sample.
func (c Candidate) PersonID() string {
	return filepath.Base(filepath.Dir(filepath.Clean(c.Identity)))
}

// MatchResult holds candidates ordered best first.
type MatchResult struct {
	Candidates []Candidate `json:"candidates"`
}

func (r *MatchResult) Best() (Candidate, bool) {
	if r == nil || len(r.Candidates) == 0 {
		return Candidate{}, false
	}
	return r.Candidates[0], true
}
