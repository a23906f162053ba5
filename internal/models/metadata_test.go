package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetadataKind(t *testing.T) {
	var md Metadata
	assert.False(t, md.HasKind())
	assert.Equal(t, KindPermanent, md.Kind())

	md.SetKind(KindTemporary)
	assert.True(t, md.HasKind())
	assert.Equal(t, KindTemporary, md.Kind())

	md.SetKind(KindPermanent)
	assert.Equal(t, KindPermanent, md.Kind())
}

func TestMetadataPreservesUnknownKeys(t *testing.T) {
	in := `{
		"created_at": "2024-03-01T10:15:30.123456",
		"recognition_type": "temp_user",
		"confidence": 0.42,
		"is_temp_user": true,
		"operator_note": "seen at gate 4",
		"merge_history": [{"merged_at": "2024-03-02 08:00:00", "merged_sources": ["a"], "total_faces_added": 2}]
	}`

	var md Metadata
	require.NoError(t, json.Unmarshal([]byte(in), &md))
	assert.Equal(t, KindTemporary, md.Kind())
	assert.Equal(t, 2024, md.CreatedAt.Year())
	require.Len(t, md.MergeHistory, 1)
	assert.Equal(t, 8, md.MergeHistory[0].MergedAt.Hour())
	assert.Contains(t, md.Extra, "operator_note")

	out, err := json.Marshal(md)
	require.NoError(t, err)
	var doc map[string]any
	require.NoError(t, json.Unmarshal(out, &doc))
	assert.Equal(t, "seen at gate 4", doc["operator_note"])
	assert.Equal(t, true, doc["is_temp_user"])
	assert.Equal(t, "temp_user", doc["recognition_type"])
}

func TestMetadataAlwaysWritesMergeHistory(t *testing.T) {
	out, err := json.Marshal(Metadata{CreatedAt: NewTimestamp(time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC))})
	require.NoError(t, err)

	var doc map[string]any
	require.NoError(t, json.Unmarshal(out, &doc))
	assert.Equal(t, []any{}, doc["merge_history"])
	assert.Equal(t, "2024-01-02T03:04:05Z", doc["created_at"])
	assert.Nil(t, doc["last_updated"])
	assert.NotContains(t, doc, "is_temp_user")
}

func TestTimestampRejectsGarbage(t *testing.T) {
	var ts Timestamp
	assert.Error(t, json.Unmarshal([]byte(`"yesterday"`), &ts))
	require.NoError(t, json.Unmarshal([]byte(`null`), &ts))
	assert.True(t, ts.IsZero())
	assert.Nil(t, ts.Ptr())
}

func TestParseKind(t *testing.T) {
	k, err := ParseKind("", KindTemporary)
	require.NoError(t, err)
	assert.Equal(t, KindTemporary, k)

	k, err = ParseKind(" Perm ", KindTemporary)
	require.NoError(t, err)
	assert.Equal(t, KindPermanent, k)

	_, err = ParseKind("vip", KindTemporary)
	assert.Error(t, err)
}

func TestCandidatePersonID(t *testing.T) {
	c := Candidate{Identity: "/data/g1/3f2b/face.jpg"}
	assert.Equal(t, "3f2b", c.PersonID())

	var r *MatchResult
	_, ok := r.Best()
	assert.False(t, ok)
}
