package handlers

import (
	"context"
	"encoding/base64"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/your-org/faceid/internal/events"
	"github.com/your-org/faceid/internal/models"
	"github.com/your-org/faceid/internal/storage"
	"github.com/your-org/faceid/pkg/dto"
)

// SourceCleaner removes archived source images of a deleted group.
type SourceCleaner interface {
	DeleteGroupSources(ctx context.Context, groupID string) error
}

type GroupHandler struct {
	store     *storage.FSStore
	publisher events.Publisher
	archive   SourceCleaner
}

func NewGroupHandler(store *storage.FSStore, publisher events.Publisher, archive SourceCleaner) *GroupHandler {
	return &GroupHandler{store: store, publisher: publisher, archive: archive}
}

func formatTime(t *time.Time) string {
	if t == nil {
		return ""
	}
	return t.UTC().Format(time.RFC3339)
}

func personResponses(in []models.PersonSummary) []dto.PersonResponse {
	out := make([]dto.PersonResponse, 0, len(in))
	for _, p := range in {
		out = append(out, dto.PersonResponse{
			PersonID:    p.PersonID,
			Kind:        string(p.Kind),
			FaceCount:   p.FaceCount,
			CreatedAt:   formatTime(p.CreatedAt),
			LastUpdated: formatTime(p.LastUpdated),
			Metadata:    p.Metadata,
		})
	}
	return out
}

func (h *GroupHandler) ListPersons(c *gin.Context) {
	groupID := c.Param("group_id")

	listing, err := h.store.ListPersons(groupID)
	if err != nil {
		writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.PersonListResponse{
		GroupID: groupID,
		Users: dto.PersonGroups{
			Permanent: personResponses(listing.Permanent),
			Temporary: personResponses(listing.Temporary),
		},
		Summary: dto.PersonSummary{
			TotalUsers:     listing.Total(),
			PermanentUsers: len(listing.Permanent),
			TemporaryUsers: len(listing.Temporary),
		},
	})
}

// LastImage returns a person's newest sample, base64 encoded, or the raw
// JPEG with ?format=raw.
func (h *GroupHandler) LastImage(c *gin.Context) {
	personID := c.Param("person_id")

	sample, err := h.store.LatestSample(c.Param("group_id"), personID)
	if err != nil {
		writeError(c, err)
		return
	}

	if c.Query("format") == "raw" {
		c.Data(http.StatusOK, "image/jpeg", sample.Data)
		return
	}
	c.JSON(http.StatusOK, dto.LastImageResponse{
		PersonID:    personID,
		Filename:    sample.Filename,
		CreatedAt:   sample.CreatedAt.UTC().Format(time.RFC3339),
		FileSize:    sample.Size,
		ImageBase64: base64.StdEncoding.EncodeToString(sample.Data),
	})
}

func (h *GroupHandler) Delete(c *gin.Context) {
	groupID := c.Param("group_id")

	if err := h.store.DeleteGroup(groupID); err != nil {
		writeError(c, err)
		return
	}
	slog.Info("group deleted", "group_id", groupID)

	if h.archive != nil {
		if err := h.archive.DeleteGroupSources(c.Request.Context(), groupID); err != nil {
			slog.Warn("delete archived sources", "group_id", groupID, "error", err)
		}
	}
	events.Emit(c.Request.Context(), h.publisher, models.NewIdentityEvent(models.EventGroupDeleted, groupID))

	c.JSON(http.StatusOK, gin.H{"status": "deleted", "group_id": groupID})
}

// Prune removes persons that own no samples.
func (h *GroupHandler) Prune(c *gin.Context) {
	groupID := c.Param("group_id")

	pruned, err := h.store.PruneOrphans(groupID)
	if pruned == nil {
		pruned = []string{}
	}
	resp := dto.PruneResponse{GroupID: groupID, Pruned: pruned}
	if err != nil {
		if len(pruned) == 0 {
			writeError(c, err)
			return
		}
		c.JSON(http.StatusMultiStatus, resp)
		return
	}
	c.JSON(http.StatusOK, resp)
}
