package handlers

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/your-org/faceid/internal/storage"
	"github.com/your-org/faceid/pkg/dto"
)

type EventHandler struct {
	db *storage.PostgresStore
}

func NewEventHandler(db *storage.PostgresStore) *EventHandler {
	return &EventHandler{db: db}
}

// List returns a group's audit trail, newest first.
func (h *EventHandler) List(c *gin.Context) {
	if h.db == nil {
		c.JSON(http.StatusServiceUnavailable, dto.ErrorResponse{Error: "audit log not configured"})
		return
	}
	groupID := c.Param("group_id")
	if err := storage.ValidateID("group_id", groupID); err != nil {
		writeError(c, err)
		return
	}

	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "50"))
	offset, _ := strconv.Atoi(c.DefaultQuery("offset", "0"))

	evs, total, err := h.db.ListEvents(c.Request.Context(), groupID, limit, offset)
	if err != nil {
		c.JSON(http.StatusInternalServerError, dto.ErrorResponse{Error: err.Error()})
		return
	}

	c.JSON(http.StatusOK, dto.EventListResponse{
		GroupID: groupID,
		Events:  evs,
		Total:   total,
		Limit:   limit,
		Offset:  offset,
	})
}
