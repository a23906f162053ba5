package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/your-org/faceid/internal/merge"
	"github.com/your-org/faceid/pkg/dto"
)

type MergeHandler struct {
	coordinator *merge.Coordinator
}

func NewMergeHandler(coordinator *merge.Coordinator) *MergeHandler {
	return &MergeHandler{coordinator: coordinator}
}

func (h *MergeHandler) Merge(c *gin.Context) {
	var req dto.MergeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, dto.ErrorResponse{Error: err.Error()})
		return
	}

	res, err := h.coordinator.Merge(c.Request.Context(), merge.Request{
		GroupID:         c.Param("group_id"),
		SourcePersonIDs: req.SourcePersonIDs,
		TargetPersonID:  req.TargetPersonID,
	})
	if res == nil {
		writeError(c, err)
		return
	}

	resp := dto.MergeResponse{
		GroupID:          res.GroupID,
		TargetPersonID:   res.TargetPersonID,
		TargetExisted:    res.TargetExisted,
		CreatedFromMerge: res.CreatedFromMerge,
		MergedSources:    make([]dto.MergedSource, 0, len(res.MergedSources)),
		TotalFacesMoved:  res.TotalFacesMoved,
		Errors:           make([]dto.MergeFailure, 0, len(res.Failures)),
	}
	for _, s := range res.MergedSources {
		resp.MergedSources = append(resp.MergedSources, dto.MergedSource{
			PersonID:       s.PersonID,
			FacesMoved:     s.FacesMoved,
			WasTempUser:    s.WasTempUser,
			SourceMetadata: s.SourceMetadata,
		})
	}
	for _, f := range res.Failures {
		resp.Errors = append(resp.Errors, dto.MergeFailure{PersonID: f.PersonID, File: f.File, Error: f.Err.Error()})
	}

	status := http.StatusOK
	if err != nil {
		status = statusFor(err)
	}
	c.JSON(status, resp)
}
