package handlers

import (
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/your-org/faceid/internal/apperrors"
	"github.com/your-org/faceid/internal/models"
	"github.com/your-org/faceid/internal/reconcile"
	"github.com/your-org/faceid/internal/storage"
	"github.com/your-org/faceid/pkg/dto"
)

const maxUploadBytes = 32 << 20

type FaceHandler struct {
	engines *reconcile.Holder
}

func NewFaceHandler(engines *reconcile.Holder) *FaceHandler {
	return &FaceHandler{engines: engines}
}

type upload struct {
	name string
	data []byte
}

// readUploads accepts either multipart "image" files or a JSON body of
// base64 images.
func readUploads(c *gin.Context) ([]upload, error) {
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadBytes)

	if strings.HasPrefix(c.ContentType(), "multipart/") {
		form, err := c.MultipartForm()
		if err != nil {
			return nil, fmt.Errorf("%w: %v", apperrors.ErrInvalidInput, err)
		}
		var uploads []upload
		for _, header := range append(form.File["image"], form.File["images"]...) {
			file, err := header.Open()
			if err != nil {
				return nil, fmt.Errorf("%w: open %s: %v", apperrors.ErrInvalidInput, header.Filename, err)
			}
			data, err := io.ReadAll(file)
			file.Close()
			if err != nil {
				return nil, fmt.Errorf("%w: read %s: %v", apperrors.ErrInvalidInput, header.Filename, err)
			}
			uploads = append(uploads, upload{name: header.Filename, data: data})
		}
		if len(uploads) == 0 {
			return nil, fmt.Errorf("%w: image file is required", apperrors.ErrInvalidInput)
		}
		return uploads, nil
	}

	var req dto.IngestRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		return nil, fmt.Errorf("%w: %v", apperrors.ErrInvalidInput, err)
	}
	encoded := req.Images
	if req.Image != "" {
		encoded = append(encoded, req.Image)
	}
	if len(encoded) == 0 {
		return nil, fmt.Errorf("%w: images are required", apperrors.ErrInvalidInput)
	}

	uploads := make([]upload, 0, len(encoded))
	for i, s := range encoded {
		data, err := decodeBase64Image(s)
		if err != nil {
			return nil, fmt.Errorf("%w: image %d: %v", apperrors.ErrInvalidInput, i, err)
		}
		name := req.SourceName
		if name == "" {
			name = fmt.Sprintf("upload_%d.jpg", i)
		}
		uploads = append(uploads, upload{name: name, data: data})
	}
	return uploads, nil
}

// decodeBase64Image strips an optional data URL prefix.
func decodeBase64Image(s string) ([]byte, error) {
	if i := strings.Index(s, ","); strings.HasPrefix(s, "data:") && i >= 0 {
		s = s[i+1:]
	}
	return base64.StdEncoding.DecodeString(strings.TrimSpace(s))
}

func region(r models.Region) dto.FacialArea {
	return dto.FacialArea{X: r.X, Y: r.Y, W: r.W, H: r.H}
}

// Ingest reconciles the faces of every uploaded image into the group.
// ?kind= selects the kind of new identities.
func (h *FaceHandler) Ingest(c *gin.Context) {
	h.ingest(c, c.Query("kind"))
}

// Train ingests with new identities created as permanent.
func (h *FaceHandler) Train(c *gin.Context) {
	h.ingest(c, string(models.KindPermanent))
}

func (h *FaceHandler) ingest(c *gin.Context, kindParam string) {
	engine := h.engines.Load()
	groupID := c.Param("group_id")

	if err := storage.ValidateID("group_id", groupID); err != nil {
		writeError(c, err)
		return
	}
	kind, err := models.ParseKind(kindParam, engine.Settings().Kind())
	if err != nil {
		writeError(c, fmt.Errorf("%w: %v", apperrors.ErrInvalidInput, err))
		return
	}
	uploads, err := readUploads(c)
	if err != nil {
		writeError(c, err)
		return
	}

	resp := dto.IngestResponse{GroupID: groupID, Kind: string(kind), Images: make([]dto.ImageResult, 0, len(uploads))}
	// cause is the first image or face level error, used for the status
	// when nothing succeeded.
	var firstErr, cause error
	succeeded := 0
	for i, up := range uploads {
		res, err := engine.Ingest(c.Request.Context(), reconcile.IngestRequest{
			GroupID:    groupID,
			Image:      up.data,
			SourceName: up.name,
			Kind:       kind,
		})
		img := dto.ImageResult{ImageIndex: i, Faces: []dto.FaceResult{}}
		if res == nil {
			img.Error = errString(err)
			if firstErr == nil {
				firstErr = err
			}
			if cause == nil {
				cause = err
			}
			resp.Images = append(resp.Images, img)
			continue
		}

		img.ArchiveKey = res.ArchiveKey
		for _, f := range res.Faces {
			if f.Err != nil && cause == nil {
				cause = f.Err
			}
			img.Faces = append(img.Faces, dto.FaceResult{
				FaceIndex:             f.FaceIndex,
				FacialArea:            region(f.Region),
				PersonID:              f.PersonID,
				IsNewPerson:           f.IsNewPerson,
				IsTempUser:            f.IsTempUser,
				Confidence:            f.Confidence,
				ConfidenceApproximate: f.Approximate,
				RecognitionType:       string(f.RecognitionType),
				ClosestMatch:          f.ClosestMatch,
				Uncertain:             f.Uncertain,
				SavedTo:               f.SampleFile,
				Error:                 errString(f.Err),
			})
		}
		resp.FacesProcessed += len(res.Faces) - res.Failed()
		resp.FacesFailed += res.Failed()
		if res.Failed() < len(res.Faces) {
			succeeded++
		}
		if err != nil && firstErr == nil {
			firstErr = err
		}
		resp.Images = append(resp.Images, img)
	}

	switch {
	case firstErr == nil:
		c.JSON(http.StatusOK, resp)
	case succeeded == 0:
		c.JSON(statusFor(cause), resp)
	default:
		c.JSON(http.StatusMultiStatus, resp)
	}
}

// Recognize identifies faces without storing anything.
func (h *FaceHandler) Recognize(c *gin.Context) {
	engine := h.engines.Load()
	groupID := c.Param("group_id")

	if err := storage.ValidateID("group_id", groupID); err != nil {
		writeError(c, err)
		return
	}
	uploads, err := readUploads(c)
	if err != nil {
		writeError(c, err)
		return
	}

	resp := dto.RecognizeResponse{GroupID: groupID, Images: make([]dto.RecognizeImageResult, 0, len(uploads))}
	failed := 0
	var lastErr error
	for i, up := range uploads {
		img := dto.RecognizeImageResult{ImageIndex: i, Faces: []dto.RecognizedFace{}}
		faces, err := engine.Recognize(c.Request.Context(), groupID, up.data)
		if err != nil {
			// A group without a corpus fails every image the same way.
			if errors.Is(err, apperrors.ErrNotFound) {
				writeError(c, err)
				return
			}
			img.Error = err.Error()
			failed++
			lastErr = err
		}
		for _, f := range faces {
			img.Faces = append(img.Faces, dto.RecognizedFace{
				FaceIndex:             f.FaceIndex,
				FacialArea:            region(f.Region),
				Recognized:            f.PersonID != "",
				PersonID:              f.PersonID,
				IsTempUser:            f.IsTempUser,
				Confidence:            f.Confidence,
				ConfidenceApproximate: f.Approximate,
				ClosestMatch:          f.ClosestMatch,
				Uncertain:             f.Uncertain,
				Error:                 errString(f.Err),
			})
		}
		resp.Images = append(resp.Images, img)
	}

	if failed == len(uploads) {
		writeError(c, lastErr)
		return
	}
	if failed > 0 {
		c.JSON(http.StatusMultiStatus, resp)
		return
	}
	c.JSON(http.StatusOK, resp)
}
