package resumes

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"resume-builder/internal/shared/server/middleware"
	"resume-builder/internal/shared/server/respond"
	"resume-builder/resume/model"
)

// maxPreviewBody bounds the JSON body of a preview upload. Base64 inflates
// the image by a third.
const maxPreviewBody = 8 << 20

// Handler wires HTTP handlers to the service.
type Handler struct {
	Svc *Service
}

// NewHandler constructs a Handler.
func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

// CreateRoute is the route key used for rate-limit grouping.
const CreateRoute = "POST /api/v1/resumes"

// RegisterRoutes attaches resume routes to the router group.
func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.POST("/resumes", h.create)
	rg.GET("/resumes", h.list)
	rg.GET("/resumes/:id", h.get)
	rg.PATCH("/resumes/:id", h.update)
	rg.POST("/resumes/:id/preview", h.uploadPreview)
	rg.GET("/resumes/:id/document", h.document)
}

func (h *Handler) create(c *gin.Context) {
	var in CreateInput
	if err := c.ShouldBindJSON(&in); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}
	c.Set(middleware.ProfileIDKey, in.ProfileID)

	out, err := h.Svc.Create(c.Request.Context(), middleware.UserIDFromContext(c), in)
	if err != nil {
		var genErr *GenerationError
		if errors.As(err, &genErr) {
			c.Set(middleware.ResumeIDKey, genErr.ResumeID)
			c.Set(middleware.StatusTransitionKey, fmt.Sprintf("%s->%s", StatusPending, StatusFailed))
		}
		writeError(c, err)
		return
	}
	c.Set(middleware.ResumeIDKey, out.ID)
	c.Set(middleware.StatusTransitionKey, fmt.Sprintf("%s->%s", StatusPending, StatusGenerated))
	respond.JSON(c, http.StatusCreated, out)
}

// get answers 200 null for a resume the caller cannot see.
func (h *Handler) get(c *gin.Context) {
	id := c.Param("id")
	c.Set(middleware.ResumeIDKey, id)
	res, err := h.Svc.Get(c.Request.Context(), middleware.UserIDFromContext(c), id)
	if errors.Is(err, ErrNotFound) {
		respond.OK(c, nil)
		return
	}
	if err != nil {
		writeError(c, err)
		return
	}
	respond.OK(c, res)
}

func (h *Handler) list(c *gin.Context) {
	profileID := c.Query("profileId")
	if profileID != "" {
		c.Set(middleware.ProfileIDKey, profileID)
	}
	out, err := h.Svc.List(c.Request.Context(), middleware.UserIDFromContext(c), profileID)
	if err != nil {
		writeError(c, err)
		return
	}
	respond.OK(c, out)
}

func (h *Handler) update(c *gin.Context) {
	id := c.Param("id")
	c.Set(middleware.ResumeIDKey, id)

	var patch ContentPatch
	if err := c.ShouldBindJSON(&patch); err != nil {
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}
	res, err := h.Svc.Update(c.Request.Context(), middleware.UserIDFromContext(c), id, patch)
	if err != nil {
		writeError(c, err)
		return
	}
	respond.OK(c, res)
}

type previewRequest struct {
	ResumeID string        `json:"resumeId"`
	Image    *ImagePayload `json:"image"`
}

func (h *Handler) uploadPreview(c *gin.Context) {
	id := c.Param("id")
	c.Set(middleware.ResumeIDKey, id)
	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxPreviewBody)

	var req previewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		if errors.Is(err, ErrInvalidImage) {
			respond.Error(c, http.StatusBadRequest, "invalid_image", err.Error(), nil)
			return
		}
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid request body", nil)
		return
	}
	if req.ResumeID != "" && req.ResumeID != id {
		respond.Error(c, http.StatusBadRequest, "validation_error", "resumeId does not match path", nil)
		return
	}
	if req.Image == nil {
		respond.Error(c, http.StatusBadRequest, "invalid_image", "image is required", nil)
		return
	}

	res, err := h.Svc.UploadPreview(c.Request.Context(), middleware.UserIDFromContext(c), id, *req.Image)
	if err != nil {
		writeError(c, err)
		return
	}
	respond.OK(c, res)
}

func (h *Handler) document(c *gin.Context) {
	id := c.Param("id")
	c.Set(middleware.ResumeIDKey, id)

	doc, err := h.Svc.RenderDocument(c.Request.Context(), middleware.UserIDFromContext(c), id, c.Query("format"))
	if err != nil {
		writeError(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", doc.FileName))
	c.Data(http.StatusOK, doc.ContentType, doc.Data)
}

func writeError(c *gin.Context, err error) {
	var verr *model.ValidationError
	var genErr *GenerationError
	switch {
	case errors.As(err, &verr):
		respond.Error(c, http.StatusBadRequest, "validation_error", "invalid input", verr.Fields)
	case errors.Is(err, ErrInvalidInput):
		respond.Error(c, http.StatusBadRequest, "validation_error", err.Error(), nil)
	case errors.Is(err, ErrInvalidImage):
		respond.Error(c, http.StatusBadRequest, "invalid_image", err.Error(), nil)
	case errors.Is(err, ErrUnsupportedFormat):
		respond.Error(c, http.StatusBadRequest, "unsupported_format", err.Error(), nil)
	case errors.Is(err, ErrProfileNotFound):
		respond.Error(c, http.StatusNotFound, "not_found", "profile not found", nil)
	case errors.Is(err, ErrNotFound):
		respond.Error(c, http.StatusNotFound, "not_found", "resume not found", nil)
	case errors.As(err, &genErr):
		respond.Error(c, http.StatusBadGateway, "generation_failed", "resume generation failed", gin.H{"resumeId": genErr.ResumeID})
	case errors.Is(err, ErrUploadFailed):
		respond.Error(c, http.StatusBadGateway, "upload_failed", "failed to upload image", nil)
	default:
		respond.Error(c, http.StatusInternalServerError, "internal_error", "request failed", nil)
	}
}
