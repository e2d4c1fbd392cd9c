package users

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"resume-builder/internal/shared/server/middleware"
	"resume-builder/internal/shared/server/respond"
)

type Handler struct {
	Svc *Service
}

func NewHandler(svc *Service) *Handler {
	return &Handler{Svc: svc}
}

func (h *Handler) RegisterRoutes(rg *gin.RouterGroup) {
	rg.GET("/me", h.me)
}

// me describes the caller. Guests get their guest id back; signed-in users
// get the stored account, falling back to the token claims when no row exists.
func (h *Handler) me(c *gin.Context) {
	userID := middleware.UserIDFromContext(c)
	if middleware.IsGuest(c) {
		respond.OK(c, gin.H{"id": userID, "guest": true})
		return
	}

	user, err := h.Svc.GetByID(c.Request.Context(), userID)
	switch {
	case errors.Is(err, ErrNotFound):
		respond.OK(c, gin.H{
			"id":         userID,
			"email":      middleware.UserEmailFromContext(c),
			"name":       middleware.UserNameFromContext(c),
			"pictureUrl": middleware.UserPictureFromContext(c),
			"guest":      false,
		})
	case err != nil:
		respond.Error(c, http.StatusInternalServerError, "internal_error", "failed to load user", nil)
	default:
		respond.OK(c, gin.H{
			"id":         user.ID,
			"email":      user.Email,
			"name":       user.Name,
			"pictureUrl": user.PictureURL,
			"guest":      false,
		})
	}
}
