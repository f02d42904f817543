package lock

import (
	"net/http"

	"github.com/districtr/districtr-v2-sub000/internal/errors"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

type LockRequest struct {
	UserID string `json:"user_id" binding:"required"`
}

func (h *Handler) Checkout(c *gin.Context) {
	var form LockRequest
	if err := c.ShouldBindJSON(&form); err != nil {
		c.Error(errors.NewValidationError(err))
		return
	}

	status, err := h.service.Checkout(c.Request.Context(), c.Param("id"), form.UserID)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"status": status})
}

func (h *Handler) Release(c *gin.Context) {
	var form LockRequest
	if err := c.ShouldBindJSON(&form); err != nil {
		c.Error(errors.NewValidationError(err))
		return
	}

	if err := h.service.Release(c.Request.Context(), c.Param("id"), form.UserID); err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{})
}
