package plan

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

type CreateDocumentRequest struct {
	MapID string `json:"map_id" binding:"required"`
}

func (h *Handler) Create(c *gin.Context) {
	var form CreateDocumentRequest
	if err := c.ShouldBindJSON(&form); err != nil {
		c.Error(errors.NewValidationError(err))
		return
	}

	doc, err := h.service.CreateDocument(c.Request.Context(), form.MapID)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusCreated, doc)
}

func (h *Handler) Show(c *gin.Context) {
	doc, err := h.service.GetDocument(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, doc)
}

func (h *Handler) Delete(c *gin.Context) {
	if err := h.service.DeleteDocument(c.Request.Context(), c.Param("id")); err != nil {
		c.Error(err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h *Handler) ShowAssignments(c *gin.Context) {
	assignments, err := h.service.ReadAssignments(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"assignments": assignments})
}

type UpsertRequest struct {
	Assignments []AssignmentInput `json:"assignments" binding:"required"`
}

func (h *Handler) Upsert(c *gin.Context) {
	var form UpsertRequest
	if err := c.ShouldBindJSON(&form); err != nil {
		c.Error(errors.NewValidationError(err))
		return
	}

	result, err := h.service.UpsertAssignments(c.Request.Context(), c.Param("id"), form.Assignments)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, result)
}

type ShatterRequest struct {
	GeoIDs []string `json:"geo_ids" binding:"required,min=1"`
}

func (h *Handler) Shatter(c *gin.Context) {
	var form ShatterRequest
	if err := c.ShouldBindJSON(&form); err != nil {
		c.Error(errors.NewValidationError(err))
		return
	}

	result, err := h.service.Shatter(c.Request.Context(), c.Param("id"), form.GeoIDs)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, result)
}

type HealRequest struct {
	GeoIDs []string `json:"geo_ids" binding:"required,min=1"`
	Zone   int      `json:"zone" binding:"required,min=1"`
}

func (h *Handler) Unshatter(c *gin.Context) {
	var form HealRequest
	if err := c.ShouldBindJSON(&form); err != nil {
		c.Error(errors.NewValidationError(err))
		return
	}

	result, err := h.service.Heal(c.Request.Context(), c.Param("id"), form.GeoIDs, form.Zone)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *Handler) Reset(c *gin.Context) {
	if err := h.service.Reset(c.Request.Context(), c.Param("id")); err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{})
}

type DuplicateRequest struct {
	TargetDocumentID string `json:"target_document_id" binding:"required"`
}

func (h *Handler) Duplicate(c *gin.Context) {
	var form DuplicateRequest
	if err := c.ShouldBindJSON(&form); err != nil {
		c.Error(errors.NewValidationError(err))
		return
	}

	count, err := h.service.Duplicate(c.Request.Context(), c.Param("id"), form.TargetDocumentID)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"count": count})
}

type ImportRequest struct {
	Rows []ImportRow `json:"rows" binding:"required,min=1"`
}

func (h *Handler) Import(c *gin.Context) {
	var form ImportRequest
	if err := c.ShouldBindJSON(&form); err != nil {
		c.Error(errors.NewValidationError(err))
		return
	}

	result, err := h.service.Import(c.Request.Context(), c.Param("id"), form.Rows)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (h *Handler) ShowUnions(c *gin.Context) {
	unions, err := h.service.Unions(c.Request.Context(), c.Param("id"))
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"unions": unions})
}
