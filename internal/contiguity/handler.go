package contiguity

import (
	"net/http"
	"strconv"

	"github.com/districtr/districtr-v2-sub000/internal/errors"
	"github.com/districtr/districtr-v2-sub000/internal/utils"

	"github.com/gin-gonic/gin"
)

type Handler struct {
	service Service
}

func NewHandler(service Service) *Handler {
	return &Handler{service: service}
}

func (h *Handler) ShowComponents(c *gin.Context) {
	zones, err := utils.ParseZones(c)
	if err != nil {
		c.Error(errors.BadRequest("Invalid zones parameter", err))
		return
	}

	counts, err := h.service.ConnectedComponents(c.Request.Context(), c.Param("id"), zones)
	if err != nil {
		c.Error(err)
		return
	}

	// JSON object keys are strings, so render zone keys explicitly
	out := make(map[string]int, len(counts))
	for zone, n := range counts {
		out[strconv.Itoa(zone)] = n
	}
	c.JSON(http.StatusOK, out)
}

func (h *Handler) ShowBBoxes(c *gin.Context) {
	zone, err := strconv.Atoi(c.Param("zone"))
	if err != nil {
		c.Error(errors.BadRequest("Invalid zone", err))
		return
	}

	boxes, err := h.service.ComponentBBoxes(c.Request.Context(), c.Param("id"), zone)
	if err != nil {
		c.Error(err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"bboxes": boxes})
}
