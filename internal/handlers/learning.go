package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/bytesecuritas/sensi-back/internal/middleware"
)

func (h HandlerSet) AssociatePath(c *gin.Context) {
	link, err := h.learning.Associate(c.Request.Context(), c.Param("orgId"), c.Param("parcoursId"))
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusCreated, associationResponse{
		ID:             link.ID,
		OrganisationID: link.OrganisationID,
		LearningPathID: link.LearningPathID,
		Active:         link.Active,
		AddedAt:        link.AddedAt,
	})
}

func (h HandlerSet) RetractPath(c *gin.Context) {
	if err := h.learning.Retract(c.Request.Context(), c.Param("orgId"), c.Param("parcoursId")); err != nil {
		h.fail(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h HandlerSet) OrganisationPaths(c *gin.Context) {
	paths, err := h.learning.OrganisationPaths(c.Request.Context(), c.Param("orgId"))
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"items": newLearningPathResponses(paths)})
}

func (h HandlerSet) AvailablePaths(c *gin.Context) {
	paths, err := h.learning.AvailablePaths(c.Request.Context(), middleware.CallerFrom(c))
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"items": newLearningPathResponses(paths)})
}

func (h HandlerSet) CheckAccess(c *gin.Context) {
	ok := h.learning.HasAccess(c.Request.Context(), middleware.CallerFrom(c), c.Param("parcoursId"))
	c.JSON(http.StatusOK, gin.H{"has_access": ok})
}
