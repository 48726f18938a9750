package handlers

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/bytesecuritas/sensi-back/internal/errs"
	"github.com/bytesecuritas/sensi-back/internal/models"
	"github.com/bytesecuritas/sensi-back/internal/service"
)

type organisationRequest struct {
	Nom          string `json:"nom"`
	Type         string `json:"type"`
	CountryCode  string `json:"code_pays"`
	CreationDate string `json:"date_creation"`
}

func (h HandlerSet) CreateOrganisation(c *gin.Context) {
	var req organisationRequest
	if !h.bind(c, &req) {
		return
	}

	creationDate, err := parseDate(req.CreationDate)
	if err != nil {
		h.fail(c, err)
		return
	}

	org, err := h.organisations.Create(c.Request.Context(), service.OrganisationInput{
		Name:         req.Nom,
		Type:         models.OrganisationType(req.Type),
		CountryCode:  req.CountryCode,
		CreationDate: creationDate,
	})
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusCreated, newOrganisationResponse(org))
}

func (h HandlerSet) ListOrganisations(c *gin.Context) {
	orgs, err := h.organisations.List(c.Request.Context())
	if err != nil {
		h.fail(c, err)
		return
	}

	items := make([]organisationResponse, 0, len(orgs))
	for _, org := range orgs {
		items = append(items, newOrganisationResponse(org))
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func (h HandlerSet) GetOrganisation(c *gin.Context) {
	org, err := h.organisations.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, newOrganisationResponse(org))
}

func (h HandlerSet) OrganisationStats(c *gin.Context) {
	stats, err := h.organisations.Stats(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, organisationStatsResponse{
		TotalUsers: stats.TotalUsers,
		Admins:     stats.Admins,
		Users:      stats.Users,
	})
}

func (h HandlerSet) OrganisationMembers(c *gin.Context) {
	members, err := h.organisations.Members(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"items": newUserResponses(members)})
}

type organisationPatchRequest struct {
	Nom          *string `json:"nom"`
	Type         *string `json:"type"`
	CountryCode  *string `json:"code_pays"`
	CreationDate *string `json:"date_creation"`
}

func (h HandlerSet) UpdateOrganisation(c *gin.Context) {
	var req organisationPatchRequest
	if !h.bind(c, &req) {
		return
	}

	update := service.OrganisationUpdate{
		Name:        req.Nom,
		CountryCode: req.CountryCode,
	}
	if req.Type != nil {
		t := models.OrganisationType(*req.Type)
		update.Type = &t
	}
	if req.CreationDate != nil {
		date, err := parseDate(*req.CreationDate)
		if err != nil {
			h.fail(c, err)
			return
		}
		update.CreationDate = date
	}

	org, err := h.organisations.Update(c.Request.Context(), c.Param("id"), update)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, newOrganisationResponse(org))
}

func (h HandlerSet) DeleteOrganisation(c *gin.Context) {
	if err := h.organisations.Delete(c.Request.Context(), c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

func (h HandlerSet) DetachMember(c *gin.Context) {
	if err := h.organisations.DetachMember(c.Request.Context(), c.Param("id"), c.Param("userId")); err != nil {
		h.fail(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// parseDate accepts a calendar date or an RFC 3339 timestamp. Empty input
// yields nil.
func parseDate(value string) (*time.Time, error) {
	if value == "" {
		return nil, nil
	}
	for _, layout := range []string{dateLayout, time.RFC3339} {
		if t, err := time.Parse(layout, value); err == nil {
			return &t, nil
		}
	}
	return nil, errs.Invalid("date_creation", "date_creation must be YYYY-MM-DD")
}
