package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/bytesecuritas/sensi-back/internal/middleware"
	"github.com/bytesecuritas/sensi-back/internal/models"
	"github.com/bytesecuritas/sensi-back/internal/service"
)

func (h HandlerSet) ListUsers(c *gin.Context) {
	var (
		users []models.User
		err   error
	)
	caller := middleware.CallerFrom(c)
	if role := c.Query("role"); role != "" {
		users, err = h.users.ListByRole(c.Request.Context(), caller, models.UserRole(role))
	} else {
		users, err = h.users.List(c.Request.Context(), caller)
	}
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"items": newUserResponses(users)})
}

func (h HandlerSet) GetUser(c *gin.Context) {
	user, err := h.users.Get(c.Request.Context(), middleware.CallerFrom(c), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, newUserResponse(user))
}

type updateUserRequest struct {
	Nom               *string `json:"nom"`
	Prenom            *string `json:"prenom"`
	Age               *int    `json:"age"`
	LanguageCode      *string `json:"code_langue"`
	Email             *string `json:"email"`
	Role              *string `json:"role"`
	OrganisationID    *string `json:"organisation_id"`
	ClearOrganisation bool    `json:"clear_organisation"`
}

func (h HandlerSet) UpdateUser(c *gin.Context) {
	var req updateUserRequest
	if !h.bind(c, &req) {
		return
	}

	input := service.UpdateInput{
		Nom:               req.Nom,
		Prenom:            req.Prenom,
		Age:               req.Age,
		LanguageCode:      req.LanguageCode,
		Email:             req.Email,
		OrganisationID:    req.OrganisationID,
		ClearOrganisation: req.ClearOrganisation,
	}
	if req.Role != nil {
		role := models.UserRole(*req.Role)
		input.Role = &role
	}

	user, err := h.users.Update(c.Request.Context(), middleware.CallerFrom(c), c.Param("id"), input)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, newUserResponse(user))
}

func (h HandlerSet) DeleteUser(c *gin.Context) {
	if err := h.users.Delete(c.Request.Context(), middleware.CallerFrom(c), c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required"`
}

func (h HandlerSet) ChangePassword(c *gin.Context) {
	var req changePasswordRequest
	if !h.bind(c, &req) {
		return
	}

	err := h.users.ChangePassword(c.Request.Context(), middleware.CallerFrom(c), c.Param("id"), req.CurrentPassword, req.NewPassword)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.Status(http.StatusNoContent)
}
