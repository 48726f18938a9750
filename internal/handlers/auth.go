package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/bytesecuritas/sensi-back/internal/middleware"
	"github.com/bytesecuritas/sensi-back/internal/models"
	"github.com/bytesecuritas/sensi-back/internal/security"
	"github.com/bytesecuritas/sensi-back/internal/service"
)

// registerRequest is validated by the service, after the creation authority
// check, so that unauthorised callers learn nothing about the payload rules.
type registerRequest struct {
	Email          string  `json:"email"`
	Password       string  `json:"password"`
	Nom            string  `json:"nom"`
	Prenom         string  `json:"prenom"`
	Age            int     `json:"age"`
	Role           string  `json:"role"`
	LanguageCode   string  `json:"code_langue"`
	OrganisationID *string `json:"organisation_id"`
}

func (h HandlerSet) Register(c *gin.Context) {
	var req registerRequest
	if !h.bind(c, &req) {
		return
	}

	user, err := h.auth.Register(c.Request.Context(), middleware.CallerFrom(c), service.RegisterInput{
		Email:          req.Email,
		Password:       req.Password,
		Nom:            req.Nom,
		Prenom:         req.Prenom,
		Age:            req.Age,
		Role:           models.UserRole(req.Role),
		LanguageCode:   req.LanguageCode,
		OrganisationID: req.OrganisationID,
	})
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusCreated, newUserResponse(user))
}

type loginRequest struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,min=8"`
}

type tokenResponse struct {
	AccessToken      string `json:"access_token"`
	RefreshToken     string `json:"refresh_token"`
	TokenType        string `json:"token_type"`
	ExpiresAt        int64  `json:"expires_at"`
	RefreshExpiresAt int64  `json:"refresh_expires_at"`
}

func (h HandlerSet) Login(c *gin.Context) {
	var req loginRequest
	if !h.bind(c, &req) {
		return
	}

	pair, err := h.auth.Login(c.Request.Context(), req.Email, req.Password)
	if err != nil {
		h.fail(c, err)
		return
	}

	sendTokens(c, pair)
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

func (h HandlerSet) Refresh(c *gin.Context) {
	var req refreshRequest
	if !h.bind(c, &req) {
		return
	}

	pair, err := h.auth.Refresh(c.Request.Context(), req.RefreshToken)
	if err != nil {
		h.fail(c, err)
		return
	}

	sendTokens(c, pair)
}

func (h HandlerSet) Profile(c *gin.Context) {
	profile, err := h.auth.Profile(c.Request.Context(), middleware.CallerFrom(c))
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusOK, newProfileResponse(profile))
}

func sendTokens(c *gin.Context, pair security.TokenPair) {
	c.JSON(http.StatusOK, tokenResponse{
		AccessToken:      pair.AccessToken,
		RefreshToken:     pair.RefreshToken,
		TokenType:        "Bearer",
		ExpiresAt:        pair.AccessExpiresAt.Unix(),
		RefreshExpiresAt: pair.RefreshExpiresAt.Unix(),
	})
}
