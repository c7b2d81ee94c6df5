package handlers

import (
	"net/http"

	"github.com/gin-contrib/sessions"
	"github.com/gin-gonic/gin"
	"github.com/yukikurage/taskboard/internal/constants"
	"github.com/yukikurage/taskboard/internal/dto"
	apierrors "github.com/yukikurage/taskboard/internal/errors"
	"github.com/yukikurage/taskboard/internal/middleware"
	"github.com/yukikurage/taskboard/internal/models"
	"github.com/yukikurage/taskboard/internal/services"
)

// AuthHandler coordinates authentication-related HTTP handlers.
type AuthHandler struct {
	authService   *services.AuthService
	secureCookies bool
}

// NewAuthHandler creates a new AuthHandler. secureCookies marks session
// cookies HTTPS only.
func NewAuthHandler(authService *services.AuthService, secureCookies bool) *AuthHandler {
	return &AuthHandler{
		authService:   authService,
		secureCookies: secureCookies,
	}
}

// Signup registers a new user and logs them in.
func (h *AuthHandler) Signup(c *gin.Context) {
	type SignupRequest struct {
		Email                string `json:"email"`
		Name                 string `json:"name"`
		Password             string `json:"password"`
		PasswordConfirmation string `json:"password_confirmation"`
		Remember             bool   `json:"remember"`
	}

	var req SignupRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	user, err := h.authService.Signup(middleware.GetActor(c), services.SignupInput{
		Email:                req.Email,
		Name:                 req.Name,
		Password:             req.Password,
		PasswordConfirmation: req.PasswordConfirmation,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}

	if !h.startSession(c, user, req.Remember) {
		return
	}
	c.JSON(http.StatusCreated, dto.ToSessionDTO(*user))
}

// Login authenticates a user and initializes the session.
func (h *AuthHandler) Login(c *gin.Context) {
	type LoginRequest struct {
		Email    string `json:"email" binding:"required"`
		Password string `json:"password" binding:"required"`
		Remember bool   `json:"remember"`
	}

	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.InvalidCredentials(c)
		return
	}

	user, err := h.authService.Login(services.LoginInput{
		Email:    req.Email,
		Password: req.Password,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}

	if !h.startSession(c, user, req.Remember) {
		return
	}
	c.JSON(http.StatusOK, dto.ToSessionDTO(*user))
}

// Logout removes the authentication session.
func (h *AuthHandler) Logout(c *gin.Context) {
	if err := clearSession(c); err != nil {
		apierrors.InternalError(c, "Failed to logout")
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Logged out successfully",
	})
}

// GetCurrentUser returns the authenticated user.
func (h *AuthHandler) GetCurrentUser(c *gin.Context) {
	actor := middleware.GetActor(c)
	if actor == nil {
		apierrors.Unauthorized(c, "Not authenticated")
		return
	}

	c.JSON(http.StatusOK, dto.ToUserDTO(*actor))
}

// startSession stores the user's token in the session. A remembered
// session outlives the browser; otherwise the cookie has no expiry.
func (h *AuthHandler) startSession(c *gin.Context, user *models.User, remember bool) bool {
	opts := sessions.Options{
		Path:     "/",
		HttpOnly: true,
		Secure:   h.secureCookies,
		SameSite: http.SameSiteLaxMode,
	}
	if remember {
		opts.MaxAge = constants.RememberMaxAge
	}

	session := sessions.Default(c)
	session.Options(opts)
	session.Set(constants.SessionKeyAuthToken, user.AuthToken)
	if err := session.Save(); err != nil {
		apierrors.InternalError(c, "Failed to save session")
		return false
	}
	return true
}

func clearSession(c *gin.Context) error {
	session := sessions.Default(c)
	session.Clear()
	session.Options(sessions.Options{Path: "/", MaxAge: -1})
	return session.Save()
}
