package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/yukikurage/taskboard/internal/dto"
	apierrors "github.com/yukikurage/taskboard/internal/errors"
	"github.com/yukikurage/taskboard/internal/middleware"
	"github.com/yukikurage/taskboard/internal/services"
	"github.com/yukikurage/taskboard/internal/utils"
)

type UserHandler struct {
	userService *services.UserService
}

func NewUserHandler(userService *services.UserService) *UserHandler {
	return &UserHandler{
		userService: userService,
	}
}

// GetUser returns a user profile
// User is already loaded by LoadUser middleware
func (h *UserHandler) GetUser(c *gin.Context) {
	user := middleware.GetUser(c)
	if err := h.userService.ShowUser(middleware.GetActor(c), user); err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToUserDTO(*user))
}

// UpdateUser changes the fields the actor may set. Others are ignored.
func (h *UserHandler) UpdateUser(c *gin.Context) {
	type UpdateUserRequest struct {
		Email                *string `json:"email"`
		Name                 *string `json:"name"`
		Password             *string `json:"password"`
		PasswordConfirmation *string `json:"password_confirmation"`
		Role                 *string `json:"role"`
	}

	var req UpdateUserRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		apierrors.BadRequest(c, "Invalid request body")
		return
	}

	updated, err := h.userService.UpdateUser(middleware.GetActor(c), middleware.GetUser(c), services.UpdateUserInput{
		Email:                req.Email,
		Name:                 req.Name,
		Password:             req.Password,
		PasswordConfirmation: req.PasswordConfirmation,
		Role:                 req.Role,
	})
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToUserDTO(*updated))
}

// DeleteUser removes the user with their tasks. Deleting yourself also
// ends your session.
func (h *UserHandler) DeleteUser(c *gin.Context) {
	actor := middleware.GetActor(c)
	user := middleware.GetUser(c)

	if err := h.userService.DestroyUser(c.Request.Context(), actor, user); err != nil {
		respondServiceError(c, err)
		return
	}

	if actor.Is(user) {
		if err := clearSession(c); err != nil {
			apierrors.InternalError(c, "Failed to clear session")
			return
		}
	}

	c.Status(http.StatusNoContent)
}

// ListUserTasks returns the tasks shown on a user's page
func (h *UserHandler) ListUserTasks(c *gin.Context) {
	page := utils.GetPaginationParams(c)

	tasks, total, err := h.userService.ListUserTasks(middleware.GetActor(c), middleware.GetUser(c), page)
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, dto.ToTaskListResponse(tasks, page, total))
}

// ListRoles returns the roles that can be granted
func (h *UserHandler) ListRoles(c *gin.Context) {
	roles, err := h.userService.ListRoles()
	if err != nil {
		respondServiceError(c, err)
		return
	}

	names := make([]string, len(roles))
	for i, role := range roles {
		names[i] = role.Name
	}
	c.JSON(http.StatusOK, gin.H{
		"roles": names,
	})
}

// ListAssignees returns every user that can be picked as an assignee
func (h *UserHandler) ListAssignees(c *gin.Context) {
	users, err := h.userService.ListAssignees()
	if err != nil {
		respondServiceError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"users": dto.ToUserSummaryDTOs(users),
	})
}
