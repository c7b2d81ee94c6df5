package dto

import (
	"time"

	"github.com/yukikurage/taskboard/internal/models"
)

// UserSummaryDTO represents a user nested in other responses
type UserSummaryDTO struct {
	ID   uint64 `json:"id"`
	Name string `json:"name"`
}

// UserDTO represents a user in API responses
type UserDTO struct {
	ID        uint64    `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	Role      *string   `json:"role"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// SessionDTO is returned on signup and login. The token authenticates
// later requests through the Authentication header.
type SessionDTO struct {
	User      UserDTO `json:"user"`
	AuthToken string  `json:"auth_token"`
}

// ToUserSummaryDTO converts a User model to UserSummaryDTO
func ToUserSummaryDTO(user models.User) UserSummaryDTO {
	return UserSummaryDTO{
		ID:   user.ID,
		Name: user.Name,
	}
}

// ToUserDTO converts a User model to UserDTO
func ToUserDTO(user models.User) UserDTO {
	dto := UserDTO{
		ID:        user.ID,
		Email:     user.Email,
		Name:      user.Name,
		CreatedAt: user.CreatedAt,
		UpdatedAt: user.UpdatedAt,
	}
	if user.Role != nil {
		role := user.Role.Name
		dto.Role = &role
	}
	return dto
}

// ToSessionDTO pairs a user with its auth token
func ToSessionDTO(user models.User) SessionDTO {
	return SessionDTO{
		User:      ToUserDTO(user),
		AuthToken: user.AuthToken,
	}
}

// ToUserSummaryDTOs converts users for the assignee picker
func ToUserSummaryDTOs(users []models.User) []UserSummaryDTO {
	out := make([]UserSummaryDTO, len(users))
	for i, user := range users {
		out[i] = ToUserSummaryDTO(user)
	}
	return out
}
