package models

import (
	"time"
)

type User struct {
	ID             uint64    `gorm:"primarykey" json:"id"`
	Email          string    `gorm:"type:varchar(255);uniqueIndex;not null" json:"email"`
	Name           string    `gorm:"type:varchar(30);uniqueIndex;not null" json:"name"`
	PasswordDigest string    `gorm:"type:varchar(255);not null" json:"-"`
	AuthToken      string    `gorm:"type:varchar(64);uniqueIndex;not null" json:"-"`
	RoleID         *uint64   `gorm:"index" json:"role_id"`
	CreatedAt      time.Time `json:"created_at"`
	UpdatedAt      time.Time `json:"updated_at"`

	// Relations
	Role          *Role  `gorm:"foreignKey:RoleID" json:"role,omitempty"`
	Tasks         []Task `gorm:"foreignKey:UserID" json:"-"`
	AssignedTasks []Task `gorm:"foreignKey:AssigneeID" json:"-"`
}

// HasRole reports whether u holds the named role. A nil user or a user
// without a loaded role holds no role.
func HasRole(u *User, name RoleName) bool {
	if u == nil || u.Role == nil {
		return false
	}
	return u.Role.Name == string(name)
}

// IsAdmin is shorthand for HasRole(u, RoleAdmin).
func (u *User) IsAdmin() bool {
	return HasRole(u, RoleAdmin)
}

// Is reports whether u and other denote the same persisted user.
func (u *User) Is(other *User) bool {
	if u == nil || other == nil {
		return false
	}
	return u.ID != 0 && u.ID == other.ID
}
