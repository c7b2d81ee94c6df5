package models

type RoleName string

const (
	RoleAdmin RoleName = "admin"
)

// RoleNames lists every role the application knows about.
var RoleNames = []RoleName{RoleAdmin}

// Valid reports whether r is one of RoleNames.
func (r RoleName) Valid() bool {
	for _, name := range RoleNames {
		if r == name {
			return true
		}
	}
	return false
}

type Role struct {
	ID   uint64 `gorm:"primarykey" json:"id"`
	Name string `gorm:"type:varchar(50);uniqueIndex;not null" json:"name"`

	// Relations
	Users []User `gorm:"foreignKey:RoleID" json:"-"`
}
