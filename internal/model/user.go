package model

import "time"

type Role string

const (
	RoleMember Role = "Member"
	RoleAdmin  Role = "Admin"
)

type User struct {
	ID           string    `gorm:"type:uuid;primaryKey" json:"id"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
	Name         string    `gorm:"size:120;not null" json:"name"`
	Email        string    `gorm:"size:255;uniqueIndex" json:"email"`
	PasswordHash string    `gorm:"size:255" json:"-"`
	Role         Role      `gorm:"size:16;not null;default:'Member'" json:"role"`
	AvatarURL    string    `gorm:"type:text" json:"avatarUrl,omitempty"`

	// PushToken is the device registration used for notification fan-out.
	// Empty means the user never registered a device.
	PushToken string `gorm:"size:512" json:"-"`
}

func (User) TableName() string {
	return "users"
}

func (u *User) Elevated() bool {
	return u.Role == RoleAdmin
}
