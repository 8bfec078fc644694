package bans

import "time"

// DefaultReason is recorded when an admin bans without giving one
const DefaultReason = "Manually banned by administrator"

// Ban suspends an email address from booking
type Ban struct {
	Email     string    `gorm:"type:varchar(254);primaryKey" json:"email"`
	Reason    string    `gorm:"type:varchar(500);not null" json:"reason"`
	BannedBy  string    `gorm:"type:varchar(254);not null" json:"banned_by"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TableName sets the table name for Ban
func (Ban) TableName() string {
	return "banned_users"
}

// BanRequest is the admin ban form
type BanRequest struct {
	Email  string `json:"email" validate:"required,email,max=254"`
	Reason string `json:"reason" validate:"max=500"`
}
