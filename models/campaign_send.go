package models

import (
	"time"

	"gorm.io/gorm"
)

// CampaignSend is the per recipient record of one dispatch. RecipientEmail is
// a snapshot taken at send time.
type CampaignSend struct {
	gorm.Model
	CampaignID     uint       `gorm:"not null;index" json:"campaign_id"`
	UserID         uint       `gorm:"not null;index" json:"user_id"`
	RecipientEmail string     `gorm:"not null;index" json:"recipient_email"`
	Token          string     `gorm:"not null;uniqueIndex;size:64" json:"-"`
	SentAt         time.Time  `gorm:"not null" json:"sent_at"`
	Opened         bool       `gorm:"default:false" json:"opened"`
	OpenedAt       *time.Time `json:"opened_at"`
	Bounced        bool       `gorm:"default:false" json:"bounced"`

	Campaign    *Campaign    `gorm:"foreignKey:CampaignID" json:"-"`
	User        *User        `gorm:"foreignKey:UserID" json:"user,omitempty"`
	ClickEvents []ClickEvent `gorm:"foreignKey:CampaignSendID" json:"click_events,omitempty"`
}

// ClickEvent is one visit to a tracking link. Rows are append-only.
type ClickEvent struct {
	ID             uint      `gorm:"primaryKey" json:"id"`
	CampaignSendID uint      `gorm:"not null;index" json:"campaign_send_id"`
	LinkURL        string    `gorm:"type:text" json:"link_url"`
	IPAddress      string    `gorm:"size:64" json:"ip_address"`
	UserAgent      string    `gorm:"type:text" json:"user_agent"`
	ClickedAt      time.Time `gorm:"not null;index" json:"clicked_at"`
	CreatedAt      time.Time `json:"created_at"`
}
