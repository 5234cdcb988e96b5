package models

import (
	"time"

	"gorm.io/gorm"
)

// CampaignStatus is the lifecycle state of a campaign.
type CampaignStatus string

const (
	CampaignStatusDraft     CampaignStatus = "draft"
	CampaignStatusActive    CampaignStatus = "active"
	CampaignStatusPaused    CampaignStatus = "paused"
	CampaignStatusCompleted CampaignStatus = "completed"
)

func (s CampaignStatus) Valid() bool {
	switch s {
	case CampaignStatusDraft, CampaignStatusActive, CampaignStatusPaused, CampaignStatusCompleted:
		return true
	}
	return false
}

// Campaign is a simulated phishing campaign targeting one or more departments.
type Campaign struct {
	gorm.Model
	CreatedBy uint `gorm:"index" json:"created_by"`

	// Campaign details
	Name         string `gorm:"not null;index" json:"name"`
	Description  string `gorm:"type:text" json:"description"`
	Subject      string `json:"subject"`
	HTMLTemplate string `gorm:"type:text" json:"html_template"`
	Complexity   string `gorm:"default:'basico'" json:"complexity"`
	Trigger      string `json:"trigger"`

	Status CampaignStatus `gorm:"type:varchar(20);default:'draft';index" json:"status"`

	// Ownership and targeting. DepartmentID is the managing department,
	// TargetAudience the authoritative target set and TargetDepartmentID the
	// primary target used when the set is empty.
	DepartmentID       *uint         `gorm:"index" json:"department_id"`
	TargetDepartmentID *uint         `json:"target_department_id"`
	TargetAudience     DepartmentSet `json:"target_audience"`

	StartDate *time.Time `json:"start_date"`
	EndDate   *time.Time `json:"end_date"`

	Sends []CampaignSend `gorm:"foreignKey:CampaignID" json:"sends,omitempty"`
}
