package models

import (
	"gorm.io/gorm"
)

// Department groups users and owns campaigns.
type Department struct {
	gorm.Model
	Name        string `gorm:"uniqueIndex;not null" json:"name"`
	Description string `gorm:"type:text" json:"description"`
}
