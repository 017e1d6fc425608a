package models

import (
	"time"

	"github.com/volatiletech/null/v8"
)

type ActivationKey struct {
	Key         string    `gorm:"column:activation_key;type:varchar(10);primaryKey"`
	Name        string    `gorm:"type:varchar(255);not null"`
	PlanType    string    `gorm:"type:varchar(16);not null"`
	Active      bool      `gorm:"not null"`
	Uses        int64     `gorm:"not null;default:0"`
	CreatedAt   time.Time `gorm:"not null;index"`
	ActivatedAt null.Time
	ExpiresAt   null.Time
	DeviceID    null.String `gorm:"type:varchar(255)"`
	DeviceName  null.String `gorm:"type:varchar(255)"`
}

func (ActivationKey) TableName() string {
	return "activation_keys"
}
