package model

import (
	"time"

	"gorm.io/gorm"
)

// RoleOwner is the role given to the merchant who registered the restaurant
const RoleOwner = "OWNER"

// Merchant links a user account to the restaurant it operates
type Merchant struct {
	ID           uint           `json:"id" gorm:"primaryKey"`
	UserID       uint           `json:"user_id" gorm:"index;not null"`
	RestaurantID uint           `json:"restaurant_id" gorm:"index;not null"`
	Role         string         `json:"role" gorm:"type:varchar(20);default:'OWNER'"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `json:"-" gorm:"index"`
}
