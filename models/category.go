package models

import (
	"context"
	"time"

	"gorm.io/gorm"
)

type Category struct {
	ID        int       `gorm:"primary_key" json:"id"`
	Title     string    `gorm:"size:150;not null;uniqueIndex" json:"title"`
	IsActive  bool      `gorm:"not null;default:true" json:"is_active"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"created_at"`
}

func CreateCategory(ctx context.Context, db *gorm.DB, title string) (*Category, error) {
	category := Category{Title: title, IsActive: true}
	if err := db.WithContext(ctx).Create(&category).Error; err != nil {
		return nil, err
	}
	return &category, nil
}
