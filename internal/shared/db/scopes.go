// Package db provides database utilities including transaction management and query scopes.
package db

import (
	"gorm.io/gorm"
)

// NotArchived filters out rows that the cleanup job has archived.
//
// Example usage:
//
//	db.Model(&SubscriptionModel{}).Scopes(db.NotArchived()).Where("status = ?", s).Find(&rows)
func NotArchived() func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("archived_at IS NULL")
	}
}

// Batch limits a sweep query to at most size rows. A non-positive size leaves the query unbounded.
func Batch(size int) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if size <= 0 {
			return db
		}
		return db.Limit(size)
	}
}
