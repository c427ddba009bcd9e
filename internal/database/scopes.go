package database

import (
	"time"

	"gorm.io/gorm"

	"github.com/yukikurage/edu-project-api/internal/models"
	"github.com/yukikurage/edu-project-api/internal/utils"
)

// Paginate applies pagination to a GORM query
func Paginate(params utils.PaginationParams) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if params.Limit <= 0 {
			return db
		}
		return db.Offset(params.Offset).Limit(params.Limit)
	}
}

// Window keeps rows whose column lies in [from, to). Nil bounds are open.
func Window(column string, from, to *time.Time) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if from != nil {
			db = db.Where(column+" >= ?", *from)
		}
		if to != nil {
			db = db.Where(column+" < ?", *to)
		}
		return db
	}
}

// StatusNotIn drops rows whose status column holds one of the statuses.
func StatusNotIn(column string, statuses []models.WorkStatus) func(db *gorm.DB) *gorm.DB {
	return func(db *gorm.DB) *gorm.DB {
		if len(statuses) == 0 {
			return db
		}
		return db.Where(column+" NOT IN ?", statuses)
	}
}
