package database

import (
	"fmt"
	"strings"

	"gorm.io/gorm"
)

type compositeIndex struct {
	table   string
	name    string
	columns []string
}

// Indexes backing the deadline sweep, reminder reload and inbox queries.
var compositeIndexes = []compositeIndex{
	{"tasks", "idx_tasks_tutor_due", []string{"tutor_id", "due_date"}},
	{"tasks", "idx_tasks_status_due", []string{"status", "due_date"}},
	{"projects", "idx_projects_status_end", []string{"status", "end_date"}},
	{"notifications", "idx_notifications_user_read", []string{"user_id", "is_read"}},
	{"reminders", "idx_reminders_active_scheduled", []string{"is_active", "scheduled_at"}},
}

// AddIndexes creates the composite indexes that are missing.
func AddIndexes(db *gorm.DB) error {
	migrator := db.Migrator()

	for _, idx := range compositeIndexes {
		if migrator.HasIndex(idx.table, idx.name) {
			continue
		}

		sql := fmt.Sprintf("CREATE INDEX %s ON %s (%s)", idx.name, idx.table, strings.Join(idx.columns, ", "))
		if err := db.Exec(sql).Error; err != nil {
			return fmt.Errorf("failed to create index %s: %w", idx.name, err)
		}
	}

	return nil
}

// MigrateDatabase runs schema migration followed by index creation.
func MigrateDatabase(db *gorm.DB) error {
	if err := Migrate(db); err != nil {
		return err
	}

	if err := AddIndexes(db); err != nil {
		return fmt.Errorf("failed to add indexes: %w", err)
	}

	return nil
}
