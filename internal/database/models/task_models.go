package models

import "time"

// MaintenanceTask carries the minimum task context the inventory engine needs:
// which staff member a task is assigned to. Scheduling lives elsewhere.
type MaintenanceTask struct {
	ID         string `gorm:"primaryKey;size:40"`
	SiteID     string `gorm:"size:40;index"`
	Title      string `gorm:"size:255"`
	AssignedTo string `gorm:"size:100;index"`
	Status     string `gorm:"size:50"`
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

func (MaintenanceTask) TableName() string { return "maintenance_tasks" }
