package store

import (
	"context"
	"time"

	"gorm.io/gorm"
)

// executionRow is the GORM model backing the execution table from
// spec.md §6. Column names mirror the persisted schema; the SQL dialect
// itself is deliberately not specified beyond what GORM's Postgres driver
// produces (out of scope per spec.md §1).
type executionRow struct {
	TaskName            string `gorm:"column:task_name;primaryKey"`
	InstanceID          string `gorm:"column:instance_id;primaryKey"`
	Data                []byte `gorm:"column:data"`
	ExecutionTime       time.Time `gorm:"column:execution_time;index:idx_execution_time"`
	Picked              bool       `gorm:"column:picked;default:false"`
	PickedBy            string     `gorm:"column:picked_by"`
	LastHeartbeat       *time.Time `gorm:"column:last_heartbeat"`
	LastSuccess         *time.Time `gorm:"column:last_success"`
	LastFailure         *time.Time `gorm:"column:last_failure"`
	ConsecutiveFailures int        `gorm:"column:consecutive_failures;default:0"`
	Version             int        `gorm:"column:version;default:1"`
}

func (executionRow) TableName() string { return "execution" }

func toExecution(r executionRow) Execution {
	return Execution{
		TaskName:            r.TaskName,
		InstanceID:          r.InstanceID,
		Data:                r.Data,
		ExecutionTime:       r.ExecutionTime,
		Picked:              r.Picked,
		PickedBy:            r.PickedBy,
		LastHeartbeat:       r.LastHeartbeat,
		LastSuccess:         r.LastSuccess,
		LastFailure:         r.LastFailure,
		ConsecutiveFailures: r.ConsecutiveFailures,
		Version:             r.Version,
	}
}

func toRow(e Execution) executionRow {
	return executionRow{
		TaskName:            e.TaskName,
		InstanceID:          e.InstanceID,
		Data:                e.Data,
		ExecutionTime:       e.ExecutionTime,
		Picked:              e.Picked,
		PickedBy:            e.PickedBy,
		LastHeartbeat:       e.LastHeartbeat,
		LastSuccess:         e.LastSuccess,
		LastFailure:         e.LastFailure,
		ConsecutiveFailures: e.ConsecutiveFailures,
		Version:             e.Version,
	}
}

// PostgresStore is a GORM-backed ExecutionStore. Pick is implemented as a
// single conditional UPDATE whose WHERE clause carries the identity,
// expected version, and picked=false check together, so the claim is one
// atomic round trip rather than a read followed by a write.
type PostgresStore struct {
	db *gorm.DB
}

// NewPostgresStore wraps an already-connected *gorm.DB.
func NewPostgresStore(db *gorm.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// AutoMigrate creates/updates the execution table for the given db.
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&executionRow{})
}

func (s *PostgresStore) CreateIfNotExists(ctx context.Context, exec Execution) (bool, error) {
	row := toRow(exec)
	if row.Version < 1 {
		row.Version = 1
	}

	result := s.db.WithContext(ctx).
		Clauses(onConflictDoNothing()).
		Create(&row)
	if result.Error != nil {
		return false, result.Error
	}
	return result.RowsAffected > 0, nil
}

func (s *PostgresStore) GetDue(ctx context.Context, now time.Time, limit int) ([]Execution, error) {
	var rows []executionRow
	err := s.db.WithContext(ctx).
		Where("picked = ? AND execution_time <= ?", false, now).
		Order("execution_time ASC").
		Limit(limit).
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make([]Execution, len(rows))
	for i, r := range rows {
		out[i] = toExecution(r)
	}
	return out, nil
}

func (s *PostgresStore) GetByIdentity(ctx context.Context, taskName, instanceID string) (Execution, bool, error) {
	var row executionRow
	err := s.db.WithContext(ctx).
		Where("task_name = ? AND instance_id = ?", taskName, instanceID).
		First(&row).Error
	if err == gorm.ErrRecordNotFound {
		return Execution{}, false, nil
	}
	if err != nil {
		return Execution{}, false, err
	}
	return toExecution(row), true, nil
}

func (s *PostgresStore) Pick(ctx context.Context, candidate Execution, schedulerName string, now time.Time) (Execution, bool, error) {
	result := s.db.WithContext(ctx).
		Model(&executionRow{}).
		Where("task_name = ? AND instance_id = ? AND version = ? AND picked = ?",
			candidate.TaskName, candidate.InstanceID, candidate.Version, false).
		Updates(map[string]interface{}{
			"picked":         true,
			"picked_by":      schedulerName,
			"last_heartbeat": now,
			"version":        gorm.Expr("version + 1"),
		})
	if result.Error != nil {
		return Execution{}, false, result.Error
	}
	if result.RowsAffected == 0 {
		return Execution{}, false, nil
	}

	var row executionRow
	if err := s.db.WithContext(ctx).
		Where("task_name = ? AND instance_id = ?", candidate.TaskName, candidate.InstanceID).
		First(&row).Error; err != nil {
		return Execution{}, false, err
	}
	return toExecution(row), true, nil
}

func (s *PostgresStore) UpdateHeartbeat(ctx context.Context, exec Execution, now time.Time) error {
	return s.db.WithContext(ctx).
		Model(&executionRow{}).
		Where("task_name = ? AND instance_id = ?", exec.TaskName, exec.InstanceID).
		Update("last_heartbeat", now).Error
}

func (s *PostgresStore) GetOldExecutions(ctx context.Context, olderThan time.Time) ([]Execution, error) {
	var rows []executionRow
	err := s.db.WithContext(ctx).
		Where("picked = ? AND last_heartbeat < ?", true, olderThan).
		Order("last_heartbeat ASC").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make([]Execution, len(rows))
	for i, r := range rows {
		out[i] = toExecution(r)
	}
	return out, nil
}

func (s *PostgresStore) Remove(ctx context.Context, exec Execution) error {
	return s.db.WithContext(ctx).
		Where("task_name = ? AND instance_id = ? AND version = ?",
			exec.TaskName, exec.InstanceID, exec.Version).
		Delete(&executionRow{}).Error
}

func (s *PostgresStore) Reschedule(ctx context.Context, exec Execution, newTime time.Time, lastSuccess, lastFailure *time.Time, consecutiveFailures int) error {
	updates := map[string]interface{}{
		"execution_time":       newTime,
		"picked":               false,
		"picked_by":            "",
		"last_heartbeat":       nil,
		"consecutive_failures": consecutiveFailures,
		"version":              gorm.Expr("version + 1"),
	}
	if lastSuccess != nil {
		updates["last_success"] = *lastSuccess
	}
	if lastFailure != nil {
		updates["last_failure"] = *lastFailure
	}

	return s.db.WithContext(ctx).
		Model(&executionRow{}).
		Where("task_name = ? AND instance_id = ? AND version = ?",
			exec.TaskName, exec.InstanceID, exec.Version).
		Updates(updates).Error
}

func (s *PostgresStore) GetExecutionsFailingLongerThan(ctx context.Context, duration time.Duration, now time.Time) ([]Execution, error) {
	cutoff := now.Add(-duration)
	var rows []executionRow
	err := s.db.WithContext(ctx).
		Where("last_failure IS NOT NULL AND last_failure < ?", cutoff).
		Where("last_success IS NULL OR last_success <= last_failure").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}

	out := make([]Execution, len(rows))
	for i, r := range rows {
		out[i] = toExecution(r)
	}
	return out, nil
}
