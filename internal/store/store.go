package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"checkin-backend/internal/badge"
	"checkin-backend/internal/model"
)

var (
	ErrUnknownBadge     = errors.New("no employee is enrolled with this badge")
	ErrNoActiveTraining = errors.New("no training is running")
	ErrEmployeeNotFound = errors.New("employee not found")
	ErrInvalidBadge     = errors.New("invalid badge identifier")
)

// Store defines the database operations needed to turn badge scans into
// attendance records.
type Store interface {
	EmployeeByBadge(ctx context.Context, badgeID string) (*model.Employee, error)
	ActiveTraining(ctx context.Context, at time.Time) (*model.Training, error)
	RecordAttendance(ctx context.Context, attendance *model.Attendance) (bool, error)
	AssignBadge(ctx context.Context, employeeID int64, badgeID string) error
	AttendanceForTraining(ctx context.Context, trainingID int64) ([]model.Attendance, error)
	DB() *gorm.DB
}

// gormStore implements the Store interface using GORM.
type gormStore struct {
	db *gorm.DB
}

// NewGormStore creates a new GORM-backed store.
func NewGormStore(db *gorm.DB) Store {
	return &gormStore{db: db}
}

func (s *gormStore) DB() *gorm.DB {
	return s.db
}

// EmployeeByBadge finds the employee enrolled with badgeID.
func (s *gormStore) EmployeeByBadge(ctx context.Context, badgeID string) (*model.Employee, error) {
	var employee model.Employee
	err := s.db.WithContext(ctx).Where("badge_id = ?", badgeID).First(&employee).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("badge %s: %w", badgeID, ErrUnknownBadge)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up badge %s: %w", badgeID, err)
	}
	return &employee, nil
}

// ActiveTraining returns the training whose window contains at. When several
// overlap, the one that started last wins.
func (s *gormStore) ActiveTraining(ctx context.Context, at time.Time) (*model.Training, error) {
	var training model.Training
	err := s.db.WithContext(ctx).
		Where("starts_at <= ? AND ends_at >= ?", at, at).
		Order("starts_at DESC").
		First(&training).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrNoActiveTraining
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up active training: %w", err)
	}
	return &training, nil
}

// RecordAttendance inserts the check-in unless the employee already checked in
// to the training. It reports whether a new record was written.
func (s *gormStore) RecordAttendance(ctx context.Context, attendance *model.Attendance) (bool, error) {
	result := s.db.WithContext(ctx).
		Omit(clause.Associations).
		Clauses(clause.OnConflict{DoNothing: true}).
		Create(attendance)
	if result.Error != nil {
		return false, fmt.Errorf("failed to record attendance for employee %d in training %d: %w",
			attendance.EmployeeID, attendance.TrainingID, result.Error)
	}
	return result.RowsAffected > 0, nil
}

// AssignBadge enrolls badgeID for the employee. The identifier must already be
// in canonical form.
func (s *gormStore) AssignBadge(ctx context.Context, employeeID int64, badgeID string) error {
	if !badge.IsValid(badgeID) {
		return fmt.Errorf("%q: %w", badgeID, ErrInvalidBadge)
	}
	result := s.db.WithContext(ctx).
		Model(&model.Employee{}).
		Where("id = ?", employeeID).
		Update("badge_id", badgeID)
	if result.Error != nil {
		return fmt.Errorf("failed to assign badge to employee %d: %w", employeeID, result.Error)
	}
	if result.RowsAffected == 0 {
		return fmt.Errorf("employee %d: %w", employeeID, ErrEmployeeNotFound)
	}
	return nil
}

// AttendanceForTraining lists the check-ins of a training in arrival order.
func (s *gormStore) AttendanceForTraining(ctx context.Context, trainingID int64) ([]model.Attendance, error) {
	var records []model.Attendance
	if err := s.db.WithContext(ctx).
		Preload("Employee").
		Where("training_id = ?", trainingID).
		Order("checked_in_at ASC").
		Find(&records).Error; err != nil {
		return nil, fmt.Errorf("failed to list attendance for training %d: %w", trainingID, err)
	}
	return records, nil
}
