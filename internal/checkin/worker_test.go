package checkin

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"

	"checkin-backend/internal/model"
	"checkin-backend/internal/store"
)

// mockStore is a mock implementation of the store.Store interface.
type mockStore struct {
	EmployeeByBadgeFunc  func(ctx context.Context, badgeID string) (*model.Employee, error)
	ActiveTrainingFunc   func(ctx context.Context, at time.Time) (*model.Training, error)
	RecordAttendanceFunc func(ctx context.Context, a *model.Attendance) (bool, error)
}

func (m *mockStore) EmployeeByBadge(ctx context.Context, badgeID string) (*model.Employee, error) {
	return m.EmployeeByBadgeFunc(ctx, badgeID)
}

func (m *mockStore) ActiveTraining(ctx context.Context, at time.Time) (*model.Training, error) {
	return m.ActiveTrainingFunc(ctx, at)
}

func (m *mockStore) RecordAttendance(ctx context.Context, a *model.Attendance) (bool, error) {
	return m.RecordAttendanceFunc(ctx, a)
}

func (m *mockStore) AssignBadge(ctx context.Context, employeeID int64, badgeID string) error {
	return errors.New("not implemented")
}

func (m *mockStore) AttendanceForTraining(ctx context.Context, trainingID int64) ([]model.Attendance, error) {
	return nil, errors.New("not implemented")
}

func (m *mockStore) DB() *gorm.DB {
	return nil
}

var _ store.Store = (*mockStore)(nil)

func happyStore(recorded *[]model.Attendance, created bool) *mockStore {
	return &mockStore{
		EmployeeByBadgeFunc: func(ctx context.Context, badgeID string) (*model.Employee, error) {
			return &model.Employee{ID: 7, Name: "Ada"}, nil
		},
		ActiveTrainingFunc: func(ctx context.Context, at time.Time) (*model.Training, error) {
			return &model.Training{ID: 3, Title: "Fire safety"}, nil
		},
		RecordAttendanceFunc: func(ctx context.Context, a *model.Attendance) (bool, error) {
			*recorded = append(*recorded, *a)
			return created, nil
		},
	}
}

func TestWorkerPool_Dispatch(t *testing.T) {
	wp := NewWorkerPool(1, &mockStore{}, time.Minute)
	at := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)

	assert.True(t, wp.Dispatch(Scan{BadgeID: "81722cf9182738", At: at}))

	// Check if the job is in the channel
	select {
	case job := <-wp.Jobs():
		assert.Equal(t, "81722cf9182738", job.BadgeID)
	case <-time.After(1 * time.Second):
		t.Fatal("timed out waiting for job to be dispatched")
	}

	assert.False(t, wp.Dispatch(Scan{BadgeID: "81722cf9182738", At: at.Add(time.Second)}), "repeat inside the window")
	assert.True(t, wp.Dispatch(Scan{BadgeID: "aaaaaaaaaaaaaa", At: at.Add(time.Second)}))
}

func TestWorkerPool_DispatchWithoutDedup(t *testing.T) {
	wp := NewWorkerPool(2, &mockStore{}, 0)
	at := time.Now()

	assert.True(t, wp.Dispatch(Scan{BadgeID: "81722cf9182738", At: at}))
	assert.True(t, wp.Dispatch(Scan{BadgeID: "81722cf9182738", At: at}))
	assert.Len(t, wp.Jobs(), 2)
}

func TestWorkerPool_DispatchNeverBlocks(t *testing.T) {
	// No workers are running, as after shutdown, so nothing drains the queue.
	wp := NewWorkerPool(1, &mockStore{}, time.Minute)

	at := time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC)
	done := make(chan int)
	go func() {
		queued := 0
		for i := 0; i < jobsPerWorker+3; i++ {
			if wp.Dispatch(Scan{BadgeID: fmt.Sprintf("%014d", i), At: at}) {
				queued++
			}
		}
		done <- queued
	}()

	select {
	case queued := <-done:
		assert.Equal(t, jobsPerWorker, queued)
	case <-time.After(2 * time.Second):
		t.Fatal("Dispatch blocked on a full queue")
	}

	// A dropped badge is not remembered, so a rescan goes through once there is room.
	<-wp.Jobs()
	assert.True(t, wp.Dispatch(Scan{BadgeID: fmt.Sprintf("%014d", jobsPerWorker), At: at}))
}

func TestWorkerPool_Process(t *testing.T) {
	at := time.Date(2026, 3, 2, 9, 15, 0, 0, time.UTC)
	dbErr := fmt.Errorf("connection reset")

	testCases := []struct {
		name           string
		store          func(recorded *[]model.Attendance) *mockStore
		expectedStatus Status
		expectedRecord bool
	}{
		{
			name: "Checks in",
			store: func(recorded *[]model.Attendance) *mockStore {
				return happyStore(recorded, true)
			},
			expectedStatus: StatusCheckedIn,
			expectedRecord: true,
		},
		{
			name: "Already checked in",
			store: func(recorded *[]model.Attendance) *mockStore {
				return happyStore(recorded, false)
			},
			expectedStatus: StatusAlreadyCheckedIn,
			expectedRecord: true,
		},
		{
			name: "Unknown badge",
			store: func(recorded *[]model.Attendance) *mockStore {
				s := happyStore(recorded, true)
				s.EmployeeByBadgeFunc = func(ctx context.Context, badgeID string) (*model.Employee, error) {
					return nil, fmt.Errorf("badge %s: %w", badgeID, store.ErrUnknownBadge)
				}
				return s
			},
			expectedStatus: StatusUnknownBadge,
		},
		{
			name: "No training running",
			store: func(recorded *[]model.Attendance) *mockStore {
				s := happyStore(recorded, true)
				s.ActiveTrainingFunc = func(ctx context.Context, at time.Time) (*model.Training, error) {
					return nil, store.ErrNoActiveTraining
				}
				return s
			},
			expectedStatus: StatusNoTraining,
		},
		{
			name: "Database failure",
			store: func(recorded *[]model.Attendance) *mockStore {
				s := happyStore(recorded, true)
				s.RecordAttendanceFunc = func(ctx context.Context, a *model.Attendance) (bool, error) {
					return false, dbErr
				}
				return s
			},
			expectedStatus: StatusFailed,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			var recorded []model.Attendance
			wp := NewWorkerPool(1, tc.store(&recorded), time.Minute)

			out := wp.process(context.Background(), Scan{BadgeID: "81722cf9182738", At: at})
			assert.Equal(t, tc.expectedStatus, out.Status)
			assert.Equal(t, "81722cf9182738", out.Scan.BadgeID)

			if tc.expectedRecord {
				require.Len(t, recorded, 1)
				assert.Equal(t, int64(3), recorded[0].TrainingID)
				assert.Equal(t, int64(7), recorded[0].EmployeeID)
				assert.Equal(t, model.MethodNFC, recorded[0].Method)
				assert.Equal(t, at, recorded[0].CheckedInAt)
				assert.Empty(t, out.Error)
			} else {
				assert.Empty(t, recorded)
				assert.NotEmpty(t, out.Error)
			}
		})
	}
}

func TestWorkerPool_WorkerLogic(t *testing.T) {
	var recorded []model.Attendance
	wp := NewWorkerPool(1, happyStore(&recorded, true), time.Minute)
	outcomes := make(chan Outcome, 1)
	wp.OnOutcome = func(o Outcome) { outcomes <- o }

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	wp.Start(ctx)

	require.True(t, wp.Dispatch(Scan{BadgeID: "81722cf9182738", At: time.Now()}))

	select {
	case o := <-outcomes:
		assert.Equal(t, StatusCheckedIn, o.Status)
		assert.Equal(t, "Ada", o.EmployeeName)
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for the worker")
	}

	recent := wp.Recent()
	require.Len(t, recent, 1)
	assert.Equal(t, StatusCheckedIn, recent[0].Status)
}

func TestWorkerPool_RecentIsBounded(t *testing.T) {
	wp := NewWorkerPool(1, &mockStore{}, 0)
	for i := 0; i < recentLimit+5; i++ {
		wp.publish(Outcome{Scan: Scan{BadgeID: fmt.Sprintf("%014d", i)}})
	}

	recent := wp.Recent()
	require.Len(t, recent, recentLimit)
	assert.Equal(t, fmt.Sprintf("%014d", recentLimit+4), recent[0].Scan.BadgeID, "newest first")
	assert.Equal(t, fmt.Sprintf("%014d", 5), recent[recentLimit-1].Scan.BadgeID)
}
