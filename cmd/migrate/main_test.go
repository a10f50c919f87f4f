package main

import (
	"errors"
	"testing"

	"github.com/golang-migrate/migrate/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

type MockMigrator struct {
	mock.Mock
}

func (m *MockMigrator) Up() error {
	return m.Called().Error(0)
}

func (m *MockMigrator) Steps(n int) error {
	return m.Called(n).Error(0)
}

func (m *MockMigrator) Version() (uint, bool, error) {
	args := m.Called()
	return args.Get(0).(uint), args.Bool(1), args.Error(2)
}

func TestRun_Up(t *testing.T) {
	t.Run("Applies", func(t *testing.T) {
		m := new(MockMigrator)
		m.On("Up").Return(nil)

		assert.NoError(t, run(m, "up", 1))
		m.AssertExpectations(t)
	})

	t.Run("NoChange", func(t *testing.T) {
		m := new(MockMigrator)
		m.On("Up").Return(migrate.ErrNoChange)

		assert.NoError(t, run(m, "up", 1))
	})

	t.Run("Failure", func(t *testing.T) {
		m := new(MockMigrator)
		m.On("Up").Return(errors.New("syntax error at or near"))

		assert.Error(t, run(m, "up", 1))
	})
}

func TestRun_Down(t *testing.T) {
	t.Run("RollsBackSteps", func(t *testing.T) {
		m := new(MockMigrator)
		m.On("Steps", -2).Return(nil)

		assert.NoError(t, run(m, "down", 2))
		m.AssertExpectations(t)
	})

	t.Run("NothingApplied", func(t *testing.T) {
		m := new(MockMigrator)
		m.On("Steps", -1).Return(migrate.ErrNoChange)

		assert.NoError(t, run(m, "down", 1))
	})

	t.Run("InvalidSteps", func(t *testing.T) {
		m := new(MockMigrator)

		assert.Error(t, run(m, "down", 0))
		m.AssertNotCalled(t, "Steps", mock.Anything)
	})
}

func TestRun_Version(t *testing.T) {
	t.Run("Reports", func(t *testing.T) {
		m := new(MockMigrator)
		m.On("Version").Return(uint(2), false, nil)

		assert.NoError(t, run(m, "version", 1))
	})

	t.Run("Fresh", func(t *testing.T) {
		m := new(MockMigrator)
		m.On("Version").Return(uint(0), false, migrate.ErrNilVersion)

		assert.NoError(t, run(m, "version", 1))
	})
}

func TestRun_UnknownMode(t *testing.T) {
	err := run(new(MockMigrator), "sideways", 1)
	assert.ErrorContains(t, err, "unknown mode")
}
