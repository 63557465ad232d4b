package service

import (
	"context"

	"hotelier/internal/models"

	"github.com/stretchr/testify/mock"
)

type mockPublisher struct {
	mock.Mock
}

func (m *mockPublisher) PublishJSON(eventType string, payload interface{}) error {
	args := m.Called(eventType, payload)
	return args.Error(0)
}

type mockNotifier struct {
	mock.Mock
}

func (m *mockNotifier) EnqueueTask(ctx context.Context, taskType string, bookingID int64, booking *models.Booking) error {
	args := m.Called(ctx, taskType, bookingID, booking)
	return args.Error(0)
}
