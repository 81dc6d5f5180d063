package fanout

import (
	"context"

	"dreka/internal/domain/users"
	"dreka/internal/domain/venues"
	"dreka/internal/notifications"

	"github.com/stretchr/testify/mock"
)

type MockUserFinder struct {
	mock.Mock
}

func (m *MockUserFinder) GetByID(ctx context.Context, id string) (*users.User, error) {
	args := m.Called(ctx, id)
	u, _ := args.Get(0).(*users.User)
	return u, args.Error(1)
}

func (m *MockUserFinder) ListByFavorite(ctx context.Context, venueID string) ([]users.User, error) {
	args := m.Called(ctx, venueID)
	list, _ := args.Get(0).([]users.User)
	return list, args.Error(1)
}

func (m *MockUserFinder) ListAdmins(ctx context.Context) ([]users.User, error) {
	args := m.Called(ctx)
	list, _ := args.Get(0).([]users.User)
	return list, args.Error(1)
}

type MockVenueFinder struct {
	mock.Mock
}

func (m *MockVenueFinder) GetByID(ctx context.Context, id string) (*venues.Venue, error) {
	args := m.Called(ctx, id)
	v, _ := args.Get(0).(*venues.Venue)
	return v, args.Error(1)
}

type MockGateway struct {
	mock.Mock
}

func (m *MockGateway) SendToTopic(ctx context.Context, topic string, msg notifications.Message) (notifications.Receipt, error) {
	args := m.Called(ctx, topic, msg)
	return args.Get(0).(notifications.Receipt), args.Error(1)
}

func (m *MockGateway) SendMulticast(ctx context.Context, tokens []string, msg notifications.Message) (*notifications.BatchResponse, error) {
	args := m.Called(ctx, tokens, msg)
	b, _ := args.Get(0).(*notifications.BatchResponse)
	return b, args.Error(1)
}

func (m *MockGateway) SendToToken(ctx context.Context, token string, msg notifications.Message) (notifications.Receipt, error) {
	args := m.Called(ctx, token, msg)
	return args.Get(0).(notifications.Receipt), args.Error(1)
}
