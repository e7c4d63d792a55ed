package api

import (
	"context"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"

	"github.com/firewatch-dev/firewatch/internal/dashboard"
	"github.com/firewatch-dev/firewatch/internal/errors"
	"github.com/firewatch-dev/firewatch/internal/notifier"
	"github.com/firewatch-dev/firewatch/internal/subscription"
)

// MockSubscriptions is a testify mock of the Subscriptions interface.
type MockSubscriptions struct {
	mock.Mock
}

func (m *MockSubscriptions) Subscribe(ctx context.Context, cameraID, phoneNumber, userID string) (*subscription.Created, error) {
	args := m.Called(ctx, cameraID, phoneNumber, userID)
	created, _ := args.Get(0).(*subscription.Created)
	return created, args.Error(1)
}

func (m *MockSubscriptions) Unsubscribe(ctx context.Context, id string) error {
	return m.Called(ctx, id).Error(0)
}

func (m *MockSubscriptions) List(ctx context.Context) ([]subscription.Subscription, error) {
	args := m.Called(ctx)
	subs, _ := args.Get(0).([]subscription.Subscription)
	return subs, args.Error(1)
}

func (m *MockSubscriptions) ListByUser(ctx context.Context, userID string) ([]subscription.Subscription, error) {
	args := m.Called(ctx, userID)
	subs, _ := args.Get(0).([]subscription.Subscription)
	return subs, args.Error(1)
}

// MockDashboard is a testify mock of the Dashboard interface.
type MockDashboard struct {
	mock.Mock
}

func (m *MockDashboard) Summary(ctx context.Context) (*dashboard.Summary, error) {
	args := m.Called(ctx)
	sum, _ := args.Get(0).(*dashboard.Summary)
	return sum, args.Error(1)
}

func TestSubscriptionRoutes_ErrorMapping(t *testing.T) {
	subs := new(MockSubscriptions)
	subs.On("List", mock.Anything).Return(nil, subscription.ErrStoreUnavailable).Once()
	subs.On("Unsubscribe", mock.Anything, "missing").Return(subscription.ErrNotFound).Once()
	subs.On("Subscribe", mock.Anything, "Axis-BaldMtn", "+14155551234", "").
		Return(nil, notifier.ErrNotifierUnavailable).Once()
	s := newTestServer(t, WithSubscriptions(subs))

	rec := doRequest(t, s, http.MethodGet, "/api/v1/subscriptions", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "Failed to list subscriptions", body["error"])
	assert.NotEmpty(t, body["details"])

	rec = doRequest(t, s, http.MethodDelete, "/api/v1/subscriptions/missing", "")
	assert.Equal(t, http.StatusNotFound, rec.Code)

	rec = doRequest(t, s, http.MethodPost, "/api/v1/subscriptions", `{"cameraId":"Axis-BaldMtn","phoneNumber":"+14155551234"}`)
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Failed to create subscription", decodeBody(t, rec)["error"])

	subs.AssertExpectations(t)
}

func TestSubscriptionRoutes_NilListIsEmptyArray(t *testing.T) {
	subs := new(MockSubscriptions)
	subs.On("ListByUser", mock.Anything, "u9").Return(nil, nil).Once()
	s := newTestServer(t, WithSubscriptions(subs))

	rec := doRequest(t, s, http.MethodGet, "/api/v1/subscriptions?user_id=u9", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `[]`, rec.Body.String())
	subs.AssertExpectations(t)
}

func TestDashboardRoute_Failure(t *testing.T) {
	dash := new(MockDashboard)
	dash.On("Summary", mock.Anything).Return(nil, errors.NewStd("all cameras failed")).Once()
	s := newTestServer(t, WithDashboard(dash))

	rec := doRequest(t, s, http.MethodGet, "/api/v1/dashboard", "")
	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, "Failed to build dashboard", decodeBody(t, rec)["error"])
	dash.AssertExpectations(t)
}
