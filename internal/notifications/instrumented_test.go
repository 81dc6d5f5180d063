package notifications

import (
	"context"
	"errors"
	"testing"

	"dreka/internal/metrics"

	"github.com/9ssi7/exponent"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestInstrumented_SendToTopicCountsTokens(t *testing.T) {
	push := new(MockPushSender)
	dir := new(MockTopicDirectory)
	m := metrics.New(nil)
	g := Instrumented(NewExpoGateway(push, dir, zap.NewNop().Sugar()), m)

	dir.On("Subscribers", mock.Anything, "venue_v1").Return([]string{"a", "b", "c"}, nil).Once()
	push.On("Publish", mock.Anything, mock.Anything).Return([]*exponent.MessageResponse{
		{ID: "id-0", Status: "ok"},
		{ID: "id-1", Status: "ok"},
		{Status: "error", Message: "DeviceNotRegistered"},
	}, nil).Once()

	_, err := g.SendToTopic(context.Background(), "venue_v1", testMsg)
	require.NoError(t, err)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.GatewaySends.WithLabelValues(ModeTopic, "ok")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.GatewayTokens.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.GatewayTokens.WithLabelValues("error")))
}

func TestInstrumented_SendToTopicError(t *testing.T) {
	dir := new(MockTopicDirectory)
	m := metrics.New(nil)
	g := Instrumented(NewExpoGateway(new(MockPushSender), dir, zap.NewNop().Sugar()), m)

	dir.On("Subscribers", mock.Anything, "venue_v1").Return(nil, errors.New("redis down")).Once()

	_, err := g.SendToTopic(context.Background(), "venue_v1", testMsg)
	require.Error(t, err)
	assert.Equal(t, 1.0, testutil.ToFloat64(m.GatewaySends.WithLabelValues(ModeTopic, "error")))
	assert.Zero(t, testutil.CollectAndCount(m.GatewayTokens))
}

func TestInstrumented_NilMetricsPassesThrough(t *testing.T) {
	g := NewExpoGateway(new(MockPushSender), nil, zap.NewNop().Sugar())
	assert.Same(t, g, Instrumented(g, nil))
}
