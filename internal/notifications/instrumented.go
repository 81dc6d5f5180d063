package notifications

import (
	"context"

	"dreka/internal/metrics"
)

const (
	ModeTopic     = "topic"
	ModeMulticast = "multicast"
	ModeToken     = "token"
)

type instrumented struct {
	next    Gateway
	metrics *metrics.Metrics
}

// Instrumented wraps g so every call is counted by addressing mode and
// result.
func Instrumented(g Gateway, m *metrics.Metrics) Gateway {
	if m == nil {
		return g
	}
	return &instrumented{next: g, metrics: m}
}

func (i *instrumented) SendToTopic(ctx context.Context, topic string, msg Message) (Receipt, error) {
	r, err := i.next.SendToTopic(ctx, topic, msg)
	i.metrics.ObserveSend(ModeTopic, err)
	i.metrics.ObserveTokens(r.SuccessCount, r.FailureCount)
	return r, err
}

func (i *instrumented) SendMulticast(ctx context.Context, tokens []string, msg Message) (*BatchResponse, error) {
	b, err := i.next.SendMulticast(ctx, tokens, msg)
	i.metrics.ObserveSend(ModeMulticast, err)
	if b != nil {
		i.metrics.ObserveTokens(b.SuccessCount, b.FailureCount)
	}
	return b, err
}

func (i *instrumented) SendToToken(ctx context.Context, token string, msg Message) (Receipt, error) {
	r, err := i.next.SendToToken(ctx, token, msg)
	i.metrics.ObserveSend(ModeToken, err)
	return r, err
}
