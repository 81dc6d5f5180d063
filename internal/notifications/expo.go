package notifications

import (
	"context"
	"fmt"

	"github.com/9ssi7/exponent"
	"go.uber.org/zap"
)

// MaxMessagesPerRequest is the Expo push API limit for one request.
const MaxMessagesPerRequest = 100

// ExpoGateway delivers through the Expo push service. Topic sends are
// resolved to subscriber tokens through the TopicDirectory.
type ExpoGateway struct {
	push   PushSender
	topics TopicDirectory
	logger *zap.SugaredLogger
}

func NewExpoGateway(push PushSender, topics TopicDirectory, logger *zap.SugaredLogger) *ExpoGateway {
	return &ExpoGateway{push: push, topics: topics, logger: logger}
}

func (g *ExpoGateway) SendToToken(ctx context.Context, token string, msg Message) (Receipt, error) {
	if token == "" {
		return Receipt{}, ErrNoTokens
	}

	res, err := g.push.PublishSingle(ctx, expoMessage(token, msg))
	if err != nil {
		return Receipt{}, fmt.Errorf("publish to token: %w", err)
	}
	if len(res) == 0 || res[0] == nil {
		return Receipt{}, ErrMissingReceipt
	}
	if err := responseError(res[0]); err != nil {
		return Receipt{}, err
	}
	return Receipt{MessageID: res[0].ID, SuccessCount: 1}, nil
}

// SendMulticast sends one message per token, at most MaxMessagesPerRequest
// per request. It fails as a whole only when no token could be delivered
// because a request itself failed.
func (g *ExpoGateway) SendMulticast(ctx context.Context, tokens []string, msg Message) (*BatchResponse, error) {
	if len(tokens) == 0 {
		return nil, ErrNoTokens
	}

	batch := &BatchResponse{Responses: make([]SendResponse, 0, len(tokens))}
	var lastErr error

	for start := 0; start < len(tokens); start += MaxMessagesPerRequest {
		end := min(start+MaxMessagesPerRequest, len(tokens))
		chunk := tokens[start:end]

		msgs := make([]*exponent.Message, 0, len(chunk))
		for _, t := range chunk {
			msgs = append(msgs, expoMessage(t, msg))
		}

		res, err := g.push.Publish(ctx, msgs)
		if err != nil {
			lastErr = fmt.Errorf("publish chunk %d-%d: %w", start, end, err)
			for _, t := range chunk {
				batch.add(SendResponse{Token: t, Error: err})
			}
			continue
		}

		for i, t := range chunk {
			if i >= len(res) || res[i] == nil {
				batch.add(SendResponse{Token: t, Error: ErrMissingReceipt})
				continue
			}
			batch.add(SendResponse{Token: t, MessageID: res[i].ID, Error: responseError(res[i])})
		}
	}

	if batch.SuccessCount == 0 && lastErr != nil {
		return batch, lastErr
	}
	return batch, nil
}

// SendToTopic delivers to every current subscriber of topic. A topic with no
// subscribers is accepted with zero recipients.
func (g *ExpoGateway) SendToTopic(ctx context.Context, topic string, msg Message) (Receipt, error) {
	tokens, err := g.topics.Subscribers(ctx, topic)
	if err != nil {
		return Receipt{}, fmt.Errorf("resolve topic %s: %w", topic, err)
	}
	if len(tokens) == 0 {
		g.logger.Debugw("topic has no subscribers", "topic", topic)
		return Receipt{}, nil
	}

	batch, err := g.SendMulticast(ctx, tokens, msg)
	if err != nil {
		return Receipt{}, fmt.Errorf("send to topic %s: %w", topic, err)
	}
	if batch.FailureCount > 0 {
		g.logger.Warnw("topic send partially failed",
			"topic", topic,
			"success", batch.SuccessCount,
			"failure", batch.FailureCount,
		)
	}

	var id string
	for _, r := range batch.Responses {
		if r.Success() {
			id = r.MessageID
			break
		}
	}
	return Receipt{
		MessageID:    id,
		SuccessCount: batch.SuccessCount,
		FailureCount: batch.FailureCount,
	}, nil
}

func expoMessage(t string, msg Message) *exponent.Message {
	token := exponent.Token(t)
	return &exponent.Message{
		To:    []*exponent.Token{&token},
		Title: msg.Title,
		Body:  msg.Body,
		Data:  msg.Data,
	}
}

func responseError(r *exponent.MessageResponse) error {
	if r.Status == "ok" {
		return nil
	}
	return fmt.Errorf("expo rejected message: %s: %s", r.Status, r.Message)
}
