package notifications

import (
	"context"
	"errors"
)

// Message is the provider-neutral push payload: a visible notification plus
// a flat data map the app reads when the notification is tapped.
type Message struct {
	Title string
	Body  string
	Data  map[string]string
}

// Receipt identifies an accepted send. For a topic send the counts are per
// subscriber token.
type Receipt struct {
	MessageID    string
	SuccessCount int
	FailureCount int
}

// SendResponse is the result for one token of a multicast send.
type SendResponse struct {
	Token     string
	MessageID string
	Error     error
}

func (r SendResponse) Success() bool { return r.Error == nil }

type BatchResponse struct {
	SuccessCount int
	FailureCount int
	Responses    []SendResponse
}

func (b *BatchResponse) add(r SendResponse) {
	b.Responses = append(b.Responses, r)
	if r.Error != nil {
		b.FailureCount++
		return
	}
	b.SuccessCount++
}

// Gateway delivers messages by topic, to an explicit token list, or to one
// token.
type Gateway interface {
	SendToTopic(ctx context.Context, topic string, msg Message) (Receipt, error)
	SendMulticast(ctx context.Context, tokens []string, msg Message) (*BatchResponse, error)
	SendToToken(ctx context.Context, token string, msg Message) (Receipt, error)
}

// TopicDirectory lists the tokens currently subscribed to a topic.
type TopicDirectory interface {
	Subscribers(ctx context.Context, topic string) ([]string, error)
}

var (
	ErrNoTokens       = errors.New("no push tokens")
	ErrMissingReceipt = errors.New("push provider returned no receipt for message")
)
