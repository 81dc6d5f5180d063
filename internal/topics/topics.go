// Package topics keeps the topic subscriptions of push tokens. Expo has no
// server-side topics, so a topic send is resolved to its current
// subscribers from this registry.
package topics

import (
	"context"
	"fmt"
	"slices"
	"strings"

	"github.com/redis/go-redis/v9"
)

const venuePrefix = "venue_"

// ForVenue returns the topic followers of a venue subscribe to.
func ForVenue(venueID string) string {
	return venuePrefix + venueID
}

// IsVenueTopic reports whether topic was built by ForVenue.
func IsVenueTopic(topic string) bool {
	return strings.HasPrefix(topic, venuePrefix) && len(topic) > len(venuePrefix)
}

func topicKey(topic string) string { return "topics:" + topic + ":tokens" }

func tokenKey(token string) string { return "tokens:" + token + ":topics" }

type Registry struct {
	rdb redis.UniversalClient
}

func NewRegistry(rdb redis.UniversalClient) *Registry {
	return &Registry{rdb: rdb}
}

func (r *Registry) Subscribe(ctx context.Context, token string, topics ...string) error {
	if token == "" || len(topics) == 0 {
		return nil
	}
	_, err := r.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		for _, t := range topics {
			p.SAdd(ctx, topicKey(t), token)
		}
		p.SAdd(ctx, tokenKey(token), toAny(topics)...)
		return nil
	})
	if err != nil {
		return fmt.Errorf("subscribe token to %v: %w", topics, err)
	}
	return nil
}

func (r *Registry) Unsubscribe(ctx context.Context, token string, topics ...string) error {
	if token == "" || len(topics) == 0 {
		return nil
	}
	_, err := r.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		for _, t := range topics {
			p.SRem(ctx, topicKey(t), token)
		}
		p.SRem(ctx, tokenKey(token), toAny(topics)...)
		return nil
	})
	if err != nil {
		return fmt.Errorf("unsubscribe token from %v: %w", topics, err)
	}
	return nil
}

// Subscribers returns the tokens subscribed to topic, sorted.
func (r *Registry) Subscribers(ctx context.Context, topic string) ([]string, error) {
	tokens, err := r.rdb.SMembers(ctx, topicKey(topic)).Result()
	if err != nil {
		return nil, fmt.Errorf("subscribers of %s: %w", topic, err)
	}
	slices.Sort(tokens)
	return tokens, nil
}

func (r *Registry) TopicsFor(ctx context.Context, token string) ([]string, error) {
	topics, err := r.rdb.SMembers(ctx, tokenKey(token)).Result()
	if err != nil {
		return nil, fmt.Errorf("topics of token: %w", err)
	}
	slices.Sort(topics)
	return topics, nil
}

// Sync converges the venue topics of token to want. Topics that are not
// venue topics are left alone.
func (r *Registry) Sync(ctx context.Context, token string, want []string) error {
	if token == "" {
		return nil
	}
	have, err := r.TopicsFor(ctx, token)
	if err != nil {
		return err
	}
	have = slices.DeleteFunc(have, func(t string) bool { return !IsVenueTopic(t) })

	add, remove := Diff(have, want)
	if err := r.Subscribe(ctx, token, add...); err != nil {
		return err
	}
	return r.Unsubscribe(ctx, token, remove...)
}

// Move hands every subscription of oldToken over to newToken, used when a
// device rotates its push token.
func (r *Registry) Move(ctx context.Context, oldToken, newToken string) error {
	if oldToken == "" || newToken == "" || oldToken == newToken {
		return nil
	}
	topics, err := r.TopicsFor(ctx, oldToken)
	if err != nil {
		return err
	}
	if err := r.Subscribe(ctx, newToken, topics...); err != nil {
		return err
	}
	return r.Unsubscribe(ctx, oldToken, topics...)
}

func (r *Registry) Ping(ctx context.Context) error {
	return r.rdb.Ping(ctx).Err()
}

// Diff returns the topics in want but not in have, and those in have but not
// in want. Both results are sorted and free of duplicates.
func Diff(have, want []string) (add, remove []string) {
	h := make(map[string]struct{}, len(have))
	for _, t := range have {
		h[t] = struct{}{}
	}
	w := make(map[string]struct{}, len(want))
	for _, t := range want {
		w[t] = struct{}{}
	}

	for t := range w {
		if _, ok := h[t]; !ok {
			add = append(add, t)
		}
	}
	for t := range h {
		if _, ok := w[t]; !ok {
			remove = append(remove, t)
		}
	}
	slices.Sort(add)
	slices.Sort(remove)
	return add, remove
}

func toAny(ss []string) []any {
	out := make([]any, len(ss))
	for i, s := range ss {
		out[i] = s
	}
	return out
}
