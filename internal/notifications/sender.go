package notifications

import (
	"context"

	"github.com/9ssi7/exponent"
)

// PushSender is the slice of the Expo SDK the gateway needs. It is tied to
// the exponent types so the adapter stays a pass-through.
type PushSender interface {
	Publish(ctx context.Context, msgs []*exponent.Message) ([]*exponent.MessageResponse, error)
	PublishSingle(ctx context.Context, msg *exponent.Message) ([]*exponent.MessageResponse, error)
}

type ExpoAdapter struct {
	client *exponent.Client
}

func NewExpoAdapter(c *exponent.Client) *ExpoAdapter {
	return &ExpoAdapter{client: c}
}

// NewExpoClient builds an Expo push client. The access token is optional
// unless enhanced push security is enabled on the Expo project.
func NewExpoClient(accessToken string) *exponent.Client {
	if accessToken == "" {
		return exponent.NewClient()
	}
	return exponent.NewClient(exponent.WithAccessToken(accessToken))
}

func (a *ExpoAdapter) Publish(ctx context.Context, msgs []*exponent.Message) ([]*exponent.MessageResponse, error) {
	return a.client.Publish(ctx, msgs)
}

func (a *ExpoAdapter) PublishSingle(ctx context.Context, msg *exponent.Message) ([]*exponent.MessageResponse, error) {
	return a.client.PublishSingle(ctx, msg)
}
