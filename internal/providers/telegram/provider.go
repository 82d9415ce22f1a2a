package telegram

import "context"

// Provider delivers a message to a bot user's chat. Delivery is
// best-effort; callers must not treat a failure as fatal.
type Provider interface {
	SendMessage(ctx context.Context, chatID int64, text string) error
}

type NoOpProvider struct{}

func (p *NoOpProvider) SendMessage(ctx context.Context, chatID int64, text string) error {
	return nil
}
