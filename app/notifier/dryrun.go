package notifier

import (
	"context"
	"log/slog"
)

// LogNotifier resolves every destination and logs messages instead of
// sending them.
type LogNotifier struct{}

func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

func (n *LogNotifier) ResolveDestination(ctx context.Context, handle string) (Destination, Resolution, error) {
	return Destination{Handle: handle}, Resolved, nil
}

func (n *LogNotifier) Deliver(ctx context.Context, dest Destination, msg Message) error {
	slog.Info("Dry run delivery",
		"destination", dest.Handle,
		"title", msg.Title,
		"url", msg.URL,
		"mentions", len(msg.MentionTargets),
		"footer", msg.FooterText)
	return nil
}
