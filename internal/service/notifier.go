package service

import (
	"context"

	"github.com/orchids/sandtube/internal/domain"
)

// Notifier is the sink engines signal events into. Delivery is somebody
// else's problem.
type Notifier interface {
	Notify(ctx context.Context, event domain.Event) error
}

type nopNotifier struct{}

func (nopNotifier) Notify(context.Context, domain.Event) error { return nil }

func notifierOrNop(n Notifier) Notifier {
	if n == nil {
		return nopNotifier{}
	}
	return n
}
