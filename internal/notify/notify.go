package notify

import (
	"context"
	"errors"

	"go.uber.org/multierr"
)

// ErrDisabled is returned by a notifier that has no destination configured.
var ErrDisabled = errors.New("notifier disabled")

// Notifier delivers a message to a check owner. contact is whatever the owner
// registered with the check (phone number, channel, address).
type Notifier interface {
	Send(ctx context.Context, contact, message string) error
}

// Multi sends to every notifier and combines their errors.
type Multi []Notifier

func (m Multi) Send(ctx context.Context, contact, message string) error {
	var err error
	for _, n := range m {
		if n == nil {
			continue
		}
		err = multierr.Append(err, n.Send(ctx, contact, message))
	}
	return err
}
