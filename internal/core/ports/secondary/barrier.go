package secondary

import "context"

// Barrier is a rendezvous: Wait returns once every participant has entered.
type Barrier interface {
	Wait(ctx context.Context) error
}
