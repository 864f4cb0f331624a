package dispatch

import "gitlab.com/arbfn-2025.net/internal/domain"

// Reply is an outbound message addressed to one worker.
type Reply struct {
	To      domain.Address
	Message *domain.Message
}

// IDispatcher turns requests into responses.
type IDispatcher interface {
	// Dispatch handles one request from src and returns the replies it releases.
	Dispatch(src domain.Address, req *domain.Message) ([]Reply, error)

	// Forget drops buffered work of ended sessions and returns any replies this unblocks.
	Forget(sessions []domain.WorkerInfo) []Reply

	Mode() domain.DispatchMode
}
