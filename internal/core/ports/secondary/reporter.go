package secondary

import "gitlab.com/arbfn-2025.net/internal/domain"

// Reporter receives observations from the service loop. Publish must not block.
type Reporter interface {
	Publish(ev domain.Event)
}
