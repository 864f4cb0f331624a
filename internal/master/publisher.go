package master

import (
	"context"
	"fmt"

	"gitlab.com/arbfn-2025.net/internal/codec"
	"gitlab.com/arbfn-2025.net/internal/core/ports/primary"
	"gitlab.com/arbfn-2025.net/internal/core/services/dispatch"
	"gitlab.com/arbfn-2025.net/internal/domain"
)

var _ primary.MessagePublisher = (*ReplyPublisher)(nil)

// DeliveryError names the worker a reply could not be delivered to.
type DeliveryError struct {
	To  domain.Address
	Err error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("deliver to %d: %v", e.To, e.Err)
}

func (e *DeliveryError) Unwrap() error {
	return e.Err
}

// ReplyPublisher encodes replies and sends them to exactly one worker.
type ReplyPublisher struct {
	Transport primary.Transport
	Logger    primary.Logger
}

func NewReplyPublisher(transport primary.Transport, logger primary.Logger) *ReplyPublisher {
	return &ReplyPublisher{Transport: transport, Logger: logger}
}

func (p *ReplyPublisher) PublishMessage(ctx context.Context, dst domain.Address, msg *domain.Message) error {
	payload, err := codec.Encode(msg)
	if err != nil {
		return err
	}
	if err := codec.Verify(payload); err != nil {
		return err
	}
	if err := p.Transport.Send(ctx, dst, payload); err != nil {
		p.Logger.Debug("Failed to send reply", "to", dst, "type", msg.Type, "error", err)
		return &DeliveryError{To: dst, Err: err}
	}
	return nil
}

// publishAll sends replies in order and stops at the first failure.
func publishAll(ctx context.Context, publisher primary.MessagePublisher, replies []dispatch.Reply) error {
	for _, r := range replies {
		if err := publisher.PublishMessage(ctx, r.To, r.Message); err != nil {
			return err
		}
	}
	return nil
}
