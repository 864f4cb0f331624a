package master

import (
	"context"
	"fmt"
	"time"

	"gitlab.com/arbfn-2025.net/internal/core/ports/primary"
	"gitlab.com/arbfn-2025.net/internal/core/ports/secondary"
	"gitlab.com/arbfn-2025.net/internal/core/services/dispatch"
	"gitlab.com/arbfn-2025.net/internal/core/services/worker"
	"gitlab.com/arbfn-2025.net/internal/domain"
	"gitlab.com/arbfn-2025.net/internal/static/errs"
)

// Implementation of message handlers
// Each handler deals with one specific message type

var (
	_ primary.MessageHandler = (*RegisterHandler)(nil)
	_ primary.MessageHandler = (*DeregisterHandler)(nil)
	_ primary.MessageHandler = (*RequestHandler)(nil)
	_ primary.MessageHandler = (*ViolationHandler)(nil)
)

const progressEvery = 1000

// RegisterHandler opens a session and acknowledges it
type RegisterHandler struct {
	Registry  worker.IWorkerRegistry
	Publisher primary.MessagePublisher
	Reporter  secondary.Reporter
	Logger    primary.Logger
}

func (h *RegisterHandler) HandleMessage(ctx context.Context, src domain.Address, msg *domain.Message) error {
	w, err := h.Registry.Register(src)
	if err != nil {
		return err
	}

	h.Logger.Info("Worker registered", "source", src, "uid", uidValue(w.UID), "active", h.Registry.ActiveCount())
	h.Reporter.Publish(domain.Event{Kind: domain.EventRegistered, At: time.Now(), Worker: w, Active: h.Registry.ActiveCount()})

	return h.Publisher.PublishMessage(ctx, src, domain.NewAck(w.UID))
}

// DeregisterHandler closes a session. No reply is sent.
type DeregisterHandler struct {
	Registry   worker.IWorkerRegistry
	Dispatcher dispatch.IDispatcher
	Publisher  primary.MessagePublisher
	Reporter   secondary.Reporter
	Logger     primary.Logger
}

func (h *DeregisterHandler) HandleMessage(ctx context.Context, src domain.Address, msg *domain.Message) error {
	w, err := h.Registry.Deregister(src, msg.UID)
	if err != nil {
		return err
	}

	active := h.Registry.ActiveCount()
	h.Logger.Info("Worker deregistered", "source", src, "uid", uidValue(w.UID), "active", active)
	h.Reporter.Publish(domain.Event{
		Kind: domain.EventDeregistered, At: time.Now(), Worker: w, Active: active, Reason: domain.EndReasonDeregister,
	})

	return publishAll(ctx, h.Publisher, h.Dispatcher.Forget([]domain.WorkerInfo{w}))
}

// RequestHandler answers a request with its corrections
type RequestHandler struct {
	Registry   worker.IWorkerRegistry
	Dispatcher dispatch.IDispatcher
	Publisher  primary.MessagePublisher
	Reporter   secondary.Reporter
	Logger     primary.Logger
	requests   uint64
}

func (h *RequestHandler) HandleMessage(ctx context.Context, src domain.Address, msg *domain.Message) error {
	if err := h.Registry.Check(src, msg.UID); err != nil {
		return err
	}

	start := time.Now()
	replies, err := h.Dispatcher.Dispatch(src, msg)
	if err != nil {
		return err
	}
	elapsed := time.Since(start)

	h.requests++
	if h.requests%progressEvery == 0 {
		h.Logger.Info("Request progress", "requests", h.requests, "active", h.Registry.ActiveCount())
	}
	h.Reporter.Publish(domain.Event{
		Kind:    domain.EventRequest,
		At:      start,
		Worker:  domain.WorkerInfo{UID: msg.UID, Source: src},
		Active:  h.Registry.ActiveCount(),
		Atoms:   len(msg.Forces),
		Latency: elapsed,
	})

	return publishAll(ctx, h.Publisher, replies)
}

// ViolationHandler rejects message types only the master may send
type ViolationHandler struct{}

func (h *ViolationHandler) HandleMessage(_ context.Context, src domain.Address, msg *domain.Message) error {
	return fmt.Errorf("%w: %s message from worker %d", errs.ErrProtocolViolation, msg.Type, src)
}

func uidValue(uid *uint64) interface{} {
	if uid == nil {
		return nil
	}
	return *uid
}
