// Package master runs the service loop that answers workers.
//
// The loop is the only goroutine that touches the registry and dispatcher:
// it probes the transport, decodes one message, handles it, sends the
// replies and only then probes again.
package master

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gitlab.com/arbfn-2025.net/internal/codec"
	"gitlab.com/arbfn-2025.net/internal/core/ports/primary"
	"gitlab.com/arbfn-2025.net/internal/core/ports/secondary"
	"gitlab.com/arbfn-2025.net/internal/core/services/dispatch"
	"gitlab.com/arbfn-2025.net/internal/core/services/termination"
	"gitlab.com/arbfn-2025.net/internal/core/services/worker"
	"gitlab.com/arbfn-2025.net/internal/domain"
	"gitlab.com/arbfn-2025.net/internal/static/errs"
)

type nopReporter struct{}

func (nopReporter) Publish(domain.Event) {}

// Server is the master service loop
type Server struct {
	transport   primary.Transport
	registry    worker.IWorkerRegistry
	dispatcher  dispatch.IDispatcher
	coordinator termination.ICoordinator
	publisher   primary.MessagePublisher
	reporter    secondary.Reporter
	failure     domain.FailurePolicy
	logger      primary.Logger
	handlers    map[domain.MessageType]primary.MessageHandler
}

// ServerOption configures a Server
type ServerOption func(*Server)

// WithFailurePolicy selects isolate (default) or fatal handling of misbehaving workers
func WithFailurePolicy(policy domain.FailurePolicy) ServerOption {
	return func(s *Server) {
		s.failure = policy
	}
}

// WithReporter sets the observer of registry and request events
func WithReporter(reporter secondary.Reporter) ServerOption {
	return func(s *Server) {
		if reporter != nil {
			s.reporter = reporter
		}
	}
}

// NewServer creates the service loop
func NewServer(
	transport primary.Transport,
	registry worker.IWorkerRegistry,
	dispatcher dispatch.IDispatcher,
	coordinator termination.ICoordinator,
	logger primary.Logger,
	options ...ServerOption,
) *Server {
	server := &Server{
		transport:   transport,
		registry:    registry,
		dispatcher:  dispatcher,
		coordinator: coordinator,
		publisher:   NewReplyPublisher(transport, logger),
		reporter:    nopReporter{},
		failure:     domain.FailureIsolate,
		logger:      logger,
	}

	// Apply options
	for _, option := range options {
		option(server)
	}

	// Register message handlers
	server.setupMessageHandlers()

	return server
}

// setupMessageHandlers registers all message handlers
func (s *Server) setupMessageHandlers() {
	violation := &ViolationHandler{}
	s.handlers = map[domain.MessageType]primary.MessageHandler{
		domain.MsgRegister: &RegisterHandler{Registry: s.registry, Publisher: s.publisher, Reporter: s.reporter, Logger: s.logger},
		domain.MsgDeregister: &DeregisterHandler{
			Registry: s.registry, Dispatcher: s.dispatcher, Publisher: s.publisher, Reporter: s.reporter, Logger: s.logger,
		},
		domain.MsgRequest: &RequestHandler{
			Registry: s.registry, Dispatcher: s.dispatcher, Publisher: s.publisher, Reporter: s.reporter, Logger: s.logger,
		},
		domain.MsgAck:      violation,
		domain.MsgResponse: violation,
		domain.MsgWaiting:  violation,
	}
}

// State reports the lifecycle state; safe to call from any goroutine
func (s *Server) State() domain.MasterState {
	return s.coordinator.State()
}

// Serve runs until the last worker deregisters. It returns nil on a clean
// stop, the failure on a fatal condition, or ctx.Err() when cancelled.
func (s *Server) Serve(ctx context.Context) error {
	s.logger.Info("Master running",
		"policy", s.registry.Policy(), "mode", s.dispatcher.Mode(), "failure", s.failure)

	if err := s.loop(ctx); err != nil {
		s.coordinator.Abort()
		s.reportState()
		if ctx.Err() != nil {
			s.logger.Info("Master cancelled", "active", s.registry.ActiveCount())
			return ctx.Err()
		}
		s.logger.Error("Master stopped on fatal error", "error", err)
		return err
	}

	s.reportState()
	err := s.coordinator.Shutdown(ctx)
	s.reportState()
	if err != nil {
		return err
	}
	s.logger.Info("Master stopped")
	return nil
}

func (s *Server) loop(ctx context.Context) error {
	for {
		st, err := s.transport.Probe(ctx)
		if err != nil {
			return err
		}

		stop, err := s.handle(ctx, st)
		if err != nil {
			stop, err = s.fail(ctx, st.Source, err)
			if err != nil {
				return err
			}
		}
		if stop {
			return nil
		}
	}
}

// handle processes the message described by st. stop is set once the
// active count has dropped to zero.
func (s *Server) handle(ctx context.Context, st primary.Status) (bool, error) {
	payload, err := s.transport.Receive(ctx, st)
	if err != nil {
		if st.Closed && errors.Is(err, errs.ErrPeerGone) {
			return s.hangup(ctx, st.Source)
		}
		return false, err
	}

	msg, err := codec.Decode(payload)
	if err != nil {
		return false, err
	}

	handler, exists := s.handlers[msg.Type]
	if !exists {
		return false, fmt.Errorf("%w: no handler for %s", errs.ErrProtocolViolation, msg.Type)
	}
	if err := handler.HandleMessage(ctx, st.Source, msg); err != nil {
		return false, err
	}

	if msg.Type == domain.MsgDeregister {
		return s.coordinator.ShouldStop(s.registry.ActiveCount()), nil
	}
	return false, nil
}

// hangup handles a worker that closed its link.
func (s *Server) hangup(ctx context.Context, src domain.Address) (bool, error) {
	if s.failure == domain.FailureFatal {
		if released := s.registry.Release(src); len(released) > 0 {
			return false, fmt.Errorf("%w: worker %d hung up with %d open sessions", errs.ErrProtocolViolation, src, len(released))
		}
		_ = s.transport.Disconnect(src)
		return false, nil
	}
	return s.isolate(ctx, src, "hung up")
}

// fail applies the failure policy to err raised while serving src.
func (s *Server) fail(ctx context.Context, src domain.Address, err error) (bool, error) {
	if ctx.Err() != nil || errs.Fatal(err) || !errs.Isolatable(err) || s.failure == domain.FailureFatal {
		return false, err
	}

	culprit := src
	var de *DeliveryError
	if errors.As(err, &de) {
		culprit = de.To
	}
	s.logger.Warn("Isolating worker", "source", culprit, "error", err)
	return s.isolate(ctx, culprit, err.Error())
}

// isolate drops every session of src and disconnects it. Replies released
// by the drop may fail in turn; those workers are isolated as well.
func (s *Server) isolate(ctx context.Context, src domain.Address, reason string) (bool, error) {
	released := s.registry.Release(src)

	active := s.registry.ActiveCount()
	now := time.Now()
	for _, w := range released {
		s.reporter.Publish(domain.Event{
			Kind: domain.EventIsolated, At: now, Worker: w, Active: active, Reason: reason,
		})
	}
	_ = s.transport.Disconnect(src)
	if len(released) > 0 {
		s.logger.Info("Worker isolated", "source", src, "sessions", len(released), "active", active)
	}

	stop := len(released) > 0 && s.coordinator.ShouldStop(active)

	if err := publishAll(ctx, s.publisher, s.dispatcher.Forget(released)); err != nil {
		nextStop, ferr := s.fail(ctx, src, err)
		return stop || nextStop, ferr
	}
	return stop, nil
}

func (s *Server) reportState() {
	s.reporter.Publish(domain.Event{
		Kind:   domain.EventState,
		At:     time.Now(),
		State:  s.coordinator.State(),
		Active: s.registry.ActiveCount(),
	})
}
