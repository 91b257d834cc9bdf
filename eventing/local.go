package eventing

import (
	"context"
	"slices"
	"sync"

	"github.com/agentuity/go-apiclient/logger"
	"github.com/cockroachdb/errors"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

var ErrClosed = errors.New("eventing: bus closed")

type localSubscriber struct {
	bus        *localBus
	types      []Type
	dispatcher Dispatcher
	cb         Handler
	mu         sync.Mutex
	queue      []Event
	signal     chan struct{}
	done       chan struct{}
	once       sync.Once
}

func (s *localSubscriber) wants(t Type) bool {
	return len(s.types) == 0 || slices.Contains(s.types, t)
}

func (s *localSubscriber) enqueue(ev Event) {
	s.mu.Lock()
	s.queue = append(s.queue, ev)
	s.mu.Unlock()
	select {
	case s.signal <- struct{}{}:
	default:
	}
}

func (s *localSubscriber) run(ctx context.Context) {
	defer s.bus.waitGroup.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case <-s.done:
			return
		case <-s.signal:
		}
		for {
			s.mu.Lock()
			if len(s.queue) == 0 {
				s.mu.Unlock()
				break
			}
			ev := s.queue[0]
			s.queue = s.queue[1:]
			s.mu.Unlock()
			s.deliver(ctx, ev)
		}
	}
}

func (s *localSubscriber) deliver(ctx context.Context, ev Event) {
	delivered := make(chan struct{})
	s.dispatcher.Dispatch(func() {
		defer close(delivered)
		defer func() {
			if r := recover(); r != nil {
				s.bus.logger.Error("event handler for %s panicked: %v", ev.Type, r)
			}
		}()
		s.cb(propagator.Extract(ctx, ev.Headers), ev)
	})
	// keep per subscriber ordering even when the dispatcher hops goroutines
	select {
	case <-delivered:
	case <-ctx.Done():
	case <-s.done:
	}
}

func (s *localSubscriber) Close() error {
	s.once.Do(func() {
		close(s.done)
		s.bus.remove(s)
	})
	return nil
}

type localBus struct {
	ctx         context.Context
	cancel      context.CancelFunc
	logger      logger.Logger
	mu          sync.RWMutex
	subscribers []*localSubscriber
	closed      bool
	waitGroup   sync.WaitGroup
}

var _ Bus = (*localBus)(nil)

// NewLocalBus returns an in-process Bus. Each subscriber gets an unbounded
// queue and its own delivery goroutine, so Publish never waits on a slow handler.
func NewLocalBus(ctx context.Context, log logger.Logger) Bus {
	ctx, cancel := context.WithCancel(ctx)
	return &localBus{
		ctx:    ctx,
		cancel: cancel,
		logger: log.With(map[string]interface{}{"component": "eventing"}),
	}
}

func (b *localBus) Publish(ctx context.Context, ev Event) error {
	ev.Headers = ev.Headers.clone()
	// inject the trace context into the headers before starting a span
	propagator.Inject(ctx, ev.Headers)

	_, span := tracer.Start(ctx, "Publish", trace.WithSpanKind(trace.SpanKindProducer),
		trace.WithAttributes(attribute.String("event.type", string(ev.Type))))
	defer span.End()

	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return ErrClosed
	}
	var n int
	for _, s := range b.subscribers {
		if s.wants(ev.Type) {
			e := ev
			e.Headers = ev.Headers.clone()
			s.enqueue(e)
			n++
		}
	}
	b.logger.Trace("published %s to %d subscribers", ev, n)
	return nil
}

func (b *localBus) Subscribe(ctx context.Context, d Dispatcher, cb Handler, types ...Type) (Subscriber, error) {
	if cb == nil {
		return nil, errors.New("eventing: handler is required")
	}
	if d == nil {
		d = Inline
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil, ErrClosed
	}
	s := &localSubscriber{
		bus:        b,
		types:      types,
		dispatcher: d,
		cb:         cb,
		signal:     make(chan struct{}, 1),
		done:       make(chan struct{}),
	}
	b.subscribers = append(b.subscribers, s)
	b.waitGroup.Add(1)
	go s.run(b.ctx)
	if ctx.Done() != nil {
		go func() {
			select {
			case <-ctx.Done():
				s.Close()
			case <-s.done:
			}
		}()
	}
	return s, nil
}

func (b *localBus) remove(s *localSubscriber) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.subscribers = slices.DeleteFunc(b.subscribers, func(x *localSubscriber) bool { return x == s })
}

func (b *localBus) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	subs := slices.Clone(b.subscribers)
	b.mu.Unlock()
	for _, s := range subs {
		s.Close()
	}
	b.cancel()
	b.waitGroup.Wait()
	return nil
}
