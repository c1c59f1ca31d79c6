package dashboard

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// Listener receives the three charts of one refresh together.
type Listener func(Figures)

type subscription struct {
	id int
	fn Listener
}

type request struct {
	seq    uint64
	inputs Inputs
	ctx    context.Context
	cancel context.CancelFunc
}

// Binding connects input changes to refreshes. Refreshes run one at a time
// on a single goroutine. A newer Update cancels the refresh still in flight
// and only the result of the latest Update is ever published.
type Binding struct {
	app *App
	log *zap.Logger

	ctx  context.Context
	stop context.CancelFunc
	wake chan struct{}
	done chan struct{}

	mu        sync.Mutex
	seq       uint64
	pending   *request
	inflight  context.CancelFunc
	listeners []subscription
	nextID    int
	closed    bool
}

func NewBinding(app *App) *Binding {
	ctx, stop := context.WithCancel(context.Background())
	b := &Binding{
		app:  app,
		log:  app.log.Named("binding"),
		ctx:  ctx,
		stop: stop,
		wake: make(chan struct{}, 1),
		done: make(chan struct{}),
	}
	go b.run()
	return b
}

// Subscribe registers fn for every published refresh. The returned func
// removes it again.
func (b *Binding) Subscribe(fn Listener) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	id := b.nextID
	b.listeners = append(b.listeners, subscription{id: id, fn: fn})

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for i, sub := range b.listeners {
			if sub.id == id {
				b.listeners = append(b.listeners[:i], b.listeners[i+1:]...)
				return
			}
		}
	}
}

// Update schedules a refresh for the inputs and returns its sequence
// number. It does not block on the fetch. Updates after Close return 0.
func (b *Binding) Update(in Inputs) uint64 {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return 0
	}
	b.seq++
	if b.inflight != nil {
		b.inflight()
	}
	ctx, cancel := context.WithCancel(b.ctx)
	b.pending = &request{seq: b.seq, inputs: in, ctx: ctx, cancel: cancel}
	b.inflight = cancel
	seq := b.seq
	b.mu.Unlock()

	select {
	case b.wake <- struct{}{}:
	default:
	}
	return seq
}

// Close stops the refresh goroutine and waits for it to exit. Pending and
// in-flight refreshes are cancelled and never published.
func (b *Binding) Close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		<-b.done
		return
	}
	b.closed = true
	b.listeners = nil
	b.mu.Unlock()

	b.stop()
	<-b.done
}

func (b *Binding) run() {
	defer close(b.done)
	for {
		select {
		case <-b.ctx.Done():
			return
		case <-b.wake:
		}

		b.mu.Lock()
		req := b.pending
		b.pending = nil
		b.mu.Unlock()
		if req == nil {
			continue
		}

		figs := b.app.Refresh(req.ctx, req.inputs)
		b.publish(req, figs)
		req.cancel()
	}
}

func (b *Binding) publish(req *request, figs Figures) {
	b.mu.Lock()
	if req.seq != b.seq || req.ctx.Err() != nil {
		b.mu.Unlock()
		b.log.Debug("dropping superseded refresh", zap.Uint64("seq", req.seq), zap.String("id", figs.ID))
		return
	}
	listeners := make([]Listener, 0, len(b.listeners))
	for _, sub := range b.listeners {
		listeners = append(listeners, sub.fn)
	}
	b.mu.Unlock()

	for _, fn := range listeners {
		fn(figs)
	}
}
