// Package sched drives graph execution: it tracks which actors are runnable,
// dispatches firings onto worker goroutines, enforces per-actor mutual
// exclusion and applies the configured fault policy.
//
// Distinct actors fire concurrently; the same actor's firings are strictly
// sequential. Fairness comes from a FIFO ready ring: an actor that remains
// runnable after firing re-enters at the tail, so no runnable actor starves.
package sched

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/aretw0/weft/internal/fabric"
	"github.com/aretw0/weft/pkg/actor"
	"github.com/aretw0/weft/pkg/observability"
	"github.com/aretw0/weft/pkg/token"
)

// State is the scheduler's view of one actor.
type State int

const (
	Idle State = iota
	Runnable
	Firing
	Faulted
	Stopped
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Runnable:
		return "runnable"
	case Firing:
		return "firing"
	case Faulted:
		return "faulted"
	case Stopped:
		return "stopped"
	}
	return "unknown"
}

// FaultPolicy selects what happens when a firing returns an error.
type FaultPolicy int

const (
	// Isolate marks the actor faulted and drops its pending inputs; the rest
	// of the graph keeps running. This is the default.
	Isolate FaultPolicy = iota
	// Restart resets the actor to fresh private state and retries the same
	// inputs exactly once, isolating on a second failure.
	Restart
	// Halt stops the entire graph on the first fault.
	Halt
)

func (p FaultPolicy) String() string {
	switch p {
	case Isolate:
		return "isolate"
	case Restart:
		return "restart"
	case Halt:
		return "halt"
	}
	return "unknown"
}

// ParseFaultPolicy maps a config string onto a policy.
func ParseFaultPolicy(s string) (FaultPolicy, error) {
	switch s {
	case "isolate", "":
		return Isolate, nil
	case "restart":
		return Restart, nil
	case "halt":
		return Halt, nil
	}
	return Isolate, fmt.Errorf("unknown fault policy %q", s)
}

// InputPort binds one declared input to its connection.
type InputPort struct {
	Name     string
	Required bool
	Label    string
	Conn     *fabric.Connection
}

// Outbound is one fan-out branch of an output port.
type Outbound struct {
	Label string
	Conn  *fabric.Connection
}

// OutputPort binds one declared output to its fan-out connections.
type OutputPort struct {
	Name    string
	Targets []Outbound
}

// ActorRuntime is everything the scheduler needs to run one actor.
type ActorRuntime struct {
	Name    string
	Impl    actor.Implementation
	Rebuild func() (actor.Implementation, error)
	Inputs  []InputPort
	Outputs []OutputPort
}

// Config tunes a scheduler instance.
type Config struct {
	Logger      *slog.Logger
	FaultPolicy FaultPolicy
	// Workers bounds the number of concurrently executing Fire calls;
	// zero means unbounded.
	Workers int64
	Metrics *observability.Metrics
}

// ActorStatus is a point-in-time view of one actor for introspection.
type ActorStatus struct {
	Name    string         `json:"name"`
	State   string         `json:"state"`
	Firings uint64         `json:"firings"`
	Faults  uint64         `json:"faults"`
	Pending map[string]int `json:"pending,omitempty"`
}

type eventKind int

const (
	evFired eventKind = iota
	evFault
	evSkipped
)

type event struct {
	kind    eventKind
	id      int
	err     error
	inputs  map[string]token.Token
	retried bool
}

type ctlReq struct {
	stop bool
	done chan struct{}
}

// Scheduler executes a built graph. Create with New, then Start once.
type Scheduler struct {
	actors []*ActorRuntime

	log     *slog.Logger
	policy  FaultPolicy
	metrics *observability.Metrics
	sem     *semaphore.Weighted

	mu      sync.RWMutex
	states  []State
	firings []uint64
	faults  []uint64

	credits  []int
	ready    []int
	inflight int

	events   chan event
	wake     chan struct{}
	ctl      chan ctlReq
	finished chan struct{}

	runCtx  context.Context
	cancel  context.CancelFunc
	started bool
	haltErr error
}

// New builds a scheduler over the given actor runtimes. Every input
// connection is hooked to the wake channel: a token landing anywhere
// re-evaluates runnability, so consumers notice deliveries made mid-firing
// (a producer blocked on a full bounded queue) or from outside a firing.
func New(actors []*ActorRuntime, cfg Config) *Scheduler {
	if cfg.Logger == nil {
		cfg.Logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	s := &Scheduler{
		actors:   actors,
		log:      cfg.Logger,
		policy:   cfg.FaultPolicy,
		metrics:  cfg.Metrics,
		states:   make([]State, len(actors)),
		firings:  make([]uint64, len(actors)),
		faults:   make([]uint64, len(actors)),
		credits:  make([]int, len(actors)),
		events:   make(chan event, len(actors)*2+16),
		wake:     make(chan struct{}, 1),
		ctl:      make(chan ctlReq),
		finished: make(chan struct{}),
	}
	if cfg.Workers > 0 {
		s.sem = semaphore.NewWeighted(cfg.Workers)
	}
	for _, a := range actors {
		for _, in := range a.Inputs {
			in.Conn.SetNotify(s.wake)
		}
	}
	// A source with no input ports gets exactly one initial firing credit;
	// it is never spontaneously re-runnable.
	for id, a := range actors {
		if len(a.Inputs) == 0 {
			s.credits[id] = 1
		}
	}
	return s
}

// Start begins execution. The context governs the whole run: cancelling it
// behaves like Stop.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.started {
		return errors.New("scheduler already started")
	}
	s.started = true
	s.runCtx, s.cancel = context.WithCancel(ctx)
	go s.loop()
	return nil
}

// Quiesce disables dispatch and waits for in-flight firings to complete.
// Queued tokens stay in place; the graph can only be stopped afterwards.
func (s *Scheduler) Quiesce(ctx context.Context) error {
	return s.control(ctx, false)
}

// Stop cancels in-flight work cooperatively, waits for firings to return,
// marks every actor Stopped and releases the fabric. Pending tokens are
// discarded. Idempotent.
func (s *Scheduler) Stop(ctx context.Context) error {
	return s.control(ctx, true)
}

// Err returns the fault that halted the graph under the halt policy, if any.
func (s *Scheduler) Err() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.haltErr
}

// Done is closed once the scheduler has fully stopped.
func (s *Scheduler) Done() <-chan struct{} { return s.finished }

// Snapshot reports every actor's current state and queue depths.
func (s *Scheduler) Snapshot() []ActorStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]ActorStatus, len(s.actors))
	for id, a := range s.actors {
		st := ActorStatus{
			Name:    a.Name,
			State:   s.states[id].String(),
			Firings: s.firings[id],
			Faults:  s.faults[id],
		}
		if len(a.Inputs) > 0 {
			st.Pending = make(map[string]int, len(a.Inputs))
			for _, in := range a.Inputs {
				st.Pending[in.Name] = in.Conn.Pending()
			}
		}
		out[id] = st
	}
	return out
}

func (s *Scheduler) control(ctx context.Context, stop bool) error {
	req := ctlReq{stop: stop, done: make(chan struct{})}
	select {
	case s.ctl <- req:
	case <-s.finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-req.done:
		return nil
	case <-s.finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *Scheduler) setState(id int, st State) {
	s.mu.Lock()
	s.states[id] = st
	s.mu.Unlock()
}

func (s *Scheduler) state(id int) State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.states[id]
}

// loop owns all scheduling decisions. Workers only touch the fabric and the
// actor implementation; every state transition funnels through here.
func (s *Scheduler) loop() {
	defer close(s.finished)

	var (
		draining bool
		stopping bool
		waiters  []ctlReq
	)

	restarted := make([]bool, len(s.actors))
	ctxDone := s.runCtx.Done()

	for id := range s.actors {
		s.reevaluate(id)
	}
	s.dispatchAll()

	for {
		select {
		case ev := <-s.events:
			s.inflight--
			switch ev.kind {
			case evFired:
				s.mu.Lock()
				s.states[ev.id] = Idle
				s.firings[ev.id]++
				s.mu.Unlock()
				restarted[ev.id] = false
				s.reevaluate(ev.id)

			case evSkipped:
				s.setState(ev.id, Idle)
				s.reevaluate(ev.id)

			case evFault:
				s.mu.Lock()
				s.faults[ev.id]++
				s.mu.Unlock()
				if s.metrics != nil {
					s.metrics.Faults.WithLabelValues(s.actors[ev.id].Name).Inc()
				}
				s.log.Error("actor fire fault",
					"actor", s.actors[ev.id].Name,
					"policy", s.policy.String(),
					"err", ev.err,
				)

				switch {
				case stopping:
					s.setState(ev.id, Idle)

				case s.policy == Halt:
					s.mu.Lock()
					s.haltErr = ev.err
					s.mu.Unlock()
					s.setState(ev.id, Faulted)
					draining, stopping = true, true
					s.cancel()

				case s.policy == Restart && !ev.retried && !restarted[ev.id]:
					impl, err := s.actors[ev.id].Rebuild()
					if err != nil {
						s.log.Error("actor restart failed", "actor", s.actors[ev.id].Name, "err", err)
						s.isolate(ev.id)
						break
					}
					restarted[ev.id] = true
					s.actors[ev.id].Impl = impl
					s.inflight++
					go s.runFiring(ev.id, ev.inputs, true)

				default:
					s.isolate(ev.id)
				}
			}

		case <-s.wake:
			// A token landed on some input. The signal does not say whose,
			// so every idle actor gets re-checked; reevaluate reads fresh
			// queue depths and the signal coalesces bursts.
			for id := range s.actors {
				s.reevaluate(id)
			}

		case req := <-s.ctl:
			draining = true
			if req.stop && !stopping {
				stopping = true
				s.cancel()
			}
			waiters = append(waiters, req)

		case <-ctxDone:
			ctxDone = nil
			draining, stopping = true, true
		}

		if !draining {
			s.dispatchAll()
		}

		if draining && s.inflight == 0 {
			for _, w := range waiters {
				close(w.done)
			}
			waiters = nil
			if stopping {
				s.finalize()
				return
			}
		}
	}
}

func (s *Scheduler) isolate(id int) {
	s.setState(id, Faulted)
	s.drainInputs(id)
}

// drainInputs discards pending tokens of a faulted actor so bounded
// producers upstream do not block on a consumer that will never fire.
func (s *Scheduler) drainInputs(id int) {
	for _, in := range s.actors[id].Inputs {
		for {
			if _, ok := in.Conn.TryDequeue(); !ok {
				break
			}
		}
	}
}

// reevaluate moves an idle actor to the ready ring when its firing rule is
// satisfied: one pending token on every required input, or an unspent
// initial credit for zero-input sources.
func (s *Scheduler) reevaluate(id int) {
	switch s.state(id) {
	case Faulted:
		s.drainInputs(id)
		return
	case Idle:
	default:
		return
	}

	a := s.actors[id]
	if len(a.Inputs) == 0 {
		if s.credits[id] <= 0 {
			return
		}
	} else {
		any := false
		for _, in := range a.Inputs {
			pending := in.Conn.Pending()
			if in.Required && pending == 0 {
				return
			}
			if pending > 0 {
				any = true
			}
		}
		if !any {
			return
		}
	}

	s.setState(id, Runnable)
	s.ready = append(s.ready, id)
}

func (s *Scheduler) dispatchAll() {
	for len(s.ready) > 0 {
		id := s.ready[0]
		s.ready = s.ready[1:]
		if s.state(id) != Runnable {
			continue
		}
		if len(s.actors[id].Inputs) == 0 {
			s.credits[id]--
		}
		s.setState(id, Firing)
		s.inflight++
		go s.runFiring(id, nil, false)
	}
}

// runFiring executes one firing on a worker goroutine. When inputs is nil
// the required tokens are dequeued first (all or nothing: this goroutine is
// the port's only consumer, so observed tokens cannot vanish); a non-nil
// inputs map is a restart retry reusing the tokens that faulted.
func (s *Scheduler) runFiring(id int, inputs map[string]token.Token, retried bool) {
	a := s.actors[id]

	if inputs == nil {
		inputs = make(map[string]token.Token, len(a.Inputs))
		for _, in := range a.Inputs {
			tok, ok := in.Conn.TryDequeue()
			if !ok {
				if in.Required {
					s.events <- event{kind: evSkipped, id: id}
					return
				}
				continue
			}
			inputs[in.Name] = tok
			if s.metrics != nil {
				s.metrics.QueueDepth.WithLabelValues(in.Label).Set(float64(in.Conn.Pending()))
			}
		}
	}

	// The worker limit bounds concurrent Fire calls only; a firing blocked
	// on a full downstream queue has already released its slot.
	if s.sem != nil {
		if err := s.sem.Acquire(s.runCtx, 1); err != nil {
			s.events <- event{kind: evSkipped, id: id}
			return
		}
	}
	start := time.Now()
	outputs, err := a.Impl.Fire(s.runCtx, inputs)
	elapsed := time.Since(start)
	if s.sem != nil {
		s.sem.Release(1)
	}

	if err != nil {
		s.events <- event{kind: evFault, id: id, err: err, inputs: inputs, retried: retried}
		return
	}

	if s.metrics != nil {
		s.metrics.Firings.WithLabelValues(a.Name).Inc()
		s.metrics.FireDuration.WithLabelValues(a.Name).Observe(elapsed.Seconds())
	}

	// Deliver in declared port order, produced order per port. Fan-out gets
	// an independent deep copy per connection so no payload is aliased.
	for _, out := range a.Outputs {
		for _, tok := range outputs[out.Name] {
			for _, tgt := range out.Targets {
				if err := tgt.Conn.Enqueue(s.runCtx, tok.Copy()); err != nil {
					s.events <- event{kind: evFired, id: id}
					return
				}
				if s.metrics != nil {
					s.metrics.QueueDepth.WithLabelValues(tgt.Label).Set(float64(tgt.Conn.Pending()))
				}
			}
		}
	}

	s.events <- event{kind: evFired, id: id}
}

func (s *Scheduler) finalize() {
	s.mu.Lock()
	for id := range s.states {
		s.states[id] = Stopped
	}
	s.mu.Unlock()

	closed := map[*fabric.Connection]bool{}
	for _, a := range s.actors {
		for _, in := range a.Inputs {
			if !closed[in.Conn] {
				closed[in.Conn] = true
				in.Conn.Close()
			}
		}
		for _, out := range a.Outputs {
			for _, tgt := range out.Targets {
				if !closed[tgt.Conn] {
					closed[tgt.Conn] = true
					tgt.Conn.Close()
				}
			}
		}
	}
}
