package dispatch

import (
	"context"
	"log"
	"net"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/tinytelemetry/logwatchd/internal/control"
	"github.com/tinytelemetry/logwatchd/internal/model"
	"github.com/tinytelemetry/logwatchd/internal/registry"
)

// placeholderMarker starts the separator records the log source emits between
// buffers ("--------- beginning of main"). Those never reach a sink.
const placeholderMarker = "-"

// State is the dispatcher's position in its lifecycle.
type State int32

const (
	StateInit State = iota
	StateProbing
	StateRunning
	StateRestarting
	StateDisabled
)

func (s State) String() string {
	switch s {
	case StateInit:
		return "init"
	case StateProbing:
		return "probing"
	case StateRunning:
		return "running"
	case StateRestarting:
		return "restarting"
	case StateDisabled:
		return "disabled"
	default:
		return "unknown"
	}
}

// LineSource is the dispatcher's view of one running log source child. The
// line channel closing means the child's output ended.
type LineSource interface {
	Lines() <-chan string
	Stop()
	Wait() error
}

// Config wires a dispatcher to its collaborators.
type Config struct {
	// Registry holds the listener slots lines are dispatched through.
	Registry *registry.Registry

	// Listener is the control endpoint, created once at daemon start.
	Listener net.Listener

	// StartSource starts the filtered log source child.
	StartSource func() (LineSource, error)

	// Probe reports whether the log source is currently readable.
	Probe func() bool
}

// Stats is a point-in-time snapshot of dispatcher activity for the status API.
type Stats struct {
	State         string `json:"state"`
	Loggable      bool   `json:"loggable"`
	LinesSeen     uint64 `json:"lines_seen"`
	LinesDropped  uint64 `json:"lines_dropped"`
	LinesWritten  uint64 `json:"lines_written"`
	WriteErrors   uint64 `json:"write_errors"`
	Restarts      uint64 `json:"restarts"`
	WatchActive   bool   `json:"watch_active"`
	PersistActive bool   `json:"persist_active"`
	DebugActive   bool   `json:"debug_active"`
}

// Dispatcher owns the log source child and the main monitoring loop: it
// probes the log source, reads lines, fans matches out through the registry,
// spawns the attach task on demand, restarts the source when it dies and
// disables everything when a probe fails.
type Dispatcher struct {
	reg         *registry.Registry
	ln          net.Listener
	startSource func() (LineSource, error)
	probe       func() bool

	// loggable starts true and is set false exactly once, by a failed probe.
	// Never reset within a run.
	loggable atomic.Bool
	state    atomic.Int32

	attachRunning atomic.Bool
	attachWG      sync.WaitGroup

	linesSeen    atomic.Uint64
	linesDropped atomic.Uint64
	linesWritten atomic.Uint64
	writeErrors  atomic.Uint64
	restarts     atomic.Uint64
}

// New creates a dispatcher in the Init state.
func New(cfg Config) *Dispatcher {
	d := &Dispatcher{
		reg:         cfg.Registry,
		ln:          cfg.Listener,
		startSource: cfg.StartSource,
		probe:       cfg.Probe,
	}
	d.loggable.Store(true)
	d.state.Store(int32(StateInit))
	return d
}

// Run executes the monitoring loop until the probe reports the log source
// unreadable or ctx is cancelled. On return every sink is closed and any
// pending attach task has been cancelled. Run never returns an error: all
// failures short of an unhealthy probe are absorbed and the loop continues.
func (d *Dispatcher) Run(ctx context.Context) error {
	defer d.teardown()

	d.setState(StateProbing)
	if !d.probe() {
		d.disable()
		return nil
	}

	for {
		src, err := d.startSource()
		if err != nil {
			// Treated like an immediate source death: the follow-up probe
			// decides between retry and permanent shutdown.
			log.Printf("dispatch: start log source: %v", err)
		} else {
			d.setState(StateRunning)
			d.pump(ctx, src)
			src.Stop()
			if werr := src.Wait(); werr != nil && ctx.Err() == nil {
				log.Printf("dispatch: log source exited: %v", werr)
			}
		}

		if ctx.Err() != nil {
			return nil
		}

		d.setState(StateRestarting)
		d.restarts.Add(1)
		if !d.probe() {
			d.disable()
			return nil
		}
	}
}

// pump consumes lines from one source until its channel closes or ctx is
// cancelled. Dispatch is single-threaded and sequential, so every sink
// observes lines in exactly the order the source produced them.
func (d *Dispatcher) pump(ctx context.Context, src LineSource) {
	for {
		select {
		case <-ctx.Done():
			return
		case line, ok := <-src.Lines():
			if !ok {
				return
			}
			d.handleLine(line)
			d.maybeSpawnAttach()
		}
	}
}

func (d *Dispatcher) handleLine(line string) {
	d.linesSeen.Add(1)
	if strings.HasPrefix(line, placeholderMarker) {
		d.linesDropped.Add(1)
		return
	}

	for _, e := range d.reg.ActiveSinks() {
		if !e.Filter(line) {
			continue
		}
		if err := e.Sink.Write(line); err != nil {
			d.writeErrors.Add(1)
			if e.Kind == model.EventWatch {
				// The attached consumer hung up. Clear the slot so a new
				// attach task gets spawned; the clear path takes no lock.
				d.reg.ClearSink(model.EventWatch)
				log.Printf("dispatch: watch sink disconnected: %v", err)
			} else {
				// File sink write failures lose this line for this sink
				// only; the loop keeps going.
				log.Printf("dispatch: write to %s sink: %v", e.Kind, err)
			}
			continue
		}
		d.linesWritten.Add(1)
	}
}

// maybeSpawnAttach starts the control accept task when the watch slot is
// inactive and no task is already running. The task self-terminates after
// installing one sink; teardown cancels it by closing the listener.
func (d *Dispatcher) maybeSpawnAttach() {
	if d.reg.Active(model.EventWatch) {
		return
	}
	if !d.attachRunning.CompareAndSwap(false, true) {
		return
	}
	d.attachWG.Add(1)
	go func() {
		defer d.attachWG.Done()
		defer d.attachRunning.Store(false)
		// A non-nil error means the listener closed underneath us, which
		// only happens at teardown.
		_ = control.ServeAttach(d.ln, d.reg)
	}()
}

// disable flips loggable false for the remainder of the run.
func (d *Dispatcher) disable() {
	d.loggable.Store(false)
	d.setState(StateDisabled)
	log.Printf("dispatch: log source unreadable, disabling all sinks")
}

// teardown cancels a pending attach task and closes every sink.
func (d *Dispatcher) teardown() {
	if d.ln != nil {
		d.ln.Close()
	}
	d.attachWG.Wait()
	d.reg.CloseAll()
}

func (d *Dispatcher) setState(s State) {
	d.state.Store(int32(s))
}

// State returns the dispatcher's current lifecycle state.
func (d *Dispatcher) State() State {
	return State(d.state.Load())
}

// Loggable reports whether the log source was readable at the last probe.
func (d *Dispatcher) Loggable() bool {
	return d.loggable.Load()
}

// Stats snapshots dispatcher counters for the status API.
func (d *Dispatcher) Stats() Stats {
	return Stats{
		State:         d.State().String(),
		Loggable:      d.loggable.Load(),
		LinesSeen:     d.linesSeen.Load(),
		LinesDropped:  d.linesDropped.Load(),
		LinesWritten:  d.linesWritten.Load(),
		WriteErrors:   d.writeErrors.Load(),
		Restarts:      d.restarts.Load(),
		WatchActive:   d.reg.Active(model.EventWatch),
		PersistActive: d.reg.Active(model.EventPersist),
		DebugActive:   d.reg.Active(model.EventDebug),
	}
}
