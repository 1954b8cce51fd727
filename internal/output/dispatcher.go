package output

import (
	"log/slog"
	"sort"
	"sync"
	"time"

	"pingpong/internal/event"
)

const defaultBufferSize = 1024

type Options struct {
	FileOutput   string
	MaxRecords   int
	LokiEndpoint string
	BufferSize   int
}

// Progress is the last known position of one role.
type Progress struct {
	Role      string    `json:"role"`
	PID       int       `json:"pid"`
	Round     int       `json:"round"`
	State     string    `json:"state"`
	Sent      int       `json:"sent"`
	Received  int       `json:"received"`
	Completed int       `json:"completed"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Dispatcher fans exchange events out to metrics, the transcript file and
// Loki on a single goroutine, and keeps per-role progress for the status API.
type Dispatcher struct {
	events chan event.Exchange
	done   chan struct{}
	fw     *FileWriter
	loki   *LokiClient
	pushes sync.WaitGroup

	mu       sync.Mutex
	closed   bool
	progress map[string]*Progress
}

func NewDispatcher(opts Options) *Dispatcher {
	size := opts.BufferSize
	if size <= 0 {
		size = defaultBufferSize
	}

	d := &Dispatcher{
		events:   make(chan event.Exchange, size),
		done:     make(chan struct{}),
		fw:       NewFileWriter(opts.FileOutput, opts.MaxRecords),
		progress: make(map[string]*Progress),
	}
	if opts.LokiEndpoint != "" {
		d.loki = NewLokiClient(opts.LokiEndpoint)
	}

	go d.run()
	return d
}

// Observe records ev. It never blocks; events are dropped when the buffer is
// full or the dispatcher is closed.
func (d *Dispatcher) Observe(ev event.Exchange) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return
	}
	d.track(ev)

	select {
	case d.events <- ev:
	default:
		slog.Warn("Event channel full, dropping event", "role", ev.Role, "round", ev.Round)
	}
}

func (d *Dispatcher) track(ev event.Exchange) {
	p, ok := d.progress[ev.Role]
	if !ok {
		p = &Progress{Role: ev.Role}
		d.progress[ev.Role] = p
	}
	p.PID = ev.PID
	p.Round = ev.Round
	p.UpdatedAt = ev.Time()

	switch ev.Kind {
	case event.KindState:
		p.State = ev.State
	case event.KindSent:
		p.Sent++
	case event.KindReceived:
		p.Received++
	case event.KindRound:
		p.Completed++
	}
}

// Snapshot returns the progress of every role seen so far, ordered by role.
func (d *Dispatcher) Snapshot() []Progress {
	d.mu.Lock()
	defer d.mu.Unlock()

	result := make([]Progress, 0, len(d.progress))
	for _, p := range d.progress {
		result = append(result, *p)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Role < result[j].Role })
	return result
}

// Close stops accepting events and waits until the queued ones reached every
// sink.
func (d *Dispatcher) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	close(d.events)
	d.mu.Unlock()

	<-d.done
	d.pushes.Wait()
	return d.fw.Close()
}

func (d *Dispatcher) run() {
	defer close(d.done)

	for ev := range d.events {
		switch ev.Kind {
		case event.KindSent:
			IncrementSent(ev.Role)
		case event.KindReceived:
			IncrementReceived(ev.Role)
		case event.KindRound:
			IncrementRounds(ev.Role)
		}

		if err := d.fw.Write(ev.String()); err != nil {
			slog.Warn("File write failed", "error", err)
		}

		if d.loki != nil {
			d.pushes.Add(1)
			go func(e event.Exchange) {
				defer d.pushes.Done()
				if err := d.loki.Push(e); err != nil {
					slog.Warn("Loki push failed", "error", err)
				}
			}(ev)
		}
	}
}
