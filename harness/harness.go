// Package harness runs light-curve generation over partitions of the parameter table, one
// worker per partition, and writes one artifact per worker.
package harness

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/bob-anderson-ok/kilonovagen/archive"
	"github.com/bob-anderson-ok/kilonovagen/config"
	kerrors "github.com/bob-anderson-ok/kilonovagen/internal/errors"
	"github.com/bob-anderson-ok/kilonovagen/lightcurve"
	"github.com/bob-anderson-ok/kilonovagen/manifest"
	"github.com/bob-anderson-ok/kilonovagen/params"
)

// State is the lifecycle position of a Harness. It only moves forward.
type State int

const (
	Idle State = iota
	Partitioned
	Running
	Joined
	Done
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Partitioned:
		return "partitioned"
	case Running:
		return "running"
	case Joined:
		return "joined"
	case Done:
		return "done"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Generator produces one training record per binary.
type Generator interface {
	Generate(m1, m2, l1, l2 float64) (lightcurve.Record, error)
	BandColumns() []string
}

// Status is what one worker reports back after it stops.
type Status struct {
	Index     int
	File      string
	Rows      int // Records written to File
	ObjectKey string
	Elapsed   time.Duration
	Err       error
}

// OK reports whether the partition was written (and uploaded, when a sink is set).
func (s Status) OK() bool { return s.Err == nil }

// Harness owns one generation run. It is single use: once Run returns it is Done.
type Harness struct {
	cfg      config.Generation
	gen      Generator
	log      *zap.Logger
	progress io.Writer
	manifest *manifest.Manifest
	sink     archive.Sink
	runID    string

	mu    sync.Mutex
	state State
	parts []params.Partition
	done  chan struct{}
}

// Option configures a Harness.
type Option func(*Harness)

// WithLogger sets the structured logger. The default discards everything.
func WithLogger(log *zap.Logger) Option { return func(h *Harness) { h.log = log } }

// WithProgress sets where the reporting worker writes its percentage lines.
func WithProgress(w io.Writer) Option { return func(h *Harness) { h.progress = w } }

// WithManifest records the run and every partition outcome in m.
func WithManifest(m *manifest.Manifest) Option { return func(h *Harness) { h.manifest = m } }

// WithSink uploads each written partition file through s.
func WithSink(s archive.Sink) Option { return func(h *Harness) { h.sink = s } }

// WithGenerator replaces the light-curve generator built from the configuration.
func WithGenerator(g Generator) Option { return func(h *Harness) { h.gen = g } }

// WithRunID fixes the run identifier instead of generating a random UUID.
func WithRunID(id string) Option { return func(h *Harness) { h.runID = id } }

// New builds an idle harness from a validated configuration.
func New(cfg config.Config, opts ...Option) (*Harness, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	h := &Harness{
		cfg:      cfg.Generation,
		log:      zap.NewNop(),
		progress: io.Discard,
		runID:    uuid.NewString(),
		done:     make(chan struct{}),
	}
	for _, opt := range opts {
		opt(h)
	}
	if h.gen == nil {
		gen, err := lightcurve.NewGenerator(cfg.Simulation, cfg.Bands)
		if err != nil {
			return nil, err
		}
		h.gen = gen
	}
	h.log = h.log.With(zap.String("run_id", h.runID))
	return h, nil
}

// RunID identifies this run in artifact headers and the manifest.
func (h *Harness) RunID() string { return h.runID }

func (h *Harness) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.state
}

// Done is closed once, when the run has been joined and recorded.
func (h *Harness) Done() <-chan struct{} { return h.done }

func (h *Harness) advance(from, to State) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.state != from {
		return kerrors.Configuration("harness is %s, expected %s", h.state, from)
	}
	h.state = to
	return nil
}

// Partition splits the parameter columns into one partition per worker.
func (h *Harness) Partition(cols params.Columns) error {
	parts, err := params.Split(cols, h.cfg.Workers)
	if err != nil {
		return err
	}
	if err := h.advance(Idle, Partitioned); err != nil {
		return err
	}
	h.parts = parts
	h.log.Info("parameters partitioned",
		zap.Int("rows", cols.Len()),
		zap.Int("workers", len(parts)),
		zap.Int("rows_per_worker", parts[0].Len()))
	return nil
}

// Run starts one worker per partition and waits for all of them. The returned statuses are
// indexed by partition. The error combines every worker failure.
//
// A failing worker writes nothing and stops only itself, unless fail_fast is set, in which
// case the first failure cancels the rest between rows.
func (h *Harness) Run(ctx context.Context) ([]Status, error) {
	if err := h.advance(Partitioned, Running); err != nil {
		return nil, err
	}
	start := time.Now()

	if h.manifest != nil {
		if err := h.manifest.StartRun(ctx, h.runID, h.cfg.Input, len(h.parts)); err != nil {
			h.log.Warn("manifest unavailable", zap.Error(err))
		}
	}

	runCtx := ctx
	if h.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		runCtx, cancel = context.WithTimeout(runCtx, h.cfg.Timeout)
		defer cancel()
	}
	var g *errgroup.Group
	if h.cfg.FailFast {
		g, runCtx = errgroup.WithContext(runCtx)
	} else {
		g = new(errgroup.Group)
	}

	statuses := make([]Status, len(h.parts))
	for i, p := range h.parts {
		g.Go(func() error {
			statuses[i] = h.work(runCtx, p, i == 0)
			return statuses[i].Err
		})
	}
	_ = g.Wait()

	if err := h.advance(Running, Joined); err != nil {
		return nil, err
	}

	var runErr error
	written := 0
	for _, st := range statuses {
		runErr = multierr.Append(runErr, st.Err)
		if st.OK() {
			written++
		}
		h.record(ctx, st)
	}
	if h.manifest != nil {
		state := manifest.StateDone
		if runErr != nil {
			state = manifest.StateFailed
		}
		if err := h.manifest.FinishRun(ctx, h.runID, state); err != nil {
			h.log.Warn("could not record run end", zap.Error(err))
		}
	}

	_ = h.advance(Joined, Done)
	close(h.done)

	h.log.Info("generation finished",
		zap.Int("partitions", len(statuses)),
		zap.Int("written", written),
		zap.Int("failed", len(multierr.Errors(runErr))),
		zap.Duration("took", time.Since(start)))
	return statuses, runErr
}

// Generate partitions cols and runs the workers.
func (h *Harness) Generate(ctx context.Context, cols params.Columns) ([]Status, error) {
	if err := h.Partition(cols); err != nil {
		return nil, err
	}
	return h.Run(ctx)
}

func (h *Harness) record(ctx context.Context, st Status) {
	if h.manifest == nil {
		return
	}
	entry := manifest.Partition{
		RunID:     h.runID,
		Index:     st.Index,
		File:      st.File,
		Rows:      st.Rows,
		State:     manifest.StateDone,
		Seconds:   st.Elapsed.Seconds(),
		ObjectKey: st.ObjectKey,
	}
	if st.Err != nil {
		entry.State = manifest.StateFailed
		entry.Error = st.Err.Error()
	}
	if err := h.manifest.RecordPartition(ctx, entry); err != nil {
		h.log.Warn("could not record partition", zap.Int("partition", st.Index), zap.Error(err))
	}
}
