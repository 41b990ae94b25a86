package parallel

import (
	"context"
	"errors"
	"fmt"
	"runtime"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"github.com/pnewstein/tf-permute/sim"
)

// DefaultChunkSize is the number of trials per chunk when Config.ChunkSize is zero.
const DefaultChunkSize = 100_000

// ErrControllerBusy is returned by Run when the controller is not idle.
var ErrControllerBusy = errors.New("controller is not idle")

// Config describes an open-ended run split into fixed-size chunks.
type Config struct {
	NCells    int
	NGenes    int
	Prob      float64
	Seed      int64       // master seed; chunk i uses sim.ChunkSeed(Seed, i)
	ChunkSize int         // trials per chunk (0 = DefaultChunkSize)
	Workers   int         // concurrent chunks (0 = GOMAXPROCS)
	Drain     DrainPolicy // fate of in-flight chunks on cancellation
	MaxChunks uint64      // stop dispatching after this many chunks (0 = unbounded)
}

// Controller runs chunks across a worker pool until cancelled and folds every
// completed chunk into one grand total. Workers hand back private per-chunk
// results; only the controller's collector goroutine touches the total.
type Controller struct {
	config  Config
	backend sim.Backend

	// OnMerge, if set, is called from the collector after each chunk merge
	// with a snapshot of the grand total. It must not block for long.
	OnMerge func(*sim.Result)

	state atomic.Int32

	mu     sync.Mutex
	total  *sim.Accumulator
	chunks int64
}

// NewController validates cfg and binds it to backend. A nil backend selects
// the in-process implementation. A backend built for other dimensions is
// rejected with sim.ErrBackendMismatch; it is never run.
func NewController(cfg Config, backend sim.Backend) (*Controller, error) {
	if cfg.ChunkSize == 0 {
		cfg.ChunkSize = DefaultChunkSize
	}
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.GOMAXPROCS(0)
	}
	if err := sim.NewSimConfig(cfg.NCells, cfg.NGenes, cfg.Prob, cfg.Seed, cfg.ChunkSize).Validate(); err != nil {
		return nil, err
	}
	if backend == nil {
		backend = sim.NewInProcessBackend(cfg.NCells, cfg.NGenes)
	}
	if err := sim.CheckDimensions(backend, cfg.NCells, cfg.NGenes); err != nil {
		return nil, err
	}
	return &Controller{
		config:  cfg,
		backend: backend,
		total:   sim.NewAccumulator(cfg.NCells),
	}, nil
}

// Config returns the effective configuration, defaults applied.
func (c *Controller) Config() Config {
	return c.config
}

// State returns the current lifecycle phase.
func (c *Controller) State() State {
	return State(c.state.Load())
}

func (c *Controller) setState(s State) {
	old := State(c.state.Swap(int32(s)))
	logrus.Debugf("Controller state %s -> %s", old, s)
}

// Snapshot returns a copy of the grand total. Safe to call at any time.
func (c *Controller) Snapshot() *sim.Result {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

func (c *Controller) snapshotLocked() *sim.Result {
	r := c.total.Result()
	r.Chunks = c.chunks
	return r
}

// Run dispatches chunks until ctx is cancelled (or MaxChunks is reached) and
// returns the grand total of every chunk that merged. Cancellation is not an
// error: with no merged chunk the result is an empty histogram. The only
// errors are ErrControllerBusy and a failed chunk, which aborts the run.
func (c *Controller) Run(ctx context.Context) (*sim.Result, error) {
	if !c.state.CompareAndSwap(int32(StateIdle), int32(StateRunning)) {
		return nil, ErrControllerBusy
	}
	defer c.setState(StateIdle)

	c.mu.Lock()
	c.total = sim.NewAccumulator(c.config.NCells)
	c.chunks = 0
	c.mu.Unlock()

	logrus.Infof("Starting continuous run: n_cells=%d, n_genes=%d, prob=%v, chunk=%d trials, workers=%d, drain=%s",
		c.config.NCells, c.config.NGenes, c.config.Prob, c.config.ChunkSize, c.config.Workers, c.config.Drain)

	// Chunks run under work, not ctx: cancelling ctx stops dispatch only.
	work, abandon := context.WithCancel(context.Background())
	defer abandon()
	g, gctx := errgroup.WithContext(work)

	results := make(chan *sim.Result, c.config.Workers)
	stop := make(chan struct{})
	collected := make(chan error, 1)
	go func() { collected <- c.collect(results, stop, abandon) }()

	dispatched, cancelled := c.dispatch(ctx, gctx, g, results)
	if cancelled {
		c.setState(StateCancelling)
		if c.config.Drain == DrainAbandon {
			close(stop)
			abandon()
		}
	}
	err := g.Wait()
	close(results)
	if cerr := <-collected; err == nil {
		err = cerr
	}
	c.setState(StateDrained)

	if err != nil {
		return nil, err
	}
	res := c.Snapshot()
	logrus.Infof("Continuous run drained: %d of %d dispatched chunks merged, %d trials",
		res.Chunks, dispatched, res.Trials)
	return res, nil
}

// dispatch submits chunks while a worker slot is free. Cancellation is
// observed between submissions only. It reports how many chunks were
// dispatched and whether it stopped because ctx or a chunk failure ended it.
func (c *Controller) dispatch(ctx, gctx context.Context, g *errgroup.Group, results chan<- *sim.Result) (uint64, bool) {
	sem := make(chan struct{}, c.config.Workers)
	var next uint64
	for c.config.MaxChunks == 0 || next < c.config.MaxChunks {
		select {
		case <-ctx.Done():
			return next, true
		case <-gctx.Done():
			return next, true
		case sem <- struct{}{}:
		}
		// select picks at random among ready cases
		if ctx.Err() != nil || gctx.Err() != nil {
			<-sem
			return next, true
		}
		index := next
		g.Go(func() error {
			defer func() { <-sem }()
			return c.runChunk(gctx, index, results)
		})
		logrus.Debugf("Dispatched chunk %d", index)
		next++
	}
	return next, false
}

func (c *Controller) runChunk(ctx context.Context, index uint64, results chan<- *sim.Result) error {
	seed := sim.ChunkSeed(sim.NewSimulationKey(c.config.Seed), index)
	part, err := c.backend.Run(ctx, seed, c.config.Prob, c.config.ChunkSize)
	if ctx.Err() != nil {
		// abandoned
		return nil
	}
	if err != nil {
		return fmt.Errorf("chunk %d: %w", index, err)
	}
	if len(part.Histogram) != c.config.NCells || part.Trials != int64(c.config.ChunkSize) {
		return fmt.Errorf("chunk %d: %w: got %d buckets and %d trials, want %d and %d", index,
			sim.ErrCounterInvariant, len(part.Histogram), part.Trials, c.config.NCells, c.config.ChunkSize)
	}
	select {
	case results <- part:
	case <-ctx.Done():
	}
	return nil
}

// collect merges chunk results one whole chunk at a time until results is
// closed or stop is closed. Results still queued after stop are discarded.
func (c *Controller) collect(results <-chan *sim.Result, stop <-chan struct{}, abandon context.CancelFunc) error {
	for {
		select {
		case <-stop:
			return nil
		case part, ok := <-results:
			if !ok {
				return nil
			}
			select {
			case <-stop:
				return nil
			default:
			}
			snap, err := c.merge(part)
			if err != nil {
				abandon()
				return err
			}
			logrus.Debugf("Merged chunk: %d chunks, %d trials", snap.Chunks, snap.Trials)
			if c.OnMerge != nil {
				c.OnMerge(snap)
			}
		}
	}
}

func (c *Controller) merge(part *sim.Result) (*sim.Result, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if err := c.total.Merge(part); err != nil {
		return nil, err
	}
	c.chunks++
	return c.snapshotLocked(), nil
}
