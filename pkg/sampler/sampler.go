// Package sampler evaluates a CSG tree into a point cloud. Leaves are
// sampled on their surface; internal nodes merge the two child clouds,
// keeping the points that lie on the boundary of the combined solid.
package sampler

import (
	"context"
	"fmt"
	"math/rand/v2"

	"github.com/chazu/csgcloud/pkg/csg"
	"github.com/chazu/csgcloud/pkg/logging"
	"github.com/chazu/csgcloud/pkg/pointcloud"
	"github.com/chazu/csgcloud/pkg/shape"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
)

// DefaultSeed seeds the generator when no option overrides it.
const DefaultSeed uint64 = 1

type options struct {
	seed      uint64
	rng       *rand.Rand
	workers   int
	maxPoints int
}

// Option configures Evaluate.
type Option func(*options)

// WithSeed seeds a fresh generator.
func WithSeed(seed uint64) Option {
	return func(o *options) { o.seed = seed }
}

// WithRand uses r as the generator. It takes precedence over WithSeed.
// The generator must not be shared with other goroutines during the call.
func WithRand(r *rand.Rand) Option {
	return func(o *options) { o.rng = r }
}

// WithParallel evaluates sibling subtrees concurrently on up to maxWorkers
// extra goroutines. Zero or less keeps evaluation sequential. The result is
// deterministic for a given seed but differs from the sequential stream.
func WithParallel(maxWorkers int) Option {
	return func(o *options) { o.workers = maxWorkers }
}

// WithMaxPoints rejects trees whose Estimate exceeds n before any sampling
// starts. Zero or less means no limit.
func WithMaxPoints(n int) Option {
	return func(o *options) { o.maxPoints = n }
}

// NewRand returns the generator Evaluate uses for seed.
func NewRand(seed uint64) *rand.Rand {
	return rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15))
}

// Evaluate samples t at density points per unit area. The tree is read but
// not modified; the returned cloud belongs to the caller.
func Evaluate(ctx context.Context, t *csg.Tree, density int, opts ...Option) (*pointcloud.PointCloud, error) {
	o := options{seed: DefaultSeed}
	for _, opt := range opts {
		opt(&o)
	}
	if t == nil {
		return nil, fmt.Errorf("sampler: nil tree")
	}
	if density <= 0 {
		return nil, fmt.Errorf("sampler: %w: got %d", shape.ErrNonPositiveDensity, density)
	}
	if o.maxPoints > 0 {
		if n := Estimate(t, density); n > o.maxPoints {
			return nil, fmt.Errorf("sampler: %w: estimated %d, limit %d", shape.ErrTooManyPoints, n, o.maxPoints)
		}
	}
	rng := o.rng
	if rng == nil {
		rng = NewRand(o.seed)
	}

	e := &evaluator{density: density}
	if o.workers > 0 {
		e.sem = semaphore.NewWeighted(int64(o.workers))
	}
	pc, err := e.walk(ctx, t, rng)
	if err != nil {
		return nil, err
	}
	if pc.IsEmpty() {
		logging.Logger().Warn("evaluation produced no points", "nodes", t.Count())
	}
	return pc, nil
}

// Estimate returns the number of points the leaves of t sample at density,
// saturating at shape.MaxCount. Combining only drops points, so this bounds
// the size of every intermediate and final cloud.
func Estimate(t *csg.Tree, density int) int {
	total := 0
	for _, leaf := range t.Leaves() {
		total += leaf.Shape().ExpectedCount(density)
		if total >= shape.MaxCount {
			return shape.MaxCount
		}
	}
	return total
}

type evaluator struct {
	density int
	sem     *semaphore.Weighted // nil when sequential
}

// walk evaluates t in post-order.
func (e *evaluator) walk(ctx context.Context, t *csg.Tree, rng *rand.Rand) (*pointcloud.PointCloud, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := t.Validate(); err != nil {
		return nil, fmt.Errorf("sampler: %w", err)
	}
	if t.IsLeaf() {
		return e.sampleLeaf(t, rng)
	}

	var left, right *pointcloud.PointCloud
	var err error
	if e.sem == nil {
		left, right, err = e.walkSequential(ctx, t, rng)
	} else {
		left, right, err = e.walkParallel(ctx, t, rng)
	}
	if err != nil {
		return nil, err
	}
	return combine(t, left, right)
}

func (e *evaluator) sampleLeaf(t *csg.Tree, rng *rand.Rand) (*pointcloud.PointCloud, error) {
	s := t.Shape()
	pc, err := s.Sample(rng, e.density, t.Forward(), t.Normal())
	if err != nil {
		return nil, fmt.Errorf("sampler: %s: %w", s.Kind(), err)
	}
	logging.Logger().Debug("sampled shape", "kind", s.Kind().String(), "points", pc.Len())
	return pc, nil
}

func (e *evaluator) walkSequential(ctx context.Context, t *csg.Tree, rng *rand.Rand) (left, right *pointcloud.PointCloud, err error) {
	left, err = e.walk(ctx, t.Left(), rng)
	if err != nil {
		return nil, nil, err
	}
	right, err = e.walk(ctx, t.Right(), rng)
	if err != nil {
		_ = left.Release()
		return nil, nil, err
	}
	return left, right, nil
}

// walkParallel draws one seed per child from rng before fanning out, so
// each subtree owns its generator. When a worker slot is free the left child
// runs on a new goroutine holding that slot while the right child runs on
// the caller's; otherwise both run inline, left first.
func (e *evaluator) walkParallel(ctx context.Context, t *csg.Tree, rng *rand.Rand) (left, right *pointcloud.PointCloud, err error) {
	leftRng := NewRand(rng.Uint64())
	rightRng := NewRand(rng.Uint64())

	if !e.sem.TryAcquire(1) {
		left, err = e.walk(ctx, t.Left(), leftRng)
		if err != nil {
			return nil, nil, err
		}
		right, err = e.walk(ctx, t.Right(), rightRng)
		if err != nil {
			_ = left.Release()
			return nil, nil, err
		}
		return left, right, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		defer e.sem.Release(1)
		var err error
		left, err = e.walk(gctx, t.Left(), leftRng)
		return err
	})
	right, rightErr := e.walk(gctx, t.Right(), rightRng)
	if err := g.Wait(); err != nil || rightErr != nil {
		for _, pc := range []*pointcloud.PointCloud{left, right} {
			if pc != nil {
				_ = pc.Release()
			}
		}
		if err == nil {
			err = rightErr
		}
		return nil, nil, err
	}
	return left, right, nil
}
