package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/chazu/csgcloud/pkg/csg"
	"github.com/chazu/csgcloud/pkg/engine"
	"github.com/chazu/csgcloud/pkg/export"
	"github.com/chazu/csgcloud/pkg/kernel/sdfx"
	"github.com/chazu/csgcloud/pkg/logging"
	"github.com/chazu/csgcloud/pkg/pointcloud"
	"github.com/chazu/csgcloud/pkg/sampler"
	"github.com/chazu/csgcloud/pkg/scene"
	"github.com/google/uuid"
	"golang.org/x/sync/semaphore"
)

// Options are the evaluation defaults an App applies to every request.
type Options struct {
	Density  int
	Seed     uint64
	Parallel int
	Timeout  time.Duration

	// Verify measures every cloud against the scene's distance field.
	Verify bool

	// MaxPoints rejects scenes whose leaves would sample more points.
	// Zero means no limit.
	MaxPoints int
	// MaxEvals bounds the Lisp interpreters running at once. Zero means
	// no limit.
	MaxEvals  int
}

// App turns scene source into point clouds. It backs both the command
// line and the HTTP API.
type App struct {
	engine  *engine.Engine
	limiter *semaphore.Weighted
	opts    Options
}

// EvalErrorData is a JSON-serializable error or warning.
type EvalErrorData struct {
	Line    int    `json:"line"`
	Col     int    `json:"col"`
	Message string `json:"message"`
}

// Result is the full outcome of one evaluation. Errors and Warnings are
// never nil so they encode as empty arrays.
type Result struct {
	ID        string           `json:"id"`
	Cloud     *export.Document `json:"cloud,omitempty"`
	Deviation *sdfx.Deviation  `json:"deviation,omitempty"`
	Errors    []EvalErrorData  `json:"errors"`
	Warnings  []EvalErrorData  `json:"warnings"`

	cause error
}

// Cause returns the error behind the first entry of Errors, or nil when the
// evaluation succeeded or failed on a scene error.
func (r Result) Cause() error { return r.cause }

// Request describes one evaluation. Empty fields fall back to the App
// options.
type Request struct {
	// Name selects the parser by extension: .lisp uses the Lisp
	// engine, .yaml and .yml the YAML form, anything else the line format.
	Name    string  `json:"name"`
	Source  string  `json:"source"`
	Density string  `json:"density,omitempty"`
	Seed    *uint64 `json:"seed,omitempty"`
	Verify  bool    `json:"verify,omitempty"`
}

// NewApp creates an App with the given defaults.
func NewApp(opts Options) *App {
	if opts.Density <= 0 {
		opts.Density = scene.DensityLow
	}
	if opts.Seed == 0 {
		opts.Seed = sampler.DefaultSeed
	}
	if opts.Timeout <= 0 {
		opts.Timeout = engine.DefaultTimeout
	}
	a := &App{opts: opts}
	if opts.MaxEvals > 0 {
		a.limiter = semaphore.NewWeighted(int64(opts.MaxEvals))
	}
	a.engine = a.newEngine()
	return a
}

func (a *App) newEngine() *engine.Engine {
	opts := []engine.Option{engine.WithTimeout(a.opts.Timeout)}
	if a.limiter != nil {
		opts = append(opts, engine.WithLimiter(a.limiter))
	}
	return engine.NewEngine(opts...)
}

// Evaluate parses source as the file name suggests and samples it with the
// App defaults. The cloud is returned in JSON-ready form. Calls share one
// Lisp engine, so a call that overlaps a newer one reports it was
// superseded.
func (a *App) Evaluate(name, source string) Result {
	pc, res := a.run(context.Background(), Request{Name: name, Source: source}, a.engine)
	if pc != nil {
		res.Cloud = export.NewDocument(pc)
	}
	return res
}

// Run evaluates req with its own Lisp engine, so concurrent calls never
// supersede each other. The cloud is nil whenever res.Errors is non-empty.
func (a *App) Run(ctx context.Context, req Request) (*pointcloud.PointCloud, Result) {
	return a.run(ctx, req, a.newEngine())
}

func (a *App) run(ctx context.Context, req Request, eng *engine.Engine) (*pointcloud.PointCloud, Result) {
	res := Result{
		ID:       uuid.New().String(),
		Errors:   []EvalErrorData{},
		Warnings: []EvalErrorData{},
	}
	log := logging.Logger().With("eval", res.ID, "name", req.Name)
	fail := func(err error) (*pointcloud.PointCloud, Result) {
		res.Errors = append(res.Errors, EvalErrorData{Message: err.Error()})
		res.cause = err
		return nil, res
	}

	density := a.opts.Density
	if req.Density != "" {
		d, err := scene.Density(req.Density)
		if err != nil {
			return fail(err)
		}
		density = d
	}
	seed := a.opts.Seed
	if req.Seed != nil {
		seed = *req.Seed
	}

	tree := parse(ctx, eng, req, &res)
	if len(res.Errors) > 0 {
		return nil, res
	}
	if tree == nil {
		log.Warn("scene is empty")
		res.Warnings = append(res.Warnings, EvalErrorData{Message: "scene is empty"})
		return pointcloud.Empty(), res
	}
	defer tree.Release()

	start := time.Now()
	opts := []sampler.Option{sampler.WithSeed(seed)}
	if a.opts.Parallel > 0 {
		opts = append(opts, sampler.WithParallel(a.opts.Parallel))
	}
	if a.opts.MaxPoints > 0 {
		opts = append(opts, sampler.WithMaxPoints(a.opts.MaxPoints))
	}
	pc, err := sampler.Evaluate(ctx, tree, density, opts...)
	if err != nil {
		log.Error("sampling failed", "error", err)
		return fail(fmt.Errorf("sampling failed: %w", err))
	}
	if pc.IsEmpty() {
		res.Warnings = append(res.Warnings, EvalErrorData{Message: "scene produced no points"})
	}
	if req.Verify || a.opts.Verify {
		solid, err := sdfx.Solid(tree)
		if err != nil {
			pc.Release()
			return fail(fmt.Errorf("building distance field: %w", err))
		}
		d := sdfx.SurfaceDeviation(solid, pc)
		res.Deviation = &d
		log.Info("surface deviation", "max", d.Max, "mean", d.Mean)
	}
	b := pc.Bounds()
	log.Info("evaluated scene",
		"nodes", tree.Count(),
		"density", density,
		"points", pc.Len(),
		"min", b.Min,
		"max", b.Max,
		"elapsed", time.Since(start),
	)
	return pc, res
}

// parse builds the tree for req, appending any problems to res. Blank
// source yields a nil tree in every format.
func parse(ctx context.Context, eng *engine.Engine, req Request, res *Result) *csg.Tree {
	if strings.TrimSpace(req.Source) == "" {
		return nil
	}
	var (
		tree *csg.Tree
		err  error
	)
	switch strings.ToLower(filepath.Ext(req.Name)) {
	case ".lisp":
		out, err := eng.EvaluateContext(ctx, req.Source)
		if err != nil {
			res.Errors = append(res.Errors, EvalErrorData{Message: err.Error()})
			res.cause = err
			return nil
		}
		for _, e := range out.Errors {
			res.Errors = append(res.Errors, EvalErrorData{Line: e.Line, Col: e.Col, Message: e.Message})
		}
		for _, w := range out.Warnings {
			res.Warnings = append(res.Warnings, EvalErrorData{Line: w.Line, Col: w.Col, Message: w.Message})
		}
		return out.Tree
	case ".yaml", ".yml":
		tree, err = scene.ParseYAML(strings.NewReader(req.Source))
	default:
		tree, err = scene.ParseString(req.Source)
	}
	if err != nil {
		var se *scene.Error
		if errors.As(err, &se) {
			res.Errors = append(res.Errors, EvalErrorData{Line: se.Line, Message: se.Message})
		} else {
			res.Errors = append(res.Errors, EvalErrorData{Message: err.Error()})
		}
		return nil
	}
	return tree
}
