// Package engine provides the Lisp front end for csgcloud. It wraps
// zygomys in a sandboxed environment and builds a CSG tree from user
// source code.
//
// A minimal program:
//
//	(scene
//	  (difference
//	    (cube :color (rgba 0.8 0.2 0.2 1))
//	    (cylinder :scale (vec3 0.5 0.5 2))))
package engine

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/chazu/csgcloud/pkg/csg"
	"github.com/chazu/csgcloud/pkg/logging"
	zygo "github.com/glycerine/zygomys/zygo"
	"golang.org/x/sync/semaphore"
)

// ErrBusy is returned when a limiter is set and every slot is taken.
var ErrBusy = errors.New("engine: too many evaluations in flight")

// errAbandoned unwinds an interpreter whose caller stopped waiting.
var errAbandoned = errors.New("evaluation abandoned")

// EvalError represents a non-fatal error encountered during evaluation,
// such as a parse error or a runtime error in user code.
type EvalError struct {
	Line    int
	Col     int
	Message string
}

func (e EvalError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("line %d: %s", e.Line, e.Message)
	}
	return e.Message
}

// EvalWarning represents a non-fatal finding about a program that
// otherwise evaluated.
type EvalWarning struct {
	Line    int
	Col     int
	Message string
}

// EvalResult bundles the full output of an evaluation.
type EvalResult struct {
	Tree     *csg.Tree
	Errors   []EvalError
	Warnings []EvalWarning
}

// Option configures an Engine.
type Option func(*Engine)

// WithTimeout overrides DefaultTimeout.
func WithTimeout(d time.Duration) Option {
	return func(e *Engine) { e.timeout = d }
}

// WithLimiter bounds the interpreters running at once, across every engine
// sharing l. An abandoned interpreter keeps its slot until it unwinds.
func WithLimiter(l *semaphore.Weighted) Option {
	return func(e *Engine) { e.limiter = l }
}

// Engine wraps the zygomys interpreter. It is safe for concurrent use;
// each call to Evaluate creates a fresh sandboxed environment, and only
// the most recent call may return a result.
type Engine struct {
	timeout time.Duration
	limiter *semaphore.Weighted

	mu         sync.Mutex
	generation uint64
}

// NewEngine creates a new Engine instance.
func NewEngine(opts ...Option) *Engine {
	e := &Engine{timeout: DefaultTimeout}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Evaluate runs source and returns the tree it describes.
//
// Return semantics:
//   - On success: returns tree + nil errors + nil error. The tree is nil
//     when the program builds nothing.
//   - On parse/eval failure: returns nil tree + eval errors + nil error
//   - On fatal failure (timeout, cancel, panic, superseded, ErrBusy):
//     returns nil + nil + error
func (e *Engine) Evaluate(source string) (*csg.Tree, []EvalError, error) {
	res, err := e.EvaluateFull(source)
	if err != nil {
		return nil, nil, err
	}
	return res.Tree, res.Errors, nil
}

// EvaluateFull is Evaluate with warnings.
func (e *Engine) EvaluateFull(source string) (*EvalResult, error) {
	return e.EvaluateContext(context.Background(), source)
}

// EvaluateContext is EvaluateFull bounded by ctx as well as the engine
// timeout. Once either ends, the interpreter stops at its next function
// call.
func (e *Engine) EvaluateContext(ctx context.Context, source string) (*EvalResult, error) {
	if e.limiter != nil && !e.limiter.TryAcquire(1) {
		return nil, ErrBusy
	}
	e.mu.Lock()
	e.generation++
	gen := e.generation
	e.mu.Unlock()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	ch := make(chan evalResult, 1)

	go func() {
		if e.limiter != nil {
			defer e.limiter.Release(1)
		}
		defer func() {
			if r := recover(); r != nil {
				if r == errAbandoned {
					logging.Logger().Debug("abandoned evaluation stopped", "generation", gen)
					ch <- evalResult{err: errAbandoned}
					return
				}
				ch <- evalResult{err: fmt.Errorf("panic during evaluation: %v", r)}
			}
		}()

		res := e.evaluate(ctx, source)
		ch <- evalResult{res: res}
	}()

	return waitWithTimeout(ctx, ch, gen, e.timeout, &e.mu, &e.generation)
}

// evaluate performs the zygomys evaluation in a fresh sandbox.
func (e *Engine) evaluate(ctx context.Context, source string) *EvalResult {
	if strings.TrimSpace(source) == "" {
		return &EvalResult{}
	}

	// Sandbox mode keeps user code away from the filesystem and syscalls.
	env := zygo.NewZlispSandbox()
	defer env.Stop()
	env.AddPreHook(func(*zygo.Zlisp, string, []zygo.Sexp) {
		if ctx.Err() != nil {
			panic(errAbandoned)
		}
	})

	b := &builder{}
	registerBuiltins(env, b)

	if err := env.LoadString(preprocessSource(source)); err != nil {
		return &EvalResult{Errors: parseZygomysError(err)}
	}
	last, err := env.Run()
	if err != nil {
		return &EvalResult{Errors: parseZygomysError(err)}
	}

	root := b.scene
	if root == nil {
		if t, ok := last.(*sexpTree); ok {
			root = t.tree
		}
	}
	if root != nil && root.Attached() {
		return &EvalResult{Errors: []EvalError{{
			Message: "scene tree is also an operand of another operator",
		}}}
	}

	res := &EvalResult{Tree: root}
	if n := b.dangling(root); n > 0 {
		res.Warnings = append(res.Warnings, EvalWarning{
			Message: fmt.Sprintf("%d shape(s) or operator(s) built but not part of the scene", n),
		})
	}
	if root == nil && len(b.trees) > 0 {
		res.Warnings = append(res.Warnings, EvalWarning{
			Message: "program built shapes but did not return one; wrap the result in (scene ...)",
		})
	}
	if root != nil {
		logging.Logger().Debug("lisp scene built", "nodes", root.Count(), "depth", root.Depth())
	}
	return res
}

// linePattern matches zygomys error messages that include "Error on line N: ..."
var linePattern = regexp.MustCompile(`(?is)(?:error )?on line (\d+):\s*(.*)`)

// linePatternShort matches simpler "line N: ..." patterns.
var linePatternShort = regexp.MustCompile(`(?is)^line (\d+):\s*(.*)`)

// parseZygomysError converts a zygomys error into EvalError values,
// extracting the line number when the message carries one.
func parseZygomysError(err error) []EvalError {
	msg := err.Error()
	for _, re := range []*regexp.Regexp{linePattern, linePatternShort} {
		if m := re.FindStringSubmatch(msg); m != nil {
			line, _ := strconv.Atoi(m[1])
			return []EvalError{{Line: line, Message: strings.TrimSpace(m[2])}}
		}
	}
	return []EvalError{{Message: strings.TrimSpace(msg)}}
}
