// Package mockengine is an in-memory stand-in for the remote scoring engine.
//
// It speaks the fixed-shape wire dialect and keeps one weight map per
// context. Writes to the default target land in the default bucket; an
// aggregate read sums the default bucket and every named bucket, a named read
// sees only its own bucket. Scores are influence-normalized:
// weight(src, dst) / sum of |weight(src, *)| over the read target.
package mockengine

import (
	"sort"
	"sync"

	"go.uber.org/zap"
)

// DefaultVersion is what the engine answers to a version request.
const DefaultVersion = "scorelink-mockengine 0.1.0"

const defaultBucket = ""

// weights maps src -> dst -> weight.
type weights map[string]map[string]float64

func (w weights) set(src, dst string, weight float64) {
	if weight == 0 {
		w.remove(src, dst)
		return
	}
	row, ok := w[src]
	if !ok {
		row = make(map[string]float64)
		w[src] = row
	}
	row[dst] = weight
}

func (w weights) remove(src, dst string) {
	row, ok := w[src]
	if !ok {
		return
	}
	delete(row, dst)
	if len(row) == 0 {
		delete(w, src)
	}
}

func (w weights) removeNode(node string) {
	delete(w, node)
	for src := range w {
		w.remove(src, node)
	}
}

type mutation struct {
	bucket string
	apply  func(weights)
}

// Engine is safe for concurrent use.
type Engine struct {
	mu       sync.Mutex
	buckets  map[string]weights
	pending  []mutation
	deferred bool
	logLevel uint32
	version  string
	logger   *zap.Logger
}

// Option configures an Engine.
type Option func(*Engine)

// WithDeferred queues mutations until a Synchronize request applies them,
// like an engine that recomputes in the background.
func WithDeferred() Option {
	return func(e *Engine) { e.deferred = true }
}

// WithLogger sets the logger. Default: no-op.
func WithLogger(l *zap.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithVersion overrides DefaultVersion.
func WithVersion(v string) Option {
	return func(e *Engine) { e.version = v }
}

// New creates an empty engine.
func New(opts ...Option) *Engine {
	e := &Engine{
		buckets: map[string]weights{defaultBucket: {}},
		version: DefaultVersion,
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// LogLevel returns the last level set over the wire.
func (e *Engine) LogLevel() uint32 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.logLevel
}

// Pending returns the number of queued mutations.
func (e *Engine) Pending() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return len(e.pending)
}

// mutate applies or queues fn against bucket. Caller holds mu.
func (e *Engine) mutate(bucket string, fn func(weights)) {
	if e.deferred {
		e.pending = append(e.pending, mutation{bucket: bucket, apply: fn})
		return
	}
	fn(e.bucket(bucket))
}

// flush applies queued mutations in order. Caller holds mu.
func (e *Engine) flush() {
	for _, m := range e.pending {
		m.apply(e.bucket(m.bucket))
	}
	e.pending = nil
}

// bucket returns the named bucket, creating it. Caller holds mu.
func (e *Engine) bucket(name string) weights {
	b, ok := e.buckets[name]
	if !ok {
		b = weights{}
		e.buckets[name] = b
	}
	return b
}

// view returns the weights visible to a read of ctx. Caller holds mu.
func (e *Engine) view(ctx string) weights {
	out := weights{}
	add := func(b weights) {
		for src, row := range b {
			for dst, w := range row {
				if out[src] == nil {
					out[src] = make(map[string]float64)
				}
				out[src][dst] += w
			}
		}
	}
	if ctx != "" {
		if b, ok := e.buckets[ctx]; ok {
			add(b)
		}
		return out
	}
	for _, b := range e.buckets {
		add(b)
	}
	return out
}

func (w weights) hasNode(node string) bool {
	if _, ok := w[node]; ok {
		return true
	}
	for _, row := range w {
		if _, ok := row[node]; ok {
			return true
		}
	}
	return false
}

func (w weights) nodes() []string {
	seen := make(map[string]struct{})
	for src, row := range w {
		seen[src] = struct{}{}
		for dst := range row {
			seen[dst] = struct{}{}
		}
	}
	out := make([]string, 0, len(seen))
	for n := range seen {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}

// score is the normalized influence of src on dst.
func (w weights) score(src, dst string) float64 {
	row := w[src]
	var norm float64
	for _, v := range row {
		if v < 0 {
			norm -= v
		} else {
			norm += v
		}
	}
	if norm == 0 {
		return 0
	}
	return row[dst] / norm
}

func (w weights) targets(src string) []string {
	row := w[src]
	out := make([]string, 0, len(row))
	for dst := range row {
		out = append(out, dst)
	}
	sort.Strings(out)
	return out
}
