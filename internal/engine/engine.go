// Package engine runs onnxkit operations on serialized models: decode, validate, merge or
// convert, and encode. It is the single entry point of the CLI and the HTTP API, and the place
// where operations are logged and measured.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/born-ml/onnxkit/internal/checker"
	"github.com/born-ml/onnxkit/internal/compose"
	"github.com/born-ml/onnxkit/internal/convert"
	"github.com/born-ml/onnxkit/internal/inspect"
	"github.com/born-ml/onnxkit/internal/logging"
	"github.com/born-ml/onnxkit/internal/metrics"
	"github.com/born-ml/onnxkit/internal/onnx"
	"github.com/born-ml/onnxkit/internal/onnx/opset"
)

// Operation names used as log fields and metric labels.
const (
	OpCheck   = "check"
	OpMerge   = "merge"
	OpConvert = "convert"
	OpInspect = "inspect"
	OpSort    = "sort"
)

// Engine is safe for concurrent use.
type Engine struct {
	registry      *opset.Registry
	customDomains bool
	logger        *slog.Logger
	metrics       *metrics.Metrics

	checker   *checker.Checker
	composer  *compose.Composer
	converter *convert.Converter
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the logger shared by every component.
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithMetrics records operations on m.
func WithMetrics(m *metrics.Metrics) Option {
	return func(e *Engine) { e.metrics = m }
}

// WithRegistry sets the operator schema registry.
func WithRegistry(r *opset.Registry) Option {
	return func(e *Engine) { e.registry = r }
}

// WithCustomDomains accepts operators of imported domains the registry does not know.
func WithCustomDomains(allow bool) Option {
	return func(e *Engine) { e.customDomains = allow }
}

// New creates an engine.
func New(opts ...Option) *Engine {
	e := &Engine{
		registry: opset.Default(),
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.checker = checker.New(
		checker.WithRegistry(e.registry),
		checker.WithLogger(e.logger),
		checker.WithCustomDomains(e.customDomains),
	)
	e.composer = compose.New(compose.WithChecker(e.checker), compose.WithLogger(e.logger))
	e.converter = convert.New(
		convert.WithRegistry(e.registry),
		convert.WithChecker(e.checker),
		convert.WithLogger(e.logger),
	)
	return e
}

// Checker returns the engine's checker.
func (e *Engine) Checker() *checker.Checker { return e.checker }

// IsDefect reports whether err is an internal defect rather than a problem with the input.
func IsDefect(err error) bool {
	return errors.Is(err, compose.ErrInternalInconsistency) || errors.Is(err, convert.ErrPostconditionViolated)
}

// Check decodes and validates data.
func (e *Engine) Check(ctx context.Context, data []byte) (report *checker.Report, err error) {
	start := time.Now()
	defer func() { e.finish(OpCheck, start, err) }()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m, err := onnx.Decode(data)
	if err != nil {
		return nil, err
	}
	return e.checker.Check(m)
}

// Merge decodes both models, merges them and encodes the result.
func (e *Engine) Merge(ctx context.Context, first, second []byte, ioMap []compose.Pair, opts compose.Options) (out []byte, err error) {
	start := time.Now()
	defer func() { e.finish(OpMerge, start, err, "pairs", len(ioMap)) }()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m1, err := onnx.Decode(first)
	if err != nil {
		return nil, fmt.Errorf("first model: %w", err)
	}
	m2, err := onnx.Decode(second)
	if err != nil {
		return nil, fmt.Errorf("second model: %w", err)
	}
	merged, err := e.composer.Merge(m1, m2, ioMap, opts)
	if err != nil {
		return nil, err
	}
	return onnx.Encode(merged), nil
}

// Convert decodes data, converts it to target and encodes the result.
func (e *Engine) Convert(ctx context.Context, data []byte, target int64) (out []byte, err error) {
	start := time.Now()
	defer func() { e.finish(OpConvert, start, err, "target", target) }()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m, err := onnx.Decode(data)
	if err != nil {
		return nil, err
	}
	converted, err := e.converter.Convert(m, target)
	if err != nil {
		return nil, err
	}
	return onnx.Encode(converted), nil
}

// Inspect decodes and validates data, then describes it.
func (e *Engine) Inspect(ctx context.Context, data []byte) (s *inspect.Summary, err error) {
	start := time.Now()
	defer func() { e.finish(OpInspect, start, err) }()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m, err := onnx.Decode(data)
	if err != nil {
		return nil, err
	}
	if _, err := e.checker.Check(m); err != nil {
		return nil, err
	}
	return inspect.Summarize(m), nil
}

// Sort decodes data, reorders its main graph topologically, validates and encodes it.
// Sorting repairs models whose nodes are valid but out of order, so the input is not checked
// first.
func (e *Engine) Sort(ctx context.Context, data []byte) (out []byte, err error) {
	start := time.Now()
	defer func() { e.finish(OpSort, start, err) }()

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	m, err := onnx.Decode(data)
	if err != nil {
		return nil, err
	}
	if m.Graph == nil {
		return nil, &checker.ValidationError{Kind: checker.ErrMissingGraph, Node: -1, Msg: "model has no graph"}
	}
	sorted, err := onnx.SortTopologically(m.Graph)
	if err != nil {
		return nil, err
	}
	m.Graph = sorted
	if _, err := e.checker.Check(m); err != nil {
		return nil, err
	}
	return onnx.Encode(m), nil
}

func (e *Engine) finish(op string, start time.Time, err error, attrs ...any) {
	attrs = append(attrs, "op", op, "duration", time.Since(start))
	switch {
	case err == nil:
		e.metrics.Observe(op, metrics.OutcomeOK, start)
		e.logger.Info("operation completed", attrs...)
	case IsDefect(err):
		// The component already logged the defect with its stack.
		e.metrics.Observe(op, metrics.OutcomeDefect, start)
	default:
		e.metrics.Observe(op, metrics.OutcomeError, start)
		e.logger.Warn("operation rejected", append(attrs, "err", err)...)
	}
}
