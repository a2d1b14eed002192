// Package convert migrates ONNX models between versions of the default operator set.
//
// Conversion walks the opset versions between the model's import and the target one step at
// a time. At each step, operators whose signature changed at that version are rewritten by an
// adapter: attributes become inputs (or the reverse), defaults are pinned, and operators
// without a direct counterpart are expanded into equivalent node sequences. Operators that
// did not change are carried over and revalidated. Other domains are left untouched.
package convert

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/pkg/errors"

	"github.com/born-ml/onnxkit/internal/checker"
	"github.com/born-ml/onnxkit/internal/logging"
	"github.com/born-ml/onnxkit/internal/onnx"
	"github.com/born-ml/onnxkit/internal/onnx/opset"
)

// Converter migrates models between opset versions. It is safe for concurrent use.
type Converter struct {
	registry *opset.Registry
	checker  *checker.Checker
	logger   *slog.Logger
	adapters adapterTable
}

// Option configures a Converter.
type Option func(*Converter)

// WithRegistry sets the operator schema registry (default: opset.Default()).
func WithRegistry(r *opset.Registry) Option {
	return func(c *Converter) { c.registry = r }
}

// WithChecker sets the checker used before and after conversion. By default a checker over
// the converter's registry is used.
func WithChecker(ch *checker.Checker) Option {
	return func(c *Converter) { c.checker = ch }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Converter) { c.logger = l }
}

// New creates a converter.
func New(opts ...Option) *Converter {
	c := &Converter{
		registry: opset.Default(),
		logger:   logging.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.checker == nil {
		c.checker = checker.New(checker.WithRegistry(c.registry), checker.WithLogger(c.logger))
	}
	c.adapters = newAdapterTable(c.registry)
	return c
}

// Convert converts m with a default converter.
func Convert(m *onnx.ModelProto, target int64) (*onnx.ModelProto, error) {
	return New().Convert(m, target)
}

// Convert returns a copy of m whose default-domain nodes are expressed at opset target. The
// IR version is set to the one of the first release shipping target.
//
// Conversion is all or nothing: on error m is untouched and no partial result is returned.
// Converting to the model's own opset returns a validated copy, so converting a converted
// model again to the same target is a no-op.
//
// Round trips are not guaranteed to be lossless. An upgrade may expand a node into several
// (a Softmax over a non-last axis becomes Shape, Flatten, Softmax and Reshape; legacy
// broadcasting gains an Unsqueeze), and pin attributes the original left at their defaults.
// Converting back does not fold those nodes again, so convert(convert(m, v2), v1) computes
// the same function as m but need not be structurally equal to it.
//
// Errors are *ConvertError values.
func (c *Converter) Convert(m *onnx.ModelProto, target int64) (*onnx.ModelProto, error) {
	latest := opset.LatestOpset(onnx.DefaultDomain)
	if target < 1 || target > latest {
		return nil, &ConvertError{Kind: ErrInvalidTarget, To: target, Msg: fmt.Sprintf("target must be within [1, %d]", latest)}
	}

	report, err := c.checker.Check(m)
	if err != nil {
		return nil, &ConvertError{Kind: ErrInvalidInput, Err: err}
	}
	from, ok := m.OpsetVersion(onnx.DefaultDomain)
	if !ok {
		return nil, &ConvertError{Kind: ErrInvalidTarget, To: target, Msg: "model does not import the default domain"}
	}
	if from == target {
		return m.Clone(), nil
	}

	out := m.Clone()
	conv := &conversion{
		c:     c,
		from:  from,
		to:    target,
		namer: onnx.NewNamer(out.Graph),
		types: make(map[string]*onnx.TypeProto, len(report.Types)),
	}
	for name, t := range report.Types {
		conv.types[name] = t
	}
	if err := conv.graph(out.Graph, nil); err != nil {
		return nil, err
	}

	out.SetOpsetVersion(onnx.DefaultDomain, target)
	if ir, ok := opset.IRVersionForOpset(target); ok {
		out.IRVersion = ir
	}

	if _, err := c.checker.Check(out); err != nil {
		defect := errors.WithStack(err)
		c.logger.Error("converted model failed validation", "from", from, "to", target, "err", fmt.Sprintf("%+v", defect))
		return nil, &ConvertError{Kind: ErrPostconditionViolated, From: from, To: target, Msg: "converted model is invalid", Err: defect}
	}
	c.logger.Debug("model converted", "from", from, "to", target, "nodes", len(out.Graph.Nodes))
	return out, nil
}

// conversion is the state of one Convert call.
type conversion struct {
	c     *Converter
	from  int64
	to    int64
	namer *onnx.Namer
	types map[string]*onnx.TypeProto
}

func (cv *conversion) upgrade() bool { return cv.to > cv.from }

// steps returns the opset boundaries crossed, in the order they are applied.
func (cv *conversion) steps() []int64 {
	var out []int64
	if cv.upgrade() {
		for v := cv.from + 1; v <= cv.to; v++ {
			out = append(out, v)
		}
		return out
	}
	for v := cv.from; v > cv.to; v-- {
		out = append(out, v)
	}
	return out
}

func (cv *conversion) unsupported(n *onnx.NodeProto, msg string) *ConvertError {
	kind := ErrUnsupportedDowngrade
	if cv.upgrade() {
		kind = ErrUnsupportedUpgrade
	}
	return &ConvertError{Kind: kind, OpType: n.OpType, Domain: n.Domain, From: cv.from, To: cv.to, Msg: msg}
}

// graph converts g in place, nested graphs first.
func (cv *conversion) graph(g *onnx.GraphProto, parent *rewrite) error {
	r := &rewrite{conv: cv, graph: g, parent: parent}
	for i := range g.Nodes {
		for _, sub := range g.Nodes[i].Subgraphs() {
			if err := cv.graph(sub, r); err != nil {
				return err
			}
		}
	}

	for _, version := range cv.steps() {
		nodes := make([]onnx.NodeProto, 0, len(g.Nodes))
		for i := range g.Nodes {
			n := g.Nodes[i]
			if onnx.CanonicalDomain(n.Domain) != onnx.DefaultDomain {
				nodes = append(nodes, n)
				continue
			}
			replaced, err := cv.adapt(r, n, version)
			if err != nil {
				return err
			}
			nodes = append(nodes, replaced...)
		}
		g.Nodes = nodes
	}
	r.prune()

	for i := range g.Nodes {
		if err := cv.fits(&g.Nodes[i]); err != nil {
			return err
		}
	}
	return nil
}

// adapt runs every adapter registered for n's operator at version.
func (cv *conversion) adapt(r *rewrite, n onnx.NodeProto, version int64) ([]onnx.NodeProto, error) {
	chain := cv.c.adapters[adapterKey{n.OpType, version}]
	out := []onnx.NodeProto{n}
	for _, a := range chain {
		fn := a.down
		if cv.upgrade() {
			fn = a.up
		}
		if fn == nil {
			continue
		}
		var next []onnx.NodeProto
		for i := range out {
			if out[i].OpType != n.OpType {
				next = append(next, out[i])
				continue
			}
			replaced, err := fn(r, &out[i])
			if err != nil {
				return nil, cv.unsupported(&n, fmt.Sprintf("opset %d: %v", version, err))
			}
			next = append(next, replaced...)
		}
		out = next
	}
	if len(chain) > 0 {
		cv.c.logger.Debug("node adapted", "op", n.OpType, "name", n.Name, "version", version, "nodes", len(out))
	}
	return out, nil
}

// fits reports whether a converted default-domain node is well formed at the target opset.
func (cv *conversion) fits(n *onnx.NodeProto) error {
	if onnx.CanonicalDomain(n.Domain) != onnx.DefaultDomain {
		return nil
	}
	schema, ok := cv.c.registry.Resolve(onnx.DefaultDomain, n.OpType, cv.to)
	if !ok {
		if since := cv.c.registry.SinceVersions(onnx.DefaultDomain, n.OpType); len(since) > 0 {
			return cv.unsupported(n, fmt.Sprintf("not defined before opset %d", since[0]))
		}
		return cv.unsupported(n, "unknown operator")
	}
	if schema.Deprecated {
		return cv.unsupported(n, fmt.Sprintf("deprecated since opset %d", schema.SinceVersion))
	}
	for i := range n.Attributes {
		if !schema.HasAttribute(n.Attributes[i].Name) {
			return cv.unsupported(n, fmt.Sprintf("attribute %q is not defined at opset %d", n.Attributes[i].Name, cv.to))
		}
	}
	names := make([]string, 0, len(schema.Attributes))
	for name := range schema.Attributes {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if _, ok := n.Attribute(name); schema.Attributes[name].Required && !ok {
			return cv.unsupported(n, fmt.Sprintf("attribute %q is required at opset %d", name, cv.to))
		}
	}
	inputs := len(n.Inputs)
	for inputs > 0 && n.Inputs[inputs-1] == "" {
		inputs--
	}
	if !schema.AcceptsInputs(inputs) {
		return cv.unsupported(n, fmt.Sprintf("%d inputs are not accepted at opset %d", inputs, cv.to))
	}
	return nil
}
