// Package compose merges two ONNX models into one by wiring outputs of the first model into
// inputs of the second.
//
// The merged graph runs the first model's nodes, then the second's. Names of the second model
// that collide with names of the first are renamed with a numeric suffix; inputs of the second
// model bound by the io map are replaced by the first model's tensors. Inputs are never
// modified: Merge works on copies.
package compose

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/pkg/errors"

	"github.com/born-ml/onnxkit/internal/checker"
	"github.com/born-ml/onnxkit/internal/logging"
	"github.com/born-ml/onnxkit/internal/onnx"
)

// Pair binds an output of the first model to an input of the second.
type Pair struct {
	First  string `json:"first"`
	Second string `json:"second"`
}

// Options tunes the merge policy.
type Options struct {
	// KeepUnboundInputs allows a non-empty io map to leave required inputs of the second model
	// unbound; they become inputs of the merged model.
	KeepUnboundInputs bool `json:"keep_unbound_inputs"`
	// KeepBridgeOutputs keeps outputs of the first model consumed by the io map as outputs of
	// the merged model.
	KeepBridgeOutputs bool `json:"keep_bridge_outputs"`
}

// Composer merges models. It is safe for concurrent use.
type Composer struct {
	checker *checker.Checker
	logger  *slog.Logger
}

// Option configures a Composer.
type Option func(*Composer)

// WithChecker sets the checker used for inputs, widened opsets and the merged result.
func WithChecker(c *checker.Checker) Option {
	return func(cm *Composer) { cm.checker = c }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(cm *Composer) { cm.logger = l }
}

// New creates a composer.
func New(opts ...Option) *Composer {
	c := &Composer{logger: logging.NewNop()}
	for _, opt := range opts {
		opt(c)
	}
	if c.checker == nil {
		c.checker = checker.New(checker.WithLogger(c.logger))
	}
	return c
}

// Merge merges first and second with a default composer.
func Merge(first, second *onnx.ModelProto, ioMap []Pair, opts Options) (*onnx.ModelProto, error) {
	return New().Merge(first, second, ioMap, opts)
}

// Merge returns a new model computing both models, with every io map pair's second input
// replaced by its first output. An empty io map places the models side by side.
//
// Errors are *ComposeError values. Inputs that fail validation are reported as
// ErrInvalidInput with the *checker.ValidationError attached; a merged model that fails
// validation is reported as ErrInternalInconsistency.
func (c *Composer) Merge(first, second *onnx.ModelProto, ioMap []Pair, opts Options) (*onnx.ModelProto, error) {
	if err := c.checkInput(first, First); err != nil {
		return nil, err
	}
	if err := c.checkInput(second, Second); err != nil {
		return nil, err
	}
	if first.IRVersion != second.IRVersion {
		return nil, &ComposeError{
			Kind: ErrIncompatibleIR,
			Msg:  fmt.Sprintf("first is IR %d, second is IR %d; convert one model first", first.IRVersion, second.IRVersion),
		}
	}

	bound, err := validateIOMap(first.Graph, second.Graph, ioMap)
	if err != nil {
		return nil, err
	}
	if len(ioMap) > 0 && !opts.KeepUnboundInputs {
		if err := checkCoverage(second.Graph, bound); err != nil {
			return nil, err
		}
	}

	imports := mergeOpsets(first, second)
	if err := c.checkWidened(first, First, imports); err != nil {
		return nil, err
	}
	if err := c.checkWidened(second, Second, imports); err != nil {
		return nil, err
	}

	graph := c.mergeGraphs(first.Graph, second.Graph, ioMap, bound, opts)

	merged := &onnx.ModelProto{
		IRVersion:       first.IRVersion,
		ProducerName:    first.ProducerName,
		ProducerVersion: first.ProducerVersion,
		Domain:          first.Domain,
		ModelVersion:    first.ModelVersion,
		DocString:       first.DocString,
		Graph:           graph,
		OpsetImport:     imports,
		MetadataProps:   mergeMetadata(first.MetadataProps, second.MetadataProps),
	}

	if _, err := c.checker.Check(merged); err != nil {
		defect := errors.WithStack(err)
		c.logger.Error("merged model failed validation", "err", fmt.Sprintf("%+v", defect))
		return nil, &ComposeError{Kind: ErrInternalInconsistency, Msg: "merged model is invalid", Err: defect}
	}

	c.logger.Debug("models merged",
		"pairs", len(ioMap),
		"nodes", len(graph.Nodes),
		"inputs", len(graph.Inputs),
		"outputs", len(graph.Outputs),
	)
	return merged, nil
}

func (c *Composer) checkInput(m *onnx.ModelProto, side Side) error {
	if _, err := c.checker.Check(m); err != nil {
		return &ComposeError{Kind: ErrInvalidInput, Side: side, Err: err}
	}
	return nil
}

// checkWidened re-checks m under the merged opset imports when they differ from its own.
func (c *Composer) checkWidened(m *onnx.ModelProto, side Side, imports []onnx.OperatorSetID) error {
	widened := false
	for _, imp := range imports {
		if v, ok := m.OpsetVersion(imp.Domain); ok && v != imp.Version {
			c.logger.Warn("opset widened for merge", "side", string(side), "domain", imp.Domain, "from", v, "to", imp.Version)
			widened = true
		}
	}
	if !widened {
		return nil
	}
	wide := &onnx.ModelProto{IRVersion: m.IRVersion, Graph: m.Graph, OpsetImport: imports}
	if _, err := c.checker.Check(wide); err != nil {
		return &ComposeError{Kind: ErrIncompatibleOpset, Side: side, Msg: "model is not valid under the merged opsets", Err: err}
	}
	return nil
}

// validateIOMap checks every pair and returns the bound second inputs mapped to their first
// outputs.
func validateIOMap(g1, g2 *onnx.GraphProto, ioMap []Pair) (map[string]string, error) {
	bound := make(map[string]string, len(ioMap))
	for _, p := range ioMap {
		out, ok := g1.Output(p.First)
		if !ok {
			return nil, &ComposeError{Kind: ErrInvalidIOMap, Side: First, Tensor: p.First, Msg: "not a declared output"}
		}
		in, ok := g2.Input(p.Second)
		if !ok {
			return nil, &ComposeError{Kind: ErrInvalidIOMap, Side: Second, Tensor: p.Second, Msg: "not a declared input"}
		}
		if prev, dup := bound[p.Second]; dup {
			return nil, &ComposeError{Kind: ErrInvalidIOMap, Side: Second, Tensor: p.Second, Msg: fmt.Sprintf("already bound to %q", prev)}
		}
		if msg, ok := compatible(out.Type, in.Type); !ok {
			return nil, &ComposeError{Kind: ErrTypeMismatch, Tensor: p.First, Msg: fmt.Sprintf("cannot feed %q: %s", p.Second, msg)}
		}
		bound[p.Second] = p.First
	}
	return bound, nil
}

// checkCoverage requires every input of g without an initializer default to be bound.
func checkCoverage(g *onnx.GraphProto, bound map[string]string) error {
	for i := range g.Inputs {
		name := g.Inputs[i].Name
		if _, ok := bound[name]; ok {
			continue
		}
		if _, ok := g.Initializer(name); ok {
			continue
		}
		return &ComposeError{Kind: ErrUnresolvedInput, Side: Second, Tensor: name, Msg: "required input is not bound by the io map"}
	}
	return nil
}

// compatible reports whether a tensor of type from can feed an input declared as to. Unknown
// element types, ranks and dimensions are compatible with anything.
func compatible(from, to *onnx.TypeProto) (string, bool) {
	if from == nil || to == nil || from.TensorType == nil || to.TensorType == nil {
		return "", true
	}
	a, b := from.TensorType, to.TensorType
	if a.ElemType != onnx.TensorProtoUndefined && b.ElemType != onnx.TensorProtoUndefined && a.ElemType != b.ElemType {
		return fmt.Sprintf("element type %s, want %s", a.ElemType, b.ElemType), false
	}
	if a.Shape == nil || b.Shape == nil {
		return "", true
	}
	if len(a.Shape.Dims) != len(b.Shape.Dims) {
		return fmt.Sprintf("rank %d, want %d", len(a.Shape.Dims), len(b.Shape.Dims)), false
	}
	for i := range a.Shape.Dims {
		da, db := a.Shape.Dims[i], b.Shape.Dims[i]
		if da.HasValue && db.HasValue && da.DimValue != db.DimValue {
			return fmt.Sprintf("dimension %d is %d, want %d", i, da.DimValue, db.DimValue), false
		}
	}
	return "", true
}

// mergeGraphs builds the merged graph from copies of g1 and g2.
func (c *Composer) mergeGraphs(g1, g2 *onnx.GraphProto, ioMap []Pair, bound map[string]string, opts Options) *onnx.GraphProto {
	left := g1.Clone()
	right := g2.Clone()

	// Bound inputs are no longer external. Bound inputs defaulted by an initializer take the
	// first model's value instead.
	if len(bound) > 0 {
		var unbound []onnx.ValueInfoProto
		for _, vi := range right.Inputs {
			if _, ok := bound[vi.Name]; !ok {
				unbound = append(unbound, vi)
			}
		}
		right.Inputs = unbound
		kept := right.Initializers[:0]
		for _, t := range right.Initializers {
			if _, ok := bound[t.Name]; !ok {
				kept = append(kept, t)
			}
		}
		right.Initializers = kept
		if len(right.Initializers) == 0 {
			right.Initializers = nil
		}
	}

	tensors, nodes := c.renames(left, right, bound)
	renameGraph(right, tensors, nodes)

	var inputs []onnx.ValueInfoProto
	inputs = append(inputs, left.Inputs...)
	inputs = append(inputs, right.Inputs...)

	bridges := make(map[string]bool, len(ioMap))
	for _, p := range ioMap {
		bridges[p.First] = true
	}
	var outputs, dropped []onnx.ValueInfoProto
	seen := make(map[string]bool)
	for _, vi := range left.Outputs {
		if bridges[vi.Name] && !opts.KeepBridgeOutputs {
			dropped = append(dropped, vi)
			continue
		}
		seen[vi.Name] = true
		outputs = append(outputs, vi)
	}
	for _, vi := range right.Outputs {
		if !seen[vi.Name] {
			seen[vi.Name] = true
			outputs = append(outputs, vi)
		}
	}

	declared := make(map[string]bool, len(inputs)+len(outputs))
	for _, list := range [][]onnx.ValueInfoProto{inputs, outputs} {
		for _, vi := range list {
			declared[vi.Name] = true
		}
	}
	var valueInfo []onnx.ValueInfoProto
	for _, list := range [][]onnx.ValueInfoProto{left.ValueInfo, right.ValueInfo, dropped} {
		for _, vi := range list {
			if declared[vi.Name] {
				continue
			}
			declared[vi.Name] = true
			valueInfo = append(valueInfo, vi)
		}
	}

	name := left.Name
	if right.Name != "" {
		name = left.Name + "_" + right.Name
	}
	out := &onnx.GraphProto{
		Name:         name,
		DocString:    left.DocString,
		Nodes:        append(left.Nodes, right.Nodes...),
		Initializers: append(left.Initializers, right.Initializers...),
		Inputs:       inputs,
		Outputs:      outputs,
		ValueInfo:    valueInfo,
	}
	if len(out.Initializers) == 0 {
		out.Initializers = nil
	}
	return out
}

// renames computes the tensor and node renames applied to the second graph. Bound inputs map
// to their first output; any other name of the second graph already used by the first graph
// in the same namespace gets a fresh suffixed name. Renames are assigned in order of first
// appearance.
func (c *Composer) renames(g1, g2 *onnx.GraphProto, bound map[string]string) (tensors, nodes map[string]string) {
	taken := onnx.NewNamer(g1)
	namer := onnx.NewNamer(g1, g2)
	nodeNamer := onnx.NewNodeNamer(g1, g2)

	tensors = make(map[string]string, len(bound))
	for from, to := range bound {
		tensors[from] = to
	}
	for _, name := range definedNames(g2) {
		if _, ok := tensors[name]; ok || !taken.Used(name) {
			continue
		}
		fresh := namer.Fresh(name)
		tensors[name] = fresh
		c.logger.Debug("renamed tensor of second model", "from", name, "to", fresh)
	}

	firstNodes := make(map[string]bool)
	for _, n := range nodeNames(g1) {
		firstNodes[n] = true
	}
	nodes = make(map[string]string)
	for _, name := range nodeNames(g2) {
		if _, ok := nodes[name]; ok || !firstNodes[name] {
			continue
		}
		fresh := nodeNamer.Fresh(name)
		nodes[name] = fresh
		c.logger.Debug("renamed node of second model", "from", name, "to", fresh)
	}
	return tensors, nodes
}

// mergeOpsets returns the per-domain maximum of both models' imports, in first-seen order.
func mergeOpsets(first, second *onnx.ModelProto) []onnx.OperatorSetID {
	var out []onnx.OperatorSetID
	index := make(map[string]int)
	for _, m := range []*onnx.ModelProto{first, second} {
		for _, imp := range m.OpsetImport {
			d := onnx.CanonicalDomain(imp.Domain)
			if i, ok := index[d]; ok {
				if imp.Version > out[i].Version {
					out[i].Version = imp.Version
				}
				continue
			}
			index[d] = len(out)
			out = append(out, onnx.OperatorSetID{Domain: imp.Domain, Version: imp.Version})
		}
	}
	return out
}

// mergeMetadata is the union of both metadata lists; the first model wins on conflicts. Keys
// only the second model has are appended in sorted order.
func mergeMetadata(a, b []onnx.StringStringEntry) []onnx.StringStringEntry {
	if len(a) == 0 && len(b) == 0 {
		return nil
	}
	out := make([]onnx.StringStringEntry, 0, len(a)+len(b))
	seen := make(map[string]bool, len(a))
	for _, e := range a {
		seen[e.Key] = true
		out = append(out, onnx.StringStringEntry{Key: e.Key, Value: e.Value})
	}
	var extra []onnx.StringStringEntry
	for _, e := range b {
		if !seen[e.Key] {
			seen[e.Key] = true
			extra = append(extra, onnx.StringStringEntry{Key: e.Key, Value: e.Value})
		}
	}
	sort.Slice(extra, func(i, j int) bool { return extra[i].Key < extra[j].Key })
	return append(out, extra...)
}
