// Package checker validates ONNX models: value-info and attribute schemas, single static
// producers for every tensor name, opset resolution, and shape/type inference.
package checker

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/born-ml/onnxkit/internal/logging"
	"github.com/born-ml/onnxkit/internal/onnx"
	"github.com/born-ml/onnxkit/internal/onnx/opset"
)

// MainGraph is the path of a model's top-level graph in errors and warnings.
const MainGraph = "main"

// Report is the result of a successful check.
type Report struct {
	// Warnings lists inconclusive inference results, sorted.
	Warnings []Warning
	// Types maps every tensor name of the main graph to its best known type: declared types
	// refined by inference. Names whose type is entirely unknown are absent.
	Types map[string]*onnx.TypeProto
}

// Checker validates models. It is safe for concurrent use.
type Checker struct {
	registry      *opset.Registry
	logger        *slog.Logger
	customDomains bool
	inference     bool
}

// Option configures a Checker.
type Option func(*Checker)

// WithRegistry sets the operator schema registry (default: opset.Default()).
func WithRegistry(r *opset.Registry) Option {
	return func(c *Checker) { c.registry = r }
}

// WithLogger sets the logger.
func WithLogger(l *slog.Logger) Option {
	return func(c *Checker) { c.logger = l }
}

// WithCustomDomains accepts operators of domains the registry does not know, as long as the
// domain is imported.
func WithCustomDomains(allow bool) Option {
	return func(c *Checker) { c.customDomains = allow }
}

// WithInference toggles shape/type inference (default on).
func WithInference(enabled bool) Option {
	return func(c *Checker) { c.inference = enabled }
}

// New creates a checker.
func New(opts ...Option) *Checker {
	c := &Checker{
		registry:  opset.Default(),
		logger:    logging.NewNop(),
		inference: true,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Check validates m with a default checker.
func Check(m *onnx.ModelProto) (*Report, error) {
	return New().Check(m)
}

// Check validates m. It runs, in order: schema checks (value infos, attributes, arity),
// a left-to-right reference pass, opset resolution, and shape inference. It returns the
// first hard violation as a *ValidationError; inconclusive inference only adds warnings.
// m is not modified.
func (c *Checker) Check(m *onnx.ModelProto) (*Report, error) {
	if m == nil || m.Graph == nil {
		return nil, &ValidationError{Kind: ErrMissingGraph, Node: -1, Msg: "model has no graph"}
	}

	s := &scope{c: c, imports: importMap(m.OpsetImport)}

	if err := s.checkSchemas(m.Graph, MainGraph, true); err != nil {
		return nil, err
	}
	if err := s.checkReferences(m.Graph, MainGraph, nil); err != nil {
		return nil, err
	}
	if err := s.checkOpsets(m); err != nil {
		return nil, err
	}

	report := &Report{Types: make(map[string]*onnx.TypeProto)}
	if c.inference {
		inf := newInferrer(s, m.Graph)
		if err := inf.run(); err != nil {
			return nil, err
		}
		report.Types = inf.types
		report.Warnings = inf.warnings()
	}
	for _, w := range report.Warnings {
		c.logger.Warn("inference inconclusive", "graph", w.Graph, "op", w.OpType, "msg", w.Msg)
	}
	c.logger.Debug("model checked",
		"nodes", len(m.Graph.Nodes),
		"warnings", len(report.Warnings),
	)
	return report, nil
}

// scope carries per-check state shared by the passes.
type scope struct {
	c       *Checker
	imports map[string]int64 // canonical domain -> version; first import wins
}

func importMap(imports []onnx.OperatorSetID) map[string]int64 {
	out := make(map[string]int64, len(imports))
	for _, imp := range imports {
		d := onnx.CanonicalDomain(imp.Domain)
		if _, dup := out[d]; !dup {
			out[d] = imp.Version
		}
	}
	return out
}

// resolve returns the schema of node at the imported version of its domain.
func (s *scope) resolve(node *onnx.NodeProto) (*opset.Schema, int64, bool) {
	version, ok := s.imports[onnx.CanonicalDomain(node.Domain)]
	if !ok {
		return nil, 0, false
	}
	schema, ok := s.c.registry.Resolve(node.Domain, node.OpType, version)
	if !ok || schema.Deprecated {
		return nil, version, false
	}
	return schema, version, true
}

func nodeError(kind error, graph string, idx int, n *onnx.NodeProto, version int64, tensor, msg string) *ValidationError {
	return &ValidationError{
		Kind:    kind,
		Graph:   graph,
		Node:    idx,
		OpType:  n.OpType,
		Domain:  n.Domain,
		Version: version,
		Tensor:  tensor,
		Msg:     msg,
	}
}

func subgraphPath(parent string, idx int, n *onnx.NodeProto, attr string) string {
	return fmt.Sprintf("%s/node[%d]:%s/%s", parent, idx, n.OpType, attr)
}

// checkSchemas validates value infos, then each node's attributes and arity against its
// schema. Nodes whose operator does not resolve are left to checkOpsets.
//
//nolint:gocognit,gocyclo,cyclop // One check per schema rule.
func (s *scope) checkSchemas(g *onnx.GraphProto, path string, main bool) error {
	lists := []struct {
		field string
		vis   []onnx.ValueInfoProto
	}{
		{"input", g.Inputs},
		{"output", g.Outputs},
		{"value_info", g.ValueInfo},
	}
	for _, list := range lists {
		seen := make(map[string]bool, len(list.vis))
		for i := range list.vis {
			vi := &list.vis[i]
			if vi.Name == "" {
				return &ValidationError{Kind: ErrInvalidValueInfo, Graph: path, Node: -1, Msg: fmt.Sprintf("%s[%d] has no name", list.field, i)}
			}
			if seen[vi.Name] {
				return &ValidationError{Kind: ErrInvalidValueInfo, Graph: path, Node: -1, Tensor: vi.Name, Msg: fmt.Sprintf("declared twice in %s", list.field)}
			}
			seen[vi.Name] = true
			if err := checkType(vi, path, list.field, main && list.field != "value_info"); err != nil {
				return err
			}
		}
	}

	for i := range g.Nodes {
		node := &g.Nodes[i]
		schema, version, ok := s.resolve(node)

		seen := make(map[string]bool, len(node.Attributes))
		for j := range node.Attributes {
			attr := &node.Attributes[j]
			if attr.Name == "" {
				return nodeError(ErrMalformedAttribute, path, i, node, version, "", fmt.Sprintf("attribute[%d] has no name", j))
			}
			if seen[attr.Name] {
				return nodeError(ErrMalformedAttribute, path, i, node, version, attr.Name, "attribute given twice")
			}
			seen[attr.Name] = true

			typ := attr.EffectiveType()
			if (typ == onnx.AttributeProtoGraph && attr.G == nil) || (typ == onnx.AttributeProtoTensor && attr.T == nil) {
				return nodeError(ErrMalformedAttribute, path, i, node, version, attr.Name, fmt.Sprintf("%s attribute has no value", typ))
			}
			if !ok {
				continue
			}
			spec, declared := schema.Attributes[attr.Name]
			if !declared {
				return nodeError(ErrMalformedAttribute, path, i, node, version, attr.Name, "attribute not defined by the operator")
			}
			// An empty list written without a type is compatible with any list type.
			if typ != spec.Type && typ != onnx.AttributeProtoUndefined {
				return nodeError(ErrMalformedAttribute, path, i, node, version, attr.Name, fmt.Sprintf("want %s, got %s", spec.Type, typ))
			}
		}

		if ok {
			names := make([]string, 0, len(schema.Attributes))
			for name := range schema.Attributes {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				if schema.Attributes[name].Required && !seen[name] {
					return nodeError(ErrMalformedAttribute, path, i, node, version, name, "required attribute missing")
				}
			}
			if n := trimmedLen(node.Inputs); !schema.AcceptsInputs(n) {
				return nodeError(ErrInvalidArity, path, i, node, version, "", fmt.Sprintf("%d inputs, want %s", n, bounds(schema.MinInputs, schema.MaxInputs)))
			}
			if n := trimmedLen(node.Outputs); !schema.AcceptsOutputs(n) {
				return nodeError(ErrInvalidArity, path, i, node, version, "", fmt.Sprintf("%d outputs, want %s", n, bounds(schema.MinOutputs, schema.MaxOutputs)))
			}
		}

		for j := range node.Attributes {
			attr := &node.Attributes[j]
			if attr.G != nil {
				if err := s.checkSchemas(attr.G, subgraphPath(path, i, node, attr.Name), false); err != nil {
					return err
				}
			}
			for k := range attr.Graphs {
				if err := s.checkSchemas(&attr.Graphs[k], subgraphPath(path, i, node, fmt.Sprintf("%s[%d]", attr.Name, k)), false); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// checkType validates a declared tensor type. Main-graph inputs and outputs must carry one.
func checkType(vi *onnx.ValueInfoProto, path, field string, required bool) error {
	if vi.Type == nil {
		if required {
			return &ValidationError{Kind: ErrInvalidValueInfo, Graph: path, Node: -1, Tensor: vi.Name, Msg: fmt.Sprintf("%s has no type", field)}
		}
		return nil
	}
	tt := vi.Type.TensorType
	if tt == nil {
		// Non-tensor types are carried opaquely.
		return nil
	}
	if !tt.ElemType.Valid() {
		return &ValidationError{Kind: ErrInvalidValueInfo, Graph: path, Node: -1, Tensor: vi.Name, Msg: fmt.Sprintf("invalid element type %s", tt.ElemType)}
	}
	if tt.Shape != nil {
		for i, d := range tt.Shape.Dims {
			if d.HasValue && d.DimValue < 0 {
				return &ValidationError{Kind: ErrInvalidValueInfo, Graph: path, Node: -1, Tensor: vi.Name, Msg: fmt.Sprintf("dimension %d is negative (%d)", i, d.DimValue)}
			}
		}
	}
	return nil
}

// trimmedLen is the number of inputs or outputs ignoring trailing omitted ones.
func trimmedLen(names []string) int {
	n := len(names)
	for n > 0 && names[n-1] == "" {
		n--
	}
	return n
}

func bounds(lo, hi int) string {
	switch {
	case hi == opset.Unbounded:
		return fmt.Sprintf("at least %d", lo)
	case lo == hi:
		return fmt.Sprintf("%d", lo)
	default:
		return fmt.Sprintf("%d to %d", lo, hi)
	}
}

// checkReferences walks the graph once, left to right, tracking produced names. outer holds
// the names visible from enclosing graphs.
//
//nolint:gocognit,gocyclo,cyclop // Single pass over every producer and consumer.
func (s *scope) checkReferences(g *onnx.GraphProto, path string, outer map[string]bool) error {
	produced := make(map[string]bool, len(outer)+len(g.Inputs)+len(g.Initializers)+len(g.Nodes))
	for name := range outer {
		produced[name] = true
	}
	for i := range g.Inputs {
		produced[g.Inputs[i].Name] = true
	}
	initializers := make(map[string]bool, len(g.Initializers))
	for i := range g.Initializers {
		name := g.Initializers[i].Name
		if name == "" {
			return &ValidationError{Kind: ErrInvalidValueInfo, Graph: path, Node: -1, Msg: fmt.Sprintf("initializer[%d] has no name", i)}
		}
		if initializers[name] {
			return &ValidationError{Kind: ErrDuplicateProducer, Graph: path, Node: -1, Tensor: name, Msg: "initializer declared twice"}
		}
		initializers[name] = true
		// An initializer may share its name with a graph input, which it then defaults.
		produced[name] = true
	}

	producedLater := func(name string, from int) (int, bool) {
		for j := from; j < len(g.Nodes); j++ {
			for _, out := range g.Nodes[j].Outputs {
				if out == name {
					return j, true
				}
			}
		}
		return 0, false
	}

	for i := range g.Nodes {
		node := &g.Nodes[i]
		for _, in := range node.Inputs {
			if in == "" || produced[in] {
				continue
			}
			msg := "no producer"
			if j, ok := producedLater(in, i); ok {
				msg = fmt.Sprintf("produced later by node %d; nodes are not in topological order", j)
			}
			return nodeError(ErrUnresolvedReference, path, i, node, 0, in, msg)
		}
		for j := range node.Attributes {
			attr := &node.Attributes[j]
			if attr.G != nil {
				if err := s.checkReferences(attr.G, subgraphPath(path, i, node, attr.Name), produced); err != nil {
					return err
				}
			}
			for k := range attr.Graphs {
				if err := s.checkReferences(&attr.Graphs[k], subgraphPath(path, i, node, fmt.Sprintf("%s[%d]", attr.Name, k)), produced); err != nil {
					return err
				}
			}
		}
		for _, out := range node.Outputs {
			if out == "" {
				continue
			}
			if produced[out] {
				return nodeError(ErrDuplicateProducer, path, i, node, 0, out, "name already produced")
			}
			produced[out] = true
		}
	}

	for i := range g.Outputs {
		if name := g.Outputs[i].Name; !produced[name] {
			return &ValidationError{Kind: ErrUnresolvedReference, Graph: path, Node: -1, Tensor: name, Msg: "graph output has no producer"}
		}
	}
	for i := range g.ValueInfo {
		if name := g.ValueInfo[i].Name; !produced[name] {
			return &ValidationError{Kind: ErrUnresolvedReference, Graph: path, Node: -1, Tensor: name, Msg: "value_info names an unknown tensor"}
		}
	}
	return nil
}

// checkOpsets enforces one import per domain and that every node resolves.
func (s *scope) checkOpsets(m *onnx.ModelProto) error {
	seen := make(map[string]bool, len(m.OpsetImport))
	for _, imp := range m.OpsetImport {
		d := onnx.CanonicalDomain(imp.Domain)
		if seen[d] {
			return &ValidationError{Kind: ErrDuplicateOpsetDomain, Node: -1, Domain: imp.Domain, Msg: "domain imported more than once"}
		}
		seen[d] = true
	}
	return s.checkOperators(m.Graph, MainGraph)
}

func (s *scope) checkOperators(g *onnx.GraphProto, path string) error {
	for i := range g.Nodes {
		node := &g.Nodes[i]
		domain := onnx.CanonicalDomain(node.Domain)
		version, imported := s.imports[domain]
		switch {
		case node.OpType == "":
			return nodeError(ErrUnknownOperator, path, i, node, version, "", "node has no op_type")
		case !imported:
			return nodeError(ErrUnknownOperator, path, i, node, 0, "", fmt.Sprintf("domain %q is not imported", node.Domain))
		case s.c.registry.KnownDomain(domain):
			if _, _, ok := s.resolve(node); !ok {
				msg := fmt.Sprintf("not defined at opset %d", version)
				if schema, ok := s.c.registry.Resolve(domain, node.OpType, version); ok && schema.Deprecated {
					msg = fmt.Sprintf("deprecated since opset %d", schema.SinceVersion)
				}
				return nodeError(ErrUnknownOperator, path, i, node, version, "", msg)
			}
		case !s.c.customDomains:
			return nodeError(ErrUnknownOperator, path, i, node, version, "", fmt.Sprintf("domain %q has no known operators", node.Domain))
		}
		for _, sub := range node.Subgraphs() {
			if err := s.checkOperators(sub, fmt.Sprintf("%s/node[%d]:%s", path, i, node.OpType)); err != nil {
				return err
			}
		}
	}
	return nil
}
