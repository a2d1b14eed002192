package checker

import (
	"fmt"
	"sort"

	"github.com/born-ml/onnxkit/internal/onnx"
	"github.com/born-ml/onnxkit/internal/onnx/opset"
)

// rule infers the output types of a node from its input types. A nil entry means unknown.
// A returned error is a conclusive contradiction.
type rule func(inf *inferrer, n *onnx.NodeProto, schema *opset.Schema) ([]*onnx.TypeProto, error)

var rules = map[string]rule{
	"Abs": sameAsInput, "Neg": sameAsInput, "Exp": sameAsInput, "Log": sameAsInput,
	"Sqrt": sameAsInput, "Relu": sameAsInput, "Sigmoid": sameAsInput, "Tanh": sameAsInput,
	"Erf": sameAsInput, "LeakyRelu": sameAsInput, "Gelu": sameAsInput, "Not": sameAsInput,
	"Softmax": sameAsInput, "LogSoftmax": sameAsInput, "Hardmax": sameAsInput,
	"Identity": sameAsInput, "Clip": sameAsInput, "LayerNormalization": sameAsInput,
	"BatchNormalization": sameAsInput,
	"Dropout":            inferDropout,
	"Cast":               inferCast,

	"Add": broadcastRule(0, false), "Sub": broadcastRule(0, false), "Mul": broadcastRule(0, false),
	"Div": broadcastRule(0, false), "Pow": broadcastRule(0, false),
	"Max": broadcastRule(0, false), "Min": broadcastRule(0, false), "Sum": broadcastRule(0, false),
	"And": broadcastRule(0, true), "Or": broadcastRule(0, true), "Equal": broadcastRule(0, true),
	"Greater": broadcastRule(0, true), "Less": broadcastRule(0, true),
	"Where": broadcastRule(1, false),

	"MatMul":    inferMatMul,
	"Gemm":      inferGemm,
	"Reshape":   inferReshape,
	"Squeeze":   inferSqueeze,
	"Unsqueeze": inferUnsqueeze,
	"Flatten":   inferFlatten,
	"Transpose": inferTranspose,
	"Concat":    inferConcat,
	"Shape":     inferShape,
	"Constant":  inferConstant,
}

type inferrer struct {
	s            *scope
	g            *onnx.GraphProto
	types        map[string]*onnx.TypeProto
	consts       map[string]*onnx.TensorProto
	inconclusive map[string]int
}

func newInferrer(s *scope, g *onnx.GraphProto) *inferrer {
	return &inferrer{
		s:            s,
		g:            g,
		types:        make(map[string]*onnx.TypeProto),
		consts:       make(map[string]*onnx.TensorProto),
		inconclusive: make(map[string]int),
	}
}

// run propagates types through the main graph in node order.
func (inf *inferrer) run() error {
	for i := range inf.g.Inputs {
		if t := inf.g.Inputs[i].Type; t != nil {
			inf.types[inf.g.Inputs[i].Name] = t.Clone()
		}
	}
	for i := range inf.g.Initializers {
		t := &inf.g.Initializers[i]
		inf.types[t.Name] = typeOfTensor(t)
		inf.consts[t.Name] = t
	}

	for i := range inf.g.Nodes {
		node := &inf.g.Nodes[i]
		var outs []*onnx.TypeProto
		schema, version, ok := inf.s.resolve(node)
		if r, has := rules[node.OpType]; has && ok && onnx.CanonicalDomain(node.Domain) == onnx.DefaultDomain {
			var err error
			if outs, err = r(inf, node, schema); err != nil {
				return nodeError(ErrShapeMismatch, MainGraph, i, node, version, "", err.Error())
			}
		}

		shapeless := false
		for j, name := range node.Outputs {
			if name == "" {
				continue
			}
			var inferred *onnx.TypeProto
			if j < len(outs) {
				inferred = outs[j]
			}
			final := inferred
			if declared, has := inf.g.DeclaredType(name); has {
				if reason := contradiction(inferred, declared); reason != "" {
					return nodeError(ErrShapeMismatch, MainGraph, i, node, version, name, reason)
				}
				final = refine(declared, inferred)
			}
			if final != nil {
				inf.types[name] = final
			}
			if final == nil || final.TensorType == nil || final.TensorType.Shape == nil {
				shapeless = true
			}
		}
		if shapeless {
			inf.inconclusive[node.OpType]++
		}
	}
	return nil
}

func (inf *inferrer) warnings() []Warning {
	ops := make([]string, 0, len(inf.inconclusive))
	for op := range inf.inconclusive {
		ops = append(ops, op)
	}
	sort.Strings(ops)
	out := make([]Warning, 0, len(ops))
	for _, op := range ops {
		out = append(out, Warning{
			Graph:  MainGraph,
			OpType: op,
			Msg:    fmt.Sprintf("output shape unknown for %d node(s)", inf.inconclusive[op]),
		})
	}
	return out
}

func (inf *inferrer) input(n *onnx.NodeProto, i int) *onnx.TypeProto {
	if i >= len(n.Inputs) || n.Inputs[i] == "" {
		return nil
	}
	return inf.types[n.Inputs[i]]
}

// constInts returns the integer values of a constant input, if known.
func (inf *inferrer) constInts(n *onnx.NodeProto, i int) ([]int64, bool) {
	if i >= len(n.Inputs) {
		return nil, false
	}
	t, ok := inf.consts[n.Inputs[i]]
	if !ok {
		return nil, false
	}
	return t.Int64s()
}

// axesOf returns the axes given by attribute (older opsets) or by constant input 1.
func (inf *inferrer) axesOf(n *onnx.NodeProto) ([]int64, bool) {
	if a, ok := n.Attribute("axes"); ok {
		return a.Ints, true
	}
	if len(n.Inputs) < 2 || n.Inputs[1] == "" {
		return nil, true
	}
	return inf.constInts(n, 1)
}

// Type helpers.

func typeOfTensor(t *onnx.TensorProto) *onnx.TypeProto {
	return onnx.MakeTensorType(t.DataType, onnx.Dims(t.Dims...))
}

func tensorType(t *onnx.TypeProto) *onnx.TensorTypeProto {
	if t == nil {
		return nil
	}
	return t.TensorType
}

func elemOf(t *onnx.TypeProto) onnx.DataType {
	if tt := tensorType(t); tt != nil {
		return tt.ElemType
	}
	return onnx.TensorProtoUndefined
}

// dimsOf returns the dimensions of t and whether its rank is known.
func dimsOf(t *onnx.TypeProto) ([]onnx.DimensionProto, bool) {
	tt := tensorType(t)
	if tt == nil || tt.Shape == nil {
		return nil, false
	}
	return tt.Shape.Dims, true
}

// withShape builds a tensor type; rankKnown false leaves the shape absent.
func withShape(elem onnx.DataType, dims []onnx.DimensionProto, rankKnown bool) *onnx.TypeProto {
	if elem == onnx.TensorProtoUndefined && !rankKnown {
		return nil
	}
	if !rankKnown {
		return onnx.MakeTensorType(elem, nil)
	}
	if dims == nil {
		dims = []onnx.DimensionProto{}
	}
	return onnx.MakeTensorType(elem, dims)
}

func unknownDim() onnx.DimensionProto { return onnx.DimensionProto{} }

func allStatic(dims []onnx.DimensionProto) bool {
	for _, d := range dims {
		if !d.HasValue {
			return false
		}
	}
	return true
}

func product(dims []onnx.DimensionProto) onnx.DimensionProto {
	if !allStatic(dims) {
		return unknownDim()
	}
	p := int64(1)
	for _, d := range dims {
		p *= d.DimValue
	}
	return onnx.Dim(p)
}

func normalizeAxis(axis int64, rank int) (int, error) {
	if axis < 0 {
		axis += int64(rank)
	}
	if axis < 0 || axis >= int64(rank) {
		return 0, fmt.Errorf("axis %d out of range for rank %d", axis, rank)
	}
	return int(axis), nil
}

// contradiction explains why inferred cannot be the declared type, or returns "".
func contradiction(inferred, declared *onnx.TypeProto) string {
	it, dt := tensorType(inferred), tensorType(declared)
	if it == nil || dt == nil {
		return ""
	}
	if it.ElemType != onnx.TensorProtoUndefined && dt.ElemType != onnx.TensorProtoUndefined && it.ElemType != dt.ElemType {
		return fmt.Sprintf("inferred element type %s, declared %s", it.ElemType, dt.ElemType)
	}
	if it.Shape == nil || dt.Shape == nil {
		return ""
	}
	if len(it.Shape.Dims) != len(dt.Shape.Dims) {
		return fmt.Sprintf("inferred rank %d, declared %d", len(it.Shape.Dims), len(dt.Shape.Dims))
	}
	for i := range it.Shape.Dims {
		a, b := it.Shape.Dims[i], dt.Shape.Dims[i]
		if a.HasValue && b.HasValue && a.DimValue != b.DimValue {
			return fmt.Sprintf("inferred dimension %d is %d, declared %d", i, a.DimValue, b.DimValue)
		}
	}
	return ""
}

// refine fills the gaps of a declared type with inferred information.
func refine(declared, inferred *onnx.TypeProto) *onnx.TypeProto {
	out := declared.Clone()
	ot, it := tensorType(out), tensorType(inferred)
	if ot == nil || it == nil {
		return out
	}
	if ot.ElemType == onnx.TensorProtoUndefined {
		ot.ElemType = it.ElemType
	}
	switch {
	case it.Shape == nil:
	case ot.Shape == nil:
		ot.Shape = it.Clone().Shape
	default:
		for i := range ot.Shape.Dims {
			if !ot.Shape.Dims[i].HasValue && it.Shape.Dims[i].HasValue {
				ot.Shape.Dims[i] = it.Shape.Dims[i]
			}
		}
	}
	return out
}

// Rules.

func sameAsInput(inf *inferrer, n *onnx.NodeProto, _ *opset.Schema) ([]*onnx.TypeProto, error) {
	if t := inf.input(n, 0); t != nil {
		return []*onnx.TypeProto{t.Clone()}, nil
	}
	return nil, nil
}

func inferDropout(inf *inferrer, n *onnx.NodeProto, _ *opset.Schema) ([]*onnx.TypeProto, error) {
	t := inf.input(n, 0)
	if t == nil {
		return nil, nil
	}
	dims, known := dimsOf(t)
	return []*onnx.TypeProto{t.Clone(), withShape(onnx.TensorProtoBool, append([]onnx.DimensionProto(nil), dims...), known)}, nil
}

func inferCast(inf *inferrer, n *onnx.NodeProto, _ *opset.Schema) ([]*onnx.TypeProto, error) {
	to := onnx.DataType(n.AttrInt("to", 0)) //nolint:gosec // G115: enum fits in int32.
	if !to.Valid() {
		return nil, fmt.Errorf("cast to invalid element type %s", to)
	}
	dims, known := dimsOf(inf.input(n, 0))
	return []*onnx.TypeProto{withShape(to, append([]onnx.DimensionProto(nil), dims...), known)}, nil
}

// broadcastRule infers numpy-style broadcasting over all inputs. elemFrom picks the input
// whose element type the output takes; boolean outputs are BOOL.
func broadcastRule(elemFrom int, boolean bool) rule {
	return func(inf *inferrer, n *onnx.NodeProto, schema *opset.Schema) ([]*onnx.TypeProto, error) {
		// Opsets before 7 broadcast along an explicit axis instead.
		if schema.HasAttribute("broadcast") {
			return nil, nil
		}
		elem := elemOf(inf.input(n, elemFrom))
		if boolean {
			elem = onnx.TensorProtoBool
		}
		var shapes [][]onnx.DimensionProto
		for i := range n.Inputs {
			dims, known := dimsOf(inf.input(n, i))
			if !known {
				return []*onnx.TypeProto{withShape(elem, nil, false)}, nil
			}
			shapes = append(shapes, dims)
		}
		out, err := broadcast(shapes...)
		if err != nil {
			return nil, err
		}
		return []*onnx.TypeProto{withShape(elem, out, true)}, nil
	}
}

func broadcast(shapes ...[]onnx.DimensionProto) ([]onnx.DimensionProto, error) {
	rank := 0
	for _, s := range shapes {
		rank = max(rank, len(s))
	}
	out := make([]onnx.DimensionProto, rank)
	for i := range out {
		var acc *onnx.DimensionProto
		for _, s := range shapes {
			j := i - (rank - len(s))
			if j < 0 {
				continue
			}
			d := s[j]
			if acc == nil {
				acc = &d
				continue
			}
			merged, ok := broadcastDim(*acc, d)
			if !ok {
				return nil, fmt.Errorf("cannot broadcast dimension %d: %d vs %d", i, acc.DimValue, d.DimValue)
			}
			acc = &merged
		}
		out[i] = *acc
	}
	return out, nil
}

func broadcastDim(a, b onnx.DimensionProto) (onnx.DimensionProto, bool) {
	switch {
	case a.HasValue && b.HasValue:
		switch {
		case a.DimValue == b.DimValue, b.DimValue == 1:
			return a, true
		case a.DimValue == 1:
			return b, true
		default:
			return onnx.DimensionProto{}, false
		}
	case a.HasValue && a.DimValue == 1:
		return b, true
	case b.HasValue && b.DimValue == 1:
		return a, true
	case a.HasValue:
		return a, true
	case b.HasValue:
		return b, true
	case a.DimParam != "" && a.DimParam == b.DimParam:
		return a, true
	default:
		return unknownDim(), true
	}
}

func inferMatMul(inf *inferrer, n *onnx.NodeProto, _ *opset.Schema) ([]*onnx.TypeProto, error) {
	a, b := inf.input(n, 0), inf.input(n, 1)
	elem := elemOf(a)
	da, okA := dimsOf(a)
	db, okB := dimsOf(b)
	if !okA || !okB {
		return []*onnx.TypeProto{withShape(elem, nil, false)}, nil
	}
	if len(da) == 0 || len(db) == 0 {
		return nil, fmt.Errorf("matmul operands must have rank >= 1")
	}
	dropRow, dropCol := len(da) == 1, len(db) == 1
	if dropRow {
		da = append([]onnx.DimensionProto{onnx.Dim(1)}, da...)
	}
	if dropCol {
		db = append(append([]onnx.DimensionProto(nil), db...), onnx.Dim(1))
	}
	k1, k2 := da[len(da)-1], db[len(db)-2]
	if k1.HasValue && k2.HasValue && k1.DimValue != k2.DimValue {
		return nil, fmt.Errorf("matmul inner dimensions differ: %d vs %d", k1.DimValue, k2.DimValue)
	}
	batch, err := broadcast(da[:len(da)-2], db[:len(db)-2])
	if err != nil {
		return nil, err
	}
	out := batch
	if !dropRow {
		out = append(out, da[len(da)-2])
	}
	if !dropCol {
		out = append(out, db[len(db)-1])
	}
	return []*onnx.TypeProto{withShape(elem, out, true)}, nil
}

func inferGemm(inf *inferrer, n *onnx.NodeProto, _ *opset.Schema) ([]*onnx.TypeProto, error) {
	a, b := inf.input(n, 0), inf.input(n, 1)
	elem := elemOf(a)
	da, okA := dimsOf(a)
	db, okB := dimsOf(b)
	if !okA || !okB {
		return []*onnx.TypeProto{withShape(elem, nil, false)}, nil
	}
	if len(da) != 2 || len(db) != 2 {
		return nil, fmt.Errorf("gemm operands must be 2-D, got ranks %d and %d", len(da), len(db))
	}
	m, k1 := da[0], da[1]
	if n.AttrInt("transA", 0) != 0 {
		m, k1 = da[1], da[0]
	}
	k2, cols := db[0], db[1]
	if n.AttrInt("transB", 0) != 0 {
		k2, cols = db[1], db[0]
	}
	if k1.HasValue && k2.HasValue && k1.DimValue != k2.DimValue {
		return nil, fmt.Errorf("gemm inner dimensions differ: %d vs %d", k1.DimValue, k2.DimValue)
	}
	return []*onnx.TypeProto{withShape(elem, []onnx.DimensionProto{m, cols}, true)}, nil
}

func inferReshape(inf *inferrer, n *onnx.NodeProto, _ *opset.Schema) ([]*onnx.TypeProto, error) {
	in := inf.input(n, 0)
	elem := elemOf(in)
	var target []int64
	if a, ok := n.Attribute("shape"); ok {
		target = a.Ints
	} else {
		var ok bool
		if target, ok = inf.constInts(n, 1); !ok {
			return []*onnx.TypeProto{withShape(elem, nil, false)}, nil
		}
	}
	inDims, inKnown := dimsOf(in)
	allowZero := n.AttrInt("allowzero", 0) != 0

	out := make([]onnx.DimensionProto, len(target))
	inferAt := -1
	known := int64(1)
	for i, v := range target {
		switch {
		case v == 0 && !allowZero:
			if inKnown && i < len(inDims) {
				out[i] = inDims[i]
			}
		case v == -1:
			if inferAt >= 0 {
				return nil, fmt.Errorf("reshape target has more than one -1")
			}
			inferAt = i
			continue
		case v < 0:
			return nil, fmt.Errorf("reshape target has invalid dimension %d", v)
		default:
			out[i] = onnx.Dim(v)
		}
		if out[i].HasValue {
			known *= out[i].DimValue
		} else {
			known = -1
		}
	}
	if inferAt >= 0 && inKnown && known > 0 {
		if total := product(inDims); total.HasValue {
			if total.DimValue%known != 0 {
				return nil, fmt.Errorf("cannot reshape %d elements into target %v", total.DimValue, target)
			}
			out[inferAt] = onnx.Dim(total.DimValue / known)
		}
	}
	return []*onnx.TypeProto{withShape(elem, out, true)}, nil
}

func inferSqueeze(inf *inferrer, n *onnx.NodeProto, _ *opset.Schema) ([]*onnx.TypeProto, error) {
	in := inf.input(n, 0)
	elem := elemOf(in)
	dims, known := dimsOf(in)
	axes, axesKnown := inf.axesOf(n)
	if !known || !axesKnown {
		return []*onnx.TypeProto{withShape(elem, nil, false)}, nil
	}
	drop := make(map[int]bool, len(axes))
	if len(axes) == 0 {
		if !allStatic(dims) {
			return []*onnx.TypeProto{withShape(elem, nil, false)}, nil
		}
		for i, d := range dims {
			if d.DimValue == 1 {
				drop[i] = true
			}
		}
	}
	for _, a := range axes {
		i, err := normalizeAxis(a, len(dims))
		if err != nil {
			return nil, err
		}
		if dims[i].HasValue && dims[i].DimValue != 1 {
			return nil, fmt.Errorf("cannot squeeze dimension %d of size %d", i, dims[i].DimValue)
		}
		drop[i] = true
	}
	out := make([]onnx.DimensionProto, 0, len(dims))
	for i, d := range dims {
		if !drop[i] {
			out = append(out, d)
		}
	}
	return []*onnx.TypeProto{withShape(elem, out, true)}, nil
}

func inferUnsqueeze(inf *inferrer, n *onnx.NodeProto, _ *opset.Schema) ([]*onnx.TypeProto, error) {
	in := inf.input(n, 0)
	elem := elemOf(in)
	dims, known := dimsOf(in)
	axes, axesKnown := inf.axesOf(n)
	if !known || !axesKnown {
		return []*onnx.TypeProto{withShape(elem, nil, false)}, nil
	}
	rank := len(dims) + len(axes)
	insert := make(map[int]bool, len(axes))
	for _, a := range axes {
		i, err := normalizeAxis(a, rank)
		if err != nil {
			return nil, err
		}
		if insert[i] {
			return nil, fmt.Errorf("axis %d repeated", a)
		}
		insert[i] = true
	}
	out := make([]onnx.DimensionProto, 0, rank)
	next := 0
	for i := 0; i < rank; i++ {
		if insert[i] {
			out = append(out, onnx.Dim(1))
			continue
		}
		out = append(out, dims[next])
		next++
	}
	return []*onnx.TypeProto{withShape(elem, out, true)}, nil
}

func inferFlatten(inf *inferrer, n *onnx.NodeProto, schema *opset.Schema) ([]*onnx.TypeProto, error) {
	in := inf.input(n, 0)
	elem := elemOf(in)
	dims, known := dimsOf(in)
	if !known {
		return []*onnx.TypeProto{withShape(elem, nil, false)}, nil
	}
	axis := n.AttrInt("axis", schema.DefaultInt("axis", 1))
	if axis < 0 {
		axis += int64(len(dims))
	}
	if axis < 0 || axis > int64(len(dims)) {
		return nil, fmt.Errorf("flatten axis %d out of range for rank %d", axis, len(dims))
	}
	return []*onnx.TypeProto{withShape(elem, []onnx.DimensionProto{product(dims[:axis]), product(dims[axis:])}, true)}, nil
}

func inferTranspose(inf *inferrer, n *onnx.NodeProto, _ *opset.Schema) ([]*onnx.TypeProto, error) {
	in := inf.input(n, 0)
	elem := elemOf(in)
	dims, known := dimsOf(in)
	if !known {
		return []*onnx.TypeProto{withShape(elem, nil, false)}, nil
	}
	perm := n.AttrInts("perm")
	if perm == nil {
		for i := len(dims) - 1; i >= 0; i-- {
			perm = append(perm, int64(i))
		}
	}
	if len(perm) != len(dims) {
		return nil, fmt.Errorf("perm has %d entries for rank %d", len(perm), len(dims))
	}
	out := make([]onnx.DimensionProto, len(dims))
	for i, p := range perm {
		j, err := normalizeAxis(p, len(dims))
		if err != nil {
			return nil, err
		}
		out[i] = dims[j]
	}
	return []*onnx.TypeProto{withShape(elem, out, true)}, nil
}

func inferConcat(inf *inferrer, n *onnx.NodeProto, _ *opset.Schema) ([]*onnx.TypeProto, error) {
	elem := elemOf(inf.input(n, 0))
	var shapes [][]onnx.DimensionProto
	for i := range n.Inputs {
		dims, known := dimsOf(inf.input(n, i))
		if !known {
			return []*onnx.TypeProto{withShape(elem, nil, false)}, nil
		}
		if len(shapes) > 0 && len(dims) != len(shapes[0]) {
			return nil, fmt.Errorf("concat inputs have ranks %d and %d", len(shapes[0]), len(dims))
		}
		shapes = append(shapes, dims)
	}
	if len(shapes) == 0 {
		return nil, nil
	}
	rank := len(shapes[0])
	axis, err := normalizeAxis(n.AttrInt("axis", 0), rank)
	if err != nil {
		return nil, err
	}
	out := make([]onnx.DimensionProto, rank)
	for d := 0; d < rank; d++ {
		if d == axis {
			column := make([]onnx.DimensionProto, len(shapes))
			for i, s := range shapes {
				column[i] = s[d]
			}
			if allStatic(column) {
				sum := int64(0)
				for _, c := range column {
					sum += c.DimValue
				}
				out[d] = onnx.Dim(sum)
			}
			continue
		}
		out[d] = shapes[0][d]
		for _, s := range shapes[1:] {
			a, b := out[d], s[d]
			if a.HasValue && b.HasValue && a.DimValue != b.DimValue {
				return nil, fmt.Errorf("concat dimension %d differs: %d vs %d", d, a.DimValue, b.DimValue)
			}
			if !a.HasValue && b.HasValue {
				out[d] = b
			}
		}
	}
	return []*onnx.TypeProto{withShape(elem, out, true)}, nil
}

func inferShape(inf *inferrer, n *onnx.NodeProto, _ *opset.Schema) ([]*onnx.TypeProto, error) {
	dims, known := dimsOf(inf.input(n, 0))
	if !known {
		return []*onnx.TypeProto{withShape(onnx.TensorProtoInt64, []onnx.DimensionProto{unknownDim()}, true)}, nil
	}
	rank := int64(len(dims))
	clamp := func(v int64) int64 {
		if v < 0 {
			v += rank
		}
		return min(max(v, 0), rank)
	}
	start, end := int64(0), rank
	if a, ok := n.Attribute("start"); ok {
		start = clamp(a.I)
	}
	if a, ok := n.Attribute("end"); ok {
		end = clamp(a.I)
	}
	return []*onnx.TypeProto{withShape(onnx.TensorProtoInt64, onnx.Dims(max(end-start, 0)), true)}, nil
}

func inferConstant(inf *inferrer, n *onnx.NodeProto, _ *opset.Schema) ([]*onnx.TypeProto, error) {
	if len(n.Outputs) == 0 {
		return nil, nil
	}
	out := n.Outputs[0]
	for _, a := range n.Attributes {
		switch a.Name {
		case "value":
			if a.T != nil {
				inf.consts[out] = a.T
				return []*onnx.TypeProto{typeOfTensor(a.T)}, nil
			}
		case "value_float":
			return []*onnx.TypeProto{withShape(onnx.TensorProtoFloat, nil, true)}, nil
		case "value_floats":
			return []*onnx.TypeProto{withShape(onnx.TensorProtoFloat, onnx.Dims(int64(len(a.Floats))), true)}, nil
		case "value_int":
			t := onnx.Int64Tensor(out, nil, []int64{a.I})
			inf.consts[out] = &t
			return []*onnx.TypeProto{withShape(onnx.TensorProtoInt64, nil, true)}, nil
		case "value_ints":
			t := onnx.Int64Tensor(out, []int64{int64(len(a.Ints))}, a.Ints)
			inf.consts[out] = &t
			return []*onnx.TypeProto{withShape(onnx.TensorProtoInt64, onnx.Dims(int64(len(a.Ints))), true)}, nil
		case "value_string":
			return []*onnx.TypeProto{withShape(onnx.TensorProtoString, nil, true)}, nil
		case "value_strings":
			return []*onnx.TypeProto{withShape(onnx.TensorProtoString, onnx.Dims(int64(len(a.Strings))), true)}, nil
		}
	}
	return nil, nil
}
