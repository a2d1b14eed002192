package convert

import (
	"fmt"
	"math"

	"github.com/born-ml/onnxkit/internal/onnx"
	"github.com/born-ml/onnxkit/internal/onnx/opset"
)

// rewriteFunc rewrites one node across a single opset boundary and returns the nodes that
// replace it. It may mutate n.
type rewriteFunc func(r *rewrite, n *onnx.NodeProto) ([]onnx.NodeProto, error)

// adapter converts an operator across the opset version at which its signature changed:
// up from version-1 to version, down from version to version-1. Either may be nil.
type adapter struct {
	up   rewriteFunc
	down rewriteFunc
}

type adapterKey struct {
	op      string
	version int64
}

// adapterTable holds the default-domain adapters. Several adapters for the same key run in
// registration order.
type adapterTable map[adapterKey][]adapter

func (t adapterTable) add(version int64, a adapter, ops ...string) {
	for _, op := range ops {
		k := adapterKey{op, version}
		t[k] = append(t[k], a)
	}
}

var (
	binaryOps  = []string{"Add", "Sub", "Mul", "Div", "Pow", "And", "Or", "Equal", "Greater", "Less"}
	softmaxOps = []string{"Softmax", "LogSoftmax", "Hardmax"}
)

// newAdapterTable builds the adapter table. Attributes dropped without replacement, such as
// consumed_inputs, are found in reg.
func newAdapterTable(reg *opset.Registry) adapterTable {
	t := make(adapterTable)

	for _, op := range reg.Ops(onnx.DefaultDomain) {
		versions := reg.SinceVersions(onnx.DefaultDomain, op)
		for i := 1; i < len(versions); i++ {
			prev, _ := reg.Resolve(onnx.DefaultDomain, op, versions[i-1])
			cur, _ := reg.Resolve(onnx.DefaultDomain, op, versions[i])
			if prev.HasAttribute("consumed_inputs") && !cur.HasAttribute("consumed_inputs") {
				t.add(versions[i], dropAttribute("consumed_inputs", prev.Attributes["consumed_inputs"].Required), op)
			}
		}
	}

	t.add(5, attributeToInput("shape", 1), "Reshape")
	t.add(7, adapter{up: legacyBroadcastUp, down: legacyBroadcastDown}, binaryOps...)
	t.add(7, adapter{
		up:   removeAttribute("broadcast"),
		down: setAttribute(onnx.AttrInt("broadcast", 1)),
	}, "Gemm")
	t.add(11, adapter{down: gemmBiasDown}, "Gemm")
	t.add(7, adapter{
		up:   removeAttribute("is_test"),
		down: setAttribute(onnx.AttrInt("is_test", 1)),
	}, "Dropout", "BatchNormalization")
	t.add(12, adapter{up: dropoutRatioUp, down: dropoutRatioDown}, "Dropout")
	t.add(9, adapter{up: spatialUp}, "BatchNormalization")
	t.add(11, adapter{up: clipUp, down: clipDown}, "Clip")
	t.add(13, attributeToInput("axes", 1), "Squeeze", "Unsqueeze", "ReduceSum")
	t.add(13, adapter{down: emptyAxesDown}, "ReduceSum")
	t.add(18, adapter{down: emptyAxesDown}, "ReduceMean", "ReduceMax", "ReduceMin", "ReduceProd")
	t.add(18, attributeToInput("axes", 1), "ReduceMean", "ReduceMax", "ReduceMin", "ReduceProd")
	t.add(13, attributeToInput("split", 1), "Split")
	t.add(10, adapter{down: sliceStepsDown}, "Slice")
	t.add(10, attributeToInput("starts", 1), "Slice")
	t.add(10, attributeToInput("ends", 2), "Slice")
	t.add(10, attributeToInput("axes", 3), "Slice")
	t.add(11, adapter{up: padUp, down: padDown}, "Pad")
	t.add(11, adapter{down: negativeAxisDown}, softmaxOps...)
	t.add(13, adapter{up: softmaxUp, down: softmaxDown}, softmaxOps...)
	t.add(9, floatsToInput("scales", 1), "Upsample")
	t.add(10, adapter{up: renameOp("Resize")}, "Upsample")
	t.add(10, adapter{down: renameOp("Upsample")}, "Resize")
	t.add(11, adapter{up: resizeUp, down: resizeDown}, "Resize")
	t.add(18, adapter{down: resizeAntialiasDown}, "Resize")
	t.add(20, adapter{down: geluDown}, "Gelu")
	return t
}

func keep(n *onnx.NodeProto) []onnx.NodeProto {
	return []onnx.NodeProto{*n}
}

func removeAttribute(name string) rewriteFunc {
	return func(_ *rewrite, n *onnx.NodeProto) ([]onnx.NodeProto, error) {
		n.RemoveAttribute(name)
		return keep(n), nil
	}
}

func setAttribute(attr onnx.AttributeProto) rewriteFunc {
	return func(_ *rewrite, n *onnx.NodeProto) ([]onnx.NodeProto, error) {
		n.SetAttribute(*attr.Clone())
		return keep(n), nil
	}
}

func renameOp(to string) rewriteFunc {
	return func(_ *rewrite, n *onnx.NodeProto) ([]onnx.NodeProto, error) {
		n.OpType = to
		return keep(n), nil
	}
}

// dropAttribute removes an attribute that no longer exists. Going down, a required attribute
// is restored as an all-zero list, one entry per input.
func dropAttribute(name string, required bool) adapter {
	a := adapter{up: removeAttribute(name)}
	if required {
		a.down = func(_ *rewrite, n *onnx.NodeProto) ([]onnx.NodeProto, error) {
			if _, ok := n.Attribute(name); !ok {
				n.SetAttribute(onnx.AttrInts(name, make([]int64, len(n.Inputs))...))
			}
			return keep(n), nil
		}
	}
	return a
}

// attributeToInput moves an integer list attribute to a constant input at index.
func attributeToInput(name string, index int) adapter {
	return adapter{
		up: func(r *rewrite, n *onnx.NodeProto) ([]onnx.NodeProto, error) {
			attr, ok := n.Attribute(name)
			if !ok {
				return keep(n), nil
			}
			values := attr.Ints
			t := onnx.Int64Tensor(r.unique(n, name), []int64{int64(len(values))}, values)
			n.RemoveAttribute(name)
			setInput(n, index, r.addInitializer(t))
			return keep(n), nil
		},
		down: func(r *rewrite, n *onnx.NodeProto) ([]onnx.NodeProto, error) {
			in := input(n, index)
			if in == "" {
				return keep(n), nil
			}
			values, err := r.constInts(n, index, name)
			if err != nil {
				return nil, err
			}
			n.SetAttribute(onnx.AttrInts(name, values...))
			n.Inputs[index] = ""
			trimInputs(n)
			r.release(in)
			return keep(n), nil
		},
	}
}

// sliceStepsDown drops a steps input that only holds ones, the sole stride older Slice
// supports.
func sliceStepsDown(r *rewrite, n *onnx.NodeProto) ([]onnx.NodeProto, error) {
	in := input(n, 4)
	if in == "" {
		return keep(n), nil
	}
	steps, err := r.constInts(n, 4, "steps")
	if err != nil {
		return nil, err
	}
	for _, s := range steps {
		if s != 1 {
			return nil, fmt.Errorf("step %d has no equivalent before Slice-10", s)
		}
	}
	n.Inputs[4] = ""
	trimInputs(n)
	r.release(in)
	return keep(n), nil
}

// padUp moves pads to input 1 and a non-zero value to a constant_value input of the data
// element type.
func padUp(r *rewrite, n *onnx.NodeProto) ([]onnx.NodeProto, error) {
	var value float32
	if attr, ok := n.Attribute("value"); ok {
		value = attr.F
		n.RemoveAttribute("value")
	}
	pads := n.AttrInts("pads")
	t := onnx.Int64Tensor(r.unique(n, "pads"), []int64{int64(len(pads))}, pads)
	n.RemoveAttribute("pads")
	setInput(n, 1, r.addInitializer(t))
	if value == 0 {
		return keep(n), nil
	}
	cv, err := scalar(r.unique(n, "constant_value"), r.elemType(n.Inputs[0]), float64(value))
	if err != nil {
		return nil, err
	}
	setInput(n, 2, r.addInitializer(cv))
	return keep(n), nil
}

// padDown folds constant pads and constant_value inputs back into attributes.
func padDown(r *rewrite, n *onnx.NodeProto) ([]onnx.NodeProto, error) {
	if input(n, 3) != "" {
		return nil, fmt.Errorf("axes input %q has no equivalent before Pad-11", n.Inputs[3])
	}
	pads, err := r.constInts(n, 1, "pads")
	if err != nil {
		return nil, err
	}
	var value float64
	if input(n, 2) != "" {
		if value, err = r.constFloat(n, 2, "constant_value"); err != nil {
			return nil, err
		}
	}
	n.SetAttribute(onnx.AttrInts("pads", pads...))
	if value != 0 {
		n.SetAttribute(onnx.AttrFloat("value", float32(value)))
	}
	for _, in := range n.Inputs[1:] {
		if in != "" {
			r.release(in)
		}
	}
	n.Inputs = n.Inputs[:1]
	return keep(n), nil
}

// floatsToInput moves a float list attribute to a constant input at index.
func floatsToInput(name string, index int) adapter {
	return adapter{
		up: func(r *rewrite, n *onnx.NodeProto) ([]onnx.NodeProto, error) {
			attr, ok := n.Attribute(name)
			if !ok {
				return keep(n), nil
			}
			values := attr.Floats
			t := onnx.Float32Tensor(r.unique(n, name), []int64{int64(len(values))}, values)
			n.RemoveAttribute(name)
			setInput(n, index, r.addInitializer(t))
			return keep(n), nil
		},
		down: func(r *rewrite, n *onnx.NodeProto) ([]onnx.NodeProto, error) {
			in := input(n, index)
			if in == "" {
				return keep(n), nil
			}
			t, ok := r.constant(in)
			if !ok {
				return nil, fmt.Errorf("%s input %q is not a constant", name, in)
			}
			wide, ok := t.Float64s()
			if !ok {
				return nil, fmt.Errorf("%s input %q is not a floating point tensor", name, in)
			}
			values := make([]float32, len(wide))
			for i, v := range wide {
				values[i] = float32(v)
			}
			n.SetAttribute(onnx.AttrFloats(name, values...))
			n.Inputs[index] = ""
			trimInputs(n)
			r.release(in)
			return keep(n), nil
		},
	}
}

// emptyAxesDown rejects reductions that are identities when no axes are given.
func emptyAxesDown(_ *rewrite, n *onnx.NodeProto) ([]onnx.NodeProto, error) {
	_, hasAxes := n.Attribute("axes")
	if n.AttrInt("noop_with_empty_axes", 0) != 0 && input(n, 1) == "" && !hasAxes {
		return nil, fmt.Errorf("noop_with_empty_axes without axes has no older equivalent")
	}
	n.RemoveAttribute("noop_with_empty_axes")
	return keep(n), nil
}

// legacyBroadcastUp replaces axis-aligned legacy broadcasting with numpy broadcasting,
// unsqueezing the second operand when its dims do not end at the last axis of the first.
func legacyBroadcastUp(r *rewrite, n *onnx.NodeProto) ([]onnx.NodeProto, error) {
	broadcast := n.AttrInt("broadcast", 0)
	axisAttr, hasAxis := n.Attribute("axis")
	axis := int64(0)
	if hasAxis {
		axis = axisAttr.I
	}
	n.RemoveAttribute("broadcast")
	n.RemoveAttribute("axis")
	if broadcast == 0 || !hasAxis || len(n.Inputs) < 2 {
		return keep(n), nil
	}

	rankA, okA := r.rank(n.Inputs[0])
	rankB, okB := r.rank(n.Inputs[1])
	if !okA || !okB {
		return nil, fmt.Errorf("broadcast along axis %d needs known input ranks", axis)
	}
	if axis < 0 {
		axis += int64(rankA)
	}
	trailing := int64(rankA) - axis - int64(rankB)
	if trailing < 0 || axis < 0 {
		return nil, fmt.Errorf("axis %d does not fit ranks %d and %d", axis, rankA, rankB)
	}
	if trailing == 0 {
		return keep(n), nil
	}

	axes := make([]int64, trailing)
	for i := range axes {
		axes[i] = int64(rankB) + int64(i)
	}
	aligned := r.unique(n, "aligned")
	unsqueeze := onnx.MakeNode("Unsqueeze", []string{n.Inputs[1]}, []string{aligned}, onnx.AttrInts("axes", axes...))
	n.Inputs[1] = aligned
	r.conv.c.logger.Debug("aligned legacy broadcast", "op", n.OpType, "axis", axis, "tensor", aligned)
	return []onnx.NodeProto{unsqueeze, *n}, nil
}

// legacyBroadcastDown expresses numpy broadcasting with the legacy broadcast attribute, which
// only supports a second operand whose dims equal the trailing dims of the first.
func legacyBroadcastDown(r *rewrite, n *onnx.NodeProto) ([]onnx.NodeProto, error) {
	if len(n.Inputs) < 2 {
		return keep(n), nil
	}
	a, okA := r.dims(n.Inputs[0])
	b, okB := r.dims(n.Inputs[1])
	switch {
	case okB && len(b) == 0:
		n.SetAttribute(onnx.AttrInt("broadcast", 1))
		return keep(n), nil
	case !okA || !okB:
		return nil, fmt.Errorf("operand shapes are unknown")
	case sameDims(a, b):
		return keep(n), nil
	case len(b) < len(a) && sameDims(a[len(a)-len(b):], b):
		n.SetAttribute(onnx.AttrInt("broadcast", 1))
		return keep(n), nil
	default:
		return nil, fmt.Errorf("broadcasting %s to %s has no legacy equivalent", formatDims(b), formatDims(a))
	}
}

func sameDims(a, b []onnx.DimensionProto) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		switch {
		case a[i].HasValue && b[i].HasValue:
			if a[i].DimValue != b[i].DimValue {
				return false
			}
		case a[i].DimParam != "" && a[i].DimParam == b[i].DimParam:
		default:
			return false
		}
	}
	return true
}

func formatDims(dims []onnx.DimensionProto) string {
	s := "["
	for i, d := range dims {
		if i > 0 {
			s += ","
		}
		switch {
		case d.HasValue:
			s += fmt.Sprint(d.DimValue)
		case d.DimParam != "":
			s += d.DimParam
		default:
			s += "?"
		}
	}
	return s + "]"
}

// gemmBiasDown supplies a zero bias, which is mandatory before opset 11.
func gemmBiasDown(r *rewrite, n *onnx.NodeProto) ([]onnx.NodeProto, error) {
	if input(n, 2) != "" {
		return keep(n), nil
	}
	t, err := scalar(r.unique(n, "bias"), r.elemType(n.Inputs[0]), 0)
	if err != nil {
		return nil, err
	}
	setInput(n, 2, r.addInitializer(t))
	return keep(n), nil
}

func dropoutRatioUp(r *rewrite, n *onnx.NodeProto) ([]onnx.NodeProto, error) {
	attr, ok := n.Attribute("ratio")
	if !ok {
		return keep(n), nil
	}
	t, err := scalar(r.unique(n, "ratio"), onnx.TensorProtoFloat, float64(attr.F))
	if err != nil {
		return nil, err
	}
	n.RemoveAttribute("ratio")
	setInput(n, 1, r.addInitializer(t))
	return keep(n), nil
}

func dropoutRatioDown(r *rewrite, n *onnx.NodeProto) ([]onnx.NodeProto, error) {
	if mode := input(n, 2); mode != "" {
		if t, ok := r.constant(mode); !ok || !isFalse(t) {
			return nil, fmt.Errorf("training mode has no older equivalent")
		}
		n.Inputs[2] = ""
		r.release(mode)
	}
	if ratio := input(n, 1); ratio != "" {
		v, err := r.constFloat(n, 1, "ratio")
		if err != nil {
			return nil, err
		}
		n.SetAttribute(onnx.AttrFloat("ratio", float32(v)))
		n.Inputs[1] = ""
		r.release(ratio)
	}
	trimInputs(n)
	n.RemoveAttribute("seed")
	return keep(n), nil
}

// isFalse reports whether t is a BOOL scalar holding false.
func isFalse(t *onnx.TensorProto) bool {
	if t.DataType != onnx.TensorProtoBool {
		return false
	}
	if len(t.RawData) > 0 {
		return len(t.RawData) == 1 && t.RawData[0] == 0
	}
	return len(t.Int32Data) == 1 && t.Int32Data[0] == 0
}

func spatialUp(_ *rewrite, n *onnx.NodeProto) ([]onnx.NodeProto, error) {
	if n.AttrInt("spatial", 1) == 0 {
		return nil, fmt.Errorf("per-activation normalization (spatial=0) has no newer equivalent")
	}
	n.RemoveAttribute("spatial")
	return keep(n), nil
}

func clipUp(r *rewrite, n *onnx.NodeProto) ([]onnx.NodeProto, error) {
	elem := r.elemType(n.Inputs[0])
	for i, name := range []string{"min", "max"} {
		attr, ok := n.Attribute(name)
		if !ok {
			continue
		}
		t, err := scalar(r.unique(n, name), elem, float64(attr.F))
		if err != nil {
			return nil, err
		}
		n.RemoveAttribute(name)
		setInput(n, i+1, r.addInitializer(t))
	}
	return keep(n), nil
}

func clipDown(r *rewrite, n *onnx.NodeProto) ([]onnx.NodeProto, error) {
	for i, name := range []string{"min", "max"} {
		in := input(n, i+1)
		if in == "" {
			continue
		}
		v, err := r.constFloat(n, i+1, name)
		if err != nil {
			return nil, err
		}
		n.SetAttribute(onnx.AttrFloat(name, float32(v)))
		r.release(in)
	}
	n.Inputs = n.Inputs[:1]
	return keep(n), nil
}

// negativeAxisDown resolves negative axes, which older versions reject.
func negativeAxisDown(r *rewrite, n *onnx.NodeProto) ([]onnx.NodeProto, error) {
	axis := n.AttrInt("axis", 1)
	if axis >= 0 {
		return keep(n), nil
	}
	rank, ok := r.rank(n.Inputs[0])
	if !ok {
		return nil, fmt.Errorf("negative axis %d needs a known input rank", axis)
	}
	n.SetAttribute(onnx.AttrInt("axis", axis+int64(rank)))
	return keep(n), nil
}

// softmaxUp converts the coerced-to-2D semantics of opset 1-12 to the single-axis semantics
// of opset 13. When the axis is not the last one the input is flattened, normalized, and
// reshaped back.
func softmaxUp(r *rewrite, n *onnx.NodeProto) ([]onnx.NodeProto, error) {
	axis := n.AttrInt("axis", 1)
	if rank, ok := r.rank(n.Inputs[0]); ok {
		if axis == int64(rank-1) || axis == -1 {
			n.SetAttribute(onnx.AttrInt("axis", axis))
			return keep(n), nil
		}
	}

	x, y := n.Inputs[0], n.Outputs[0]
	shape := r.unique(n, "shape")
	flat := r.unique(n, "flat")
	normalized := r.unique(n, "2d")
	n.Inputs = []string{flat}
	n.Outputs = []string{normalized}
	n.SetAttribute(onnx.AttrInt("axis", -1))
	r.conv.c.logger.Debug("expanded coerced softmax", "op", n.OpType, "axis", axis, "output", y)
	return []onnx.NodeProto{
		onnx.MakeNode("Shape", []string{x}, []string{shape}),
		onnx.MakeNode("Flatten", []string{x}, []string{flat}, onnx.AttrInt("axis", axis)),
		*n,
		onnx.MakeNode("Reshape", []string{normalized, shape}, []string{y}),
	}, nil
}

// softmaxDown converts single-axis semantics to the coerced-to-2D semantics. A non-last axis
// is moved last by a transpose pair.
func softmaxDown(r *rewrite, n *onnx.NodeProto) ([]onnx.NodeProto, error) {
	axis := n.AttrInt("axis", -1)
	if axis == -1 {
		n.SetAttribute(onnx.AttrInt("axis", -1))
		return keep(n), nil
	}
	rank, ok := r.rank(n.Inputs[0])
	if !ok {
		return nil, fmt.Errorf("axis %d needs a known input rank", axis)
	}
	if axis < 0 {
		axis += int64(rank)
	}
	if axis == int64(rank-1) {
		n.SetAttribute(onnx.AttrInt("axis", axis))
		return keep(n), nil
	}

	perm := make([]int64, rank)
	for i := range perm {
		perm[i] = int64(i)
	}
	perm[axis], perm[rank-1] = perm[rank-1], perm[axis]

	x, y := n.Inputs[0], n.Outputs[0]
	moved := r.unique(n, "moved")
	normalized := r.unique(n, "normalized")
	if dims, ok := r.dims(x); ok {
		swapped := append([]onnx.DimensionProto(nil), dims...)
		swapped[axis], swapped[rank-1] = swapped[rank-1], swapped[axis]
		typ := onnx.MakeTensorType(r.elemType(x), swapped)
		r.setType(moved, typ)
		r.setType(normalized, typ)
	}
	n.Inputs = []string{moved}
	n.Outputs = []string{normalized}
	n.SetAttribute(onnx.AttrInt("axis", int64(rank-1)))
	return []onnx.NodeProto{
		onnx.MakeNode("Transpose", []string{x}, []string{moved}, onnx.AttrInts("perm", perm...)),
		*n,
		onnx.MakeNode("Transpose", []string{normalized}, []string{y}, onnx.AttrInts("perm", perm...)),
	}, nil
}

// resizeUp pins the opset 10 sampling behaviour, which later versions only offer as
// non-default modes.
func resizeUp(_ *rewrite, n *onnx.NodeProto) ([]onnx.NodeProto, error) {
	scales := input(n, 1)
	n.Inputs = []string{n.Inputs[0], "", scales}
	n.SetAttribute(onnx.AttrString("coordinate_transformation_mode", "asymmetric"))
	if n.AttrString("mode", "nearest") == "nearest" {
		n.SetAttribute(onnx.AttrString("nearest_mode", "floor"))
	}
	return keep(n), nil
}

func resizeDown(r *rewrite, n *onnx.NodeProto) ([]onnx.NodeProto, error) {
	mode := n.AttrString("mode", "nearest")
	switch {
	case mode != "nearest" && mode != "linear":
		return nil, fmt.Errorf("mode %q has no older equivalent", mode)
	case n.AttrString("coordinate_transformation_mode", "half_pixel") != "asymmetric":
		return nil, fmt.Errorf("only asymmetric coordinate transformation has an older equivalent")
	case mode == "nearest" && n.AttrString("nearest_mode", "round_prefer_floor") != "floor":
		return nil, fmt.Errorf("only floor rounding has an older equivalent")
	case input(n, 3) != "":
		return nil, fmt.Errorf("output sizes have no older equivalent")
	case input(n, 2) == "":
		return nil, fmt.Errorf("scales input is required")
	}
	for _, name := range []string{"coordinate_transformation_mode", "nearest_mode", "cubic_coeff_a", "exclude_outside", "extrapolation_value"} {
		n.RemoveAttribute(name)
	}
	r.release(input(n, 1))
	n.Inputs = []string{n.Inputs[0], n.Inputs[2]}
	return keep(n), nil
}

func resizeAntialiasDown(_ *rewrite, n *onnx.NodeProto) ([]onnx.NodeProto, error) {
	if n.AttrInt("antialias", 0) != 0 {
		return nil, fmt.Errorf("antialiasing has no older equivalent")
	}
	if _, ok := n.Attribute("axes"); ok {
		return nil, fmt.Errorf("axes has no older equivalent")
	}
	if n.AttrString("keep_aspect_ratio_policy", "stretch") != "stretch" {
		return nil, fmt.Errorf("keep_aspect_ratio_policy has no older equivalent")
	}
	for _, name := range []string{"antialias", "keep_aspect_ratio_policy"} {
		n.RemoveAttribute(name)
	}
	return keep(n), nil
}

// geluDown expands Gelu into its defining formula, x * 0.5 * (1 + erf(x / sqrt(2))).
func geluDown(r *rewrite, n *onnx.NodeProto) ([]onnx.NodeProto, error) {
	if approx := n.AttrString("approximate", "none"); approx != "none" {
		return nil, fmt.Errorf("approximate=%q has no older equivalent", approx)
	}
	x, y := n.Inputs[0], n.Outputs[0]
	elem := r.elemType(x)

	consts := make([]string, 3)
	for i, c := range []struct {
		suffix string
		value  float64
	}{
		{"sqrt2", math.Sqrt2},
		{"one", 1},
		{"half", 0.5},
	} {
		t, err := scalar(r.unique(n, c.suffix), elem, c.value)
		if err != nil {
			return nil, err
		}
		consts[i] = r.addInitializer(t)
	}
	sqrt2, one, half := consts[0], consts[1], consts[2]

	scaled := r.unique(n, "scaled")
	erf := r.unique(n, "erf")
	shifted := r.unique(n, "shifted")
	product := r.unique(n, "product")
	for _, name := range []string{scaled, erf, shifted, product} {
		r.setType(name, r.typeOf(x))
	}

	last := onnx.MakeNode("Mul", []string{product, half}, []string{y})
	last.Name = n.Name
	return []onnx.NodeProto{
		onnx.MakeNode("Div", []string{x, sqrt2}, []string{scaled}),
		onnx.MakeNode("Erf", []string{scaled}, []string{erf}),
		onnx.MakeNode("Add", []string{erf, one}, []string{shifted}),
		onnx.MakeNode("Mul", []string{x, shifted}, []string{product}),
		last,
	}, nil
}
