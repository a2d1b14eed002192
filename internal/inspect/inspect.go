// Package inspect describes a model's input/output contract and renders its graph in a
// readable form.
package inspect

import (
	"strconv"

	"github.com/born-ml/onnxkit/internal/onnx"
	"github.com/born-ml/onnxkit/internal/onnx/opset"
)

// Summary is the printable description of a model.
type Summary struct {
	GraphName    string   `json:"graph_name"`
	ModelVersion int64    `json:"model_version"`
	IRVersion    int64    `json:"ir_version"`
	Producer     string   `json:"producer,omitempty"`
	Opsets       []Opset  `json:"opsets"`
	MinRelease   string   `json:"min_release,omitempty"` // oldest ONNX release able to load the model
	Inputs       []Tensor `json:"inputs"`
	Outputs      []Tensor `json:"outputs"`
	Nodes        int      `json:"nodes"`
	Initializers int      `json:"initializers"`
	Graph        string   `json:"graph"`
}

// Opset is one opset import.
type Opset struct {
	Domain  string `json:"domain"`
	Version int64  `json:"version"`
}

// Tensor is a graph input or output as a runtime would report it.
type Tensor struct {
	Name  string   `json:"name"`
	Shape []string `json:"shape"` // "1", "N" or "?" per dimension; nil when the rank is unknown
	Type  string   `json:"type"`  // e.g. "tensor(float)"
}

// Summarize describes m. Inputs backed by an initializer are not part of the contract and are
// left out.
func Summarize(m *onnx.ModelProto) *Summary {
	s := &Summary{
		ModelVersion: m.ModelVersion,
		IRVersion:    m.IRVersion,
		Producer:     producer(m),
	}
	for _, imp := range m.OpsetImport {
		domain := imp.Domain
		if domain == onnx.DefaultDomain {
			domain = "ai.onnx"
		}
		s.Opsets = append(s.Opsets, Opset{Domain: domain, Version: imp.Version})
	}
	if r, ok := minRelease(m); ok {
		s.MinRelease = r.Version.String()
	}

	g := m.Graph
	if g == nil {
		return s
	}
	s.GraphName = g.Name
	s.Nodes = len(g.Nodes)
	s.Initializers = len(g.Initializers)
	for i := range g.Inputs {
		if _, ok := g.Initializer(g.Inputs[i].Name); ok {
			continue
		}
		s.Inputs = append(s.Inputs, describe(&g.Inputs[i]))
	}
	for i := range g.Outputs {
		s.Outputs = append(s.Outputs, describe(&g.Outputs[i]))
	}
	s.Graph = PrintableGraph(g)
	return s
}

func producer(m *onnx.ModelProto) string {
	switch {
	case m.ProducerName == "":
		return ""
	case m.ProducerVersion == "":
		return m.ProducerName
	default:
		return m.ProducerName + " " + m.ProducerVersion
	}
}

func describe(vi *onnx.ValueInfoProto) Tensor {
	t := Tensor{Name: vi.Name, Type: "?"}
	if vi.Type == nil || vi.Type.TensorType == nil {
		return t
	}
	tt := vi.Type.TensorType
	if tt.ElemType != onnx.TensorProtoUndefined {
		t.Type = tt.ElemType.TypeString()
	}
	if tt.Shape == nil {
		return t
	}
	t.Shape = make([]string, len(tt.Shape.Dims))
	for i, d := range tt.Shape.Dims {
		t.Shape[i] = dimString(d)
	}
	return t
}

func dimString(d onnx.DimensionProto) string {
	switch {
	case d.HasValue:
		return strconv.FormatInt(d.DimValue, 10)
	case d.DimParam != "":
		return d.DimParam
	default:
		return "?"
	}
}

// minRelease returns the oldest release whose IR and opset versions cover the model's.
func minRelease(m *onnx.ModelProto) (opset.Release, bool) {
	def, hasDef := m.OpsetVersion(onnx.DefaultDomain)
	ml, hasML := m.OpsetVersion(opset.MLDomain)
	for _, r := range opset.Releases() {
		if r.IR < m.IRVersion {
			continue
		}
		if hasDef && r.Opset < def {
			continue
		}
		if hasML && r.MLOpset < ml {
			continue
		}
		return r, true
	}
	return opset.Release{}, false
}
