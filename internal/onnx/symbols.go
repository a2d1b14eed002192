package onnx

// ProducerKind identifies what produces a tensor name.
type ProducerKind int

const (
	ProducedByInput ProducerKind = iota
	ProducedByInitializer
	ProducedByNode
)

// Producer locates the single static producer of a tensor name.
type Producer struct {
	Kind   ProducerKind
	Node   int // node index for ProducedByNode
	Output int // output slot for ProducedByNode
}

// SymbolTable resolves tensor names to their producer and consumers once per pass, so
// rewrites do not rescan the node list for every lookup.
type SymbolTable struct {
	producers map[string]Producer
	consumers map[string][]int
}

// Index builds the symbol table of g. Initializers take precedence over a graph input of the
// same name (the input then only supplies an overridable default); among nodes the first
// producer wins. Validation of uniqueness is the checker's job.
func Index(g *GraphProto) *SymbolTable {
	s := &SymbolTable{
		producers: make(map[string]Producer),
		consumers: make(map[string][]int),
	}
	for i := range g.Inputs {
		s.producers[g.Inputs[i].Name] = Producer{Kind: ProducedByInput}
	}
	for i := range g.Initializers {
		s.producers[g.Initializers[i].Name] = Producer{Kind: ProducedByInitializer}
	}
	for i := range g.Nodes {
		for _, in := range g.Nodes[i].Inputs {
			if in != "" {
				s.consumers[in] = append(s.consumers[in], i)
			}
		}
		for j, out := range g.Nodes[i].Outputs {
			if out == "" {
				continue
			}
			if _, ok := s.producers[out]; !ok {
				s.producers[out] = Producer{Kind: ProducedByNode, Node: i, Output: j}
			}
		}
	}
	return s
}

// Producer returns the producer of name.
func (s *SymbolTable) Producer(name string) (Producer, bool) {
	p, ok := s.producers[name]
	return p, ok
}

// Consumers returns the indices of nodes reading name, in graph order. A node reading the
// name twice appears twice.
func (s *SymbolTable) Consumers(name string) []int {
	return s.consumers[name]
}
