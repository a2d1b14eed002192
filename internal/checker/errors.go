package checker

import (
	"errors"
	"fmt"
	"strings"
)

// Sentinel errors for programmatic error checking via errors.Is(). Every *ValidationError
// wraps ErrInvalidModel and exactly one kind sentinel.
var (
	// ErrInvalidModel is wrapped by every validation failure.
	ErrInvalidModel = errors.New("invalid model")

	// ErrUnresolvedReference: a consumed name has no earlier producer.
	ErrUnresolvedReference = errors.New("unresolved reference")

	// ErrDuplicateProducer: a name is produced twice.
	ErrDuplicateProducer = errors.New("duplicate producer")

	// ErrDuplicateOpsetDomain: a domain is imported more than once.
	ErrDuplicateOpsetDomain = errors.New("duplicate opset domain")

	// ErrUnknownOperator: a node's (domain, op_type) does not resolve at the imported version.
	ErrUnknownOperator = errors.New("unknown operator")

	// ErrMalformedAttribute: a required attribute is missing, or an attribute is unknown or
	// has the wrong type.
	ErrMalformedAttribute = errors.New("malformed attribute")

	// ErrMissingGraph: the model has no graph.
	ErrMissingGraph = errors.New("missing graph")

	// ErrInvalidValueInfo: a graph input, output or value_info entry is unnamed, duplicated,
	// or has an invalid type.
	ErrInvalidValueInfo = errors.New("invalid value info")

	// ErrInvalidArity: a node has too few or too many inputs or outputs.
	ErrInvalidArity = errors.New("invalid arity")

	// ErrShapeMismatch: inferred and declared types contradict each other.
	ErrShapeMismatch = errors.New("shape mismatch")
)

// ValidationError locates the first invariant violation found in a model.
// Wraps ErrInvalidModel and Kind for errors.Is() compatibility.
type ValidationError struct {
	Kind    error  // One of the kind sentinels above
	Graph   string // Graph path, e.g. "main" or "main/node[2]:If/then_branch"
	Node    int    // Node index within Graph, -1 when not about a node
	OpType  string
	Domain  string
	Version int64  // Resolved opset version, when relevant
	Tensor  string // Offending tensor or attribute name, when relevant
	Msg     string // Deterministic error message
}

func (e *ValidationError) Error() string {
	if e == nil {
		return ""
	}
	var b strings.Builder
	b.WriteString(ErrInvalidModel.Error())
	if e.Kind != nil {
		b.WriteString(": ")
		b.WriteString(e.Kind.Error())
	}
	if e.Graph != "" {
		fmt.Fprintf(&b, ": graph %s", e.Graph)
	}
	if e.Node >= 0 {
		fmt.Fprintf(&b, ": node %d (%s)", e.Node, opName(e.Domain, e.OpType, e.Version))
	}
	if e.Tensor != "" {
		fmt.Fprintf(&b, ": %q", e.Tensor)
	}
	if e.Msg != "" {
		b.WriteString(": ")
		b.WriteString(e.Msg)
	}
	return b.String()
}

func (e *ValidationError) Unwrap() []error {
	if e.Kind == nil {
		return []error{ErrInvalidModel}
	}
	return []error{ErrInvalidModel, e.Kind}
}

func opName(domain, opType string, version int64) string {
	name := opType
	if domain != "" {
		name = domain + "::" + opType
	}
	if version > 0 {
		name = fmt.Sprintf("%s-%d", name, version)
	}
	return name
}

// Warning is a non-fatal finding, such as inconclusive shape inference.
type Warning struct {
	Graph  string
	OpType string
	Tensor string
	Msg    string
}

func (w Warning) String() string {
	var parts []string
	if w.Graph != "" {
		parts = append(parts, "graph "+w.Graph)
	}
	if w.OpType != "" {
		parts = append(parts, w.OpType)
	}
	if w.Tensor != "" {
		parts = append(parts, fmt.Sprintf("%q", w.Tensor))
	}
	parts = append(parts, w.Msg)
	return strings.Join(parts, ": ")
}
