package opset

import (
	_ "embed"
	"fmt"
	"io"
	"os"
	"slices"
	"sort"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/born-ml/onnxkit/internal/onnx"
)

//go:embed ops.yaml
var builtinSchemas []byte

// Registry maps (domain, operator) to its schema history.
type Registry struct {
	mu      sync.RWMutex
	schemas map[key][]*Schema // ascending SinceVersion
}

type key struct {
	domain string
	op     string
}

var (
	defaultOnce     sync.Once
	defaultRegistry *Registry
)

// Default returns the registry of built-in schemas. It is shared; callers that register
// custom operators should start from NewRegistry instead.
func Default() *Registry {
	defaultOnce.Do(func() {
		r, err := Parse(builtinSchemas)
		if err != nil {
			panic(fmt.Sprintf("opset: built-in schemas: %v", err))
		}
		defaultRegistry = r
	})
	return defaultRegistry
}

// NewRegistry returns a registry holding a private copy of the built-in schemas.
func NewRegistry() *Registry {
	r, err := Parse(builtinSchemas)
	if err != nil {
		panic(fmt.Sprintf("opset: built-in schemas: %v", err))
	}
	return r
}

// LoadFile adds the schemas in a YAML file (same layout as the built-in table) to r.
//
//nolint:gosec // G304: schema path comes from configuration.
func (r *Registry) LoadFile(path string) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("failed to open schema file: %w", err)
	}
	defer f.Close()
	return r.Load(f)
}

// Load adds the schemas read from rd to r.
func (r *Registry) Load(rd io.Reader) error {
	data, err := io.ReadAll(rd)
	if err != nil {
		return fmt.Errorf("failed to read schemas: %w", err)
	}
	parsed, err := Parse(data)
	if err != nil {
		return err
	}
	for _, history := range parsed.schemas {
		for _, s := range history {
			r.Register(s)
		}
	}
	return nil
}

// Parse builds a registry from the YAML schema table.
func Parse(data []byte) (*Registry, error) {
	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("failed to parse schemas: %w", err)
	}
	r := &Registry{schemas: make(map[key][]*Schema)}
	for _, d := range doc.Domains {
		domain := onnx.CanonicalDomain(d.Domain)
		for op, versions := range d.Ops {
			history, err := expand(domain, op, versions)
			if err != nil {
				return nil, err
			}
			for _, s := range history {
				r.Register(s)
			}
		}
	}
	return r, nil
}

// Register adds or replaces the schema for (s.Domain, s.Name, s.SinceVersion).
func (r *Registry) Register(s *Schema) {
	r.mu.Lock()
	defer r.mu.Unlock()

	k := key{onnx.CanonicalDomain(s.Domain), s.Name}
	history := r.schemas[k]
	i, found := slices.BinarySearchFunc(history, s.SinceVersion, func(e *Schema, v int64) int {
		return int(e.SinceVersion - v)
	})
	if found {
		history[i] = s
	} else {
		history = slices.Insert(history, i, s)
	}
	r.schemas[k] = history
}

// Resolve returns the schema of op in effect at opset version: the entry with the greatest
// SinceVersion not above version.
func (r *Registry) Resolve(domain, op string, version int64) (*Schema, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	history := r.schemas[key{onnx.CanonicalDomain(domain), op}]
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].SinceVersion <= version {
			return history[i], true
		}
	}
	return nil, false
}

// SinceVersions returns the versions at which op changed, ascending.
func (r *Registry) SinceVersions(domain, op string) []int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()

	history := r.schemas[key{onnx.CanonicalDomain(domain), op}]
	out := make([]int64, len(history))
	for i, s := range history {
		out[i] = s.SinceVersion
	}
	return out
}

// KnownDomain reports whether any operator of domain is registered.
func (r *Registry) KnownDomain(domain string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	domain = onnx.CanonicalDomain(domain)
	for k := range r.schemas {
		if k.domain == domain {
			return true
		}
	}
	return false
}

// Ops returns the registered operator names of domain, sorted.
func (r *Registry) Ops(domain string) []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	domain = onnx.CanonicalDomain(domain)
	var ops []string
	for k := range r.schemas {
		if k.domain == domain {
			ops = append(ops, k.op)
		}
	}
	sort.Strings(ops)
	return ops
}

// document is the on-disk layout of ops.yaml.
type document struct {
	Domains []struct {
		Domain string                  `yaml:"domain"`
		Ops    map[string][]versionDoc `yaml:"ops"`
	} `yaml:"domains"`
}

type versionDoc struct {
	Since      int64              `yaml:"since"`
	Inputs     []int              `yaml:"inputs"`
	Outputs    []int              `yaml:"outputs"`
	Attributes map[string]attrDoc `yaml:"attributes"`
	Remove     []string           `yaml:"remove"`
	Deprecated bool               `yaml:"deprecated"`
}

type attrDoc struct {
	Type     string `yaml:"type"`
	Required bool   `yaml:"required"`
	Default  any    `yaml:"default"`
}

// expand turns the delta-encoded version list of one operator into full schemas.
func expand(domain, op string, versions []versionDoc) ([]*Schema, error) {
	out := make([]*Schema, 0, len(versions))
	var prev *Schema
	for _, v := range versions {
		if v.Since < 1 {
			return nil, fmt.Errorf("schema %s: since version must be positive, got %d", op, v.Since)
		}
		if prev != nil && v.Since <= prev.SinceVersion {
			return nil, fmt.Errorf("schema %s: versions out of order at %d", op, v.Since)
		}

		s := &Schema{Domain: domain, Name: op, SinceVersion: v.Since, Deprecated: v.Deprecated, Attributes: make(map[string]Attribute)}
		if prev != nil {
			s.MinInputs, s.MaxInputs = prev.MinInputs, prev.MaxInputs
			s.MinOutputs, s.MaxOutputs = prev.MinOutputs, prev.MaxOutputs
			for name, a := range prev.Attributes {
				s.Attributes[name] = a
			}
		}
		var err error
		if v.Inputs != nil {
			if s.MinInputs, s.MaxInputs, err = arity(v.Inputs); err != nil {
				return nil, fmt.Errorf("schema %s-%d inputs: %w", op, v.Since, err)
			}
		}
		if v.Outputs != nil {
			if s.MinOutputs, s.MaxOutputs, err = arity(v.Outputs); err != nil {
				return nil, fmt.Errorf("schema %s-%d outputs: %w", op, v.Since, err)
			}
		}
		for _, name := range v.Remove {
			delete(s.Attributes, name)
		}
		for name, a := range v.Attributes {
			typ, ok := onnx.ParseAttributeType(a.Type)
			if !ok {
				return nil, fmt.Errorf("schema %s-%d: attribute %s has unknown type %q", op, v.Since, name, a.Type)
			}
			s.Attributes[name] = Attribute{Name: name, Type: typ, Required: a.Required, Default: normalizeDefault(a.Default)}
		}
		out = append(out, s)
		prev = s
	}
	return out, nil
}

func arity(bounds []int) (int, int, error) {
	if len(bounds) != 2 {
		return 0, 0, fmt.Errorf("want [min, max], got %v", bounds)
	}
	lo, hi := bounds[0], bounds[1]
	if lo < 0 || (hi != Unbounded && hi < lo) {
		return 0, 0, fmt.Errorf("invalid bounds [%d, %d]", lo, hi)
	}
	return lo, hi, nil
}

// normalizeDefault folds the YAML scalar kinds to int64, float64 or string.
func normalizeDefault(v any) any {
	switch x := v.(type) {
	case int:
		return int64(x)
	case uint64:
		return int64(x) //nolint:gosec // G115: schema defaults are small.
	default:
		return v
	}
}
