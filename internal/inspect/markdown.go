package inspect

import (
	"fmt"
	"strings"
)

// Markdown renders s as a Markdown document suitable for a terminal renderer.
func (s *Summary) Markdown() string {
	var b strings.Builder
	title := s.GraphName
	if title == "" {
		title = "(unnamed graph)"
	}
	fmt.Fprintf(&b, "# Model `%s`\n\n", title)

	b.WriteString("| Property | Value |\n|---|---|\n")
	fmt.Fprintf(&b, "| Model version | %d |\n", s.ModelVersion)
	fmt.Fprintf(&b, "| IR version | %d |\n", s.IRVersion)
	if s.Producer != "" {
		fmt.Fprintf(&b, "| Producer | %s |\n", s.Producer)
	}
	opsets := make([]string, len(s.Opsets))
	for i, o := range s.Opsets {
		opsets[i] = fmt.Sprintf("%s %d", o.Domain, o.Version)
	}
	fmt.Fprintf(&b, "| Opsets | %s |\n", strings.Join(opsets, ", "))
	if s.MinRelease != "" {
		fmt.Fprintf(&b, "| Oldest compatible release | %s |\n", s.MinRelease)
	}
	fmt.Fprintf(&b, "| Nodes | %d |\n", s.Nodes)
	fmt.Fprintf(&b, "| Initializers | %d |\n", s.Initializers)

	writeTensorTable(&b, "Inputs", s.Inputs)
	writeTensorTable(&b, "Outputs", s.Outputs)

	if s.Graph != "" {
		b.WriteString("\n## Graph\n\n```text\n")
		b.WriteString(s.Graph)
		b.WriteString("\n```\n")
	}
	return b.String()
}

func writeTensorTable(b *strings.Builder, title string, tensors []Tensor) {
	fmt.Fprintf(b, "\n## %s\n\n", title)
	if len(tensors) == 0 {
		b.WriteString("_none_\n")
		return
	}
	b.WriteString("| Name | Shape | Type |\n|---|---|---|\n")
	for _, t := range tensors {
		fmt.Fprintf(b, "| `%s` | %s | %s |\n", t.Name, t.ShapeString(), t.Type)
	}
}

// ShapeString formats the shape the way runtimes print it, e.g. "[1, N, ?]", or "?" when the
// rank is unknown.
func (t Tensor) ShapeString() string {
	if t.Shape == nil {
		return "?"
	}
	return "[" + strings.Join(t.Shape, ", ") + "]"
}

// Text renders s in the plain layout of the classic print-model script.
func (s *Summary) Text() string {
	var b strings.Builder
	fmt.Fprintf(&b, "Model Version:\t%d\n", s.ModelVersion)
	fmt.Fprintf(&b, "IR Version:\t%d\n", s.IRVersion)
	b.WriteString("Graph:\n")
	b.WriteString(s.Graph)
	b.WriteString("\n")
	writeTensorList(&b, "Inputs :", s.Inputs)
	b.WriteString("\n")
	writeTensorList(&b, "Outputs :", s.Outputs)
	return b.String()
}

func writeTensorList(b *strings.Builder, title string, tensors []Tensor) {
	b.WriteString(title + "\n")
	for _, t := range tensors {
		fmt.Fprintf(b, "  -- %s\n", t.Name)
		fmt.Fprintf(b, "     shape = %s\n", t.ShapeString())
		fmt.Fprintf(b, "     type  = %s\n", t.Type)
	}
}
