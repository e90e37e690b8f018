package graph

import (
	"fmt"
	"sort"
	"strings"

	"github.com/aretw0/kiln/pkg/unit"
)

// Overlay carries runtime state to highlight on the diagram.
type Overlay struct {
	Defined []string
	Failed  []string
	Entry   string
}

// GenerateMermaid produces a Mermaid flowchart of the type hierarchy of
// units. Shapes:
//   - Entry: ((Circle))
//   - Interface: [/Parallelogram/]
//   - Abstract: [[Subroutine]]
//   - Default: [Rectangle]
//
// Super types are solid edges, implemented interfaces dotted. Types outside
// units appear once as plain nodes.
func GenerateMermaid(units []*unit.Unit, overlay *Overlay) string {
	var sb strings.Builder
	sb.WriteString("graph BT\n")

	known := make(map[string]bool, len(units))
	for _, u := range units {
		known[unit.InternalName(u.Name)] = true
	}
	external := make(map[string]bool)
	entry := ""
	if overlay != nil {
		entry = unit.InternalName(overlay.Entry)
	}

	for _, u := range units {
		name := unit.InternalName(u.Name)
		id := sanitizeMermaidID(name)

		opener, closer := "[", "]"
		switch {
		case name == entry:
			opener, closer = "((", "))"
		case u.IsInterface():
			opener, closer = "[/", "/]"
		case u.Flags.Has(unit.FlagAbstract):
			opener, closer = "[[", "]]"
		}
		fmt.Fprintf(&sb, "    %s%s\"%s\"%s\n", id, opener, unit.BinaryName(name), closer)

		if super := u.SuperName(); super != "" {
			fmt.Fprintf(&sb, "    %s --> %s\n", id, sanitizeMermaidID(super))
			if !known[super] {
				external[super] = true
			}
		}
		for _, i := range u.Interfaces {
			i = unit.InternalName(i)
			fmt.Fprintf(&sb, "    %s -.-> %s\n", id, sanitizeMermaidID(i))
			if !known[i] {
				external[i] = true
			}
		}
	}

	ext := make([]string, 0, len(external))
	for name := range external {
		ext = append(ext, name)
	}
	sort.Strings(ext)
	for _, name := range ext {
		fmt.Fprintf(&sb, "    %s[\"%s\"]:::external\n", sanitizeMermaidID(name), unit.BinaryName(name))
	}
	if len(ext) > 0 {
		sb.WriteString("    classDef external fill:#eeeeee,stroke:#9e9e9e,color:#000;\n")
	}

	if overlay != nil {
		sb.WriteString("\n    %% Overlay Styles\n")
		sb.WriteString("    classDef defined fill:#e8f5e9,stroke:#2e7d32,stroke-width:2px,color:#000;\n")
		sb.WriteString("    classDef failed fill:#ffebee,stroke:#c62828,stroke-width:3px,color:#000;\n")
		writeClass(&sb, overlay.Defined, "defined")
		writeClass(&sb, overlay.Failed, "failed")
	}

	return sb.String()
}

func writeClass(sb *strings.Builder, names []string, class string) {
	seen := make(map[string]bool)
	for _, n := range names {
		id := sanitizeMermaidID(unit.InternalName(n))
		if id == "" || seen[id] {
			continue
		}
		seen[id] = true
		fmt.Fprintf(sb, "    class %s %s;\n", id, class)
	}
}

func sanitizeMermaidID(id string) string {
	s := strings.ReplaceAll(id, ".", "_")
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, "/", "_")
	s = strings.ReplaceAll(s, "$", "_")
	s = strings.ReplaceAll(s, "\\", "_")
	return s
}
