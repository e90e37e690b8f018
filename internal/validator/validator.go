// Package validator checks a base program before anything becomes live.
package validator

import (
	"fmt"
	"strings"

	"github.com/aretw0/kiln/internal/ancestry"
	"github.com/aretw0/kiln/internal/pipeline"
	"github.com/aretw0/kiln/pkg/ports"
	"github.com/aretw0/kiln/pkg/unit"
)

// Report is the outcome of ValidateProgram.
type Report struct {
	// Reachable lists the registry units the entry point depends on, in
	// crawl order.
	Reachable []string
	// Unreachable lists the registry units nothing reachable references.
	Unreachable []string
	Errors      []string
}

// Err summarizes Errors, nil when there are none.
func (r Report) Err() error {
	if len(r.Errors) == 0 {
		return nil
	}
	return fmt.Errorf("found %d errors:\n- %s", len(r.Errors), strings.Join(r.Errors, "\n- "))
}

// ValidateProgram crawls the units reachable from entry and reports missing
// types, broken hierarchies and methods whose frames cannot be computed.
// Units are never modified.
func ValidateProgram(units unit.View, oracle ports.TypeOracle, entry string) Report {
	resolver := ancestry.New(units, oracle)
	var rep Report

	entry = unit.InternalName(entry)
	if _, ok := units.Get(entry); !ok {
		rep.Errors = append(rep.Errors, fmt.Sprintf("entry point '%s' is not part of the program", unit.BinaryName(entry)))
		return rep
	}

	visited := map[string]bool{entry: true}
	queue := []string{entry}
	for len(queue) > 0 {
		current := queue[0]
		queue = queue[1:]
		rep.Reachable = append(rep.Reachable, current)

		u, _ := units.Get(current)
		if _, err := resolver.CommonAncestor(current, unit.Root); err != nil {
			rep.Errors = append(rep.Errors, fmt.Sprintf("'%s': %v", unit.BinaryName(current), err))
		}
		if err := pipeline.ComputeFrames(u.Clone(), resolver); err != nil {
			rep.Errors = append(rep.Errors, err.Error())
		}

		for _, ref := range u.References() {
			if visited[ref] {
				continue
			}
			visited[ref] = true
			if _, ok := units.Get(ref); ok {
				queue = append(queue, ref)
				continue
			}
			if oracle == nil {
				rep.Errors = append(rep.Errors, fmt.Sprintf("'%s' references missing type '%s'", unit.BinaryName(current), unit.BinaryName(ref)))
				continue
			}
			if _, ok := oracle.Describe(ref); !ok {
				rep.Errors = append(rep.Errors, fmt.Sprintf("'%s' references missing type '%s'", unit.BinaryName(current), unit.BinaryName(ref)))
			}
		}
	}

	units.Each(func(u *unit.Unit) bool {
		if !visited[unit.InternalName(u.Name)] {
			rep.Unreachable = append(rep.Unreachable, unit.InternalName(u.Name))
		}
		return true
	})
	return rep
}
