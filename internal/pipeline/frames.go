package pipeline

import (
	"errors"
	"fmt"

	"github.com/aretw0/kiln/pkg/unit"
)

// ErrUnknownBlock is returned when a block names a successor the method does
// not declare.
var ErrUnknownBlock = errors.New("unknown successor block")

// Joiner merges two reference types into their nearest common super type.
type Joiner interface {
	CommonAncestor(a, b string) (string, error)
}

// ComputeFrames recomputes the frames of every method of u in place.
func ComputeFrames(u *unit.Unit, j Joiner) error {
	owner := unit.InternalName(u.Name)
	for i := range u.Methods {
		m := &u.Methods[i]
		frames, err := methodFrames(owner, m, j)
		if err != nil {
			return fmt.Errorf("frames of %s.%s: %w", unit.BinaryName(owner), m.Name, err)
		}
		m.Frames = frames
	}
	return nil
}

// entryLocals is the slot layout on method entry: the receiver for instance
// methods, then one slot per parameter.
func entryLocals(owner string, m *unit.Method) []string {
	locals := make([]string, 0, len(m.Params)+1)
	if !m.Flags.Has(unit.FlagStatic) {
		locals = append(locals, owner)
	}
	for _, p := range m.Params {
		locals = append(locals, normalize(p))
	}
	return locals
}

func normalize(t string) string {
	if t == unit.Top || unit.IsPrimitive(t) {
		return t
	}
	return unit.InternalName(t)
}

func methodFrames(owner string, m *unit.Method, j Joiner) ([]unit.Frame, error) {
	if len(m.Blocks) == 0 {
		return nil, nil
	}

	index := make(map[int]int, len(m.Blocks))
	for i, b := range m.Blocks {
		index[b.ID] = i
	}
	targets := make(map[int]bool)
	for _, b := range m.Blocks {
		for _, s := range b.Succ {
			if _, ok := index[s]; !ok {
				return nil, fmt.Errorf("%w: block %d jumps to %d", ErrUnknownBlock, b.ID, s)
			}
			targets[s] = true
		}
	}

	in := make(map[int][]string, len(m.Blocks))
	entry := m.Blocks[0].ID
	in[entry] = entryLocals(owner, m)

	work := []int{entry}
	queued := map[int]bool{entry: true}
	for len(work) > 0 {
		id := work[0]
		work = work[1:]
		queued[id] = false

		b := m.Blocks[index[id]]
		out := apply(in[id], b.Stores)
		for _, s := range b.Succ {
			prev, seen := in[s]
			next := out
			if seen {
				var err error
				if next, err = join(prev, out, j); err != nil {
					return nil, err
				}
			}
			if seen && equal(prev, next) {
				continue
			}
			in[s] = next
			if !queued[s] {
				queued[s] = true
				work = append(work, s)
			}
		}
	}

	var frames []unit.Frame
	for _, b := range m.Blocks {
		locals, reachable := in[b.ID]
		if !reachable || !targets[b.ID] {
			continue
		}
		frames = append(frames, unit.Frame{Block: b.ID, Locals: trim(locals)})
	}
	return frames, nil
}

func apply(locals []string, stores map[int]string) []string {
	size := len(locals)
	for slot := range stores {
		if slot+1 > size {
			size = slot + 1
		}
	}
	out := make([]string, size)
	copy(out, locals)
	for slot, t := range stores {
		if slot >= 0 {
			out[slot] = normalize(t)
		}
	}
	return out
}

func join(a, b []string, j Joiner) ([]string, error) {
	n := len(a)
	if len(b) > n {
		n = len(b)
	}
	out := make([]string, n)
	for i := range out {
		if i >= len(a) || i >= len(b) {
			out[i] = unit.Top
			continue
		}
		t, err := joinSlot(a[i], b[i], j)
		if err != nil {
			return nil, err
		}
		out[i] = t
	}
	return out, nil
}

func joinSlot(a, b string, j Joiner) (string, error) {
	switch {
	case a == b:
		return a, nil
	case a == unit.Top, b == unit.Top:
		return unit.Top, nil
	case unit.IsPrimitive(a), unit.IsPrimitive(b):
		return unit.Top, nil
	}
	return j.CommonAncestor(a, b)
}

func equal(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func trim(locals []string) []string {
	n := len(locals)
	for n > 0 && locals[n-1] == unit.Top {
		n--
	}
	if n == 0 {
		return nil
	}
	return append([]string(nil), locals[:n]...)
}
