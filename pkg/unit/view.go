package unit

// View is a read-oriented collection of units. Elements may be mutated in
// place, the set of units may not.
type View interface {
	// Len returns the number of units in the view.
	Len() int
	// Get returns the unit registered under name (either separator).
	Get(name string) (*Unit, bool)
	// Each calls fn for every unit in name order until fn returns false.
	Each(fn func(u *Unit) bool)
}
