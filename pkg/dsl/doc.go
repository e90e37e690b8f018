/*
Package dsl provides a fluent Go builder for kiln code units.

It lets tests, examples and embedders describe a base program in code instead
of writing .unit files. Names may be given in binary (dotted) or internal
(slashed) form.

Example usage:

	b := dsl.New()

	b.Add("app.Main").
		Field("svc", "app.Service").
		Method("main", unit.FlagStatic|unit.FlagPublic).
		Params("kiln.lang.String").
		Block(0).Store(1, "app.Service").Goto(1).
		Block(1)

	b.Add("app.Service").Extends("app.Base")
	b.Add("app.Base")

	units, err := b.Build()
	// ... pass units to kiln.WithUnits(units...)
*/
package dsl
