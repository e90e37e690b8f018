/*
Package kiln is a dynamic module-loading runtime.

kiln reads the compiled code units of a base program, discovers extension
packages at startup and lets every extension rewrite code units before they
become live types in a host runtime.

# Concept

The base program is a set of code units found on a search path (directories
and archives of .unit files). Units stay dormant in a registry until
something asks for them. The first request runs the transformation pipeline:
every extension's OnClassloadTransform hook, frame reconstruction and
serialization, then definition in the host. The result is remembered, so a
unit is transformed exactly once no matter how many domains ask for it.

Each extension package lives in its own child loading domain. Children see the
base program through the root domain, and the root sees types defined by any
child.

# Key Features

  - Exactly-once transformation, safe under concurrent requests.
  - Version conflict resolution: one module per name, the newest version wins.
  - Extensions either linked into the binary (extension.Register) or shipped as
    Go sources interpreted at load time.
  - Names restored after the read transform, so modules cannot rename units.

# Usage

	package main

	import (
		"context"
		"log"
		"os"

		"github.com/aretw0/kiln"
	)

	func main() {
		cfg, err := kiln.LoadConfig("")
		if err != nil {
			log.Fatal(err)
		}
		if err := kiln.Launch(context.Background(), cfg, os.Args[1:]); err != nil {
			log.Fatal(err)
		}
	}
*/
package kiln
