/*
Package extension defines the contract between kiln and extension modules.

An extension package is an archive holding a particle.properties descriptor
and the code behind its entrypoint symbol. kiln loads every package into its
own loading domain, builds one Module per package and drives it through three
callbacks:

  - OnReadTransform: once, with every code unit of the base program, before
    anything becomes live.
  - LateStartup: once, after every module finished its read transform.
  - OnClassloadTransform: once per code unit, right before it becomes live.

Entrypoints are resolved first against symbols registered with Register
(modules linked into the host binary) and then by interpreting the Go sources
shipped under src/ in the package archive.
*/
package extension
