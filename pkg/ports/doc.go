/*
Package ports defines the driven ports (interfaces) of the kiln runtime.

These interfaces decouple the loading core from the runtime that finally
executes rewritten code units, so the core can run against the bundled
in-process host or any embedder-provided one.

# Key Interfaces

  - Host: Defines binary units as live types, resolves native types, serves
    resources and invokes the entry type.
  - TypeOracle: Describes a type's super type and kind, used for common
    ancestor queries on names outside the code unit registry.
  - Type: A live, materialized type handle.
*/
package ports
