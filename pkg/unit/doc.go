/*
Package unit contains the structural model of a compiled code unit.

A Unit is the mutable, in-memory form of one named type of the base program.
Extension modules receive Units and rewrite them in place; the runtime turns
them back into binary form and hands them to the host, which makes them live.

# Key Entities

  - Unit: One named type (super type, interfaces, fields, methods, attributes).
  - Method: A method signature plus a small control flow graph of Blocks.
  - Frame: Verification metadata for one Block, recomputed on serialization.
  - View: A read-oriented collection of Units handed to extension modules.
*/
package unit
