// Package command classifies commands by how they may be routed.
//
// Every command the router accepts is described by a [Spec] in a [Table]:
// its [Class] decides whether it goes to one node, is split across nodes,
// must stay within one slot, or fans out to every primary; its [Merge]
// decides how per-node replies become one result.
//
// Classification is data, not behavior: the table is a static lookup that
// can be extended with [Table.Register]. Marking a command splittable when
// its semantics do not survive splitting is a correctness bug, so unknown
// commands are rejected rather than guessed.
package command
