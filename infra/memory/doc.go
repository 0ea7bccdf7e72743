// Package memory provides the low-level primitives behind ownership
// handles: accounting allocators for control-block storage, typed object
// pools, and a retire ring with epoch-based reclamation for objects whose
// last owner has gone away.
//
// Only the statistics are safe for concurrent use. Everything else
// follows the single-threaded model of the ownership package.
package memory
