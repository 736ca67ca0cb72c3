// Package pool provides bounded interning for values that repeat heavily
// within a column, such as category labels in a text column.
//
// An Interner maps each distinct value to one shared instance so that equal
// cells share backing memory. Pools are owned by their callers (normally a
// column or a table) rather than global, and never grow past their configured
// size: once full, the oldest entry is evicted first.
//
// Basic usage:
//
//	names := pool.NewInterner[string]("text", 4096)
//	cell = names.Intern(cell)
//
//	size, hits, misses, evictions := names.Stats()
//
// Interners are safe for concurrent use.
package pool
