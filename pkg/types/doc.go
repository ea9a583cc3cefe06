// Package types defines the Engine and Table interfaces, entity types, enums,
// configuration, and the sentinel and typed errors for the pagevault
// persistence engine.
//
// Enum-like columns (transaction types, user roles, series status, feature
// flags) are real Go types here; conversion to their on-disk string form
// happens only at the storage edge in internal/sqlite.
package types
