// Package types defines the entity model of the larder reference-data store:
// the four reference kinds (nomenclature, range, category, storage), the
// document records that hold references to them (receipts and movements), the
// Ref type that links the two, the closed set of repository collection keys,
// and the standard error values shared by every layer.
package types
