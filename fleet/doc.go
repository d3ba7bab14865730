// Package fleet orchestrates configuration maintenance across a fleet of
// DMCC vision sensors.
//
// For each device, a validation pass retrieves the live configuration over
// [dmcc], persists it to a timestamped backup file, compares its digest
// against the trusted local master file, and pushes the master back when
// they differ. Every device yields exactly one [Result]; a failure in one
// device's pipeline, including a panic, never aborts the pass.
//
// Devices are processed strictly sequentially within a pass. A [Validator]
// is safe to drive from one background worker per pass; the retained result
// map is concurrency-safe.
package fleet
