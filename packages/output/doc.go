// Package output provides formatters for displaying exchanges and errors.
//
// Supported output formats:
//   - Console: Human-readable colored terminal output
//   - JSON: Machine-readable JSON output
//
// Both implement Formatter. Stats summarizes latency over a set of
// persisted exchanges.
package output
