// Package capture extracts values from recorded exchanges.
//
// It supports capturing values from:
//   - Response body (gjson paths)
//   - Response headers
//   - Response status code
//   - Request duration
//
// The request command uses it to filter what is printed with --filter.
package capture
