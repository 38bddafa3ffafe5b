// Package builtin provides the functions callable from recipe templates.
//
// Available functions:
//   - uuid(): Random UUID v4
//   - now(): Current time in RFC 3339
//   - timestamp(), timestampMs(): Current Unix time
//   - date(layout): Current UTC date formatted with a Go layout
//   - random(min, max): Random integer in range
//   - randomString(length): Random alphanumeric string
//   - base64(value), base64Decode(value)
//   - md5(value), sha256(value)
//   - urlEncode(value), urlDecode(value)
//
// Functions are invoked as {{fn(args)}} inside a template.
package builtin
