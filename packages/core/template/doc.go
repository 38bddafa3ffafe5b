// Package template renders recipe templates against a profile.
//
// Supported expressions:
//   - {{name}}: profile field, or a runtime override of the same name
//   - {{$NAME}}: environment variable (dotenv values shadow the process env)
//   - {{fn(args)}}: builtin function, see package builtin
//
// Rendering is a pure function of the Context, so one Context may be shared
// by any number of concurrent renders.
package template
