// Package cmd implements the hitbox CLI commands using Cobra.
//
// Available commands:
//   - request: Build and send a recipe
//   - history: Show stored exchanges and latency stats
//   - list: Display recipes and profiles in the collection
//   - validate: Check collection files without sending anything
//   - init: Create a starter collection
//   - import: Convert JetBrains .http files to a collection
//   - version: Show hitbox version information
//
// Exit codes are listed in exitcodes.go.
package cmd
