package main

import "github.com/abdul-hamid-achik/hitbox/apps/cli/cmd"

// Set by the linker at build time
var (
	version   = "dev"
	buildTime = "unknown"
)

func main() {
	cmd.Execute(version, buildTime)
}
