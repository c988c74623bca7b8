package main

import (
	"os"

	"framegate/internal/cli"
)

// Version is set by ldflags at build time.
var Version = "dev"

func main() {
	os.Exit(cli.Execute(Version))
}
