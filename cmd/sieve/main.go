// cmd/sieve/main.go
package main

import (
	sieve "github.com/mwiater/sieve/internal/commands"
)

// Set by -ldflags at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

var (
	setVersionInfo = sieve.SetVersionInfo
	executeCmd     = sieve.Execute
)

// main hands control to the cobra root command after injecting build
// metadata.
func main() {
	setVersionInfo(version, commit, date)
	executeCmd()
}
