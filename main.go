// Package main is the entry point for the airplan CLI.
// airplan schedules radio commercials against a set of independently
// configured database servers.
package main

import (
	"airplan/cli/cmd"
)

func main() {
	cmd.Execute()
}
