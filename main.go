package main

import (
	"melodex/cmd"
)

func main() {
	// Cobra handles errors and exit codes; nothing to do beyond dispatch.
	cmd.Execute()
}
