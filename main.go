// The main package for the urlprobe executable.
package main

import (
	"github.com/JakeFAU/urlprobe/cmd"
)

// main is the entry point of the application.
// It defers all execution to the Cobra CLI library.
func main() {
	cmd.Execute()
}
