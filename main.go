// The main package for the aqicrawler executable.
package main

import (
	"github.com/vietair/aqi-crawler/cmd"
)

// main is the entry point of the application.
// It defers all execution to the Cobra CLI library.
func main() {
	cmd.Execute()
}
