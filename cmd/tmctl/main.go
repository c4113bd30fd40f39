// tmctl is a command line client for toolmesh services: it lists and invokes
// remote tools and inspects the session context.
package main

import (
	"fmt"
	"os"
)

var version = "dev" // Overridden by ldflags

func main() {
	if err := newRootCommand().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}
