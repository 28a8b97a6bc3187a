package main

import (
	"fmt"
	"os"
)

var (
	Version   = "v0.4.0"
	Commit    = "unknown"
	BuildTime = "unknown"
)

func main() {
	root := newRootCmd(os.Getenv)
	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
