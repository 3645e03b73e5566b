package main

import (
	"fmt"
	"os"

	"github.com/rony4d/go-avn-bridge/cmd/avn-bridge/launcher"
)

func main() {
	// Call into the launcher and capture any resulting error
	if err := launcher.Launch(os.Args); err != nil {
		// Report the issue so the operator sees it
		fmt.Fprintln(os.Stderr, "Error:", err)

		// Exit with a non-zero status code to indicate failure
		os.Exit(1)
	}
}
