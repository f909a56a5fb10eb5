package main

import (
	"fmt"
	"os"

	"github.com/stemsi/mathcourse-portal/cmd/portalctl/cli"
)

// Set via -ldflags at build time
var version = "dev"

func main() {
	if err := cli.Execute(version); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
