package main

import (
	"os"

	"github.com/h4x3rotab/repoview/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
