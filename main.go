package main

import (
	"os"

	"github.com/mbolis/quick-forms/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
