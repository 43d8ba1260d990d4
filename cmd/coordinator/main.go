package main

import (
	"os"

	"github.com/coordinatorsvc/coordinator/internal/interface/cli"
)

func main() {
	if err := cli.NewRoot().Execute(); err != nil {
		os.Exit(1)
	}
}
