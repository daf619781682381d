package main

import (
	"os"

	"github.com/atsushimemet/fridge-predictor/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
