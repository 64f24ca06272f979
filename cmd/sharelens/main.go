package main

import (
	"os"

	"github.com/abramin/sharelens/cmd/sharelens/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
