package main

import (
	"os"

	"github.com/rustyeddy/futbridge/cmd/futbridge/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
