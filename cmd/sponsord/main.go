package main

import (
	"os"

	"github.com/bitfsorg/sponsor-go/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
