package main

import (
	"os"

	"github.com/opd-ai/xmppotr/cmd/xmppotr/commands"
)

func main() {
	if err := commands.Execute(); err != nil {
		os.Exit(1)
	}
}
