package main

import (
	"os"

	"github.com/mkbrennan/partyquiz/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
