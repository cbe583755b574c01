package main

import (
	"os"

	"github.com/emsroute/ers/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
