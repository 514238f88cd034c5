package main

import (
	"os"

	"github.com/solatis/launchrules/cmd/launchrules/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
