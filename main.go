package main

import (
	"os"

	"github.com/soundhaven/feedsync/cmd"
)

func main() {
	if err := cmd.Execute(); err != nil {
		os.Exit(1)
	}
}
