package main

import (
	"os"

	"github.com/hossain-khan/social-sync/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
