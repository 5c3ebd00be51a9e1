package main

import (
	"os"

	"github.com/vsals/searchcoachdeploy/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
