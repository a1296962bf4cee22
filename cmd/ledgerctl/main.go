package main

import (
	"os"

	"github.com/planetqradio/creditledger/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
