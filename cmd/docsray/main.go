package main

import (
	"os"

	"github.com/xingh/docsray-mcp-sub001/internal/adapters/driving/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
