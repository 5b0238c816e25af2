package main

import (
	"os"

	"github.com/danmuck/mcp-awx/internal/logging"
)

func main() {
	logging.ConfigureRuntime()
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr, nil))
}
