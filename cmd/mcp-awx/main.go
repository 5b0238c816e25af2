package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/danmuck/mcp-awx/internal/logging"
	"github.com/danmuck/mcp-awx/internal/service"
)

func main() {
	fs := flag.NewFlagSet("mcp-awx", flag.ExitOnError)
	opts := bindFlags(fs)
	_ = fs.Parse(os.Args[1:])

	logging.ConfigureRuntime()
	cfg, err := resolveSettings(opts)
	if err != nil {
		fmt.Fprintf(os.Stderr, "mcp-awx: %v\n", err)
		os.Exit(1)
	}
	if err := service.New(cfg).Run(); err != nil {
		fmt.Fprintf(os.Stderr, "mcp-awx: %v\n", err)
		os.Exit(1)
	}
}
