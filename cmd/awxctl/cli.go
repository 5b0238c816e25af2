package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"os/signal"
	"strings"
	"syscall"

	"github.com/danmuck/mcp-awx/internal/awx"
	"github.com/danmuck/mcp-awx/internal/config"
	"github.com/danmuck/mcp-awx/internal/tools"
)

const usage = `usage: awxctl [global flags] <command> [flags]

commands:
  health                 probe the controller
  run                    launch a show-commands job template and wait
  tools                  list available tools

global flags:
  -config path           TOML config (awx section is used)
  -o json|yaml           output format (default json)
`

// stringList is a repeatable string flag.
type stringList []string

func (s *stringList) String() string { return strings.Join(*s, ",") }

func (s *stringList) Set(v string) error {
	*s = append(*s, v)
	return nil
}

// run executes one command and returns the process exit code. provider
// overrides the env-backed credentials when non-nil.
func run(args []string, stdout, stderr io.Writer, provider config.Provider) int {
	global := flag.NewFlagSet("awxctl", flag.ContinueOnError)
	global.SetOutput(stderr)
	global.Usage = func() { fmt.Fprint(stderr, usage) }
	configPath := global.String("config", "", "TOML config path")
	format := global.String("o", "json", "output format: json or yaml")
	if err := global.Parse(args); err != nil {
		return 2
	}
	rest := global.Args()
	if len(rest) == 0 {
		global.Usage()
		return 2
	}
	if *format != "json" && *format != "yaml" {
		fmt.Fprintf(stderr, "awxctl: unknown output format %q\n", *format)
		return 2
	}

	settings := config.DefaultSettings()
	if p := strings.TrimSpace(*configPath); p != "" {
		loaded, err := config.Load(p)
		if err != nil {
			fmt.Fprintf(stderr, "awxctl: %v\n", err)
			return 1
		}
		settings = loaded
	}
	if provider == nil {
		provider = config.EnvProvider{BaseURL: settings.AWX.BaseURL, TokenFile: settings.AWX.TokenFile}
	}
	client, err := awx.NewClient(provider, awx.ConfigFromSettings(settings.AWX))
	if err != nil {
		fmt.Fprintf(stderr, "awxctl: %v\n", err)
		return 1
	}
	reg := tools.NewRegistry()
	if err := tools.RegisterAWX(reg, client); err != nil {
		fmt.Fprintf(stderr, "awxctl: %v\n", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cmd, cmdArgs := rest[0], rest[1:]
	var out any
	switch cmd {
	case "health":
		out, err = reg.Invoke(ctx, tools.NameHealth, nil)
		if err == nil {
			if res, ok := out.(awx.HealthResult); ok && !res.OK {
				_ = writeOutput(stdout, *format, out)
				return 1
			}
		}
	case "run":
		var raw json.RawMessage
		raw, err = runArgs(cmdArgs, stderr)
		if err != nil {
			if errors.Is(err, flag.ErrHelp) {
				return 0
			}
			fmt.Fprintf(stderr, "awxctl run: %v\n", err)
			return 2
		}
		out, err = reg.Invoke(ctx, tools.NameRunShowCommands, raw)
	case "tools":
		out = map[string]any{"tools": reg.List()}
	default:
		fmt.Fprintf(stderr, "awxctl: unknown command %q\n", cmd)
		global.Usage()
		return 2
	}
	if err != nil {
		fmt.Fprintf(stderr, "awxctl %s: %v\n", cmd, err)
		return 1
	}
	if err := writeOutput(stdout, *format, out); err != nil {
		fmt.Fprintf(stderr, "awxctl: %v\n", err)
		return 1
	}
	return 0
}

// runArgs turns run flags into tool arguments. Unset flags are omitted so the
// tool defaults apply.
func runArgs(args []string, stderr io.Writer) (json.RawMessage, error) {
	fs := flag.NewFlagSet("run", flag.ContinueOnError)
	fs.SetOutput(stderr)
	var cmds stringList
	templateID := fs.Int("template", 0, "job template id (required)")
	fs.Var(&cmds, "cmd", "show command (repeatable)")
	limit := fs.String("limit", "", "host limit pattern")
	inventory := fs.String("inventory", "", "inventory override")
	saveLocal := fs.Bool("save-local", false, "save output on the runner")
	saveArtifacts := fs.Bool("save-artifacts", true, "publish output as job artifacts")
	timeout := fs.Duration("timeout", 0, "polling deadline (default from config)")
	interval := fs.Duration("interval", 0, "poll interval (default from config)")
	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	cmds = append(cmds, fs.Args()...)
	if cmds == nil {
		cmds = stringList{}
	}

	set := map[string]bool{}
	fs.Visit(func(f *flag.Flag) { set[f.Name] = true })
	if !set["template"] {
		return nil, fmt.Errorf("-template is required")
	}

	body := map[string]any{
		"templateId": *templateID,
		"showCmds":   []string(cmds),
	}
	if set["limit"] {
		body["limit"] = *limit
	}
	if set["inventory"] {
		body["inventory"] = *inventory
	}
	if set["save-local"] {
		body["saveLocal"] = *saveLocal
	}
	if set["save-artifacts"] {
		body["saveArtifacts"] = *saveArtifacts
	}
	if set["timeout"] {
		body["timeoutSec"] = timeout.Seconds()
	}
	if set["interval"] {
		body["pollIntervalSec"] = interval.Seconds()
	}
	return json.Marshal(body)
}
