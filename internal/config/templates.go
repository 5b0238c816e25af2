package config

import (
	"fmt"
	"os"
)

// Template returns a commented starter config with every key at its default.
func Template() string {
	return defaultTemplate
}

// WriteTemplate writes Template to path, refusing to replace an existing file
// unless overwrite is set.
func WriteTemplate(path string, overwrite bool) error {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("config already exists: %s", path)
		}
	}
	return os.WriteFile(path, []byte(defaultTemplate), 0o600)
}

const defaultTemplate = `# AWX_BASE and AWX_TOKEN in the environment take precedence over awx.base_url.
# The controller token is never read from this file; use awx.token_file instead.
name = "mcp-awx"
transport = "stdio"
# listen = "127.0.0.1:7300"
# http_addr = "127.0.0.1:7301"
# http_auth_token = ""
cors_origins = ["http://localhost:3000"]

[awx]
base_url = "http://127.0.0.1:8043"
# token_file = ""
ping_timeout = "10s"
status_timeout = "20s"
launch_timeout = "30s"
poll_timeout = "300s"
poll_interval = "2s"

[awx.tls]
insecure_skip_verify = false
# ca_file = ""
# server_name = ""

[awx.retry]
max_attempts = 0
initial_delay = "250ms"
multiplier = 2.0
max_delay = "5s"
jitter = true
`
