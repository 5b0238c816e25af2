package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
)

const (
	EnvBaseURL = "AWX_BASE"
	EnvToken   = "AWX_TOKEN"

	DefaultBaseURL = "http://127.0.0.1:8043"
)

var ErrTokenMissing = errors.New("config: AWX_TOKEN is not set")

// Credentials are the controller address and bearer token used for one call.
type Credentials struct {
	BaseURL string
	Token   string
}

// Provider resolves credentials at call time. Implementations must not cache
// so that a rotated token is picked up without a restart.
type Provider interface {
	Credentials() (Credentials, error)
}

// EnvProvider reads AWX_BASE and AWX_TOKEN on every call.
//
// BaseURL is the fallback when AWX_BASE is unset. TokenFile, when set, is read
// instead of AWX_TOKEN.
type EnvProvider struct {
	BaseURL   string
	TokenFile string

	Getenv   func(string) string
	ReadFile func(string) ([]byte, error)
}

func (p EnvProvider) Credentials() (Credentials, error) {
	getenv := p.Getenv
	if getenv == nil {
		getenv = os.Getenv
	}

	base := strings.TrimSpace(getenv(EnvBaseURL))
	if base == "" {
		base = strings.TrimSpace(p.BaseURL)
	}
	if base == "" {
		base = DefaultBaseURL
	}

	token, err := p.token(getenv)
	if err != nil {
		return Credentials{}, err
	}
	return Credentials{BaseURL: base, Token: token}, nil
}

func (p EnvProvider) token(getenv func(string) string) (string, error) {
	path := strings.TrimSpace(p.TokenFile)
	if path == "" {
		token := strings.TrimSpace(getenv(EnvToken))
		if token == "" {
			return "", ErrTokenMissing
		}
		return token, nil
	}

	readFile := p.ReadFile
	if readFile == nil {
		readFile = os.ReadFile
	}
	data, err := readFile(path)
	if err != nil {
		return "", fmt.Errorf("config: read token file %s: %w", path, err)
	}
	token := strings.TrimSpace(string(data))
	if token == "" {
		return "", fmt.Errorf("%w: token file %s is empty", ErrTokenMissing, path)
	}
	return token, nil
}

// Static returns fixed credentials. An empty token is still a configuration error.
type Static Credentials

func (s Static) Credentials() (Credentials, error) {
	if strings.TrimSpace(s.Token) == "" {
		return Credentials{}, ErrTokenMissing
	}
	base := strings.TrimSpace(s.BaseURL)
	if base == "" {
		base = DefaultBaseURL
	}
	return Credentials{BaseURL: base, Token: s.Token}, nil
}
