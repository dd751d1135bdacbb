package credentials

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/kingrea/keywork/internal/command"
)

const (
	runtimeTimeout  = 15 * time.Second
	keychainTimeout = 10 * time.Second
	expiryMargin    = 30 * time.Minute

	keychainService = "Claude Code-credentials"
	expiresAtPath   = "claudeAiOauth.expiresAt"
)

// RuntimeCheck asks the container runtime for `info`. Only a missing binary or
// an unresponsive daemon is fatal; a non-zero exit is tolerated.
type RuntimeCheck struct{ host *Host }

func (RuntimeCheck) Name() string { return "runtime" }

func (c RuntimeCheck) Attempt(ctx context.Context) Outcome {
	ctx, cancel := context.WithTimeout(ctx, runtimeTimeout)
	defer cancel()
	_, err := c.host.Run(ctx, c.host.Runtime, "info")
	switch {
	case err == nil:
		return pass()
	case command.IsNotFound(err):
		return fatal("Docker is required to run the agent sandbox.\n" +
			"Install Docker Desktop: https://www.docker.com/products/docker-desktop/")
	case command.IsTimeout(err):
		return fatal("Docker daemon is not responding. Is Docker Desktop running?")
	default:
		return pass()
	}
}

// KeychainExport copies Claude credentials out of the macOS Keychain when they
// are not already on disk. It is a no-op elsewhere.
type KeychainExport struct{ host *Host }

func (KeychainExport) Name() string { return "keychain" }

func (c KeychainExport) Attempt(ctx context.Context) Outcome {
	if c.host.GOOS != "darwin" {
		return pass()
	}
	path := c.host.CredentialsPath()
	if _, err := os.Stat(path); err == nil {
		return pass()
	}
	ctx, cancel := context.WithTimeout(ctx, keychainTimeout)
	defer cancel()
	out, err := c.host.Run(ctx, "security", "find-generic-password", "-s", keychainService, "-w")
	switch {
	case command.IsNotFound(err):
		return fatal("macOS 'security' command not found.")
	case command.IsTimeout(err):
		return fatal("Timed out reading Claude credentials from Keychain.")
	}
	secret := strings.TrimSpace(string(out))
	if err != nil || secret == "" {
		return fatal("Claude credentials not found in macOS Keychain or on disk.\n" +
			"Run 'claude' on the host first to authenticate.")
	}
	if err := writeSecret(path, secret); err != nil {
		return fatal(fmt.Sprintf("Failed to write Claude credentials: %v", err))
	}
	return pass()
}

func writeSecret(path, secret string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return err
	}
	if err := os.WriteFile(path, []byte(secret), 0o600); err != nil {
		return err
	}
	return os.Chmod(path, 0o600)
}

// CredentialFile requires the credentials file to exist.
type CredentialFile struct{ host *Host }

func (CredentialFile) Name() string { return "credentials" }

func (c CredentialFile) Attempt(context.Context) Outcome {
	if _, err := os.Stat(c.host.CredentialsPath()); err != nil {
		return fatal("Claude credentials not found.\n" +
			"Run 'claude' on the host first to authenticate.")
	}
	return pass()
}

// TokenExpiry reads claudeAiOauth.expiresAt (milliseconds since the epoch).
// An absent or non-integer value is treated as non-expiring.
type TokenExpiry struct{ host *Host }

func (TokenExpiry) Name() string { return "token" }

func (c TokenExpiry) Attempt(context.Context) Outcome {
	data, err := os.ReadFile(c.host.CredentialsPath())
	if err != nil {
		return fatal(fmt.Sprintf("Failed to read credentials file: %v", err))
	}
	if !gjson.ValidBytes(data) {
		return fatal("Failed to read credentials file: invalid JSON")
	}
	expiresAt, ok := expiryMillis(gjson.GetBytes(data, expiresAtPath))
	if !ok {
		return pass()
	}
	nowMs := c.host.Now().UnixMilli()
	if expiresAt <= nowMs {
		return fatal("Claude OAuth token has expired.\n" +
			"Run 'claude' in your terminal to re-authenticate, then retry.")
	}
	remaining := expiresAt - nowMs
	if remaining <= expiryMargin.Milliseconds() {
		return warn(fmt.Sprintf("WARNING: Claude OAuth token expires in ~%d minutes.", remaining/60000))
	}
	return pass()
}

func expiryMillis(v gjson.Result) (int64, bool) {
	switch v.Type {
	case gjson.Number:
		return v.Int(), true
	case gjson.String:
		n, err := strconv.ParseInt(strings.TrimSpace(v.Str), 10, 64)
		if err != nil {
			return 0, false
		}
		return n, true
	default:
		return 0, false
	}
}

// SSHAgent warns when no agent socket is exported.
type SSHAgent struct{ host *Host }

func (SSHAgent) Name() string { return "ssh-agent" }

func (c SSHAgent) Attempt(context.Context) Outcome {
	if sock, _ := c.host.Lookup("SSH_AUTH_SOCK"); sock != "" {
		return pass()
	}
	return warn("WARNING: SSH_AUTH_SOCK not set. Git operations requiring SSH keys will fail.")
}
