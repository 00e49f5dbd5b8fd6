// Package doctor runs readiness diagnostics for config, audio, and the
// configured recognizer backend.
package doctor

import (
	"context"
	"fmt"
	"net"
	"net/url"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/rbright/hark/internal/audio"
	"github.com/rbright/hark/internal/config"
	"github.com/rbright/hark/internal/speechgrpc"
)

// Check is one doctor assertion result.
type Check struct {
	Name    string
	Pass    bool
	Message string
}

// Report is the full doctor output contract.
type Report struct {
	Checks []Check
}

// OK returns true when all checks pass.
func (r Report) OK() bool {
	for _, check := range r.Checks {
		if !check.Pass {
			return false
		}
	}
	return true
}

// String renders the report as user-facing text output.
func (r Report) String() string {
	var b strings.Builder
	for _, check := range r.Checks {
		status := "OK"
		if !check.Pass {
			status = "FAIL"
		}
		b.WriteString(fmt.Sprintf("[%s] %s: %s\n", status, check.Name, check.Message))
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// Run executes environment, config, and backend checks for a loaded config.
func Run(ctx context.Context, cfg config.Loaded) Report {
	checks := []Check{}

	checks = append(checks, Check{
		Name:    "config",
		Pass:    true,
		Message: fmt.Sprintf("loaded %q (backend=%s)", cfg.Path, cfg.Config.Backend),
	})

	checks = append(checks, checkEnv("XDG_RUNTIME_DIR", func(v string) bool {
		return strings.TrimSpace(v) != ""
	}, "control socket directory available", "XDG_RUNTIME_DIR is empty; listen cannot own a socket"))

	if len(cfg.Config.Engine.ResultCmd.Argv) > 0 {
		checks = append(checks, checkCommand(cfg.Config.Engine.ResultCmd.Argv, "engine.result_cmd"))
	}

	checks = append(checks, checkAudioSelection(ctx, cfg.Config))

	switch cfg.Config.Backend {
	case config.BackendWebSocket:
		checks = append(checks, checkCredentials(cfg.Config.WebSocket.APIKeyEnv))
		checks = append(checks, checkWebSocketReachable(ctx, cfg.Config))
	default:
		checks = append(checks, checkGRPCReady(ctx, cfg.Config))
	}

	return Report{Checks: checks}
}

// checkEnv validates an environment variable through a caller-supplied predicate.
func checkEnv(name string, predicate func(string) bool, okMsg, failMsg string) Check {
	value := os.Getenv(name)
	if predicate(value) {
		return Check{Name: name, Pass: true, Message: okMsg}
	}
	return Check{Name: name, Pass: false, Message: failMsg}
}

// checkCommand validates that argv contains a runnable command.
func checkCommand(argv []string, name string) Check {
	if len(argv) == 0 {
		return Check{Name: name, Pass: false, Message: "command is empty"}
	}
	return checkBinary(argv[0], fmt.Sprintf("%s command is available", name))
}

// checkBinary validates that a binary exists in PATH.
func checkBinary(bin string, okMsg string) Check {
	path, err := exec.LookPath(bin)
	if err != nil {
		return Check{Name: bin, Pass: false, Message: fmt.Sprintf("binary not found in PATH: %s", bin)}
	}
	return Check{Name: bin, Pass: true, Message: fmt.Sprintf("found at %s (%s)", path, okMsg)}
}

// checkAudioSelection runs live device selection to surface selection/fallback issues.
func checkAudioSelection(ctx context.Context, cfg config.Config) Check {
	selection, err := audio.SelectDevice(ctx, cfg.Audio.Input, cfg.Audio.Fallback)
	if err != nil {
		return Check{Name: "audio.device", Pass: false, Message: err.Error()}
	}
	message := fmt.Sprintf("selected %s", selection.Device.Label())
	if selection.Warning != "" {
		message = message + " (" + selection.Warning + ")"
	}
	return Check{Name: "audio.device", Pass: true, Message: message}
}

// checkGRPCReady waits for the speech endpoint to accept a connection.
func checkGRPCReady(ctx context.Context, cfg config.Config) Check {
	endpoint := strings.TrimSpace(cfg.GRPC.Endpoint)
	if endpoint == "" {
		return Check{Name: "grpc.ready", Pass: false, Message: "grpc.endpoint is empty"}
	}
	if err := speechgrpc.Probe(ctx, endpoint, cfg.GRPC.DialTimeout()); err != nil {
		return Check{Name: "grpc.ready", Pass: false, Message: err.Error()}
	}
	return Check{Name: "grpc.ready", Pass: true, Message: fmt.Sprintf("ready at %s", endpoint)}
}

// checkCredentials reports whether the websocket API key variable is populated.
func checkCredentials(envName string) Check {
	envName = strings.TrimSpace(envName)
	if envName == "" {
		return Check{Name: "websocket.credentials", Pass: true, Message: "no api_key_env configured; connecting anonymously"}
	}
	if strings.TrimSpace(os.Getenv(envName)) == "" {
		return Check{Name: "websocket.credentials", Pass: false, Message: fmt.Sprintf("%s is empty", envName)}
	}
	return Check{Name: "websocket.credentials", Pass: true, Message: fmt.Sprintf("%s is set", envName)}
}

// checkWebSocketReachable opens a TCP connection to the listen endpoint host.
// It does not upgrade, so no recognition session is billed.
func checkWebSocketReachable(ctx context.Context, cfg config.Config) Check {
	u, err := url.Parse(strings.TrimSpace(cfg.WebSocket.URL))
	if err != nil || u.Host == "" {
		return Check{Name: "websocket.reachable", Pass: false, Message: fmt.Sprintf("invalid websocket.url %q", cfg.WebSocket.URL)}
	}

	host := u.Host
	if u.Port() == "" {
		port := "443"
		if u.Scheme == "ws" {
			port = "80"
		}
		host = net.JoinHostPort(u.Hostname(), port)
	}

	timeout := cfg.GRPC.DialTimeout()
	if timeout <= 0 {
		timeout = 3 * time.Second
	}
	dialer := net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", host)
	if err != nil {
		return Check{Name: "websocket.reachable", Pass: false, Message: fmt.Sprintf("connect %s: %v", host, err)}
	}
	_ = conn.Close()
	return Check{Name: "websocket.reachable", Pass: true, Message: fmt.Sprintf("reachable at %s", host)}
}
