package app

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/rbright/hark/internal/config"
	"github.com/rbright/hark/internal/ipc"
	"github.com/rbright/hark/internal/recognizer"
	"github.com/rbright/hark/internal/session"
	"github.com/rbright/hark/internal/speechgrpc"
	"github.com/rbright/hark/internal/wsasr"
	"github.com/stretchr/testify/require"
)

func TestExecuteHelp(t *testing.T) {
	var stdout bytes.Buffer
	var stderr bytes.Buffer

	exitCode := Execute(context.Background(), []string{"--help"}, &stdout, &stderr)
	require.Equal(t, 0, exitCode)
	require.Contains(t, stdout.String(), "Usage:")
	require.Empty(t, stderr.String())
}

func TestExecuteVersion(t *testing.T) {
	var stdout bytes.Buffer
	var stderr bytes.Buffer

	exitCode := Execute(context.Background(), []string{"version"}, &stdout, &stderr)
	require.Equal(t, 0, exitCode)
	require.Contains(t, stdout.String(), "hark")
	require.Empty(t, stderr.String())
}

func TestExecuteUnknownCommand(t *testing.T) {
	var stdout bytes.Buffer
	var stderr bytes.Buffer

	exitCode := Execute(context.Background(), []string{"definitely-not-a-command"}, &stdout, &stderr)
	require.Equal(t, 2, exitCode)
	require.Contains(t, stderr.String(), "unknown command")
	require.Contains(t, stderr.String(), "Usage:")
}

func TestExecuteInvalidConfigFails(t *testing.T) {
	paths := setupRunnerEnv(t)
	require.NoError(t, os.WriteFile(paths.configPath, []byte(`{"backend": "carrier-pigeon"}`), 0o600))

	var stderr bytes.Buffer
	runner := Runner{Stdout: &bytes.Buffer{}, Stderr: &stderr}

	exitCode := runner.Execute(context.Background(), []string{"--config", paths.configPath, "status"})
	require.Equal(t, 1, exitCode)
	require.Contains(t, stderr.String(), "backend must be one of")
}

func TestRunnerStatusStoppedWhenSocketUnavailable(t *testing.T) {
	paths := setupRunnerEnv(t)

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	runner := Runner{Stdout: &stdout, Stderr: &stderr}

	exitCode := runner.Execute(context.Background(), []string{"--config", paths.configPath, "status"})
	require.Equal(t, 0, exitCode)
	require.Equal(t, "stopped\n", stdout.String())
	require.Empty(t, stderr.String())
}

func TestRunnerStopReturnsNoRunningListener(t *testing.T) {
	paths := setupRunnerEnv(t)

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	runner := Runner{Stdout: &stdout, Stderr: &stderr}

	exitCode := runner.Execute(context.Background(), []string{"--config", paths.configPath, "stop"})
	require.Equal(t, 1, exitCode)
	require.Contains(t, stderr.String(), "no running hark listener")
}

func TestRunnerForwardsCommandsToListener(t *testing.T) {
	paths := setupRunnerEnv(t)
	commands := make(chan string, 8)

	shutdown := startIPCServerForRunnerTest(t, filepath.Join(paths.runtimeDir, "hark.sock"), func(_ context.Context, req ipc.Request) ipc.Response {
		commands <- req.Command
		switch req.Command {
		case ipc.CommandStatus:
			return ipc.Response{OK: true, State: "listening", Generation: 3, QueueDepth: 1}
		case ipc.CommandStart, ipc.CommandStop, ipc.CommandRestart, ipc.CommandPoll:
			return ipc.Response{OK: true, Message: req.Command + " handled"}
		default:
			return ipc.Response{OK: false, Error: "unsupported"}
		}
	})
	defer shutdown()

	runner := Runner{}
	all := []string{"status", "start", "stop", "restart", "poll"}
	for _, cmd := range all {
		stdout := &bytes.Buffer{}
		stderr := &bytes.Buffer{}
		runner.Stdout = stdout
		runner.Stderr = stderr

		exitCode := runner.Execute(context.Background(), []string{"--config", paths.configPath, cmd})
		require.Equal(t, 0, exitCode, cmd)
		require.Empty(t, stderr.String(), cmd)
		if cmd == "status" {
			require.Equal(t, "state=listening generation=3 queue=1\n", stdout.String())
		}
	}

	got := make([]string, 0, len(all))
	for range all {
		got = append(got, <-commands)
	}
	require.ElementsMatch(t, all, got)
}

func TestRunnerPollPrintsEvents(t *testing.T) {
	paths := setupRunnerEnv(t)

	shutdown := startIPCServerForRunnerTest(t, filepath.Join(paths.runtimeDir, "hark.sock"), func(_ context.Context, req ipc.Request) ipc.Response {
		require.Equal(t, ipc.CommandPoll, req.Command)
		require.Equal(t, 3, req.Limit)
		return ipc.Response{OK: true, Events: []ipc.Event{
			{Kind: "result", Text: "turn left"},
			{Kind: "error", Code: 6, CodeName: "speech_timeout"},
		}}
	})
	defer shutdown()

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	runner := Runner{Stdout: &stdout, Stderr: &stderr}

	exitCode := runner.Execute(context.Background(), []string{"--config", paths.configPath, "poll", "--limit", "3"})
	require.Equal(t, 0, exitCode)
	require.Equal(t, "result\tturn left\nerror\t6\tspeech_timeout\n", stdout.String())
}

func TestTryForwardSuccessAndFailureResponses(t *testing.T) {
	socketPath := filepath.Join(t.TempDir(), "hark.sock")

	listener, err := net.Listen("unix", socketPath)
	require.NoError(t, err)

	serverCtx, cancelServer := context.WithCancel(context.Background())
	serverDone := make(chan error, 1)
	go func() {
		serverDone <- ipc.Serve(serverCtx, listener, ipc.HandlerFunc(func(_ context.Context, req ipc.Request) ipc.Response {
			switch req.Command {
			case ipc.CommandStatus:
				return ipc.Response{OK: true, State: "listening"}
			default:
				return ipc.Response{OK: false, Error: "unsupported"}
			}
		}))
	}()

	resp, handled, err := tryForward(context.Background(), socketPath, ipc.Request{Command: ipc.CommandStatus})
	require.True(t, handled)
	require.NoError(t, err)
	require.Equal(t, "listening", resp.State)

	_, handled, err = tryForward(context.Background(), socketPath, ipc.Request{Command: ipc.CommandRestart})
	require.True(t, handled)
	require.Error(t, err)
	require.Contains(t, err.Error(), "unsupported")

	cancelServer()
	require.NoError(t, <-serverDone)
}

func TestTryForwardDoesNotRemoveSocketPathOnForwardFailure(t *testing.T) {
	socketPath := filepath.Join(t.TempDir(), "hark.sock")
	require.NoError(t, os.WriteFile(socketPath, []byte("stale"), 0o600))

	_, handled, err := tryForward(context.Background(), socketPath, ipc.Request{Command: ipc.CommandStatus})
	require.False(t, handled)
	require.NoError(t, err)

	_, statErr := os.Stat(socketPath)
	require.NoError(t, statErr)
}

func TestTryForwardTreatsReadFailuresAsHandledErrors(t *testing.T) {
	socketPath := filepath.Join(t.TempDir(), "hark.sock")

	listener, err := net.Listen("unix", socketPath)
	require.NoError(t, err)

	done := make(chan struct{})
	go func() {
		defer close(done)
		conn, acceptErr := listener.Accept()
		if acceptErr == nil {
			_ = conn.Close()
		}
	}()

	_, handled, err := tryForward(context.Background(), socketPath, ipc.Request{Command: ipc.CommandStatus})
	require.True(t, handled)
	require.Error(t, err)
	require.Contains(t, err.Error(), "forward command \"status\":")

	<-done
	require.NoError(t, listener.Close())
}

func TestRunnerDoctorCommandDispatchesAndPrintsReport(t *testing.T) {
	paths := setupRunnerEnv(t)
	t.Setenv("PULSE_SERVER", "unix:/tmp/definitely-missing-pulse-server")
	require.NoError(t, os.WriteFile(paths.configPath, []byte(`{"grpc": {"endpoint": "127.0.0.1:1", "dial_timeout_ms": 100}}`), 0o600))

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	runner := Runner{Stdout: &stdout, Stderr: &stderr}

	exitCode := runner.Execute(context.Background(), []string{"--config", paths.configPath, "doctor"})
	require.Equal(t, 1, exitCode)
	require.Contains(t, stdout.String(), "config: loaded")
	require.Contains(t, stdout.String(), "[FAIL] grpc.ready")
}

func TestRunnerDevicesCommandDispatches(t *testing.T) {
	paths := setupRunnerEnv(t)
	t.Setenv("PULSE_SERVER", "unix:/tmp/definitely-missing-pulse-server")

	var stdout bytes.Buffer
	var stderr bytes.Buffer
	runner := Runner{Stdout: &stdout, Stderr: &stderr}

	exitCode := runner.Execute(context.Background(), []string{"--config", paths.configPath, "devices"})
	require.Equal(t, 1, exitCode)
	require.Contains(t, stderr.String(), "error:")
}

// onceHandle reports one result on its first session and stays quiet afterwards.
type onceHandle struct {
	callback recognizer.Callback
	starts   atomic.Int32
}

func (h *onceHandle) StartListening(recognizer.SessionConfig) {
	if h.starts.Add(1) == 1 {
		go h.callback(recognizer.Results("open the door"))
	}
}

func (h *onceHandle) Destroy() {}

func TestRunnerListenServesEngineCommands(t *testing.T) {
	paths := setupRunnerEnv(t)
	socketPath := filepath.Join(paths.runtimeDir, "hark.sock")

	var mu sync.Mutex
	var handles []*onceHandle
	runner := Runner{
		Stdout: &bytes.Buffer{},
		Stderr: &bytes.Buffer{},
		NewFactory: func(config.Config, *slog.Logger) (recognizer.Factory, error) {
			return recognizer.FactoryFunc(func(cb recognizer.Callback) (recognizer.Handle, error) {
				mu.Lock()
				defer mu.Unlock()
				h := &onceHandle{callback: cb}
				handles = append(handles, h)
				return h, nil
			}), nil
		},
	}

	ctx, cancel := context.WithCancel(context.Background())
	exitCh := make(chan int, 1)
	go func() {
		exitCh <- runner.Execute(ctx, []string{"--config", paths.configPath, "listen"})
	}()

	require.Eventually(t, func() bool {
		alive, _ := ipc.Probe(context.Background(), socketPath, 100*time.Millisecond)
		return alive
	}, 2*time.Second, 10*time.Millisecond)

	var events []ipc.Event
	require.Eventually(t, func() bool {
		resp, err := ipc.Send(context.Background(), socketPath, ipc.Request{Command: ipc.CommandPoll}, 200*time.Millisecond)
		if err != nil || !resp.OK {
			return false
		}
		events = append(events, resp.Events...)
		return len(events) > 0
	}, 2*time.Second, 10*time.Millisecond)
	require.Equal(t, "result", events[0].Kind)
	require.Equal(t, "open the door", events[0].Text)

	resp, err := ipc.Send(context.Background(), socketPath, ipc.Request{Command: ipc.CommandStart}, 200*time.Millisecond)
	require.NoError(t, err)
	require.True(t, resp.OK)
	require.Equal(t, uint64(2), resp.Generation)

	cancel()
	require.Equal(t, 0, <-exitCh)

	_, statErr := os.Stat(socketPath)
	require.ErrorIs(t, statErr, os.ErrNotExist)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, handles, 2)
}

func TestRunnerListenFailsWhenBackendCannotBeBuilt(t *testing.T) {
	paths := setupRunnerEnv(t)

	var stderr bytes.Buffer
	runner := Runner{
		Stdout: &bytes.Buffer{},
		Stderr: &stderr,
		NewFactory: func(config.Config, *slog.Logger) (recognizer.Factory, error) {
			return nil, errors.New("backend offline")
		},
	}

	exitCode := runner.Execute(context.Background(), []string{"--config", paths.configPath, "listen"})
	require.Equal(t, 1, exitCode)
	require.Contains(t, stderr.String(), "backend offline")

	_, statErr := os.Stat(filepath.Join(paths.runtimeDir, "hark.sock"))
	require.ErrorIs(t, statErr, os.ErrNotExist)
}

func TestRunnerListenRefusesSecondOwner(t *testing.T) {
	paths := setupRunnerEnv(t)

	shutdown := startIPCServerForRunnerTest(t, filepath.Join(paths.runtimeDir, "hark.sock"), func(context.Context, ipc.Request) ipc.Response {
		return ipc.Response{OK: true, State: "listening"}
	})
	defer shutdown()

	var stderr bytes.Buffer
	runner := Runner{
		Stdout: &bytes.Buffer{},
		Stderr: &stderr,
		NewFactory: func(config.Config, *slog.Logger) (recognizer.Factory, error) {
			return recognizer.FactoryFunc(func(recognizer.Callback) (recognizer.Handle, error) {
				return nil, errors.New("unused")
			}), nil
		},
	}

	exitCode := runner.Execute(context.Background(), []string{"--config", paths.configPath, "listen"})
	require.Equal(t, 1, exitCode)
	require.Contains(t, stderr.String(), "already running")
}

func TestBuildFactorySelectsBackend(t *testing.T) {
	logger := slog.New(slog.DiscardHandler)

	cfg := config.Default()
	factory, err := buildFactory(cfg, logger)
	require.NoError(t, err)
	require.IsType(t, &speechgrpc.Factory{}, factory)

	cfg.Backend = config.BackendWebSocket
	cfg.Vocab.GlobalSets = []string{"moves"}
	cfg.Vocab.Sets["moves"] = config.VocabSet{Name: "moves", Boost: 5, Phrases: []string{"jump"}}
	factory, err = buildFactory(cfg, logger)
	require.NoError(t, err)
	require.IsType(t, &wsasr.Factory{}, factory)

	cfg.Backend = "smoke-signal"
	_, err = buildFactory(cfg, logger)
	require.ErrorContains(t, err, "unsupported backend")
}

func TestFormatEvent(t *testing.T) {
	require.Equal(t, "result\tjump", formatEvent(ipc.Event{Kind: "result", Text: "jump"}))
	require.Equal(t, "error\t2\tnetwork", formatEvent(ipc.Event{Kind: "error", Code: 2, CodeName: "network"}))
}

func TestLogListenResultWritesFailureAndSuccess(t *testing.T) {
	var logBuf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logBuf, nil))

	started := time.Now()
	finished := started.Add(1500 * time.Millisecond)

	logListenResult(logger, config.BackendGRPC, session.Result{
		StartedAt:   started,
		FinishedAt:  finished,
		Results:     4,
		Recreations: 1,
	})
	require.Contains(t, logBuf.String(), "listen complete")
	require.Contains(t, logBuf.String(), "\"results\":4")

	logBuf.Reset()
	logListenResult(logger, config.BackendGRPC, session.Result{
		StartedAt:  started,
		FinishedAt: finished,
		Err:        errors.New("boom"),
	})
	require.Contains(t, logBuf.String(), "listen failed")
	require.Contains(t, logBuf.String(), "boom")
}

type runnerPaths struct {
	configPath string
	runtimeDir string
}

func setupRunnerEnv(t *testing.T) runnerPaths {
	t.Helper()

	xdgStateHome := t.TempDir()
	runtimeDir := t.TempDir()
	t.Setenv("XDG_STATE_HOME", xdgStateHome)
	t.Setenv("XDG_RUNTIME_DIR", runtimeDir)

	configPath := filepath.Join(t.TempDir(), "config.jsonc")
	require.NoError(t, os.WriteFile(configPath, []byte("\n"), 0o600))

	return runnerPaths{configPath: configPath, runtimeDir: runtimeDir}
}

func startIPCServerForRunnerTest(t *testing.T, socketPath string, handler func(context.Context, ipc.Request) ipc.Response) func() {
	t.Helper()

	listener, err := net.Listen("unix", socketPath)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- ipc.Serve(ctx, listener, ipc.HandlerFunc(handler))
	}()

	return func() {
		cancel()
		require.NoError(t, <-done)
	}
}
