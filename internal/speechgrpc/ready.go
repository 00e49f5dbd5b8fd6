package speechgrpc

import (
	"context"
	"errors"
	"fmt"
	"time"

	"cloud.google.com/go/speech/apiv1/speechpb"
	"google.golang.org/grpc"
	"google.golang.org/grpc/connectivity"
)

// errTimedOut marks local operation bounds, as opposed to server deadlines.
var errTimedOut = errors.New("timed out")

// waitForReady blocks until the connection enters Ready or fails.
func waitForReady(ctx context.Context, conn *grpc.ClientConn) error {
	for {
		state := conn.GetState()
		switch state {
		case connectivity.Ready:
			return nil
		case connectivity.Shutdown:
			return errors.New("grpc connection entered shutdown state")
		}

		if !conn.WaitForStateChange(ctx, state) {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return fmt.Errorf("grpc readiness wait %w in state %s", errTimedOut, state.String())
		}
	}
}

type openResult struct {
	stream speechpb.Speech_StreamingRecognizeClient
	err    error
}

// openRecognizeWithTimeout bounds stream-open latency when backend RPCs stall.
func openRecognizeWithTimeout(
	ctx context.Context,
	timeout time.Duration,
	open func() (speechpb.Speech_StreamingRecognizeClient, error),
) (speechpb.Speech_StreamingRecognizeClient, error) {
	if timeout <= 0 {
		return open()
	}

	resultCh := make(chan openResult, 1)
	go func() {
		stream, err := open()
		resultCh <- openResult{stream: stream, err: err}
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-timer.C:
		return nil, fmt.Errorf("open streaming recognizer %w after %s", errTimedOut, timeout)
	case result := <-resultCh:
		return result.stream, result.err
	}
}

// runWithTimeout bounds one blocking stream operation such as the config send.
func runWithTimeout(ctx context.Context, timeout time.Duration, call func() error) error {
	if timeout <= 0 {
		return call()
	}

	resultCh := make(chan error, 1)
	go func() {
		resultCh <- call()
	}()

	timer := time.NewTimer(timeout)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return fmt.Errorf("%w after %s", errTimedOut, timeout)
	case err := <-resultCh:
		return err
	}
}
