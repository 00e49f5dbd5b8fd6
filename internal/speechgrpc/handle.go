package speechgrpc

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"time"

	"cloud.google.com/go/speech/apiv1/speechpb"
	"github.com/rbright/hark/internal/audio"
	"github.com/rbright/hark/internal/recognizer"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
)

// Handle runs single-utterance StreamingRecognize sessions over one connection.
type Handle struct {
	cfg      Config
	conn     *grpc.ClientConn
	client   speechpb.SpeechClient
	source   audio.Source
	callback recognizer.Callback
	logger   *slog.Logger
	debug    *debugSink

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	active    bool
	destroyed bool
	sessions  int
}

var _ recognizer.Handle = (*Handle)(nil)

func newHandle(
	cfg Config,
	conn *grpc.ClientConn,
	client speechpb.SpeechClient,
	source audio.Source,
	cb recognizer.Callback,
	logger *slog.Logger,
) *Handle {
	ctx, cancel := context.WithCancel(context.Background())
	h := &Handle{
		cfg:      cfg,
		conn:     conn,
		client:   client,
		source:   source,
		callback: cb,
		logger:   logger,
		ctx:      ctx,
		cancel:   cancel,
	}
	if cfg.DebugDump {
		h.debug = openDebugSink(logger)
	}
	return h
}

// StartListening begins one session in the background. A second call while a
// session is running reports recognizer_busy instead.
func (h *Handle) StartListening(session recognizer.SessionConfig) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if h.destroyed {
		return
	}
	if h.active {
		go h.deliver(recognizer.Error(recognizer.CodeRecognizerBusy))
		return
	}
	h.active = true
	h.sessions++
	go h.run(session, h.sessions)
}

// Destroy cancels any running session and closes the connection.
func (h *Handle) Destroy() {
	h.mu.Lock()
	if h.destroyed {
		h.mu.Unlock()
		return
	}
	h.destroyed = true
	h.mu.Unlock()

	h.cancel()
	_ = h.conn.Close()
	h.debug.Close()
}

func (h *Handle) run(session recognizer.SessionConfig, seq int) {
	startedAt := time.Now()
	event := h.runSession(session)

	h.mu.Lock()
	h.active = false
	h.mu.Unlock()

	h.logger.Debug("speech grpc session ended",
		"session", seq,
		"kind", int(event.Kind),
		"code", event.Code.String(),
		"elapsed_ms", time.Since(startedAt).Milliseconds(),
	)
	h.deliver(event)
}

// deliver invokes the callback unless the handle has been destroyed.
func (h *Handle) deliver(event recognizer.Event) {
	h.mu.Lock()
	destroyed := h.destroyed
	h.mu.Unlock()
	if destroyed {
		return
	}
	h.callback(event)
}

func (h *Handle) sessionContext() (context.Context, context.CancelFunc) {
	if h.cfg.MaxSession > 0 {
		return context.WithTimeout(h.ctx, h.cfg.MaxSession)
	}
	return context.WithCancel(h.ctx)
}

// runSession drives one utterance and returns the event that ends it.
func (h *Handle) runSession(session recognizer.SessionConfig) recognizer.Event {
	ctx, cancel := h.sessionContext()
	defer cancel()

	readyCtx, readyCancel := context.WithTimeout(ctx, h.cfg.DialTimeout)
	h.conn.Connect()
	err := waitForReady(readyCtx, h.conn)
	readyCancel()
	if err != nil {
		h.logger.Warn("speech grpc not ready", "endpoint", h.cfg.Endpoint, "error", err.Error())
		return recognizer.Error(recognizer.CodeNetworkTimeout)
	}

	stream, err := openRecognizeWithTimeout(ctx, h.cfg.DialTimeout, func() (speechpb.Speech_StreamingRecognizeClient, error) {
		return h.client.StreamingRecognize(ctx)
	})
	if err != nil {
		return h.fail("open streaming recognizer", err)
	}
	if err := runWithTimeout(ctx, h.cfg.DialTimeout, func() error {
		return stream.Send(configRequest(h.cfg, session))
	}); err != nil {
		return h.fail("send streaming config", err)
	}

	pcm, err := h.source.Open(ctx)
	if err != nil {
		h.logger.Warn("audio source unavailable", "error", err.Error())
		return recognizer.Error(recognizer.CodeAudio)
	}
	defer func() { _ = pcm.Stop() }()

	heard := make(chan struct{})
	endOfUtterance := make(chan struct{})
	outcome := make(chan recognizer.Event, 1)
	sendDone := make(chan error, 1)

	go h.recvLoop(stream, heard, endOfUtterance, outcome)
	go sendLoop(ctx, stream, pcm, endOfUtterance, sendDone)

	var noSpeech <-chan time.Time
	if h.cfg.NoSpeechTimeout > 0 {
		timer := time.NewTimer(h.cfg.NoSpeechTimeout)
		defer timer.Stop()
		noSpeech = timer.C
	}

	for {
		select {
		case event := <-outcome:
			return event
		case <-heard:
			heard = nil
			noSpeech = nil
		case <-noSpeech:
			return recognizer.Error(recognizer.CodeSpeechTimeout)
		case err := <-sendDone:
			sendDone = nil
			if err != nil {
				return h.fail("send audio", err)
			}
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return recognizer.Error(recognizer.CodeNetworkTimeout)
			}
			return recognizer.Error(recognizer.CodeClient)
		}
	}
}

// recvLoop reads responses until a final result, the end of the stream, or an error.
func (h *Handle) recvLoop(
	stream speechpb.Speech_StreamingRecognizeClient,
	heard chan<- struct{},
	endOfUtterance chan<- struct{},
	outcome chan<- recognizer.Event,
) {
	heardOnce := false
	utteranceClosed := false

	for {
		resp, err := stream.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) {
				outcome <- recognizer.Error(recognizer.CodeNoMatch)
				return
			}
			outcome <- recognizer.Error(codeForError(err))
			return
		}
		h.debug.Write(resp)

		if st := resp.GetError(); st != nil && st.GetCode() != int32(codes.OK) {
			h.logger.Warn("speech grpc response error", "code", st.GetCode(), "message", st.GetMessage())
			outcome <- recognizer.Error(codeForStatus(codes.Code(st.GetCode())))
			return
		}
		speaking := heardSpeech(resp)
		if speaking && !heardOnce {
			heardOnce = true
			close(heard)
		}
		if candidates, ok := candidatesFrom(resp); ok {
			outcome <- recognizer.Results(candidates...)
			return
		}
		if speaking {
			h.deliver(recognizer.Ignored())
		}
		if !utteranceClosed && resp.GetSpeechEventType() == speechpb.StreamingRecognizeResponse_END_OF_SINGLE_UTTERANCE {
			utteranceClosed = true
			close(endOfUtterance)
		}
	}
}

// sendLoop forwards PCM chunks until the utterance ends or audio runs out.
func sendLoop(
	ctx context.Context,
	stream speechpb.Speech_StreamingRecognizeClient,
	pcm audio.Stream,
	endOfUtterance <-chan struct{},
	done chan<- error,
) {
	chunks := pcm.Chunks()
	for {
		select {
		case <-ctx.Done():
			done <- nil
			return
		case <-endOfUtterance:
			done <- stream.CloseSend()
			return
		case chunk, ok := <-chunks:
			if !ok {
				done <- stream.CloseSend()
				return
			}
			if len(chunk) == 0 {
				continue
			}
			if err := stream.Send(audioRequest(chunk)); err != nil {
				// io.EOF means the server finished; Recv carries the real status.
				if errors.Is(err, io.EOF) {
					done <- nil
				} else {
					done <- err
				}
				return
			}
		}
	}
}

func (h *Handle) fail(step string, err error) recognizer.Event {
	code := codeForError(err)
	h.logger.Warn("speech grpc session failed", "step", step, "code", code.String(), "error", err.Error())
	return recognizer.Error(code)
}
