package wsasr

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/rbright/hark/internal/audio"
	"github.com/rbright/hark/internal/recognizer"
)

// Handle runs one websocket listen session at a time.
type Handle struct {
	factory  *Factory
	callback recognizer.Callback
	logger   *slog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu        sync.Mutex
	active    bool
	destroyed bool
}

var _ recognizer.Handle = (*Handle)(nil)

func newHandle(f *Factory, cb recognizer.Callback) *Handle {
	ctx, cancel := context.WithCancel(context.Background())
	return &Handle{factory: f, callback: cb, logger: f.logger, ctx: ctx, cancel: cancel}
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
	go h.run(session)
}

// Destroy cancels any running session. Nothing is delivered afterwards.
func (h *Handle) Destroy() {
	h.mu.Lock()
	h.destroyed = true
	h.mu.Unlock()
	h.cancel()
}

func (h *Handle) run(session recognizer.SessionConfig) {
	event := h.runSession(session)

	h.mu.Lock()
	h.active = false
	h.mu.Unlock()

	h.deliver(event)
}

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
	if limit := h.factory.cfg.MaxSession; limit > 0 {
		return context.WithTimeout(h.ctx, limit)
	}
	return context.WithCancel(h.ctx)
}

// runSession drives one utterance and returns the event that ends it.
func (h *Handle) runSession(session recognizer.SessionConfig) recognizer.Event {
	cfg := h.factory.cfg
	ctx, cancel := h.sessionContext()
	defer cancel()

	dialCtx, dialCancel := context.WithTimeout(ctx, cfg.DialTimeout)
	conn, resp, err := websocket.Dial(dialCtx, h.factory.listenURL(session), &websocket.DialOptions{
		HTTPHeader: h.factory.headers(),
	})
	dialCancel()
	if err != nil {
		code := dialCode(resp, err)
		h.logger.Warn("websocket dial failed", "code", code.String(), "error", err.Error())
		return recognizer.Error(code)
	}
	defer func() { _ = conn.CloseNow() }()

	pcm, err := h.factory.source.Open(ctx)
	if err != nil {
		h.logger.Warn("audio source unavailable", "error", err.Error())
		_ = conn.Close(websocket.StatusNormalClosure, "audio unavailable")
		return recognizer.Error(recognizer.CodeAudio)
	}
	defer func() { _ = pcm.Stop() }()

	heard := make(chan struct{})
	outcome := make(chan recognizer.Event, 1)
	writeDone := make(chan error, 1)

	go h.readLoop(ctx, conn, heard, outcome)
	go writeLoop(ctx, conn, pcm, writeDone)

	var noSpeech <-chan time.Time
	if cfg.NoSpeechTimeout > 0 {
		timer := time.NewTimer(cfg.NoSpeechTimeout)
		defer timer.Stop()
		noSpeech = timer.C
	}

	for {
		select {
		case event := <-outcome:
			if event.Kind == recognizer.EventResults {
				h.closeStream(conn)
			}
			return event
		case <-heard:
			heard = nil
			noSpeech = nil
		case <-noSpeech:
			h.closeStream(conn)
			return recognizer.Error(recognizer.CodeSpeechTimeout)
		case err := <-writeDone:
			writeDone = nil
			if err != nil && ctx.Err() == nil {
				h.logger.Warn("websocket audio write failed", "error", err.Error())
				return recognizer.Error(recognizer.CodeNetwork)
			}
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.DeadlineExceeded) {
				return recognizer.Error(recognizer.CodeNetworkTimeout)
			}
			return recognizer.Error(recognizer.CodeClient)
		}
	}
}

// closeStream asks the server to finalize. Failures are ignored because the
// connection is torn down right after.
func (h *Handle) closeStream(conn *websocket.Conn) {
	ctx, cancel := context.WithTimeout(context.Background(), 500*time.Millisecond)
	defer cancel()
	_ = conn.Write(ctx, websocket.MessageText, closeStreamMessage)
}

// readLoop parses server messages until a final transcript or the connection ends.
func (h *Handle) readLoop(ctx context.Context, conn *websocket.Conn, heard chan<- struct{}, outcome chan<- recognizer.Event) {
	heardOnce := false

	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			outcome <- recognizer.Error(readCode(ctx, err))
			return
		}
		if typ != websocket.MessageText {
			continue
		}
		msg, ok := parseMessage(data)
		if !ok {
			continue
		}

		markHeard := func() {
			if !heardOnce {
				heardOnce = true
				close(heard)
			}
		}

		switch msg.Type {
		case "SpeechStarted":
			markHeard()
			h.deliver(recognizer.Ignored())
		case "Results":
			if msg.hasText() {
				markHeard()
				if msg.IsFinal {
					outcome <- recognizer.Results(msg.transcripts()...)
					return
				}
			}
			h.deliver(recognizer.Ignored())
		case "Error":
			h.logger.Warn("websocket server error", "description", msg.Description, "message", msg.Message)
			outcome <- recognizer.Error(recognizer.CodeServer)
			return
		default:
			h.deliver(recognizer.Ignored())
		}
	}
}

// writeLoop streams PCM as binary frames and sends CloseStream when audio ends.
func writeLoop(ctx context.Context, conn *websocket.Conn, pcm audio.Stream, done chan<- error) {
	chunks := pcm.Chunks()
	for {
		select {
		case <-ctx.Done():
			done <- nil
			return
		case chunk, ok := <-chunks:
			if !ok {
				done <- conn.Write(ctx, websocket.MessageText, closeStreamMessage)
				return
			}
			if len(chunk) == 0 {
				continue
			}
			if err := conn.Write(ctx, websocket.MessageBinary, chunk); err != nil {
				done <- err
				return
			}
		}
	}
}

// dialCode maps handshake failures to recognizer codes.
func dialCode(resp *http.Response, err error) recognizer.Code {
	if resp != nil {
		switch {
		case resp.StatusCode == http.StatusUnauthorized, resp.StatusCode == http.StatusForbidden:
			return recognizer.CodeInsufficientPermissions
		case resp.StatusCode == http.StatusTooManyRequests:
			return recognizer.CodeRecognizerBusy
		case resp.StatusCode >= 500:
			return recognizer.CodeServer
		case resp.StatusCode >= 400:
			return recognizer.CodeClient
		}
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return recognizer.CodeNetworkTimeout
	}
	return recognizer.CodeNetwork
}

// readCode maps the error that ended a read to a recognizer code.
func readCode(ctx context.Context, err error) recognizer.Code {
	if ctx.Err() != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return recognizer.CodeNetworkTimeout
		}
		return recognizer.CodeClient
	}
	switch websocket.CloseStatus(err) {
	case websocket.StatusNormalClosure:
		return recognizer.CodeNoMatch
	case websocket.StatusPolicyViolation, websocket.StatusUnsupportedData, websocket.StatusInvalidFramePayloadData:
		return recognizer.CodeClient
	case websocket.StatusInternalError, websocket.StatusTryAgainLater:
		return recognizer.CodeServer
	default:
		return recognizer.CodeNetwork
	}
}
