package audio

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// Stream is one session's worth of PCM.
type Stream interface {
	Chunks() <-chan []byte
	Stop() error
}

// Source opens a fresh PCM stream for each listening session.
type Source interface {
	Open(ctx context.Context) (Stream, error)
}

// PulseSource captures from the device matching Input, or Fallback when the
// primary is muted or unavailable. The device is resolved again on every Open
// so hot-plugged microphones are picked up between sessions.
type PulseSource struct {
	Input    string
	Fallback string
	Logger   *slog.Logger

	selectDevice func(context.Context, string, string) (Selection, error)
	startCapture func(context.Context, Device) (Stream, error)
}

// Open selects a device and starts capturing. The stream stops with ctx.
func (s *PulseSource) Open(ctx context.Context) (Stream, error) {
	selectDevice := s.selectDevice
	if selectDevice == nil {
		selectDevice = SelectDevice
	}
	startCapture := s.startCapture
	if startCapture == nil {
		startCapture = func(ctx context.Context, dev Device) (Stream, error) {
			return StartCapture(ctx, dev)
		}
	}

	selection, err := selectDevice(ctx, s.Input, s.Fallback)
	if err != nil {
		return nil, fmt.Errorf("select audio device: %w", err)
	}
	if selection.Warning != "" && s.Logger != nil {
		s.Logger.Warn("audio device fallback", "warning", selection.Warning, "device", selection.Device.Label())
	}

	stream, err := startCapture(ctx, selection.Device)
	if err != nil {
		return nil, fmt.Errorf("start audio capture: %w", err)
	}
	if s.Logger != nil {
		s.Logger.Debug("audio capture started", "device", selection.Device.Label())
	}
	return stream, nil
}

// ChunkStream replays buffered chunks and stays open until Stop, like a live
// capture with a silent tail.
type ChunkStream struct {
	ch   chan []byte
	once sync.Once
}

// NewChunkStream returns a stream preloaded with chunks.
func NewChunkStream(chunks ...[]byte) *ChunkStream {
	ch := make(chan []byte, len(chunks))
	for _, chunk := range chunks {
		ch <- chunk
	}
	return &ChunkStream{ch: ch}
}

func (s *ChunkStream) Chunks() <-chan []byte { return s.ch }

func (s *ChunkStream) Stop() error {
	s.once.Do(func() { close(s.ch) })
	return nil
}

// SourceFunc adapts a function to the Source interface.
type SourceFunc func(ctx context.Context) (Stream, error)

func (f SourceFunc) Open(ctx context.Context) (Stream, error) {
	return f(ctx)
}
