package speechgrpc

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rbright/hark/internal/logging"
	"google.golang.org/protobuf/encoding/protojson"
	"google.golang.org/protobuf/proto"
)

// debugSink appends protojson lines to one file per handle. A nil sink is a no-op.
type debugSink struct {
	mu   sync.Mutex
	file *os.File
}

func openDebugSink(logger *slog.Logger) *debugSink {
	file, err := createDebugFile("grpc", "jsonl")
	if err != nil {
		logger.Warn("unable to create grpc debug dump", "error", err.Error())
		return nil
	}
	logger.Info("grpc debug dump enabled", "path", file.Name())
	return &debugSink{file: file}
}

// Write records one message. Encoding failures are dropped.
func (d *debugSink) Write(msg proto.Message) {
	if d == nil {
		return
	}
	b, err := protojson.Marshal(msg)
	if err != nil {
		return
	}

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.file == nil {
		return
	}
	_, _ = d.file.Write(append(b, '\n'))
}

// Close closes the underlying file. Later writes are dropped.
func (d *debugSink) Close() {
	if d == nil {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.file != nil {
		_ = d.file.Close()
		d.file = nil
	}
}

// createDebugFile creates a timestamped artifact under the state debug dir.
func createDebugFile(prefix string, extension string) (*os.File, error) {
	stateDir, err := logging.StateDir()
	if err != nil {
		return nil, err
	}
	debugDir := filepath.Join(stateDir, "debug")
	if err := os.MkdirAll(debugDir, 0o700); err != nil {
		return nil, fmt.Errorf("create debug dir: %w", err)
	}

	timestamp := time.Now().Format("20060102-150405.000000")
	path := filepath.Join(debugDir, fmt.Sprintf("%s-%s.%s", prefix, timestamp, extension))
	file, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o600)
	if err != nil {
		return nil, fmt.Errorf("open debug file %q: %w", path, err)
	}
	return file, nil
}
