// Package log writes the scene's tick and audit streams as hourly
// rotated, zstd-compressed JSONL files.
package log

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/klauspost/compress/zstd"

	"scenecraft.ai/internal/sim/scene"
)

// JSONLZstdWriter appends one JSON value per line to
// <dir>/<prefix>-<UTC hour>.jsonl.zst.
type JSONLZstdWriter struct {
	dir    string
	prefix string
	now    func() time.Time

	mu   sync.Mutex
	hour string
	f    *os.File
	enc  *zstd.Encoder
	buf  *bufio.Writer
}

func NewJSONLZstdWriter(dir, prefix string) *JSONLZstdWriter {
	return &JSONLZstdWriter{dir: dir, prefix: prefix, now: time.Now}
}

func (w *JSONLZstdWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.closeLocked()
}

// Write appends v and flushes it through to the zstd frame buffer.
func (w *JSONLZstdWriter) Write(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if hour := w.now().UTC().Format("2006-01-02-15"); hour != w.hour {
		if err := w.rotateLocked(hour); err != nil {
			return err
		}
	}
	if _, err := w.buf.Write(append(b, '\n')); err != nil {
		return err
	}
	return w.buf.Flush()
}

// Path is the file for one UTC hour stamp.
func (w *JSONLZstdWriter) Path(hour string) string {
	return filepath.Join(w.dir, fmt.Sprintf("%s-%s.jsonl.zst", w.prefix, hour))
}

func (w *JSONLZstdWriter) rotateLocked(hour string) error {
	if err := w.closeLocked(); err != nil {
		return err
	}
	if err := os.MkdirAll(w.dir, 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(w.Path(hour), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	enc, err := zstd.NewWriter(f, zstd.WithEncoderLevel(zstd.SpeedFastest))
	if err != nil {
		_ = f.Close()
		return err
	}
	w.f, w.enc, w.hour = f, enc, hour
	w.buf = bufio.NewWriterSize(enc, 64*1024)
	return nil
}

func (w *JSONLZstdWriter) closeLocked() error {
	var err error
	if w.buf != nil {
		err = w.buf.Flush()
		w.buf = nil
	}
	if w.enc != nil {
		if cerr := w.enc.Close(); err == nil {
			err = cerr
		}
		w.enc = nil
	}
	if w.f != nil {
		if cerr := w.f.Close(); err == nil {
			err = cerr
		}
		w.f = nil
	}
	w.hour = ""
	return err
}

// TickLogEntry is one Step of one scene.
type TickLogEntry struct {
	SceneID string           `json:"scene_id"`
	Tick    uint64           `json:"tick"`
	UnixMS  int64            `json:"unix_ms"`
	Report  scene.StepReport `json:"report"`
	Digest  string           `json:"digest,omitempty"`
}

// AuditEntry records one player's build round.
type AuditEntry struct {
	SceneID     string  `json:"scene_id"`
	Tick        uint64  `json:"tick"`
	Player      int     `json:"player"`
	Team        int     `json:"team"`
	Spent       float64 `json:"spent"`
	Placed      int     `json:"placed"`
	AIPlanMoved int     `json:"ai_plan_moved"`
	Budget      float64 `json:"budget_after"`
}

type TickLogger struct{ w *JSONLZstdWriter }

func NewTickLogger(sceneDir string) *TickLogger {
	return &TickLogger{w: NewJSONLZstdWriter(filepath.Join(sceneDir, "ticks"), "ticks")}
}

func (l *TickLogger) WriteTick(e TickLogEntry) error { return l.w.Write(e) }
func (l *TickLogger) Close() error                   { return l.w.Close() }

type AuditLogger struct{ w *JSONLZstdWriter }

func NewAuditLogger(sceneDir string) *AuditLogger {
	return &AuditLogger{w: NewJSONLZstdWriter(filepath.Join(sceneDir, "audit"), "audit")}
}

func (l *AuditLogger) WriteAudit(e AuditEntry) error { return l.w.Write(e) }
func (l *AuditLogger) Close() error                  { return l.w.Close() }
