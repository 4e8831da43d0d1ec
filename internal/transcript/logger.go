// Package transcript writes an asynchronous NDJSON log of every assistant
// conversation, one file per profile and ticket plus an optional rotated
// global file.
package transcript

import (
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ashureev/techassist/internal/domain"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

const defaultQueueSize = 1024

// Config controls transcript logging.
type Config struct {
	Enabled       bool
	Dir           string
	GlobalEnabled bool
	GlobalPath    string
	// GlobalMaxSizeMB is the rotation threshold of the global file.
	GlobalMaxSizeMB int
	QueueSize       int
}

// Event is one line of the transcript.
type Event struct {
	Timestamp          time.Time `json:"ts"`
	ProfileID          string    `json:"profile_id"`
	TicketID           string    `json:"ticket_id"`
	Sender             string    `json:"sender"`
	MessageTimestamp   int64     `json:"message_ts,omitempty"`
	IsInitialTurn      bool      `json:"is_initial_turn,omitempty"`
	IsStructuredRecord bool      `json:"is_structured_record,omitempty"`
	Content            string    `json:"content"`
	ContentRaw         string    `json:"content_raw,omitempty"`
}

// Logger queues events and writes them from a single goroutine. Events
// are dropped when the queue is full.
type Logger struct {
	cfg    Config
	logger *slog.Logger

	mu     sync.RWMutex
	closed bool
	queue  chan Event
	done   chan struct{}

	global  io.WriteCloser
	files   map[string]*os.File
	dropped atomic.Int64
}

// New creates a transcript logger. A disabled config yields a logger that
// discards everything.
func New(cfg Config, logger *slog.Logger) (*Logger, error) {
	if logger == nil {
		logger = slog.Default()
	}
	l := &Logger{cfg: cfg, logger: logger, files: make(map[string]*os.File)}
	if !cfg.Enabled {
		l.closed = true
		return l, nil
	}

	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create transcript dir: %w", err)
	}
	if cfg.GlobalEnabled && cfg.GlobalPath != "" {
		if err := os.MkdirAll(filepath.Dir(cfg.GlobalPath), 0o755); err != nil {
			return nil, fmt.Errorf("create global transcript dir: %w", err)
		}
		maxSize := cfg.GlobalMaxSizeMB
		if maxSize <= 0 {
			maxSize = 50
		}
		l.global = &lumberjack.Logger{
			Filename:   cfg.GlobalPath,
			MaxSize:    maxSize,
			MaxBackups: 5,
			MaxAge:     28,
			Compress:   true,
		}
	}

	size := cfg.QueueSize
	if size <= 0 {
		size = defaultQueueSize
	}
	l.queue = make(chan Event, size)
	l.done = make(chan struct{})
	go l.run()
	return l, nil
}

// Record implements chat.Recorder.
func (l *Logger) Record(profileID, ticketID string, msg domain.ChatMessage) {
	l.Log(Event{
		ProfileID:          profileID,
		TicketID:           ticketID,
		Sender:             string(msg.Sender),
		MessageTimestamp:   msg.Timestamp,
		IsInitialTurn:      msg.IsInitialTurn,
		IsStructuredRecord: msg.IsStructuredRecord,
		ContentRaw:         msg.Text,
	})
}

// Log enqueues an event without blocking.
func (l *Logger) Log(e Event) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		return
	}

	if e.Timestamp.IsZero() {
		e.Timestamp = time.Now().UTC()
	}
	if e.Content == "" {
		e.Content = cleanForReadability(e.ContentRaw)
	}

	select {
	case l.queue <- e:
	default:
		if n := l.dropped.Add(1); n == 1 || n%100 == 0 {
			l.logger.Warn("Transcript queue full, dropping events", "dropped", n)
		}
	}
}

// Dropped returns how many events were discarded because the queue was full.
func (l *Logger) Dropped() int64 {
	return l.dropped.Load()
}

// Close drains the queue and closes all files.
func (l *Logger) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	close(l.queue)
	l.mu.Unlock()

	<-l.done

	var firstErr error
	for key, f := range l.files {
		if err := f.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close transcript %s: %w", key, err)
		}
	}
	if l.global != nil {
		if err := l.global.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("close global transcript: %w", err)
		}
	}
	return firstErr
}

func (l *Logger) run() {
	defer close(l.done)
	for e := range l.queue {
		line, err := json.Marshal(e)
		if err != nil {
			l.logger.Warn("Failed to encode transcript event", "error", err)
			continue
		}
		line = append(line, '\n')

		if f, err := l.fileFor(e.ProfileID, e.TicketID); err != nil {
			l.logger.Warn("Failed to open transcript file", "error", err, "profile_id", e.ProfileID)
		} else if _, err := f.Write(line); err != nil {
			l.logger.Warn("Failed to write transcript", "error", err, "profile_id", e.ProfileID)
		}

		if l.global != nil {
			if _, err := l.global.Write(line); err != nil {
				l.logger.Warn("Failed to write global transcript", "error", err)
			}
		}
	}
}

func (l *Logger) fileFor(profileID, ticketID string) (*os.File, error) {
	dir := filepath.Join(l.cfg.Dir, safeName(profileID))
	path := filepath.Join(dir, safeName(ticketID)+".ndjson")
	if f, ok := l.files[path]; ok {
		return f, nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return nil, err
	}
	l.files[path] = f
	return f, nil
}

var unsafeNameChars = regexp.MustCompile(`[^A-Za-z0-9._-]`)

func safeName(s string) string {
	s = unsafeNameChars.ReplaceAllString(s, "_")
	s = strings.Trim(s, ".")
	if s == "" {
		return "unknown"
	}
	return s
}

var (
	ansiPattern       = regexp.MustCompile(`\x1b\[[0-9;?]*[ -/]*[@-~]`)
	blankLinesPattern = regexp.MustCompile(`\n{3,}`)
)

// cleanForReadability strips terminal escapes and control characters and
// squeezes runs of blank lines.
func cleanForReadability(s string) string {
	s = ansiPattern.ReplaceAllString(s, "")
	s = strings.ReplaceAll(s, "\r\n", "\n")
	s = strings.Map(func(r rune) rune {
		if r == '\n' || r == '\t' {
			return r
		}
		if r < 0x20 || r == 0x7f {
			return -1
		}
		return r
	}, s)
	s = blankLinesPattern.ReplaceAllString(s, "\n\n")
	return strings.TrimSpace(s)
}
