package otel

import (
	"bufio"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/abelbrown/watchfloor/internal/metrics"
)

const (
	// queueSize bounds how many encoded events wait for the writer.
	queueSize = 4096

	// EventFileName is the event log file name inside the data directory.
	EventFileName = "events.jsonl"
)

// Logger appends events to a JSONL stream from a single writer goroutine.
// Emit never blocks: when the queue is full the event is counted as dropped.
// A nil *Logger is valid and discards everything.
type Logger struct {
	sessionID string

	// mu guards closed against the close of queue; Emit holds it shared.
	mu     sync.RWMutex
	closed bool
	queue  chan []byte

	out     *bufio.Writer
	file    io.Closer // set by OpenFile
	dropped atomic.Uint64
	done    chan struct{}
}

// NewLogger starts a Logger writing to w. Close flushes and stops it.
func NewLogger(w io.Writer) *Logger {
	var sid [8]byte
	_, _ = rand.Read(sid[:])

	l := &Logger{
		sessionID: hex.EncodeToString(sid[:]),
		queue:     make(chan []byte, queueSize),
		out:       bufio.NewWriter(w),
		done:      make(chan struct{}),
	}
	go l.writeLoop()
	return l
}

// OpenFile appends to dataDir/events.jsonl. The file is closed by Close.
func OpenFile(dataDir string) (*Logger, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("create data dir: %w", err)
	}
	f, err := os.OpenFile(filepath.Join(dataDir, EventFileName), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("open event log: %w", err)
	}
	l := NewLogger(f)
	l.file = f
	return l, nil
}

// NewNullLogger creates a Logger that discards output.
func NewNullLogger() *Logger {
	return NewLogger(io.Discard)
}

// writeLoop buffers lines and flushes whenever the queue drains, so a burst
// costs one write and an idle log is always on disk.
func (l *Logger) writeLoop() {
	defer close(l.done)
	for line := range l.queue {
		l.write(line)
		for pending := len(l.queue); pending > 0; pending-- {
			more, ok := <-l.queue
			if !ok {
				break
			}
			l.write(more)
		}
		if err := l.out.Flush(); err != nil {
			l.drop()
		}
	}
	if err := l.out.Flush(); err != nil {
		l.drop()
	}
}

func (l *Logger) write(line []byte) {
	if _, err := l.out.Write(line); err != nil {
		l.drop()
	}
}

func (l *Logger) drop() {
	l.dropped.Add(1)
	metrics.EventsDropped.Inc()
}

// Emit queues e. Time defaults to now and SessionID is always stamped.
func (l *Logger) Emit(e Event) {
	if l == nil {
		return
	}
	if e.Time.IsZero() {
		e.Time = time.Now()
	}
	e.SessionID = l.sessionID

	line, err := json.Marshal(e)
	if err != nil {
		l.drop()
		return
	}
	line = append(line, '\n')

	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.closed {
		l.drop()
		return
	}
	select {
	case l.queue <- line:
	default:
		l.drop()
	}
}

// Info emits an info-level event.
func (l *Logger) Info(kind EventKind, comp string, msg string) {
	l.Emit(Event{Level: LevelInfo, Kind: kind, Comp: comp, Msg: msg})
}

// Warn emits a warn-level event.
func (l *Logger) Warn(kind EventKind, comp string, msg string) {
	l.Emit(Event{Level: LevelWarn, Kind: kind, Comp: comp, Msg: msg})
}

// Error emits an error-level event. A nil err leaves Err empty.
func (l *Logger) Error(kind EventKind, comp string, err error) {
	e := Event{Level: LevelError, Kind: kind, Comp: comp}
	if err != nil {
		e.Err = err.Error()
	}
	l.Emit(e)
}

// SessionID returns the random id stamped on every event.
func (l *Logger) SessionID() string {
	if l == nil {
		return ""
	}
	return l.sessionID
}

// Dropped returns the number of events lost since creation.
func (l *Logger) Dropped() uint64 {
	if l == nil {
		return 0
	}
	return l.dropped.Load()
}

// Close flushes queued events and stops the writer. Later Emits are
// dropped. Safe to call more than once.
func (l *Logger) Close() {
	if l == nil {
		return
	}
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return
	}
	l.closed = true
	close(l.queue)
	l.mu.Unlock()

	<-l.done
	if l.file != nil {
		_ = l.file.Close()
	}
}

// ReadEvents decodes up to the last n events from r. Malformed lines are
// skipped. n <= 0 returns everything.
func ReadEvents(r io.Reader, n int) ([]Event, error) {
	var events []Event
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 64*1024), 1024*1024)
	for scanner.Scan() {
		var ev Event
		if err := json.Unmarshal(scanner.Bytes(), &ev); err != nil {
			continue
		}
		events = append(events, ev)
		if n > 0 && len(events) > n {
			events = events[1:]
		}
	}
	if err := scanner.Err(); err != nil {
		return events, fmt.Errorf("scan events: %w", err)
	}
	return events, nil
}
