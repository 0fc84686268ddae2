package artifact

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/roach88/roadrunner/internal/model"
)

// Step lifecycle actions recorded in steps.ldjson.
const (
	ActionStart = "start"
	ActionEnd   = "end"
)

// StepEvent identifies the invocation an event belongs to.
type StepEvent struct {
	SubRunID   string
	Step       string
	Adapter    string
	Parameters model.Values
}

// EventLog appends one JSON object per line to a sub-run's steps.ldjson.
//
// Records are encoded by a zap JSON core whose sink opens the file in
// append mode, writes one record, and closes it again. Write failures are
// kept for Err instead of going to stderr.
type EventLog struct {
	logger *zap.Logger
	sink   *appendFile
}

// NewEventLog creates the log at path. Parent directories are created. A nil
// clock uses wall time.
func NewEventLog(path string, clock zapcore.Clock) (*EventLog, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("create event log dir: %w", err)
	}

	enc := zapcore.NewJSONEncoder(zapcore.EncoderConfig{
		MessageKey:     "event",
		TimeKey:        "timestamp",
		LineEnding:     zapcore.DefaultLineEnding,
		EncodeTime:     utcTimeEncoder,
		EncodeDuration: zapcore.SecondsDurationEncoder,
	})
	sink := &appendFile{path: path}
	core := zapcore.NewCore(enc, sink, zapcore.DebugLevel)

	opts := []zap.Option{zap.ErrorOutput(zapcore.AddSync(io.Discard))}
	if clock != nil {
		opts = append(opts, zap.WithClock(clock))
	}
	return &EventLog{logger: zap.New(core, opts...), sink: sink}, nil
}

// Err returns the first write failure, nil if every record was written.
func (l *EventLog) Err() error {
	return l.sink.failure()
}

// Start records that an invocation is about to run.
func (l *EventLog) Start(ev StepEvent) {
	l.logger.Info("step", append(ev.fields(), zap.String("action", ActionStart))...)
}

// End records the outcome of an invocation. errMsg is null in the record
// when empty.
func (l *EventLog) End(ev StepEvent, status string, duration time.Duration, errMsg string) {
	fields := append(ev.fields(),
		zap.String("action", ActionEnd),
		zap.String("status", status),
		zap.Float64("duration_s", duration.Seconds()),
	)
	if errMsg != "" {
		fields = append(fields, zap.String("error", errMsg))
	} else {
		fields = append(fields, zap.Reflect("error", nil))
	}
	l.logger.Info("step", fields...)
}

func (ev StepEvent) fields() []zap.Field {
	return []zap.Field{
		zap.String("run_id", ev.SubRunID),
		zap.String("step", ev.Step),
		zap.String("adapter", ev.Adapter),
		zap.Reflect("parameters", ev.Parameters),
	}
}

func utcTimeEncoder(t time.Time, enc zapcore.PrimitiveArrayEncoder) {
	enc.AppendString(Timestamp(t))
}

// appendFile is a WriteSyncer that holds no open handle between writes.
type appendFile struct {
	path string

	mu  sync.Mutex
	err error
}

func (f *appendFile) Write(p []byte) (int, error) {
	n, err := f.write(p)
	if err != nil {
		f.mu.Lock()
		if f.err == nil {
			f.err = fmt.Errorf("write event log %s: %w", f.path, err)
		}
		f.mu.Unlock()
	}
	return n, err
}

func (f *appendFile) write(p []byte) (int, error) {
	fh, err := os.OpenFile(f.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return 0, err
	}
	n, werr := fh.Write(p)
	if cerr := fh.Close(); werr == nil {
		werr = cerr
	}
	return n, werr
}

func (f *appendFile) Sync() error { return nil }

func (f *appendFile) failure() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.err
}
