package logger

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"browser-pilot/internal/application/port/output"
)

var _ output.LoggerPort = (*ZapLogger)(nil)

// ZapLogger writes to the console through zap and forwards every record to
// a per-run JSON log file through the coalesced forwarder, so slow disk
// writes never block the pipeline.
type ZapLogger struct {
	sugar     *zap.SugaredLogger
	forwarder *Forwarder
	file      *os.File
	fields    map[string]any
}

type Config struct {
	// RunName becomes part of the log file name under Dir.
	RunName string
	Dir     string
	Debug   bool
}

func DefaultConfig(runName string) Config {
	return Config{RunName: runName, Dir: "log"}
}

func NewZapLogger(cfg Config) (*ZapLogger, error) {
	zapCfg := zap.NewProductionConfig()
	zapCfg.Encoding = "console"
	zapCfg.EncoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	if cfg.Debug {
		zapCfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	base, err := zapCfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		return nil, fmt.Errorf("failed to build zap logger: %w", err)
	}

	if err := os.MkdirAll(cfg.Dir, 0o755); err != nil {
		return nil, fmt.Errorf("create log dir: %w", err)
	}
	filename := fmt.Sprintf("%s_%s.log", time.Now().Format("2006-01-02_15-04-05"), sanitize(cfg.RunName))
	file, err := os.Create(filepath.Join(cfg.Dir, filename))
	if err != nil {
		return nil, fmt.Errorf("create log file: %w", err)
	}

	l := &ZapLogger{
		sugar:  base.Sugar(),
		file:   file,
		fields: map[string]any{},
	}
	l.forwarder = NewForwarder(l.writeBatch)
	return l, nil
}

func (l *ZapLogger) writeBatch(batch []Record) {
	for _, r := range batch {
		data, err := json.Marshal(r)
		if err != nil {
			fmt.Fprintf(l.file, `{"timestamp":%q,"level":"ERROR","message":"marshal error: %v"}`+"\n",
				time.Now().Format(time.RFC3339), err)
			continue
		}
		l.file.Write(data)
		l.file.WriteString("\n")
	}
}

func (l *ZapLogger) log(level string, msg string, args []any) {
	fields := make(map[string]any, len(l.fields)+len(args)/2)
	for k, v := range l.fields {
		fields[k] = v
	}
	for i := 0; i+1 < len(args); i += 2 {
		if key, ok := args[i].(string); ok {
			fields[key] = args[i+1]
		}
	}
	l.forwarder.Enqueue(Record{Time: time.Now(), Level: level, Message: msg, Fields: fields})
}

func (l *ZapLogger) Debug(msg string, args ...any) {
	l.sugar.Debugw(msg, args...)
	l.log("DEBUG", msg, args)
}

func (l *ZapLogger) Info(msg string, args ...any) {
	l.sugar.Infow(msg, args...)
	l.log("INFO", msg, args)
}

func (l *ZapLogger) Warn(msg string, args ...any) {
	l.sugar.Warnw(msg, args...)
	l.log("WARN", msg, args)
}

func (l *ZapLogger) Error(msg string, args ...any) {
	l.sugar.Errorw(msg, args...)
	l.log("ERROR", msg, args)
}

func (l *ZapLogger) WithField(key string, value any) output.LoggerPort {
	return l.WithFields(map[string]any{key: value})
}

func (l *ZapLogger) WithFields(fields map[string]any) output.LoggerPort {
	merged := make(map[string]any, len(l.fields)+len(fields))
	for k, v := range l.fields {
		merged[k] = v
	}
	args := make([]any, 0, len(fields)*2)
	for k, v := range fields {
		merged[k] = v
		args = append(args, k, v)
	}
	return &ZapLogger{
		sugar:     l.sugar.With(args...),
		forwarder: l.forwarder,
		file:      l.file,
		fields:    merged,
	}
}

func (l *ZapLogger) Close() error {
	l.forwarder.Close()
	_ = l.sugar.Sync()
	if l.file == nil {
		return nil
	}
	return l.file.Close()
}

func sanitize(s string) string {
	result := make([]rune, 0, len(s))
	for _, r := range s {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') || r == '-' || r == '_' {
			result = append(result, r)
		} else {
			result = append(result, '_')
		}
	}
	s = string(result)
	if s == "" {
		return "run"
	}
	if len(s) > 60 {
		s = s[:60]
	}
	return s
}
