package utils

import (
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

type LogConfig struct {
	Level      string `json:"level" yaml:"level" mapstructure:"level"`
	Format     string `json:"format" yaml:"format" mapstructure:"format"`
	Output     string `json:"output" yaml:"output" mapstructure:"output"` // console, file, both
	File       string `json:"file" yaml:"file" mapstructure:"file"`
	MaxSize    int    `json:"max_size" yaml:"max_size" mapstructure:"max_size"` // MB
	MaxBackups int    `json:"max_backups" yaml:"max_backups" mapstructure:"max_backups"`
	MaxAge     int    `json:"max_age" yaml:"max_age" mapstructure:"max_age"` // days
	Compress   bool   `json:"compress" yaml:"compress" mapstructure:"compress"`
}

// Logger wraps logrus with a rotating file sink. Console output goes to
// stderr so command output on stdout stays pipeable.
type Logger struct {
	*logrus.Logger
	config   LogConfig
	mu       sync.Mutex
	fileSink io.WriteCloser
	service  string
	version  string
	hostname string
}

func NewLogger(config LogConfig, service, version string) (*Logger, error) {
	return newLogger(config, service, version, os.Stderr)
}

func newLogger(config LogConfig, service, version string, console io.Writer) (*Logger, error) {
	l := &Logger{
		Logger:   logrus.New(),
		config:   normalizeConfig(config),
		service:  service,
		version:  version,
		hostname: getHostname(),
	}

	level, err := logrus.ParseLevel(l.config.Level)
	if err != nil {
		level = logrus.WarnLevel
	}
	l.SetLevel(level)

	switch l.config.Format {
	case "json":
		l.SetFormatter(&logrus.JSONFormatter{
			TimestampFormat: time.RFC3339Nano,
			FieldMap: logrus.FieldMap{
				logrus.FieldKeyTime:  "timestamp",
				logrus.FieldKeyLevel: "severity",
				logrus.FieldKeyMsg:   "message",
			},
		})
	default:
		l.SetFormatter(&logrus.TextFormatter{
			TimestampFormat: time.RFC3339,
			FullTimestamp:   true,
			DisableColors:   l.config.Output != "console",
		})
	}

	if err := l.setOutput(console); err != nil {
		return nil, err
	}

	if l.Level >= logrus.DebugLevel {
		l.AddHook(&CallerHook{})
	}
	l.AddHook(&ServiceHook{
		Service:  service,
		Version:  version,
		Hostname: l.hostname,
	})

	return l, nil
}

func normalizeConfig(c LogConfig) LogConfig {
	c.Level = strings.ToLower(strings.TrimSpace(c.Level))
	if c.Level == "" {
		c.Level = "warn"
	}
	c.Format = strings.ToLower(strings.TrimSpace(c.Format))
	if c.Format == "" {
		c.Format = "text"
	}
	c.Output = strings.ToLower(strings.TrimSpace(c.Output))
	if c.Output == "" {
		c.Output = "console"
		if c.File != "" {
			c.Output = "both"
		}
	}
	c.File = ExpandHome(c.File)
	return c
}

func (l *Logger) setOutput(console io.Writer) error {
	var writers []io.Writer

	wantFile := l.config.Output == "file" || l.config.Output == "both"
	if wantFile && l.config.File != "" {
		if err := os.MkdirAll(filepath.Dir(l.config.File), 0o755); err != nil {
			return err
		}
		lj := &lumberjack.Logger{
			Filename:   l.config.File,
			MaxSize:    maxInt(1, l.config.MaxSize),
			MaxBackups: maxInt(0, l.config.MaxBackups),
			MaxAge:     maxInt(0, l.config.MaxAge),
			Compress:   l.config.Compress,
		}
		l.fileSink = lj
		writers = append(writers, lj)
	}

	if l.config.Output == "console" || l.config.Output == "both" || len(writers) == 0 {
		writers = append(writers, console)
	}

	l.SetOutput(io.MultiWriter(writers...))
	return nil
}

func (l *Logger) Close() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.fileSink != nil {
		return l.fileSink.Close()
	}
	return nil
}

// WithRequestID tags entries with the id sent in the X-Request-ID header.
func WithRequestID(l logrus.FieldLogger, requestID string) *logrus.Entry {
	return l.WithField("request_id", requestID)
}

func WithComponent(l logrus.FieldLogger, component string) *logrus.Entry {
	return l.WithField("component", component)
}

type CallerHook struct{}

func (h *CallerHook) Levels() []logrus.Level { return logrus.AllLevels }

func (h *CallerHook) Fire(entry *logrus.Entry) error {
	if _, ok := entry.Data["caller"]; ok {
		return nil
	}

	const maxDepth = 25
	for i := 4; i < 4+maxDepth; i++ {
		pc, file, line, ok := runtime.Caller(i)
		if !ok {
			break
		}
		fnName := ""
		if fn := runtime.FuncForPC(pc); fn != nil {
			fnName = fn.Name()
		}
		if strings.Contains(file, "/sirupsen/logrus") || strings.Contains(file, "/pkg/utils/logger.go") {
			continue
		}
		entry.Data["caller"] = shortFunc(fnName) + ":" + filepath.Base(file) + ":" + strconv.Itoa(line)
		break
	}
	return nil
}

func shortFunc(full string) string {
	if idx := strings.LastIndex(full, "/"); idx >= 0 && idx+1 < len(full) {
		full = full[idx+1:]
	}
	return full
}

type ServiceHook struct {
	Service  string
	Version  string
	Hostname string
}

func (h *ServiceHook) Levels() []logrus.Level { return logrus.AllLevels }

func (h *ServiceHook) Fire(entry *logrus.Entry) error {
	entry.Data["service"] = h.Service
	entry.Data["version"] = h.Version
	entry.Data["hostname"] = h.Hostname
	return nil
}

func getHostname() string {
	hostname, err := os.Hostname()
	if err != nil {
		return "unknown"
	}
	return hostname
}

// DefaultLogger is a console-only logger used when the configured one cannot
// be built.
func DefaultLogger(service, version string) *Logger {
	cfg := LogConfig{
		Level:      "warn",
		Format:     "text",
		Output:     "console",
		MaxSize:    20,
		MaxBackups: 5,
		MaxAge:     30,
		Compress:   true,
	}
	logger, err := NewLogger(cfg, service, version)
	if err != nil {
		fb := logrus.New()
		fb.SetOutput(os.Stderr)
		return &Logger{Logger: fb}
	}
	return logger
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
