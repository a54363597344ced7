package logging

import (
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Fields is one structured event line. Empty fields are omitted.
type Fields struct {
	Service    string
	SessionID  string
	OrderID    string
	EventID    string
	Step       string
	Status     string
	DurationMS int64
	Message    string
	Err        error
}

type Logger struct {
	z       *zap.Logger
	service string
}

// New builds a JSON logger for service. dev switches to the console encoder
// at debug level.
func New(service string, dev bool) (*Logger, error) {
	var cfg zap.Config
	if dev {
		cfg = zap.NewDevelopmentConfig()
	} else {
		cfg = zap.NewProductionConfig()
		cfg.EncoderConfig.TimeKey = "timestamp"
		cfg.EncoderConfig.EncodeTime = zapcore.RFC3339NanoTimeEncoder
	}
	z, err := cfg.Build()
	if err != nil {
		return nil, err
	}
	return Wrap(z, service), nil
}

func Wrap(z *zap.Logger, service string) *Logger {
	return &Logger{z: z.With(zap.String("service", service)), service: service}
}

func NewNop() *Logger {
	return &Logger{z: zap.NewNop()}
}

func (l *Logger) Zap() *zap.Logger {
	return l.z
}

func (l *Logger) Service() string {
	return l.service
}

func (l *Logger) Sync() error {
	return l.z.Sync()
}

// Log writes f at info level, or at error level when f.Err is set.
func (l *Logger) Log(f Fields) {
	if l == nil {
		return
	}
	msg := f.Message
	if msg == "" {
		msg = f.Step
	}
	zf := fieldsOf(f)
	if f.Err != nil {
		l.z.Error(msg, zf...)
		return
	}
	l.z.Info(msg, zf...)
}

func (l *Logger) Since(f Fields, start time.Time) {
	f.DurationMS = time.Since(start).Milliseconds()
	l.Log(f)
}

func fieldsOf(f Fields) []zap.Field {
	out := make([]zap.Field, 0, 8)
	if f.Service != "" {
		out = append(out, zap.String("component", f.Service))
	}
	if f.SessionID != "" {
		out = append(out, zap.String("session_id", f.SessionID))
	}
	if f.OrderID != "" {
		out = append(out, zap.String("order_id", f.OrderID))
	}
	if f.EventID != "" {
		out = append(out, zap.String("event_id", f.EventID))
	}
	if f.Step != "" {
		out = append(out, zap.String("step", f.Step))
	}
	if f.Status != "" {
		out = append(out, zap.String("status", f.Status))
	}
	if f.DurationMS != 0 {
		out = append(out, zap.Int64("duration_ms", f.DurationMS))
	}
	if f.Err != nil {
		out = append(out, zap.Error(f.Err))
	}
	return out
}
