// Package notify carries user-facing outcome messages. Every user-facing
// client operation ends in exactly one Notice.
package notify

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"
)

// Level is the notice severity.
type Level uint8

const (
	LevelSuccess Level = iota + 1
	LevelError
	LevelInfo
	LevelWarning
)

func (l Level) String() string {
	switch l {
	case LevelSuccess:
		return "success"
	case LevelError:
		return "error"
	case LevelInfo:
		return "info"
	case LevelWarning:
		return "warning"
	default:
		return "unknown"
	}
}

// Notice is one message for the user. AutoClose of zero means sticky.
type Notice struct {
	Level     Level
	Message   string
	AutoClose time.Duration
}

// Presets are the default display durations per level.
var Presets = map[Level]time.Duration{
	LevelSuccess: 3 * time.Second,
	LevelError:   5 * time.Second,
	LevelInfo:    5 * time.Second,
	LevelWarning: 5 * time.Second,
}

func newNotice(l Level, msg string) Notice {
	return Notice{Level: l, Message: msg, AutoClose: Presets[l]}
}

func Success(msg string) Notice { return newNotice(LevelSuccess, msg) }
func Error(msg string) Notice   { return newNotice(LevelError, msg) }
func Info(msg string) Notice    { return newNotice(LevelInfo, msg) }
func Warning(msg string) Notice { return newNotice(LevelWarning, msg) }

// Sticky returns n without auto-close.
func (n Notice) Sticky() Notice {
	n.AutoClose = 0
	return n
}

// Notifier displays notices.
type Notifier interface {
	Notify(ctx context.Context, n Notice)
}

// Discard drops every notice.
type Discard struct{}

func (Discard) Notify(context.Context, Notice) {}

// Recorder keeps notices in memory.
type Recorder struct {
	mu      sync.Mutex
	notices []Notice
}

func (r *Recorder) Notify(_ context.Context, n Notice) {
	r.mu.Lock()
	r.notices = append(r.notices, n)
	r.mu.Unlock()
}

// Notices returns a copy of everything recorded so far.
func (r *Recorder) Notices() []Notice {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notice(nil), r.notices...)
}

// Last returns the most recent notice.
func (r *Recorder) Last() (Notice, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.notices) == 0 {
		return Notice{}, false
	}
	return r.notices[len(r.notices)-1], true
}

// Reset forgets recorded notices.
func (r *Recorder) Reset() {
	r.mu.Lock()
	r.notices = nil
	r.mu.Unlock()
}

// LogNotifier writes notices to a zap logger, for CLIs and headless use.
type LogNotifier struct {
	logger *zap.Logger
}

func NewLogNotifier(l *zap.Logger) *LogNotifier {
	if l == nil {
		l = zap.NewNop()
	}
	return &LogNotifier{logger: l}
}

func (n *LogNotifier) Notify(_ context.Context, notice Notice) {
	fields := []zap.Field{zap.String("level", notice.Level.String())}
	switch notice.Level {
	case LevelError:
		n.logger.Error(notice.Message, fields...)
	case LevelWarning:
		n.logger.Warn(notice.Message, fields...)
	default:
		n.logger.Info(notice.Message, fields...)
	}
}
