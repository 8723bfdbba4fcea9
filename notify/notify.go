// Package notify delivers operator-facing outcome messages (the toast
// notifications of a UI) to a log or a test recorder.
package notify

import (
	"sync"

	"github.com/charmbracelet/log"
)

// Level is the severity of a notification.
type Level string

const (
	Success Level = "success"
	Warning Level = "warning"
	Danger  Level = "danger"
)

// Notification is a single outcome message.
type Notification struct {
	Level Level
	Title string
	Body  string
}

// Notifier receives notifications.
type Notifier interface {
	Notify(n Notification)
}

// Log writes notifications through a charmbracelet logger.
type Log struct {
	Logger *log.Logger
}

// NewLog returns a Notifier writing to logger.
func NewLog(logger *log.Logger) *Log {
	return &Log{Logger: logger}
}

func (l *Log) Notify(n Notification) {
	kv := []any{"notify", string(n.Level)}
	if n.Body != "" {
		kv = append(kv, "detail", n.Body)
	}
	switch n.Level {
	case Danger:
		l.Logger.Error(n.Title, kv...)
	case Warning:
		l.Logger.Warn(n.Title, kv...)
	default:
		l.Logger.Info(n.Title, kv...)
	}
}

// Recorder keeps every notification in memory.
type Recorder struct {
	mu   sync.Mutex
	sent []Notification
}

func (r *Recorder) Notify(n Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sent = append(r.sent, n)
}

// All returns the notifications received so far.
func (r *Recorder) All() []Notification {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Notification(nil), r.sent...)
}

// Last returns the most recent notification and whether there was one.
func (r *Recorder) Last() (Notification, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if len(r.sent) == 0 {
		return Notification{}, false
	}
	return r.sent[len(r.sent)-1], true
}
