package notifyfake

import (
	"sync"

	"github.com/jrsteele09/go-clinic-auth/notify"
)

var _ notify.Notifier = (*Recorder)(nil)

type Notification struct {
	Level   notify.Level
	Message string
}

// Recorder keeps every notification in order for assertions.
type Recorder struct {
	notifications []Notification
	lock          sync.RWMutex
}

func NewRecorder() *Recorder {
	return &Recorder{}
}

func (r *Recorder) Success(message string) { r.add(notify.LevelSuccess, message) }
func (r *Recorder) Error(message string)   { r.add(notify.LevelError, message) }
func (r *Recorder) Info(message string)    { r.add(notify.LevelInfo, message) }

func (r *Recorder) add(level notify.Level, message string) {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.notifications = append(r.notifications, Notification{Level: level, Message: message})
}

func (r *Recorder) All() []Notification {
	r.lock.RLock()
	defer r.lock.RUnlock()
	return append([]Notification(nil), r.notifications...)
}

// Messages returns the messages recorded at level.
func (r *Recorder) Messages(level notify.Level) []string {
	r.lock.RLock()
	defer r.lock.RUnlock()
	var out []string
	for _, n := range r.notifications {
		if n.Level == level {
			out = append(out, n.Message)
		}
	}
	return out
}

func (r *Recorder) Count() int {
	r.lock.RLock()
	defer r.lock.RUnlock()
	return len(r.notifications)
}

func (r *Recorder) Reset() {
	r.lock.Lock()
	defer r.lock.Unlock()
	r.notifications = nil
}
