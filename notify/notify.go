// Package notify carries user-facing messages from the session layer to
// whatever surface the host renders them on.
package notify

import "github.com/rs/zerolog"

type Level string

const (
	LevelSuccess Level = "success"
	LevelError   Level = "error"
	LevelInfo    Level = "info"
)

type Notifier interface {
	Success(message string)
	Error(message string)
	Info(message string)
}

// LogNotifier writes each message as a log event, info for success and info
// messages, warn for errors.
type LogNotifier struct {
	logger zerolog.Logger
}

var _ Notifier = (*LogNotifier)(nil)

func NewLogNotifier(logger zerolog.Logger) *LogNotifier {
	return &LogNotifier{logger: logger}
}

func (n *LogNotifier) Success(message string) {
	n.logger.Info().Str("level_hint", string(LevelSuccess)).Msg(message)
}

func (n *LogNotifier) Error(message string) {
	n.logger.Warn().Str("level_hint", string(LevelError)).Msg(message)
}

func (n *LogNotifier) Info(message string) {
	n.logger.Info().Str("level_hint", string(LevelInfo)).Msg(message)
}

// Nop discards every message.
type Nop struct{}

func (Nop) Success(string) {}
func (Nop) Error(string)   {}
func (Nop) Info(string)    {}
