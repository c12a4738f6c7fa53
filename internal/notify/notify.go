// Package notify delivers user-facing success and error messages: as htmx
// toast triggers, over server-sent events and to the log.
package notify

import (
	"encoding/json"

	"github.com/rs/zerolog"
)

type Level string

const (
	LevelSuccess Level = "success"
	LevelError   Level = "error"
)

// Event is one toast.
type Event struct {
	Level   Level  `json:"level"`
	Message string `json:"message"`
}

func (e Event) JSON() string {
	b, _ := json.Marshal(e)
	return string(b)
}

type Notifier interface {
	Success(msg string)
	Error(msg string)
}

// Multi fans every message out to each notifier in order.
type Multi []Notifier

func (m Multi) Success(msg string) {
	for _, n := range m {
		n.Success(msg)
	}
}

func (m Multi) Error(msg string) {
	for _, n := range m {
		n.Error(msg)
	}
}

// Log writes messages to a zerolog logger.
type Log struct {
	Logger zerolog.Logger
}

func (l Log) Success(msg string) {
	l.Logger.Info().Str("level_hint", string(LevelSuccess)).Msg(msg)
}

func (l Log) Error(msg string) {
	l.Logger.Warn().Str("level_hint", string(LevelError)).Msg(msg)
}
