package logging

import (
	"strings"

	"github.com/sirupsen/logrus"
)

// SinkHook forwards log entries to the host application's log sink.
type SinkHook struct {
	sink      func(string)
	levels    []logrus.Level
	formatter logrus.Formatter
}

// NewSinkHook returns a hook that hands every entry at or above minLevel to
// sink as a single newline-terminated line.
func NewSinkHook(sink func(string), minLevel logrus.Level) *SinkHook {
	levels := make([]logrus.Level, 0, len(logrus.AllLevels))
	for _, lvl := range logrus.AllLevels {
		if lvl <= minLevel {
			levels = append(levels, lvl)
		}
	}
	return &SinkHook{
		sink:   sink,
		levels: levels,
		formatter: &logrus.TextFormatter{
			DisableColors:    true,
			DisableTimestamp: true,
		},
	}
}

// Levels implements logrus.Hook.
func (h *SinkHook) Levels() []logrus.Level {
	return h.levels
}

// Fire implements logrus.Hook.
func (h *SinkHook) Fire(entry *logrus.Entry) error {
	if h.sink == nil {
		return nil
	}
	line, err := h.formatter.Format(entry)
	if err != nil {
		return err
	}
	text := string(line)
	if !strings.HasSuffix(text, "\n") {
		text += "\n"
	}
	h.sink(text)
	return nil
}
