package logging

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
)

// Logger provides standardized logging fields for one package and function.
type Logger struct {
	function string
	pkg      string
	fields   logrus.Fields
}

// New creates a new logger with the package and function fields set.
func New(pkg, function string) *Logger {
	return &Logger{
		function: function,
		pkg:      pkg,
		fields: logrus.Fields{
			"function": function,
			"package":  pkg,
		},
	}
}

// WithField adds a custom field to the logger
func (l *Logger) WithField(key string, value interface{}) *Logger {
	l.fields[key] = value
	return l
}

// WithError adds error information to the logger
func (l *Logger) WithError(err error, operation string) *Logger {
	l.fields["error"] = err.Error()
	l.fields["operation"] = operation
	return l
}

// Debug logs a debug message
func (l *Logger) Debug(message string) {
	logrus.WithFields(l.fields).Debug(message)
}

// Info logs an info message
func (l *Logger) Info(message string) {
	logrus.WithFields(l.fields).Info(message)
}

// Warn logs a warning message
func (l *Logger) Warn(message string) {
	logrus.WithFields(l.fields).Warn(message)
}

// Fingerprint formats an OTR fingerprint the way libotr prints it: five
// groups of eight upper-case hex digits.
func Fingerprint(fp []byte) string {
	hex := strings.ToUpper(fmt.Sprintf("%x", fp))
	var b strings.Builder
	for i := 0; i < len(hex); i += 8 {
		if i > 0 {
			b.WriteByte(' ')
		}
		end := i + 8
		if end > len(hex) {
			end = len(hex)
		}
		b.WriteString(hex[i:end])
	}
	return b.String()
}

// ParseLevel maps a textual level to a logrus level, defaulting to info.
func ParseLevel(level string) logrus.Level {
	lvl, err := logrus.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		return logrus.InfoLevel
	}
	return lvl
}
