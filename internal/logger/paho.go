package logger

import (
	"fmt"
	"strings"

	"github.com/sirupsen/logrus"
)

// PahoLogger routes the paho client's internal loggers into logrus.
// It satisfies mqtt.Logger (Println/Printf).
type PahoLogger struct {
	entry *logrus.Entry
	level logrus.Level
}

// NewPahoLogger returns a paho logger writing at the given level.
func NewPahoLogger(l *Log, level logrus.Level) PahoLogger {
	return PahoLogger{entry: l.With(Fields{"module": "paho"}).Entry, level: level}
}

func (p PahoLogger) Println(v ...interface{}) {
	p.entry.Log(p.level, strings.TrimSuffix(fmt.Sprintln(v...), "\n"))
}

func (p PahoLogger) Printf(format string, v ...interface{}) {
	p.entry.Logf(p.level, strings.TrimSuffix(format, "\n"), v...)
}
