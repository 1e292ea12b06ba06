package wa

import (
	waLog "go.mau.fi/whatsmeow/util/log"
	"go.uber.org/zap"
)

// zapLogger routes whatsmeow's printf-style logs into zap.
type zapLogger struct {
	s *zap.SugaredLogger
}

// newLogger returns a whatsmeow logger writing to l under the given module
// name.
func newLogger(l *zap.Logger, module string) waLog.Logger {
	return zapLogger{s: l.Named(module).Sugar()}
}

func (z zapLogger) Warnf(msg string, args ...any)  { z.s.Warnf(msg, args...) }
func (z zapLogger) Errorf(msg string, args ...any) { z.s.Errorf(msg, args...) }
func (z zapLogger) Infof(msg string, args ...any)  { z.s.Infof(msg, args...) }
func (z zapLogger) Debugf(msg string, args ...any) { z.s.Debugf(msg, args...) }

func (z zapLogger) Sub(module string) waLog.Logger {
	return zapLogger{s: z.s.Named(module)}
}
