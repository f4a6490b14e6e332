package status

import (
	"fmt"
	"io"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// #region level
// Level is the severity of a status line.
type Level string

const (
	Info    Level = "Info"
	Warning Level = "Warning"
	Error   Level = "Error"
)

// #endregion level

// #region surface
// Surface is the text panel a tick reports on. Refresh clears it; Flush writes the current
// lines to the sink. Every message is mirrored to the logger.
type Surface struct {
	mu    sync.Mutex
	lines []string
	sink  io.Writer
	log   *zap.Logger
}

// NewSurface creates a surface writing to sink. A nil logger disables mirroring.
func NewSurface(sink io.Writer, log *zap.Logger) *Surface {
	if log == nil {
		log = zap.NewNop()
	}
	return &Surface{sink: sink, log: log}
}

// Refresh drops all lines from the previous tick.
func (s *Surface) Refresh() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lines = s.lines[:0]
}

func (s *Surface) Infof(format string, args ...any) { s.add(Info, format, args...) }

func (s *Surface) Warnf(format string, args ...any) { s.add(Warning, format, args...) }

func (s *Surface) Errorf(format string, args ...any) { s.add(Error, format, args...) }

func (s *Surface) add(level Level, format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	switch level {
	case Warning:
		s.log.Warn(msg)
	case Error:
		s.log.Error(msg)
	default:
		s.log.Info(msg)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.lines = append(s.lines, fmt.Sprintf("[%s] %s", level, msg))
}

// Lines returns a copy of the current lines.
func (s *Surface) Lines() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.lines...)
}

// Text renders the current lines, one per row.
func (s *Surface) Text() string {
	return strings.Join(s.Lines(), "\n")
}

// Flush writes the current lines to the sink.
func (s *Surface) Flush() error {
	if s.sink == nil {
		return nil
	}
	text := s.Text()
	if text == "" {
		return nil
	}
	_, err := io.WriteString(s.sink, text+"\n")
	return err
}

// #endregion surface
