package mt7927

import (
	"context"
	"log/slog"
)

const levelTrace slog.Level = slog.LevelDebug - 1

// logattrs funnels all package logging through one call site. A nil
// logger disables output entirely; probing must be runnable with zero
// logging overhead.
func logattrs(l *slog.Logger, level slog.Level, msg string, attrs ...slog.Attr) {
	if l == nil || !l.Handler().Enabled(context.Background(), level) {
		return
	}
	l.LogAttrs(context.Background(), level, msg, attrs...)
}

func (d *Device) logerr(msg string, attrs ...slog.Attr) {
	logattrs(d.logger, slog.LevelError, msg, attrs...)
}

func (d *Device) warn(msg string, attrs ...slog.Attr) {
	logattrs(d.logger, slog.LevelWarn, msg, attrs...)
}

func (d *Device) info(msg string, attrs ...slog.Attr) {
	logattrs(d.logger, slog.LevelInfo, msg, attrs...)
}

func (d *Device) debug(msg string, attrs ...slog.Attr) {
	logattrs(d.logger, slog.LevelDebug, msg, attrs...)
}

func (s *Sequencer) info(msg string, attrs ...slog.Attr) {
	logattrs(s.logger, slog.LevelInfo, msg, attrs...)
}

func (s *Sequencer) warn(msg string, attrs ...slog.Attr) {
	logattrs(s.logger, slog.LevelWarn, msg, attrs...)
}

func (s *Sequencer) debug(msg string, attrs ...slog.Attr) {
	logattrs(s.logger, slog.LevelDebug, msg, attrs...)
}

func (s *Sequencer) trace(msg string, attrs ...slog.Attr) {
	logattrs(s.logger, levelTrace, msg, attrs...)
}

// hex32 formats register values the way the probe logs always have.
func hex32(u uint32) string {
	const hextable = "0123456789abcdef"
	var b [10]byte
	b[0], b[1] = '0', 'x'
	for i := 0; i < 8; i++ {
		b[2+i] = hextable[(u>>uint(28-4*i))&0xf]
	}
	return string(b[:])
}
