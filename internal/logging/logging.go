// Package logging provides the leveled-logging interface every actor in
// this module takes, mirroring the log.Component pattern used throughout
// DataDog's agent components.
package logging

import (
	"go.uber.org/zap"
)

// Component is a small leveled-logging interface. Production code depends
// on this interface, never on *zap.Logger directly, so tests can swap in
// NewNop or logtest.New without threading a concrete logger type everywhere.
type Component interface {
	Tracef(format string, args ...any)
	Debugf(format string, args ...any)
	Infof(format string, args ...any)
	Warnf(format string, args ...any)
	Errorf(format string, args ...any)
}

type zapComponent struct {
	logger *zap.SugaredLogger
}

// New wraps a zap logger as a Component. zap has no built-in "trace"
// level; it is mapped to Debug so trace-level messages remain visible at
// debug verbosity rather than silently disappearing.
func New(logger *zap.Logger) Component {
	return &zapComponent{logger: logger.Sugar()}
}

// NewProduction builds a Component backed by zap's production encoder
// (JSON, info level and above by default).
func NewProduction() (Component, error) {
	logger, err := zap.NewProduction()
	if err != nil {
		return nil, err
	}
	return New(logger), nil
}

func (c *zapComponent) Tracef(format string, args ...any) { c.logger.Debugf(format, args...) }
func (c *zapComponent) Debugf(format string, args ...any) { c.logger.Debugf(format, args...) }
func (c *zapComponent) Infof(format string, args ...any)  { c.logger.Infof(format, args...) }
func (c *zapComponent) Warnf(format string, args ...any)  { c.logger.Warnf(format, args...) }
func (c *zapComponent) Errorf(format string, args ...any) { c.logger.Errorf(format, args...) }

type nopComponent struct{}

// NewNop returns a Component that discards everything, for tests and
// defaults where no logger is configured.
func NewNop() Component { return nopComponent{} }

func (nopComponent) Tracef(string, ...any) {}
func (nopComponent) Debugf(string, ...any) {}
func (nopComponent) Infof(string, ...any)  {}
func (nopComponent) Warnf(string, ...any)  {}
func (nopComponent) Errorf(string, ...any) {}
