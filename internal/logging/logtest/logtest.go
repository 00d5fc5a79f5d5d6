// Package logtest provides a logging.Component backed by testing.T,
// kept out of the main logging package so the shipped Component
// implementation never pulls in the testing package, mirroring
// DataDog's comp/core/log/mock isolation.
package logtest

import (
	"testing"

	"github.com/fleetsignal/idsclient/internal/logging"
)

// New returns a logging.Component that writes through t.Logf.
func New(t *testing.T) logging.Component {
	return &component{t: t}
}

type component struct {
	t *testing.T
}

func (c *component) Tracef(format string, args ...any) { c.t.Logf("TRACE "+format, args...) }
func (c *component) Debugf(format string, args ...any) { c.t.Logf("DEBUG "+format, args...) }
func (c *component) Infof(format string, args ...any)  { c.t.Logf("INFO "+format, args...) }
func (c *component) Warnf(format string, args ...any)  { c.t.Logf("WARN "+format, args...) }
func (c *component) Errorf(format string, args ...any) { c.t.Logf("ERROR "+format, args...) }
