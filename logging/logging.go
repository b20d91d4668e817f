// Package logging builds the structured logger shared by the server and tools.
package logging

import (
	"log"
	"os"

	"github.com/go-logr/logr"
	"github.com/go-logr/stdr"
)

// New returns a logr.Logger writing through the standard library logger.
// With debug enabled, V(1) lines are emitted as well.
func New(name string, debug bool) logr.Logger {
	if debug {
		stdr.SetVerbosity(1)
	}
	return stdr.NewWithOptions(log.New(os.Stderr, "", log.LstdFlags), stdr.Options{LogCaller: stdr.Error}).WithName(name)
}
