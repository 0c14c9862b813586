package ringchannel

import (
	"github.com/rs/zerolog"
)

// Reporter is used to report back-pressure and warnings from the helpers.
type Reporter interface {
	Full(pending int) // A packet was spooled because the ring was full.
	Warn(msg string)  // A warning message was generated.
}

// Assert reporter implements Reporter.
var _ Reporter = reporter{}

// reporter is a struct that satisfies the Reporter interface, but
// doesn't actually do anything. Just in case no Reporter is set.
type reporter struct{}

func (r reporter) Full(pending int) {}
func (r reporter) Warn(msg string)  {}

// LogReporter writes reports to a zerolog.Logger.
type LogReporter struct {
	log zerolog.Logger
}

// NewLogReporter returns a Reporter that logs through l.
func NewLogReporter(l zerolog.Logger) *LogReporter {
	return &LogReporter{log: l}
}

// Full logs at debug level for every spooled packet and at warn level
// whenever the backlog reaches a power of two.
func (r *LogReporter) Full(pending int) {
	if pending&(pending-1) == 0 {
		r.log.Warn().Int("pending", pending).Msg("ring buffer full, spooling (consider a larger ring)")
		return
	}
	r.log.Debug().Int("pending", pending).Msg("ring buffer full, spooling")
}

// Warn logs msg at warn level.
func (r *LogReporter) Warn(msg string) {
	r.log.Warn().Msg(msg)
}
