package robotd

import (
	"golang.org/x/time/rate"

	"github.com/frcnet/robotcom/logging"
)

// Reporter is the single error-reporting sink for the daemon: every
// parse error, reset event and bind retry funnels through it. Hook
// panics are logged by package hooks through its own logger.
// The default sink logs through logging.Logger; callers may install a
// different sink (e.g. to surface errors in a UI) via WithSink.
type Reporter struct {
	log     logging.Logger
	limiter *rate.Limiter
	sink    func(msg string, fields ...interface{})
}

// NewReporter returns a Reporter that logs at most burst events
// immediately and refills at rps events/sec afterward, so a burst of
// malformed packets cannot flood the log.
func NewReporter(log logging.Logger, rps float64, burst int) *Reporter {
	return &Reporter{log: log, limiter: rate.NewLimiter(rate.Limit(rps), burst)}
}

// WithSink installs an alternate reporting sink in place of the default
// logger.
func (r *Reporter) WithSink(sink func(msg string, fields ...interface{})) *Reporter {
	r.sink = sink
	return r
}

// Report funnels msg/fields through the rate limiter and then to the
// installed sink (or the logger by default).
func (r *Reporter) Report(msg string, fields ...interface{}) {
	if !r.limiter.Allow() {
		return
	}
	if r.sink != nil {
		r.sink(msg, fields...)
		return
	}
	r.log.Warnw(msg, fields...)
}
