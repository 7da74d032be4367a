package shared

import (
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/go-drift/driftx/pkg/mainthread"
)

// Option configures a Cache.
type Option func(*Cache)

// WithLogger sets the logger used for debug output of attach, release and
// eviction events. The default discards everything.
func WithLogger(l *zap.Logger) Option {
	return func(c *Cache) {
		if l != nil {
			c.logger = l
		}
	}
}

// WithTracer sets the tracer used for Resolve and Release spans.
// The default is the global otel tracer provider.
func WithTracer(t trace.Tracer) Option {
	return func(c *Cache) {
		if t != nil {
			c.tracer = t
		}
	}
}

// WithLoop confines the cache to the loop's goroutine.
func WithLoop(l *mainthread.Loop) Option {
	return func(c *Cache) {
		c.loop = l
	}
}

// WithErrorReporting controls whether dispose failures are also sent to
// errors.DefaultHandler. They are always returned. Enabled by default.
func WithErrorReporting(enabled bool) Option {
	return func(c *Cache) {
		c.report = enabled
	}
}
