package errors

import (
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"
)

// LogHandler is an ErrorHandler that logs errors to stderr.
type LogHandler struct {
	// Verbose enables detailed output including stack traces.
	Verbose bool
	// Out overrides the destination. Nil means os.Stderr.
	Out io.Writer
}

func (h *LogHandler) out() io.Writer {
	if h.Out != nil {
		return h.Out
	}
	return os.Stderr
}

// HandleError logs a DriftError.
func (h *LogHandler) HandleError(err *DriftError) {
	if err == nil {
		return
	}
	w := h.out()
	if h.Verbose {
		fmt.Fprintf(w, "[driftx error] %s [%s]", err.Op, err.Kind)
		if err.Key != "" {
			fmt.Fprintf(w, " key=%s", err.Key)
		}
		fmt.Fprintf(w, ": %v\n", err.Err)
		if err.StackTrace != "" {
			fmt.Fprintf(w, "Stack trace:\n%s\n", err.StackTrace)
		}
	} else {
		fmt.Fprintf(w, "[driftx error] %s: %v\n", err.Op, err.Err)
	}
}

// HandlePanic logs a PanicError.
func (h *LogHandler) HandlePanic(err *PanicError) {
	if err == nil {
		return
	}
	w := h.out()
	if err.Op != "" {
		fmt.Fprintf(w, "[driftx panic] %s: %v\n", err.Op, err.Value)
	} else {
		fmt.Fprintf(w, "[driftx panic] %v\n", err.Value)
	}
	if h.Verbose && err.StackTrace != "" {
		fmt.Fprintf(w, "Stack trace:\n%s\n", err.StackTrace)
	}
}

// ZapHandler is an ErrorHandler that writes structured entries to a zap logger.
type ZapHandler struct {
	Logger *zap.Logger
}

// NewZapHandler returns a handler logging to l. A nil logger is replaced
// with zap.NewNop.
func NewZapHandler(l *zap.Logger) *ZapHandler {
	if l == nil {
		l = zap.NewNop()
	}
	return &ZapHandler{Logger: l}
}

// HandleError logs a DriftError at error level.
func (h *ZapHandler) HandleError(err *DriftError) {
	if err == nil {
		return
	}
	fields := []zap.Field{
		zap.String("op", err.Op),
		zap.Stringer("kind", err.Kind),
		zap.Error(err.Err),
		zap.Time("at", err.Timestamp),
	}
	if err.Key != "" {
		fields = append(fields, zap.String("key", err.Key))
	}
	if err.StackTrace != "" {
		fields = append(fields, zap.String("stack", err.StackTrace))
	}
	h.Logger.Error("driftx error", fields...)
}

// HandlePanic logs a PanicError at error level.
func (h *ZapHandler) HandlePanic(err *PanicError) {
	if err == nil {
		return
	}
	h.Logger.Error("driftx panic",
		zap.String("op", err.Op),
		zap.Any("value", err.Value),
		zap.String("stack", err.StackTrace),
		zap.Time("at", err.Timestamp),
	)
}
