package log

import (
	"fmt"

	"github.com/cockroachdb/errors"
	"github.com/rs/zerolog"
)

// extractStacktrace returns the first safe detail recorded by
// cockroachdb/errors, which holds the stack captured by WithStack.
func extractStacktrace(err error) string {
	safeDetails := errors.GetSafeDetails(err).SafeDetails
	if len(safeDetails) > 0 {
		return safeDetails[0]
	}
	return ""
}

// appendError writes err under ErrAttrKey, the stack trace under
// StacktraceAttrKey and, when the error is one of ours, its typed fields.
func appendError(e *zerolog.Event, err error) *zerolog.Event {
	e = e.AnErr(ErrAttrKey, err)
	if st := extractStacktrace(err); st != "" {
		e = e.Str(StacktraceAttrKey, st)
	}
	var m zerolog.LogObjectMarshaler
	if errors.As(err, &m) {
		e = e.Object("details", m)
	}
	return e
}

// appendFields adds alternating key/value pairs to a zerolog context or
// event. A trailing key without a value is logged under "!BADKEY" the way
// slog does.
func appendFields(add func(key string, val any), fields []any) {
	for i := 0; i < len(fields); i++ {
		key, ok := fields[i].(string)
		if !ok {
			add("!BADKEY", fields[i])
			continue
		}
		if i+1 >= len(fields) {
			add("!BADKEY", key)
			break
		}
		add(key, fields[i+1])
		i++
	}
}

func formatValue(v any) any {
	switch x := v.(type) {
	case error:
		return x.Error()
	case fmt.Stringer:
		return x.String()
	default:
		return v
	}
}
