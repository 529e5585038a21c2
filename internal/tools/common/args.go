package common

import (
	"context"
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// TimeoutArg is the optional per-call timeout argument, in seconds.
const TimeoutArg = "timeoutSeconds"

// StringArg returns args[key] as a trimmed string, or "".
func StringArg(args map[string]any, key string) string {
	s, _ := args[key].(string)
	return strings.TrimSpace(s)
}

// IntArg returns args[key] as an int. A missing argument returns def.
// JSON numbers arrive as float64; numeric strings are accepted too.
func IntArg(args map[string]any, key string, def int) (int, error) {
	v, ok := args[key]
	if !ok || v == nil {
		return def, nil
	}
	switch n := v.(type) {
	case float64:
		if n != math.Trunc(n) {
			return 0, fmt.Errorf("%s must be a whole number", key)
		}
		return int(n), nil
	case int:
		return n, nil
	case int64:
		return int(n), nil
	case string:
		if strings.TrimSpace(n) == "" {
			return def, nil
		}
		i, err := strconv.Atoi(strings.TrimSpace(n))
		if err != nil {
			return 0, fmt.Errorf("%s must be a number", key)
		}
		return i, nil
	default:
		return 0, fmt.Errorf("%s must be a number", key)
	}
}

// Timeout reads timeoutSeconds from args. A missing or zero value returns
// def.
func Timeout(args map[string]any, def time.Duration) (time.Duration, error) {
	secs, err := IntArg(args, TimeoutArg, 0)
	if err != nil {
		return 0, err
	}
	if secs < 0 {
		return 0, fmt.Errorf("%s must not be negative", TimeoutArg)
	}
	if secs == 0 {
		return def, nil
	}
	return time.Duration(secs) * time.Second, nil
}

// WithTimeout derives a context bounded by the call's timeout. A
// non-positive def without a timeoutSeconds argument leaves ctx unbounded.
func WithTimeout(ctx context.Context, args map[string]any, def time.Duration) (context.Context, context.CancelFunc, error) {
	d, err := Timeout(args, def)
	if err != nil {
		return ctx, func() {}, err
	}
	if d <= 0 {
		ctx, cancel := context.WithCancel(ctx)
		return ctx, cancel, nil
	}
	ctx, cancel := context.WithTimeout(ctx, d)
	return ctx, cancel, nil
}
