package eventbus

import "time"

// nowMillis returns the current time truncated to millisecond precision,
// matching the wire contract's timestamp resolution.
func nowMillis() time.Time {
	return time.Now().UTC().Truncate(time.Millisecond)
}
