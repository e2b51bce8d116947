package hindsight

import (
	"strconv"
	"time"
)

// TimeToken identifies an event's position in channel storage. Tokens are
// expressed in 100-nanosecond units since the Unix epoch and are totally
// ordered. The zero value means "unset".
type TimeToken int64

const tokenUnitsPerSecond = 10_000_000

// TokenAt converts a wall-clock time to storage precision
func TokenAt(t time.Time) TimeToken {
	return TimeToken(t.UnixNano() / 100)
}

// ParseTimeToken parses the decimal string form of a token. Tokens travel
// as strings on the wire because their magnitude exceeds what a float64
// can represent exactly
func ParseTimeToken(s string) (TimeToken, error) {
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, err
	}
	return TimeToken(n), nil
}

func (t TimeToken) String() string {
	return strconv.FormatInt(int64(t), 10)
}

// Time converts the token back to wall-clock time, truncating to the
// nanosecond
func (t TimeToken) Time() time.Time {
	return time.Unix(
		int64(t)/tokenUnitsPerSecond,
		(int64(t)%tokenUnitsPerSecond)*100,
	)
}

func (t TimeToken) IsZero() bool {
	return t == 0
}

func (t TimeToken) Before(other TimeToken) bool {
	return t < other
}

func (t TimeToken) After(other TimeToken) bool {
	return t > other
}
