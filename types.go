package hindsight

import "encoding/json"

type (
	// Event is a single message recovered from channel storage. Token is
	// populated only when the query asked for time tokens; the payload is
	// left undecoded for the caller
	Event struct {
		Data  json.RawMessage `json:"message"`
		Token TimeToken       `json:"timetoken,omitempty"`
	}

	// Page is the product of one bounded remote call. Events are always
	// ordered oldest to newest; Oldest and Newest carry the boundary
	// tokens even when individual events omit theirs
	Page struct {
		Events []*Event
		Oldest TimeToken
		Newest TimeToken
	}

	// Result is the stitched outcome of a completed query. Start and End
	// are the oldest and newest tokens actually observed across all
	// merged pages, not the bounds the query asked for
	Result struct {
		Events []*Event
		Start  TimeToken
		End    TimeToken
	}

	// Direction selects which end of the time window pagination walks
	// from when fewer events are requested than exist
	Direction int
)

const (
	// Backward walks from the newest event toward the oldest. This is
	// the default: with no bounds it means "most recent events first"
	Backward Direction = iota

	// Forward walks from the oldest event in the window toward the
	// newest
	Forward
)

func (d Direction) String() string {
	if d == Forward {
		return "forward"
	}
	return "backward"
}

func (p *Page) Len() int {
	return len(p.Events)
}
