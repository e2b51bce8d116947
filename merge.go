package hindsight

import "fmt"

// merger stitches pages into a single chronological sequence. Events are
// kept oldest-first internally regardless of traversal direction; pages
// arriving from a backward walk are prepended, forward pages appended.
// The exclusive cursor bounds used by the paginator guarantee that
// consecutive pages never share an event, and merge enforces that
// guarantee rather than deduplicating silently
type merger struct {
	events    []*Event
	oldest    TimeToken
	newest    TimeToken
	direction Direction
}

func newMerger(d Direction) *merger {
	return &merger{direction: d}
}

func (m *merger) size() int {
	return len(m.events)
}

func (m *merger) merge(p *Page) error {
	if p.Len() == 0 {
		return nil
	}
	if err := checkAscending(p.Events); err != nil {
		return err
	}

	if len(m.events) == 0 {
		m.events = append(m.events, p.Events...)
		m.oldest = p.Oldest
		m.newest = p.Newest
		return nil
	}

	if m.direction == Backward {
		if !p.Newest.Before(m.oldest) {
			return fmt.Errorf(
				"%w: page newest %s, merged oldest %s",
				ErrTokenOverlap, p.Newest, m.oldest,
			)
		}
		m.events = append(append([]*Event{}, p.Events...), m.events...)
		m.oldest = p.Oldest
		return nil
	}

	if !p.Oldest.After(m.newest) {
		return fmt.Errorf(
			"%w: page oldest %s, merged newest %s",
			ErrTokenOverlap, p.Oldest, m.newest,
		)
	}
	m.events = append(m.events, p.Events...)
	m.newest = p.Newest
	return nil
}

// truncate drops overflow beyond n events, keeping the events closest to
// the traversal origin: the newest for a backward walk, the oldest for a
// forward one. Observed boundaries follow the surviving edge when event
// tokens are available
func (m *merger) truncate(n int) {
	if n <= 0 || len(m.events) <= n {
		return
	}
	if m.direction == Backward {
		m.events = m.events[len(m.events)-n:]
		if t := m.events[0].Token; !t.IsZero() {
			m.oldest = t
		}
		return
	}
	m.events = m.events[:n]
	if t := m.events[len(m.events)-1].Token; !t.IsZero() {
		m.newest = t
	}
}

// result finalizes the accumulated sequence. The merged order is always
// chronological; reverse flips it to newest-first
func (m *merger) result(reverse bool) *Result {
	events := m.events
	if reverse {
		for i, j := 0, len(events)-1; i < j; i, j = i+1, j-1 {
			events[i], events[j] = events[j], events[i]
		}
	}
	if events == nil {
		events = []*Event{}
	}
	return &Result{Events: events, Start: m.oldest, End: m.newest}
}

// checkAscending verifies that tokens within a page, where present, are
// strictly increasing. A violation means a fetcher returned a malformed
// page and is never papered over
func checkAscending(evs []*Event) error {
	prev := TimeToken(0)
	for _, ev := range evs {
		if ev.Token.IsZero() {
			continue
		}
		if !prev.IsZero() && !prev.Before(ev.Token) {
			return fmt.Errorf(
				"%w: %s follows %s within a page",
				ErrTokenOverlap, ev.Token, prev,
			)
		}
		prev = ev.Token
	}
	return nil
}
