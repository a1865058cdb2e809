// Package events turns the host's flat scheduled-event arrays into
// per-worker queues and applies them to node state. Local events (exit,
// enter, internal transfer) only ever touch the node they name, so each
// worker drains its own queue without coordination; external transfers
// touch two nodes and are funneled into a single global queue the solver
// drains between barriers.
package events

import (
	"fmt"

	"stochnet/errcode"
)

// Kind selects how a scheduled event rearranges individuals.
type Kind int

const (
	// Exit removes sampled individuals from the selected compartments.
	Exit Kind = iota
	// Enter adds individuals to the single selected compartment.
	Enter
	// InternalTransfer moves sampled individuals to shifted compartments
	// within the same node.
	InternalTransfer
	// ExternalTransfer moves sampled individuals from one node to another,
	// optionally under a compartment shift.
	ExternalTransfer
)

func (k Kind) String() string {
	switch k {
	case Exit:
		return "exit"
	case Enter:
		return "enter"
	case InternalTransfer:
		return "intTrans"
	case ExternalTransfer:
		return "extTrans"
	}
	return fmt.Sprintf("Kind(%d)", int(k))
}

// Event is one scheduled state rearrangement. Time is an integer day.
// N is the number of individuals to move; when Proportion is positive the
// count is derived from the current population instead. Select names a
// column of the select matrix E, Shift a column of the shift matrix S
// (negative means no shift; only external transfers may omit it).
type Event struct {
	Kind       Kind
	Time       int
	Node       int
	Dest       int
	N          int
	Proportion float64
	Select     int
	Shift      int
}

// FromArrays assembles events from the host's parallel arrays. All arrays
// must share one length.
func FromArrays(
	kind, time, node, dest, n []int,
	proportion []float64,
	sel, shift []int,
) ([]Event, error) {
	ln := len(kind)
	same := len(time) == ln && len(node) == ln && len(dest) == ln &&
		len(n) == ln && len(proportion) == ln && len(sel) == ln && len(shift) == ln
	if !same {
		return nil, fmt.Errorf("event arrays have differing lengths: %w", errcode.ErrInvalidInput)
	}

	evts := make([]Event, ln)
	for i := 0; i < ln; i++ {
		if kind[i] < int(Exit) || kind[i] > int(ExternalTransfer) {
			return nil, fmt.Errorf("event %d has kind %d: %w", i, kind[i], errcode.ErrInvalidEvent)
		}
		evts[i] = Event{
			Kind:       Kind(kind[i]),
			Time:       time[i],
			Node:       node[i],
			Dest:       dest[i],
			N:          n[i],
			Proportion: proportion[i],
			Select:     sel[i],
			Shift:      shift[i],
		}
	}
	return evts, nil
}

// Queue is one worker's share of the event stream, consumed in scheduled
// order. Events stay grouped by day and keep the input order within a day.
type Queue struct {
	events []Event
	next   int
}

// UpTo returns every not-yet-consumed event scheduled at or before day,
// advancing the cursor past them.
func (q *Queue) UpTo(day int) []Event {
	first := q.next
	for q.next < len(q.events) && q.events[q.next].Time <= day {
		q.next++
	}
	return q.events[first:q.next]
}

// Len returns the total number of events in the queue.
func (q *Queue) Len() int { return len(q.events) }

// Pending reports whether unconsumed events remain.
func (q *Queue) Pending() bool { return q.next < len(q.events) }

// Split partitions evts into one intra-node (E1) queue per worker and a
// single global inter-node (E2) queue. E1 events land in the queue of the
// worker that owns the event's node, per ownerOf. Input order is preserved
// within each queue; the input must already be sorted by time.
func Split(
	evts []Event,
	nn int,
	nworkers int,
	ownerOf func(node int) int,
) (e1 []*Queue, e2 *Queue, err error) {
	e1 = make([]*Queue, nworkers)
	for i := range e1 {
		e1[i] = &Queue{}
	}
	e2 = &Queue{}

	lastTime := 0
	for i, ev := range evts {
		if i > 0 && ev.Time < lastTime {
			err = fmt.Errorf("event %d at day %d is out of order: %w", i, ev.Time, errcode.ErrInvalidEvent)
			return
		}
		lastTime = ev.Time

		if ev.Node < 0 || ev.Node >= nn {
			err = fmt.Errorf("event %d names node %d of %d: %w", i, ev.Node, nn, errcode.ErrInvalidEvent)
			return
		}
		if ev.N < 0 {
			err = fmt.Errorf("event %d moves %d individuals: %w", i, ev.N, errcode.ErrInvalidEvent)
			return
		}
		if ev.Proportion < 0 || ev.Proportion > 1 {
			err = fmt.Errorf("event %d has proportion %v: %w", i, ev.Proportion, errcode.ErrInvalidEvent)
			return
		}

		if ev.Kind == ExternalTransfer {
			if ev.Dest < 0 || ev.Dest >= nn {
				err = fmt.Errorf("event %d names dest %d of %d: %w", i, ev.Dest, nn, errcode.ErrInvalidEvent)
				return
			}
			e2.events = append(e2.events, ev)
			continue
		}
		e1[ownerOf(ev.Node)].events = append(e1[ownerOf(ev.Node)].events, ev)
	}
	return
}
