package weft

import "io"

// Stream is a pull-based, lazily produced sequence of events. Next
// returns io.EOF after the final event. Nothing upstream is computed
// until the consumer demands the next event, so the consumer drives
// pace throughout the filter chain and directive stack.
type Stream interface {
	Next() (Event, error)
}

// StreamFunc adapts a function to the Stream interface.
type StreamFunc func() (Event, error)

func (f StreamFunc) Next() (Event, error) { return f() }

type sliceStream struct {
	events []Event
	pos    int
}

func newSliceStream(events []Event) Stream {
	return &sliceStream{events: events}
}

func (s *sliceStream) Next() (Event, error) {
	if s.pos >= len(s.events) {
		return Event{}, io.EOF
	}
	ev := s.events[s.pos]
	s.pos++
	return ev, nil
}

func emptyStream() Stream {
	return StreamFunc(func() (Event, error) { return Event{}, io.EOF })
}

// prepend yields one event ahead of the rest of a stream.
func prepend(ev Event, s Stream) Stream {
	sent := false
	return StreamFunc(func() (Event, error) {
		if !sent {
			sent = true
			return ev, nil
		}
		return s.Next()
	})
}

// drain buffers a stream into an ordered event slice for repeated
// traversal. Directive substreams are buffered this way once per
// capture and replayed per loop iteration, function call, or match.
func drain(s Stream) ([]Event, error) {
	var events []Event
	for {
		ev, err := s.Next()
		if err == io.EOF {
			return events, nil
		}
		if err != nil {
			return nil, err
		}
		events = append(events, ev)
	}
}

// deferredStream delays the construction of its inner stream until the
// first pull, so that expression evaluation inside directives happens
// at the point the corresponding lazy event is finally demanded.
type deferredStream struct {
	init  func() (Stream, error)
	inner Stream
	done  bool
}

func deferred(init func() (Stream, error)) Stream {
	return &deferredStream{init: init}
}

func (s *deferredStream) Next() (Event, error) {
	if s.done {
		return Event{}, io.EOF
	}
	if s.inner == nil {
		inner, err := s.init()
		if err != nil {
			s.done = true
			return Event{}, err
		}
		s.inner = inner
	}
	ev, err := s.inner.Next()
	if err != nil {
		s.done = true
		return Event{}, err
	}
	return ev, nil
}

// scopedStream pushes a context frame on first pull and pops it exactly
// once when the inner stream ends or fails, keeping directive push/pop
// balanced on every exit path.
type scopedStream struct {
	frame map[string]any
	ctx   *Context
	make  func() Stream
	inner Stream
	done  bool
}

func newScopedStream(frame map[string]any, ctx *Context, make func() Stream) Stream {
	return &scopedStream{frame: frame, ctx: ctx, make: make}
}

func (s *scopedStream) Next() (Event, error) {
	if s.done {
		return Event{}, io.EOF
	}
	if s.inner == nil {
		s.ctx.Push(s.frame)
		s.inner = s.make()
	}
	ev, err := s.inner.Next()
	if err != nil {
		s.done = true
		s.ctx.Pop()
		return Event{}, err
	}
	return ev, nil
}
