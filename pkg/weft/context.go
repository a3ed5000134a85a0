package weft

// Context is a container for template input data.
//
// A context provides a stack of scope frames. Directives such as loops
// push a new frame with data that should only be visible inside the
// loop, and pop it off again when the loop terminates. Lookups walk the
// stack from the most recently pushed frame downward; a miss is not an
// error and resolves to nil.
//
// A Context is mutable, single-evaluation state. It must not be shared
// across concurrent template evaluations without external
// synchronization.
type Context struct {
	frames []map[string]any

	// flat is the merged view handed to the expression evaluator,
	// rebuilt lazily after a Push or Pop and patched in place by Set.
	flat map[string]any

	// includeDepth counts currently active template inclusions so the
	// include filter can bound recursion across loader boundaries.
	includeDepth int
}

// NewContext creates a context whose base frame holds the given data.
// A nil map is allowed and yields an empty base frame.
func NewContext(data map[string]any) *Context {
	if data == nil {
		data = make(map[string]any)
	}
	return &Context{frames: []map[string]any{data}}
}

// Get returns the value bound to name in the topmost frame that defines
// it, or nil if no frame does.
func (c *Context) Get(name string) any {
	for i := len(c.frames) - 1; i >= 0; i-- {
		if v, ok := c.frames[i][name]; ok {
			return v
		}
	}
	return nil
}

// Set binds name to value in the topmost frame. The topmost frame wins
// lookups, so a cached flat view can be patched rather than rebuilt.
func (c *Context) Set(name string, value any) {
	c.frames[len(c.frames)-1][name] = value
	if c.flat != nil {
		c.flat[name] = value
	}
}

// Push inserts frame as the new topmost scope. A nil frame is allowed.
func (c *Context) Push(frame map[string]any) {
	if frame == nil {
		frame = make(map[string]any)
	}
	c.frames = append(c.frames, frame)
	c.flat = nil
}

// Pop removes the topmost frame. Popping the base frame is a programmer
// error: directive push/pop must always be balanced, so this can only
// happen through a bug in a directive implementation.
func (c *Context) Pop() {
	if len(c.frames) <= 1 {
		panic("weft: context pop below base frame")
	}
	c.frames = c.frames[:len(c.frames)-1]
	c.flat = nil
}

// Depth returns the current number of frames on the stack.
func (c *Context) Depth() int {
	return len(c.frames)
}

// Flatten merges all frames into a single map, topmost frame winning.
// The expression evaluator runs against this view. The merge is cached
// between frame changes, so repeated evaluations under the same frames
// pay for it once; the returned map must not be retained across Push,
// Pop, or Set.
func (c *Context) Flatten() map[string]any {
	if c.flat == nil {
		size := 0
		for _, frame := range c.frames {
			size += len(frame)
		}
		flat := make(map[string]any, size)
		for _, frame := range c.frames {
			for k, v := range frame {
				flat[k] = v
			}
		}
		c.flat = flat
	}
	return c.flat
}
