package core

import "time"

// Context is the per-path key-value store threaded through one exploration
// path, plus the ordered record of action names executed on that path. History
// excludes actions whose execution returned ActionSkipped.
type Context struct {
	data    map[string]Value
	order   []string // insertion order, for deterministic Keys()
	History []string
}

func NewContext() *Context {
	return &Context{data: make(map[string]Value)}
}

func (c *Context) Get(key string) (Value, bool) {
	v, ok := c.data[key]
	return v, ok
}

func (c *Context) Set(key string, v Value) {
	if _, exists := c.data[key]; !exists {
		c.order = append(c.order, key)
	}
	c.data[key] = v
}

func (c *Context) Delete(key string) {
	if _, exists := c.data[key]; !exists {
		return
	}
	delete(c.data, key)
	for i, k := range c.order {
		if k == key {
			c.order = append(c.order[:i], c.order[i+1:]...)
			break
		}
	}
}

func (c *Context) Has(key string) bool {
	_, ok := c.data[key]
	return ok
}

// Keys returns keys in insertion order, deterministic across runs given the
// same action sequence.
func (c *Context) Keys() []string {
	out := make([]string, len(c.order))
	copy(out, c.order)
	return out
}

func (c *Context) ToDict() map[string]Value {
	out := make(map[string]Value, len(c.data))
	for k, v := range c.data {
		out[k] = v
	}
	return out
}

// RecordExecuted appends an action name to History. Skipped actions are
// excluded: they changed nothing, so they are not part of the path.
func (c *Context) RecordExecuted(actionName string, status ActionStatus) {
	if status == ActionSkipped {
		return
	}
	c.History = append(c.History, actionName)
}

// HasExecuted reports whether actionName appears in History — the precondition
// check the Graph uses.
func (c *Context) HasExecuted(actionName string) bool {
	for _, n := range c.History {
		if n == actionName {
			return true
		}
	}
	return false
}

// Snapshot deep-copies the entire Context, including History, for later
// Restore. This is what a World checkpoint captures.
func (c *Context) Snapshot() *Context {
	snap := &Context{
		data:    make(map[string]Value, len(c.data)),
		order:   append([]string(nil), c.order...),
		History: append([]string(nil), c.History...),
	}
	for k, v := range c.data {
		snap.data[k] = v.DeepCopy()
	}
	return snap
}

// Restore replaces the entire contents of c with snap's contents (not a merge)
// — "restore replaces entire contents".
func (c *Context) Restore(snap *Context) {
	c.data = make(map[string]Value, len(snap.data))
	for k, v := range snap.data {
		c.data[k] = v.DeepCopy()
	}
	c.order = append([]string(nil), snap.order...)
	c.History = append([]string(nil), snap.History...)
}

// Equal reports whether c and other hold the same keys/values and History, used
// by the Context-World coherence property.
func (c *Context) Equal(other *Context) bool {
	if other == nil {
		return false
	}
	if len(c.data) != len(other.data) || len(c.History) != len(other.History) {
		return false
	}
	for i, n := range c.History {
		if other.History[i] != n {
			return false
		}
	}
	for k, v := range c.data {
		ov, ok := other.data[k]
		if !ok || !v.Equal(ov) {
			return false
		}
	}
	return true
}

// SystemCheckpoint is the opaque, adapter-specific handle capable of restoring
// one backend to a prior state.
type SystemCheckpoint interface {
	Opaque() any
}

// Checkpoint is the World-level composite handle bundling every adapter's child
// handle with a Context snapshot.
type Checkpoint struct {
	ID              string
	Name            string
	Children        map[string]SystemCheckpoint
	ContextSnapshot *Context
	CreatedAt       time.Time
}
