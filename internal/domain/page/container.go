package page

import (
	"errors"
	"sync"
)

// ErrDetached is returned when mounting into a discarded container.
var ErrDetached = errors.New("container is detached")

// Node is anything that can be mounted into a container.
type Node interface {
	NodeName() string
}

// Container is a host-owned mount point for one or more embeddings.
type Container struct {
	id     string
	window *Window

	mu       sync.Mutex
	children []Node
	detached bool
}

// NewContainer creates a container owned by w.
func NewContainer(id string, w *Window) *Container {
	return &Container{id: id, window: w}
}

// ID returns the container id.
func (c *Container) ID() string {
	return c.id
}

// OwnerWindow returns the host window the container belongs to.
func (c *Container) OwnerWindow() *Window {
	return c.window
}

// Attachable reports whether nodes can still be mounted.
func (c *Container) Attachable() bool {
	if c == nil || c.window == nil {
		return false
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.detached
}

// AppendChild mounts n at the end of the container.
func (c *Container) AppendChild(n Node) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.detached {
		return ErrDetached
	}
	c.children = append(c.children, n)
	return nil
}

// RemoveChild unmounts n. It reports whether n was mounted.
func (c *Container) RemoveChild(n Node) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, child := range c.children {
		if child == n {
			c.children = append(c.children[:i], c.children[i+1:]...)
			return true
		}
	}
	return false
}

// Contains reports whether n is mounted.
func (c *Container) Contains(n Node) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, child := range c.children {
		if child == n {
			return true
		}
	}
	return false
}

// Children returns a snapshot of the mounted nodes.
func (c *Container) Children() []Node {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Node, len(c.children))
	copy(out, c.children)
	return out
}

// Detach discards the container. Mounted nodes are dropped.
func (c *Container) Detach() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.detached = true
	c.children = nil
}
