package transport

import "sync"

// MockChannel is a scripted channel for tests: Push feeds command lines
// in, Sent records everything written back.
type MockChannel struct {
	name string

	mu   sync.Mutex
	sink chan<- Line
	sent []string
}

// NewMockChannel creates a mock channel with the given name.
func NewMockChannel(name string) *MockChannel {
	return &MockChannel{name: name}
}

func (c *MockChannel) Name() string { return "mock:" + c.name }

func (c *MockChannel) Start(sink chan<- Line) error {
	c.mu.Lock()
	c.sink = sink
	c.mu.Unlock()
	return nil
}

func (c *MockChannel) Send(line string) error {
	c.mu.Lock()
	c.sent = append(c.sent, line)
	c.mu.Unlock()
	return nil
}

func (c *MockChannel) Stop() error { return nil }

// Push delivers one command line as if it arrived from the peer.
func (c *MockChannel) Push(text string) {
	c.mu.Lock()
	sink := c.sink
	c.mu.Unlock()
	sink <- Line{Channel: c, Text: text}
}

// Sent returns a copy of every line written to the channel so far.
func (c *MockChannel) Sent() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.sent))
	copy(out, c.sent)
	return out
}

// LastSent returns the most recent line, or "" when nothing was sent.
func (c *MockChannel) LastSent() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	if len(c.sent) == 0 {
		return ""
	}
	return c.sent[len(c.sent)-1]
}
