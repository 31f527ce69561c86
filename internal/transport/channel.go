// Package transport provides the line-oriented command channels: wired
// serial, websocket peers, and a local ZeroMQ request socket for the
// desktop toolbox. Channels are equivalent peers; each pushes received
// lines into the engine's queue from its own reader goroutine and
// touches nothing else.
package transport

// Line is one received command line tagged with its originating channel
// so the response can be routed back.
type Line struct {
	Channel Channel
	Text    string
}

// Channel is one command transport. Start launches the reader goroutine
// and returns; received lines go to sink. Send writes one response or
// event line back to the channel's peer(s).
type Channel interface {
	Name() string
	Start(sink chan<- Line) error
	Send(line string) error
	Stop() error
}
