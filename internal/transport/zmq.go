package transport

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/go-zeromq/zmq4"
)

// zmqReplyTimeout bounds how long the REP socket waits for the control
// loop to produce a response before answering with a fault token. The
// loop normally replies within one tick.
const zmqReplyTimeout = 2 * time.Second

// ZMQChannel is the local IPC channel for the desktop toolbox: a REP
// socket where each request message is one command line and the reply is
// the response line. REP sockets pair one reply to one request, so
// unsolicited events cannot be delivered here and are dropped.
type ZMQChannel struct {
	endpoint string
	sock     zmq4.Socket
	ctx      context.Context
	cancel   context.CancelFunc
	wg       sync.WaitGroup

	mu      sync.Mutex
	running bool
	pending chan string
}

// NewZMQChannel creates a channel that binds the given endpoint, e.g.
// "ipc:///tmp/irwp_command" or "tcp://127.0.0.1:5555".
func NewZMQChannel(endpoint string) *ZMQChannel {
	ctx, cancel := context.WithCancel(context.Background())
	return &ZMQChannel{
		endpoint: endpoint,
		ctx:      ctx,
		cancel:   cancel,
		pending:  make(chan string, 1),
	}
}

func (c *ZMQChannel) Name() string { return "zmq:" + c.endpoint }

// Start binds the REP socket and launches the request loop.
func (c *ZMQChannel) Start(sink chan<- Line) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return fmt.Errorf("transport: %s already started", c.Name())
	}
	c.running = true
	c.mu.Unlock()

	c.sock = zmq4.NewRep(c.ctx)
	if err := c.sock.Listen(c.endpoint); err != nil {
		return fmt.Errorf("transport: bind %s: %w", c.endpoint, err)
	}

	c.wg.Add(1)
	go c.requestLoop(sink)

	log.Printf("ZeroMQ channel listening on %s", c.endpoint)
	return nil
}

func (c *ZMQChannel) requestLoop(sink chan<- Line) {
	defer c.wg.Done()

	for {
		msg, err := c.sock.Recv()
		if err != nil {
			if c.ctx.Err() != nil {
				return
			}
			log.Printf("ZeroMQ receive error: %v", err)
			continue
		}
		if len(msg.Frames) == 0 {
			continue
		}

		sink <- Line{Channel: c, Text: string(msg.Frames[0])}

		// The REP contract requires exactly one reply per request.
		var reply string
		select {
		case reply = <-c.pending:
		case <-time.After(zmqReplyTimeout):
			reply = "ERROR_TIMEOUT"
		case <-c.ctx.Done():
			return
		}
		if err := c.sock.Send(zmq4.NewMsgString(reply)); err != nil {
			log.Printf("ZeroMQ send error: %v", err)
		}
	}
}

// Send hands the response line to the request loop. With no request
// outstanding (an unsolicited event) the line is dropped.
func (c *ZMQChannel) Send(line string) error {
	select {
	case c.pending <- line:
	default:
	}
	return nil
}

// Stop closes the socket and waits for the request loop.
func (c *ZMQChannel) Stop() error {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return nil
	}
	c.running = false
	c.mu.Unlock()

	c.cancel()
	err := c.sock.Close()
	c.wg.Wait()
	log.Printf("ZeroMQ channel stopped: %s", c.endpoint)
	return err
}
