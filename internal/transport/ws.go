package transport

import (
	"fmt"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const (
	wsWriteTimeout = 10 * time.Second
	wsPingInterval = 30 * time.Second
	wsPongWait     = 60 * time.Second
)

// WSChannel is the wireless peer channel. The controller listens for
// websocket connections; each text message is one command line, and
// responses and unsolicited events are written back as text messages.
// Multiple peers may be connected; Send reaches all of them.
type WSChannel struct {
	addr     string
	upgrader websocket.Upgrader
	server   *http.Server

	mu      sync.Mutex
	peers   map[*websocket.Conn]struct{}
	sink    chan<- Line
	running bool
	done    chan struct{}
	wg      sync.WaitGroup
}

// NewWSChannel creates a websocket channel listening on addr.
func NewWSChannel(addr string) *WSChannel {
	return &WSChannel{
		addr: addr,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  512,
			WriteBufferSize: 512,
			// Operator consoles connect from anywhere on the local net.
			CheckOrigin: func(*http.Request) bool { return true },
		},
		peers: make(map[*websocket.Conn]struct{}),
		done:  make(chan struct{}),
	}
}

func (c *WSChannel) Name() string { return "ws:" + c.addr }

// Start begins accepting peer connections.
func (c *WSChannel) Start(sink chan<- Line) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return fmt.Errorf("transport: %s already started", c.Name())
	}
	c.running = true
	c.sink = sink
	c.mu.Unlock()

	mux := http.NewServeMux()
	mux.HandleFunc("/ws", c.handleUpgrade)
	c.server = &http.Server{Addr: c.addr, Handler: mux}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		if err := c.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Printf("Websocket server error: %v", err)
		}
	}()

	log.Printf("Websocket channel listening on %s", c.addr)
	return nil
}

func (c *WSChannel) handleUpgrade(w http.ResponseWriter, r *http.Request) {
	conn, err := c.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("Websocket upgrade failed: %v", err)
		return
	}

	c.mu.Lock()
	c.peers[conn] = struct{}{}
	sink := c.sink
	c.mu.Unlock()

	log.Printf("Websocket peer connected: %s", conn.RemoteAddr())

	c.wg.Add(2)
	go c.readPump(conn, sink)
	go c.pingLoop(conn)
}

func (c *WSChannel) readPump(conn *websocket.Conn, sink chan<- Line) {
	defer c.wg.Done()
	defer c.dropPeer(conn)

	conn.SetReadDeadline(time.Now().Add(wsPongWait))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(wsPongWait))
		return nil
	})

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				log.Printf("Websocket peer read error: %v", err)
			}
			return
		}
		if msgType != websocket.TextMessage {
			continue
		}
		sink <- Line{Channel: c, Text: string(data)}
	}
}

func (c *WSChannel) pingLoop(conn *websocket.Conn) {
	defer c.wg.Done()

	ticker := time.NewTicker(wsPingInterval)
	defer ticker.Stop()

	for {
		select {
		case <-c.done:
			return
		case <-ticker.C:
			c.mu.Lock()
			_, alive := c.peers[conn]
			c.mu.Unlock()
			if !alive {
				return
			}
			conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *WSChannel) dropPeer(conn *websocket.Conn) {
	c.mu.Lock()
	delete(c.peers, conn)
	c.mu.Unlock()
	conn.Close()
	log.Printf("Websocket peer disconnected: %s", conn.RemoteAddr())
}

// Send writes one line to every connected peer. A write failure drops
// only the failing peer.
func (c *WSChannel) Send(line string) error {
	c.mu.Lock()
	conns := make([]*websocket.Conn, 0, len(c.peers))
	for conn := range c.peers {
		conns = append(conns, conn)
	}
	c.mu.Unlock()

	for _, conn := range conns {
		conn.SetWriteDeadline(time.Now().Add(wsWriteTimeout))
		if err := conn.WriteMessage(websocket.TextMessage, []byte(line)); err != nil {
			log.Printf("Websocket write failed, dropping peer: %v", err)
			c.dropPeer(conn)
		}
	}
	return nil
}

// Stop closes the listener and all peer connections.
func (c *WSChannel) Stop() error {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return nil
	}
	c.running = false
	close(c.done)
	peers := make([]*websocket.Conn, 0, len(c.peers))
	for conn := range c.peers {
		peers = append(peers, conn)
	}
	c.peers = make(map[*websocket.Conn]struct{})
	c.mu.Unlock()

	for _, conn := range peers {
		conn.Close()
	}
	err := c.server.Close()
	c.wg.Wait()
	log.Printf("Websocket channel stopped: %s", c.addr)
	return err
}
