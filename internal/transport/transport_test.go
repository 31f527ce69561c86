package transport

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestPortOptionsDefaults(t *testing.T) {
	opts, err := PortOptions{Device: "/dev/ttyUSB0"}.Normalize()
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if opts.BaudRate != 115200 || opts.DataBits != 8 || opts.StopBits != 1 || opts.Parity != "N" {
		t.Errorf("defaults = %+v, want 115200 8N1", opts)
	}
}

func TestPortOptionsValidation(t *testing.T) {
	cases := []PortOptions{
		{DataBits: 4},
		{DataBits: 9},
		{StopBits: 3},
		{Parity: "M"},
	}
	for _, c := range cases {
		if _, err := c.Normalize(); err == nil {
			t.Errorf("Normalize(%+v) should fail", c)
		}
	}

	opts, err := PortOptions{Parity: "even"}.Normalize()
	if err != nil {
		t.Fatalf("Normalize: %v", err)
	}
	if opts.Parity != "E" {
		t.Errorf("parity = %q, want E", opts.Parity)
	}
}

func TestPortOptionsSerialMode(t *testing.T) {
	mode, err := PortOptions{BaudRate: 9600, Parity: "O", StopBits: 2}.SerialMode()
	if err != nil {
		t.Fatalf("SerialMode: %v", err)
	}
	if mode.BaudRate != 9600 {
		t.Errorf("BaudRate = %d, want 9600", mode.BaudRate)
	}
}

// pipePort adapts an in-memory pipe pair to the port interface.
type pipePort struct {
	io.Reader
	io.Writer
	closeFn func() error
}

func (p *pipePort) Close() error { return p.closeFn() }

func TestSerialChannelLines(t *testing.T) {
	inR, inW := io.Pipe()   // peer -> channel
	outR, outW := io.Pipe() // channel -> peer

	port := &pipePort{Reader: inR, Writer: outW, closeFn: func() error {
		inR.Close()
		return outW.Close()
	}}
	ch := NewSerialChannel("test", port)

	sink := make(chan Line, 4)
	if err := ch.Start(sink); err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer ch.Stop()

	go inW.Write([]byte("PING\nGET_STATUS\n"))

	for _, want := range []string{"PING", "GET_STATUS"} {
		select {
		case ln := <-sink:
			if ln.Text != want {
				t.Errorf("line = %q, want %q", ln.Text, want)
			}
			if ln.Channel != ch {
				t.Error("line not tagged with originating channel")
			}
		case <-time.After(time.Second):
			t.Fatalf("timed out waiting for %q", want)
		}
	}

	go func() {
		ch.Send("PONG")
	}()
	buf := make([]byte, 16)
	n, err := outR.Read(buf)
	if err != nil {
		t.Fatalf("read response: %v", err)
	}
	if got := string(buf[:n]); got != "PONG\n" {
		t.Errorf("response = %q, want PONG with newline", got)
	}
}

func TestWSChannelRoundTrip(t *testing.T) {
	ch := NewWSChannel("127.0.0.1:0")
	sink := make(chan Line, 4)

	// Drive the upgrade handler through httptest instead of binding a
	// second listener.
	ch.sink = sink
	ch.running = true
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", ch.handleUpgrade)
	srv := httptest.NewServer(mux)
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if err := conn.WriteMessage(websocket.TextMessage, []byte("PING")); err != nil {
		t.Fatalf("write: %v", err)
	}

	select {
	case ln := <-sink:
		if ln.Text != "PING" {
			t.Errorf("line = %q, want PING", ln.Text)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for line")
	}

	if err := ch.Send("PONG"); err != nil {
		t.Fatalf("Send: %v", err)
	}
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if string(data) != "PONG" {
		t.Errorf("response = %q, want PONG", data)
	}
}

func TestMockChannel(t *testing.T) {
	ch := NewMockChannel("test")
	sink := make(chan Line, 1)
	ch.Start(sink)

	ch.Push("ARM")
	ln := <-sink
	if ln.Text != "ARM" || ln.Channel != ch {
		t.Errorf("line = %+v", ln)
	}

	ch.Send("ACK_ARMED")
	if ch.LastSent() != "ACK_ARMED" {
		t.Errorf("LastSent = %q", ch.LastSent())
	}
	if got := ch.Sent(); len(got) != 1 {
		t.Errorf("Sent = %v", got)
	}
}
