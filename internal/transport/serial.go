package transport

import (
	"bufio"
	"fmt"
	"io"
	"log"
	"strings"
	"sync"

	"go.bug.st/serial"
)

// PortOptions describes the wired channel's serial parameters. The
// fields mirror the YAML configuration so they pass through without
// translation.
type PortOptions struct {
	Device   string `yaml:"device"`
	BaudRate int    `yaml:"baud_rate"`
	DataBits int    `yaml:"data_bits"`
	StopBits int    `yaml:"stop_bits"`
	Parity   string `yaml:"parity"`
}

// Normalize validates the options and applies the 115200 8N1 defaults.
func (o PortOptions) Normalize() (PortOptions, error) {
	opts := o

	if opts.BaudRate <= 0 {
		opts.BaudRate = 115200
	}

	if opts.DataBits == 0 {
		opts.DataBits = 8
	}
	if opts.DataBits < 5 || opts.DataBits > 8 {
		return opts, fmt.Errorf("invalid data bits %d: must be between 5 and 8", opts.DataBits)
	}

	if opts.StopBits == 0 {
		opts.StopBits = 1
	}
	if opts.StopBits != 1 && opts.StopBits != 2 {
		return opts, fmt.Errorf("invalid stop bits %d: supported values are 1 or 2", opts.StopBits)
	}

	parity := strings.TrimSpace(strings.ToUpper(opts.Parity))
	if parity == "" {
		parity = "N"
	}
	switch parity {
	case "N", "NONE":
		parity = "N"
	case "E", "EVEN":
		parity = "E"
	case "O", "ODD":
		parity = "O"
	default:
		return opts, fmt.Errorf("unsupported parity %q: expected N, E, or O", opts.Parity)
	}
	opts.Parity = parity

	return opts, nil
}

// SerialMode converts the options into the serial.Mode required by
// go.bug.st/serial when opening the port.
func (o PortOptions) SerialMode() (*serial.Mode, error) {
	opts, err := o.Normalize()
	if err != nil {
		return nil, err
	}

	mode := &serial.Mode{
		BaudRate: opts.BaudRate,
		DataBits: opts.DataBits,
		StopBits: serial.StopBits(opts.StopBits),
	}
	switch opts.Parity {
	case "N":
		mode.Parity = serial.NoParity
	case "E":
		mode.Parity = serial.EvenParity
	case "O":
		mode.Parity = serial.OddParity
	}

	return mode, nil
}

// SerialChannel is the wired command channel: one command per line in,
// one response line out.
type SerialChannel struct {
	name string
	port io.ReadWriteCloser

	mu      sync.Mutex
	running bool
	done    chan struct{}
}

// OpenSerial opens the configured port and wraps it in a channel.
func OpenSerial(opts PortOptions) (*SerialChannel, error) {
	mode, err := opts.SerialMode()
	if err != nil {
		return nil, fmt.Errorf("transport: serial options: %w", err)
	}
	port, err := serial.Open(opts.Device, mode)
	if err != nil {
		return nil, fmt.Errorf("transport: open %s: %w", opts.Device, err)
	}
	return NewSerialChannel(opts.Device, port), nil
}

// NewSerialChannel wraps an already-open port. Tests pass an in-memory
// pipe instead of hardware.
func NewSerialChannel(name string, port io.ReadWriteCloser) *SerialChannel {
	return &SerialChannel{
		name: "serial:" + name,
		port: port,
		done: make(chan struct{}),
	}
}

func (c *SerialChannel) Name() string { return c.name }

// Start launches the reader goroutine.
func (c *SerialChannel) Start(sink chan<- Line) error {
	c.mu.Lock()
	if c.running {
		c.mu.Unlock()
		return fmt.Errorf("transport: %s already started", c.name)
	}
	c.running = true
	c.mu.Unlock()

	go c.readLoop(sink)
	log.Printf("Serial channel started: %s", c.name)
	return nil
}

func (c *SerialChannel) readLoop(sink chan<- Line) {
	defer close(c.done)

	scanner := bufio.NewScanner(c.port)
	for scanner.Scan() {
		sink <- Line{Channel: c, Text: scanner.Text()}
	}
	if err := scanner.Err(); err != nil {
		c.mu.Lock()
		running := c.running
		c.mu.Unlock()
		if running {
			log.Printf("Serial read error on %s: %v", c.name, err)
		}
	}
}

// Send writes one newline-terminated line to the port.
func (c *SerialChannel) Send(line string) error {
	_, err := c.port.Write([]byte(line + "\n"))
	return err
}

// Stop closes the port and waits for the reader to exit.
func (c *SerialChannel) Stop() error {
	c.mu.Lock()
	if !c.running {
		c.mu.Unlock()
		return nil
	}
	c.running = false
	c.mu.Unlock()

	err := c.port.Close()
	<-c.done
	log.Printf("Serial channel stopped: %s", c.name)
	return err
}
