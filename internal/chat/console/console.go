// Package console implements the chat Adapter over a line-oriented reader
// and writer, so an operator can talk to a tenant's bot from a terminal.
package console

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/pedroavv1914/zappi-chatbot/internal/chat"
	"golang.org/x/term"
)

// DefaultSender is the customer identity used when AdapterOpts.Sender is empty.
const DefaultSender = "console"

const prompt = "> "

// Adapter implements chat.Adapter over an io.Reader and io.Writer. Each
// input line is one inbound message; replies are written one per block.
type Adapter struct {
	in          io.Reader
	out         io.Writer
	sender      string
	interactive bool
	mu          sync.Mutex
	connected   bool
	closed      bool
	listening   bool
	exitErr     error
	inbound     chan chat.InboundMessage
	done        chan struct{}
}

// AdapterOpts holds parameters for creating a console Adapter.
type AdapterOpts struct {
	In     io.Reader // defaults to os.Stdin
	Out    io.Writer // defaults to os.Stdout
	Sender string    // customer identity, defaults to DefaultSender
}

// New creates a console Adapter. A prompt is printed only when In is a terminal.
func New(opts AdapterOpts) *Adapter {
	in := opts.In
	if in == nil {
		in = os.Stdin
	}
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}
	sender := opts.Sender
	if sender == "" {
		sender = DefaultSender
	}
	return &Adapter{
		in:          in,
		out:         out,
		sender:      sender,
		interactive: isTerminal(in),
		inbound:     make(chan chat.InboundMessage, 16),
		done:        make(chan struct{}),
	}
}

func isTerminal(r io.Reader) bool {
	f, ok := r.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// Connect marks the adapter ready. There is nothing to dial.
func (a *Adapter) Connect(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return fmt.Errorf("console: adapter already closed")
	}
	a.connected = true
	return nil
}

// Listen starts reading lines from the input. The inbound channel closes at
// end of input, on Close, or when ctx is cancelled. A read already blocked
// on the input is not interrupted.
func (a *Adapter) Listen(ctx context.Context) (<-chan chat.InboundMessage, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.connected {
		return nil, fmt.Errorf("console: not connected")
	}
	if a.listening {
		return a.inbound, nil
	}
	a.listening = true
	a.writePrompt()
	go a.pump(ctx)
	return a.inbound, nil
}

func (a *Adapter) pump(ctx context.Context) {
	defer close(a.inbound)
	scanner := bufio.NewScanner(a.in)
	for scanner.Scan() {
		msg := chat.InboundMessage{
			Platform:  "console",
			Sender:    a.sender,
			UserName:  a.sender,
			Text:      strings.TrimRight(scanner.Text(), "\r"),
			Timestamp: time.Now(),
		}
		select {
		case a.inbound <- msg:
		case <-a.done:
			return
		case <-ctx.Done():
			return
		}
	}
	if err := scanner.Err(); err != nil {
		a.mu.Lock()
		a.exitErr = fmt.Errorf("console: read input: %w", err)
		a.mu.Unlock()
	}
}

// Send writes a reply followed by a blank line, then the prompt again when
// the input is a terminal.
func (a *Adapter) Send(ctx context.Context, msg chat.OutboundMessage) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.connected {
		return fmt.Errorf("console: not connected")
	}
	if _, err := fmt.Fprintf(a.out, "%s\n\n", msg.Text); err != nil {
		return fmt.Errorf("console: write: %w", err)
	}
	a.writePrompt()
	return nil
}

// writePrompt must be called with a.mu held.
func (a *Adapter) writePrompt() {
	if a.interactive {
		fmt.Fprint(a.out, prompt)
	}
}

// Close stops the adapter. When Listen was never called the inbound channel
// is closed here.
func (a *Adapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil
	}
	a.closed = true
	a.connected = false
	close(a.done)
	if !a.listening {
		close(a.inbound)
	}
	return nil
}

// Err returns the read error that ended the input, nil at a clean EOF.
func (a *Adapter) Err() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.exitErr
}
