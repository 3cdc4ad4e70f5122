package chat

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
)

// Console reads messages line by line and prints replies. It is the
// transport behind the interactive CLI.
type Console struct {
	router *Router
	in     io.Reader

	mu  sync.Mutex
	out io.Writer
}

// NewConsole creates a console transport
func NewConsole(router *Router, in io.Reader, out io.Writer) *Console {
	return &Console{router: router, in: in, out: out}
}

// Run handles lines from the input until EOF or ctx is cancelled
func (c *Console) Run(ctx context.Context) error {
	lines := make(chan string)
	errc := make(chan error, 1)
	go func() {
		scanner := bufio.NewScanner(c.in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		errc <- scanner.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-errc:
			if err != nil {
				return fmt.Errorf("failed to read input: %w", err)
			}
			return nil
		case line := <-lines:
			line = strings.TrimSpace(line)
			if line == "" {
				continue
			}
			handled := c.router.Handle(Message{
				ChatID: "console",
				Sender: "console",
				Text:   line,
				Reply:  c.print,
			})
			if !handled {
				c.print("(no trigger in message)")
			}
		}
	}
}

func (c *Console) print(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	fmt.Fprintln(c.out, text)
}
