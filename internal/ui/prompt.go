package ui

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"sync"

	"github.com/bamsammich/ferry/internal/job"
)

// Prompter answers decision requests on a line-oriented terminal. One
// request is shown at a time.
type Prompter struct {
	in    io.Reader
	out   io.Writer
	lines chan string
	once  sync.Once
	mu    sync.Mutex
}

func NewPrompter(in io.Reader, out io.Writer) *Prompter {
	return &Prompter{in: in, out: out, lines: make(chan string)}
}

// read feeds input lines to whichever prompt is waiting. A single reader
// goroutine keeps an abandoned prompt from swallowing the next answer.
func (p *Prompter) read() {
	sc := bufio.NewScanner(p.in)
	for sc.Scan() {
		p.lines <- sc.Text()
	}
	close(p.lines)
}

// Ask shows req and blocks until a valid key is entered. It answers Cancel
// when ctx ends or input is exhausted.
func (p *Prompter) Ask(ctx context.Context, req job.Request) job.Decision {
	p.once.Do(func() { go p.read() })
	p.mu.Lock()
	defer p.mu.Unlock()

	fmt.Fprintf(p.out, "\n%s\n", Describe(req))
	for {
		fmt.Fprintf(p.out, "%s > ", ChoiceHint(req))
		select {
		case <-ctx.Done():
			fmt.Fprintln(p.out)
			return job.Cancel
		case line, ok := <-p.lines:
			if !ok {
				fmt.Fprintln(p.out)
				return job.Cancel
			}
			if d, ok := DecisionForKey(line, req); ok {
				return d
			}
		}
	}
}
