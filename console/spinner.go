package console

import (
	"fmt"
	"io"
	"sync"
	"time"
)

type Animation []rune

var (
	Breathe = Animation("▉▊▋▌▍▎▏▎▍▌▋▊▉")
	Dots1   = Animation("⣾⣽⣻⢿⡿⣟⣯⣷")
	Dots2   = Animation("⠋⠙⠹⠸⠼⠴⠦⠧⠇⠏")
)

func (a Animation) New(out io.Writer) *Spinner {
	return NewSpinner(out, a)
}

type Spinner struct {
	out     io.Writer
	frames  []rune
	current int
	label   string
	done    chan struct{}
	mu      sync.Mutex
	wg      sync.WaitGroup
}

func NewSpinner(out io.Writer, frames []rune) *Spinner {
	return &Spinner{
		out:    out,
		frames: frames,
		done:   make(chan struct{}),
	}
}

// SetLabel sets a label to show after the spinner. Set to an empty string to
// hide the label again.
func (s *Spinner) SetLabel(label string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.label = label
}

// Start starts animating the spinner until Stop is called.
func (s *Spinner) Start() {
	s.draw()
	ticker := time.NewTicker(100 * time.Millisecond)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			select {
			case <-s.done:
				ticker.Stop()
				fmt.Fprint(s.out, "\r\033[K")
				return
			case <-ticker.C:
				s.current = (s.current + 1) % len(s.frames)
				s.draw()
			}
		}
	}()
}

func (s *Spinner) draw() {
	s.mu.Lock()
	label := s.label
	s.mu.Unlock()
	if label != "" {
		fmt.Fprintf(s.out, "\r\033[K%s %s", string(s.frames[s.current]), label)
	} else {
		fmt.Fprintf(s.out, "\r\033[K%s", string(s.frames[s.current]))
	}
}

// Stop stops the spinner and clears its line.
func (s *Spinner) Stop() {
	close(s.done)
	s.wg.Wait()
}
