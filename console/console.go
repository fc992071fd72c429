// Package console renders the assistant's progress and replies in a terminal.
package console

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"unicode"

	"golang.org/x/term"

	"github.com/blixt/calendar-assistant/dispatch"
)

const (
	hideCursor = "\033[?25l"
	showCursor = "\033[?25h"
	greenColor = "\033[32m"
	resetColor = "\033[0m"
	boldOn     = "\033[1m"
	boldOff    = "\033[22m"

	maxLineWidth = 100
)

type Console struct {
	out   io.Writer
	tty   bool
	width int

	mu      sync.Mutex
	spinner *Spinner
}

// New returns a console writing to out. Spinners and colors are only used
// when out is a terminal.
func New(out io.Writer) *Console {
	c := &Console{out: out, width: maxLineWidth}
	if f, ok := out.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		c.tty = true
		if width, _, err := term.GetSize(int(f.Fd())); err == nil && width < c.width {
			c.width = width
		}
	}
	return c
}

// Observe renders dispatch updates as they arrive. It is meant to be passed
// to Dispatcher.Run.
func (c *Console) Observe(update dispatch.Update) {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch update := update.(type) {
	case dispatch.TextUpdate:
		c.stopSpinner()
		fmt.Fprintln(c.out, Wrap(update.Text, c.width))
	case dispatch.ToolStartUpdate:
		c.stopSpinner()
		if c.tty {
			fmt.Fprint(c.out, hideCursor)
			c.spinner = Dots1.New(c.out)
			c.spinner.SetLabel(update.Label)
			c.spinner.Start()
		}
	case dispatch.ToolDoneUpdate:
		c.stopSpinner()
		if update.Error != nil {
			fmt.Fprintf(c.out, "❌ %s: %s\n", update.Label, firstLine(update.Error.Error()))
		} else {
			fmt.Fprintf(c.out, "✅ %s\n", update.Label)
		}
	case dispatch.ErrorUpdate:
		c.stopSpinner()
	}
}

// Reply prints the final answer, word wrapped to the terminal width.
func (c *Console) Reply(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopSpinner()
	if c.tty {
		fmt.Fprint(c.out, greenColor)
	}
	fmt.Fprint(c.out, Bold(Wrap(text, c.width), c.tty))
	if c.tty {
		fmt.Fprint(c.out, resetColor)
	}
	fmt.Fprintln(c.out)
}

// Error prints a failed request.
func (c *Console) Error(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.stopSpinner()
	fmt.Fprintf(c.out, "❌ %s\n", firstLine(err.Error()))
}

func (c *Console) stopSpinner() {
	if c.spinner == nil {
		return
	}
	c.spinner.Stop()
	c.spinner = nil
	fmt.Fprint(c.out, showCursor)
}

// Wrap breaks text into lines of at most width runes, moving whole words to
// the next line unless a single word is longer than half a line.
func Wrap(text string, width int) string {
	if width <= 0 {
		return text
	}
	var b strings.Builder
	for i, line := range strings.Split(text, "\n") {
		if i > 0 {
			b.WriteByte('\n')
		}
		wrapLine(&b, []rune(line), width)
	}
	return b.String()
}

func wrapLine(b *strings.Builder, line []rune, width int) {
	lineLength := 0
	var word []rune
	flush := func() {
		if len(word) == 0 {
			return
		}
		if lineLength > 0 && lineLength+1+len(word) > width && len(word) <= width/2 {
			b.WriteByte('\n')
			lineLength = 0
		} else if lineLength > 0 {
			b.WriteByte(' ')
			lineLength++
		}
		for _, r := range word {
			if lineLength >= width {
				b.WriteByte('\n')
				lineLength = 0
			}
			b.WriteRune(r)
			lineLength++
		}
		word = word[:0]
	}
	for _, r := range line {
		if unicode.IsSpace(r) {
			flush()
			continue
		}
		word = append(word, r)
	}
	flush()
}

// Bold renders **emphasis** markers as bold text when ansi is true and
// removes them otherwise. An unpaired marker is left as is.
func Bold(text string, ansi bool) string {
	parts := strings.Split(text, "**")
	if len(parts) < 3 {
		return text
	}
	var b strings.Builder
	for i, part := range parts {
		if i == len(parts)-1 && i%2 == 1 {
			b.WriteString("**")
			b.WriteString(part)
			break
		}
		if i%2 == 1 && ansi {
			b.WriteString(boldOn)
			b.WriteString(part)
			b.WriteString(boldOff)
			continue
		}
		b.WriteString(part)
	}
	return b.String()
}

func firstLine(s string) string {
	line, _, _ := strings.Cut(s, "\n")
	return line
}
