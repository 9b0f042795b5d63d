package render

import (
	"bufio"
	"fmt"
	"image"
	"io"
	"os"
	"sync"

	"golang.org/x/term"
)

// Presenter shows a finished frame. Present is called from the render
// goroutine only and must not keep frame after returning.
type Presenter interface {
	Present(frame *image.RGBA) error
}

// NopPresenter discards frames, for headless runs
type NopPresenter struct{}

func (NopPresenter) Present(*image.RGBA) error { return nil }

// FramePresenter keeps a copy of the last frame for inspection
type FramePresenter struct {
	mu    sync.Mutex
	last  *image.RGBA
	count int
}

func (p *FramePresenter) Present(frame *image.RGBA) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.last == nil || p.last.Bounds() != frame.Bounds() {
		p.last = image.NewRGBA(frame.Bounds())
	}
	copy(p.last.Pix, frame.Pix)
	p.count++
	return nil
}

// Last returns a copy of the last presented frame, or nil
func (p *FramePresenter) Last() *image.RGBA {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.last == nil {
		return nil
	}
	out := image.NewRGBA(p.last.Bounds())
	copy(out.Pix, p.last.Pix)
	return out
}

// Count returns the number of presented frames
func (p *FramePresenter) Count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.count
}

const (
	defaultCols = 80
	defaultRows = 24
	upperHalf   = "▀"
)

// TerminalPresenter draws frames with 24-bit ANSI colors, two pixel rows
// per character cell using the upper half block. The cell grid follows the
// terminal size unless Cols and Rows are fixed.
type TerminalPresenter struct {
	Cols int
	Rows int

	out     *bufio.Writer
	fd      int
	isTerm  bool
	started bool
}

// NewTerminalPresenter writes to f, sizing the grid from the terminal when
// f is one
func NewTerminalPresenter(f *os.File) *TerminalPresenter {
	fd := int(f.Fd())
	return &TerminalPresenter{
		out:    bufio.NewWriterSize(f, 64*1024),
		fd:     fd,
		isTerm: term.IsTerminal(fd),
	}
}

// NewWriterPresenter writes to any writer using a fixed grid
func NewWriterPresenter(w io.Writer, cols, rows int) *TerminalPresenter {
	return &TerminalPresenter{
		Cols: cols,
		Rows: rows,
		out:  bufio.NewWriter(w),
		fd:   -1,
	}
}

func (p *TerminalPresenter) size() (int, int) {
	if p.Cols > 0 && p.Rows > 0 {
		return p.Cols, p.Rows
	}
	if p.isTerm {
		if w, h, err := term.GetSize(p.fd); err == nil && w > 0 && h > 1 {
			// leave the last line free so the terminal does not scroll
			return w, h - 1
		}
	}
	return defaultCols, defaultRows
}

func (p *TerminalPresenter) Present(frame *image.RGBA) error {
	b := frame.Bounds()
	if b.Empty() {
		return nil
	}
	cols, rows := p.size()

	if !p.started {
		// hide the cursor and clear once
		fmt.Fprint(p.out, "\x1b[?25l\x1b[2J")
		p.started = true
	}
	fmt.Fprint(p.out, "\x1b[H")

	px := func(x, y int) (uint8, uint8, uint8) {
		i := frame.PixOffset(x, y)
		return frame.Pix[i], frame.Pix[i+1], frame.Pix[i+2]
	}

	for row := range rows {
		yTop := b.Min.Y + (2*row)*b.Dy()/(2*rows)
		yBot := b.Min.Y + (2*row+1)*b.Dy()/(2*rows)
		for col := range cols {
			x := b.Min.X + col*b.Dx()/cols
			tr, tg, tb := px(x, yTop)
			br, bg, bb := px(x, yBot)
			fmt.Fprintf(p.out, "\x1b[38;2;%d;%d;%dm\x1b[48;2;%d;%d;%dm%s", tr, tg, tb, br, bg, bb, upperHalf)
		}
		fmt.Fprint(p.out, "\x1b[0m\r\n")
	}
	return p.out.Flush()
}

// Close restores the cursor and colors
func (p *TerminalPresenter) Close() error {
	if !p.started {
		return nil
	}
	fmt.Fprint(p.out, "\x1b[0m\x1b[?25h\r\n")
	return p.out.Flush()
}
