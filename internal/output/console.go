// Package output renders download lifecycle events for people and logs.
package output

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	"golang.org/x/term"
)

type entry struct {
	url      string
	status   string
	message  string
	done     int64
	total    int64
	complete bool
	start    time.Time
	updated  time.Time
	index    int
}

type errorReport struct {
	url  string
	err  error
	time time.Time
}

// Console is an observer that prints one line per terminal event. On a
// terminal it instead redraws a live view of every task between Start and
// Stop.
type Console struct {
	mu       sync.RWMutex
	w        io.Writer
	live     bool
	fd       int
	entries  map[string]*entry
	count    int
	numLines int
	errors   []errorReport
	limit    bool

	tick   time.Duration
	doneCh chan struct{}
	wg     sync.WaitGroup
}

func NewConsole(w io.Writer) *Console {
	live, fd := false, -1
	if f, ok := w.(*os.File); ok {
		fd = int(f.Fd())
		live = term.IsTerminal(fd)
	}
	return &Console{
		w:       w,
		live:    live,
		fd:      fd,
		entries: make(map[string]*entry),
		tick:    300 * time.Millisecond,
		doneCh:  make(chan struct{}),
	}
}

func (c *Console) update(url string, fn func(e *entry)) *entry {
	c.mu.Lock()
	defer c.mu.Unlock()
	e, ok := c.entries[url]
	if !ok {
		c.count++
		e = &entry{url: url, status: statusPending, start: time.Now(), index: c.count}
		c.entries[url] = e
	}
	fn(e)
	e.updated = time.Now()
	return e
}

func (c *Console) finish(url, status, message string) {
	e := c.update(url, func(e *entry) {
		e.status = status
		e.message = message
		e.complete = true
	})
	if !c.live {
		c.mu.Lock()
		defer c.mu.Unlock()
		fmt.Fprintln(c.w, c.line(e))
	}
}

func (c *Console) line(e *entry) string {
	elapsed := e.updated.Sub(e.start).Round(time.Second)
	return fmt.Sprintf("  %s %s %s", indicator(e.status), debugStyle.Render(elapsed.String()), styleFor(e.status).Render(e.message))
}

func (c *Console) Started(url string) {
	c.update(url, func(e *entry) {
		e.message = "Downloading " + url
	})
}

func (c *Console) TotalBytes(url string, n int64) {
	c.update(url, func(e *entry) { e.total = n })
}

func (c *Console) BytesCompleted(url string, n int64) {
	c.update(url, func(e *entry) { e.done = n })
}

func (c *Console) Exists(url, path string) {
	c.finish(url, statusWarning, "Exists "+path)
}

func (c *Console) Skipped(url, reason string) {
	c.finish(url, statusWarning, fmt.Sprintf("Skipped %s (%s)", url, reason))
}

func (c *Console) Completed(url, path string) {
	msg := "Saved " + path
	if info, err := os.Stat(path); err == nil {
		msg += fmt.Sprintf(" (%s)", humanize.IBytes(uint64(info.Size())))
	}
	c.finish(url, statusSuccess, msg)
}

func (c *Console) Errored(url string, err error) {
	c.mu.Lock()
	c.errors = append(c.errors, errorReport{url: url, err: err, time: time.Now()})
	c.mu.Unlock()
	c.finish(url, statusError, fmt.Sprintf("Failed %s: %v", url, err))
}

func (c *Console) Interrupted(url string) {
	c.finish(url, statusWarning, "Interrupted "+url)
}

func (c *Console) LimitReached() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.limit = true
	if !c.live {
		fmt.Fprintln(c.w, "  "+warningStyle.Render(symbolWarning+" Download limit reached"))
	}
}

// Start begins redrawing the live view; it does nothing off a terminal.
func (c *Console) Start() {
	if !c.live {
		return
	}
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ticker := time.NewTicker(c.tick)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				c.redraw()
			case <-c.doneCh:
				c.redraw()
				return
			}
		}
	}()
}

// Stop draws the final view and prints the summary.
func (c *Console) Stop() {
	close(c.doneCh)
	c.wg.Wait()
	c.ShowSummary()
}

func (c *Console) sorted() (active, completed []*entry) {
	all := make([]*entry, 0, len(c.entries))
	for _, e := range c.entries {
		all = append(all, e)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].index < all[j].index })
	for _, e := range all {
		if e.complete {
			completed = append(completed, e)
		} else {
			active = append(active, e)
		}
	}
	return active, completed
}

func (c *Console) redraw() {
	c.mu.Lock()
	defer c.mu.Unlock()

	_, height, err := term.GetSize(c.fd)
	if err != nil || height <= 0 {
		height = 24
	}
	available := height - 3

	if c.numLines > 0 {
		fmt.Fprintf(c.w, "\033[%dA\033[J", c.numLines)
	}

	active, completed := c.sorted()
	if hidden := len(active)*2 + len(completed) - available; hidden > 0 {
		completed = completed[min(hidden, len(completed)):]
	}

	lines := 0
	for _, e := range active {
		if lines+2 > available {
			break
		}
		fmt.Fprintln(c.w, c.line(e))
		fmt.Fprintln(c.w, "      "+progressBar(e.done, e.total, time.Since(e.start), 30))
		lines += 2
	}
	for _, e := range completed {
		if lines >= available {
			break
		}
		fmt.Fprintln(c.w, c.line(e))
		lines++
	}
	c.numLines = lines
}

// progressBar renders done/total with the average speed since start. An
// unknown total shows only the byte count.
func progressBar(done, total int64, elapsed time.Duration, width int) string {
	speed := "0 B/s"
	if secs := elapsed.Seconds(); secs > 0 && done > 0 {
		speed = humanize.IBytes(uint64(float64(done)/secs)) + "/s"
	}
	if total <= 0 {
		return streamStyle.Render(fmt.Sprintf("%s %s %s", humanize.IBytes(uint64(max(done, 0))), symbolBullet, speed))
	}
	percent := float64(min(max(done, 0), total)) / float64(total)
	filled := max(0, min(int(percent*float64(width)), width))
	bar := symbolBullet + strings.Repeat(symbolHLine, filled) + strings.Repeat(" ", width-filled) + symbolBullet
	return streamStyle.Render(fmt.Sprintf("%s %.1f%% %s %s / %s %s %s", bar, percent*100, symbolBullet,
		humanize.IBytes(uint64(max(done, 0))), humanize.IBytes(uint64(total)), symbolBullet, speed))
}

// Summary counts entries by final status.
type Summary struct {
	Total     int
	Succeeded int
	Warnings  int
	Failed    int
}

func (c *Console) Summary() Summary {
	c.mu.RLock()
	defer c.mu.RUnlock()
	s := Summary{Total: len(c.entries)}
	for _, e := range c.entries {
		switch e.status {
		case statusSuccess:
			s.Succeeded++
		case statusWarning:
			s.Warnings++
		case statusError:
			s.Failed++
		}
	}
	return s
}

func (c *Console) ShowSummary() {
	s := c.Summary()
	c.mu.RLock()
	defer c.mu.RUnlock()
	fmt.Fprintln(c.w)
	fmt.Fprintln(c.w, "  "+success2Style.Render(fmt.Sprintf("Completed %d of %d", s.Succeeded, s.Total)))
	if s.Warnings > 0 {
		fmt.Fprintln(c.w, "  "+warningStyle.Render(fmt.Sprintf("Skipped %d of %d", s.Warnings, s.Total)))
	}
	if s.Failed > 0 {
		fmt.Fprintln(c.w, "  "+errorStyle.Render(fmt.Sprintf("Failed %d of %d", s.Failed, s.Total)))
	}
	if c.limit {
		fmt.Fprintln(c.w, "  "+warningStyle.Render("Download limit reached"))
	}
	if len(c.errors) > 0 {
		fmt.Fprintln(c.w)
		fmt.Fprintln(c.w, "  "+errorStyle.Bold(true).Render("Errors:"))
		for i, r := range c.errors {
			fmt.Fprintf(c.w, "    %s %s %s\n",
				errorStyle.Render(fmt.Sprintf("%d.", i+1)),
				debugStyle.Render(fmt.Sprintf("[%s]", r.time.Format("15:04:05"))),
				errorStyle.Render(r.url))
			fmt.Fprintf(c.w, "      %s\n", errorStyle.Render(fmt.Sprintf("Error: %v", r.err)))
		}
	}
	fmt.Fprintln(c.w)
}
