package accesslog

import (
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/fatih/color"
)

// Entry describes one served request
type Entry struct {
	Remote   string
	Method   string
	Path     string
	Status   int
	Bytes    int64
	Encoding string
	Duration time.Duration
}

// Recorder is an interface for reporting connection outcomes
type Recorder interface {
	// Start marks the server as accepting connections
	Start(address string)
	// Served records a request that received a response
	Served(entry Entry)
	// Abandoned records a connection closed without a response
	Abandoned(remote string, reason string)
	// Finish prints a summary once the server has stopped
	Finish()
}

// ConsoleRecorder implements Recorder for console output
type ConsoleRecorder struct {
	mu        sync.Mutex
	writer    io.Writer
	noColor   bool
	startTime time.Time
	served    int
	abandoned int
}

// NewConsoleRecorder creates a new console recorder writing to stdout
func NewConsoleRecorder() *ConsoleRecorder {
	return &ConsoleRecorder{
		writer: os.Stdout,
	}
}

// WithWriter sets the writer for the console recorder
func (r *ConsoleRecorder) WithWriter(writer io.Writer) *ConsoleRecorder {
	r.writer = writer
	return r
}

// WithoutColor disables ANSI colors
func (r *ConsoleRecorder) WithoutColor() *ConsoleRecorder {
	r.noColor = true
	return r
}

// Start marks the server as accepting connections
func (r *ConsoleRecorder) Start(address string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.startTime = time.Now()
	r.served = 0
	r.abandoned = 0

	fmt.Fprintf(r.writer, "Listening on %s\n", address)
}

// Served records a request that received a response
func (r *ConsoleRecorder) Served(entry Entry) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.served++

	line := fmt.Sprintf("%s %s %s %s %dB %s",
		entry.Remote, entry.Method, entry.Path,
		r.colorizeStatus(entry.Status), entry.Bytes, entry.Duration.Round(time.Microsecond))
	if entry.Encoding != "" {
		line += " " + entry.Encoding
	}
	fmt.Fprintln(r.writer, line)
}

// Abandoned records a connection closed without a response
func (r *ConsoleRecorder) Abandoned(remote string, reason string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.abandoned++

	label := "abandoned"
	if !r.noColor {
		label = color.RedString(label)
	}
	fmt.Fprintf(r.writer, "%s %s: %s\n", remote, label, reason)
}

// Finish prints a summary once the server has stopped
func (r *ConsoleRecorder) Finish() {
	r.mu.Lock()
	defer r.mu.Unlock()

	duration := time.Since(r.startTime).Round(time.Second)
	fmt.Fprintf(r.writer, "Server stopped after %s\n", duration)
	fmt.Fprintf(r.writer, "Handled %d connections: %d served, %d abandoned\n",
		r.served+r.abandoned, r.served, r.abandoned)
}

// colorizeStatus colors a status code by class
func (r *ConsoleRecorder) colorizeStatus(status int) string {
	text := fmt.Sprintf("%d", status)
	if r.noColor {
		return text
	}
	switch {
	case status >= 500:
		return color.New(color.FgRed, color.Bold).Sprint(text)
	case status >= 400:
		return color.YellowString(text)
	case status >= 300:
		return color.CyanString(text)
	default:
		return color.GreenString(text)
	}
}

// Discard is a Recorder that drops everything
type Discard struct{}

func (Discard) Start(string)             {}
func (Discard) Served(Entry)             {}
func (Discard) Abandoned(string, string) {}
func (Discard) Finish()                  {}
