// Package stream fans agent events out to a live client while accumulating
// the canonical response text for persistence.
package stream

import (
	"fmt"
	"strings"

	"github.com/cosintapp/cosint/internal/llm"
)

// attribution maps tool-name fragments to the human-readable data source
// announced to the client. First match wins, so order matters: member
// lookups must attribute to Congress.gov even though they also contain
// "search".
var attribution = []struct {
	fragment string
	source   string
}{
	{"congress", "Congress.gov"},
	{"member", "Congress.gov"},
	{"address", "Google Civic Data"},
	{"civic", "Google Civic Data"},
	{"search", "Brave Web Search"},
	{"finance", "Federal Election Commission"},
	{"fec", "Federal Election Commission"},
}

// SourceForTool names the data source behind a tool for client-facing
// attribution annotations.
func SourceForTool(name string) string {
	lower := strings.ToLower(name)
	for _, a := range attribution {
		if strings.Contains(lower, a.fragment) {
			return a.source
		}
	}
	return "external sources"
}

// Multiplexer receives agent stream events, forwards display text to a sink
// and accumulates the response. Attribution annotations for tool activity go
// to the sink only: they are presentation, not part of the answer.
//
// A failing sink (typically a disconnected client) is remembered and skipped
// afterwards, so accumulation keeps working and the response can still be
// persisted.
type Multiplexer struct {
	sink    func(string) error
	text    strings.Builder
	sinkErr error
}

// New creates a multiplexer writing display output through sink. A nil sink
// accumulates only.
func New(sink func(string) error) *Multiplexer {
	return &Multiplexer{sink: sink}
}

// Handle processes one stream event. It satisfies [llm.StreamCallback].
func (m *Multiplexer) Handle(ev llm.StreamEvent) {
	switch ev.Kind {
	case llm.KindToken:
		m.text.WriteString(ev.Token)
		m.write(ev.Token)
	case llm.KindToolCallStart:
		name := ""
		if ev.ToolCall != nil {
			name = ev.ToolCall.Function.Name
		}
		m.write(fmt.Sprintf("\n\n*Accessing information from %s...*\n\n", SourceForTool(name)))
	}
}

// Append adds text to both the live stream and the accumulated response.
// Used for trailing additions such as intel packet tags and inline error
// notes that belong in the persisted message.
func (m *Multiplexer) Append(s string) {
	m.text.WriteString(s)
	m.write(s)
}

// Text returns the accumulated response so far.
func (m *Multiplexer) Text() string {
	return m.text.String()
}

// SinkErr reports the first sink write failure, if any.
func (m *Multiplexer) SinkErr() error {
	return m.sinkErr
}

func (m *Multiplexer) write(s string) {
	if m.sink == nil || m.sinkErr != nil {
		return
	}
	if err := m.sink(s); err != nil {
		m.sinkErr = err
	}
}
