// Package stream implements the incremental tag demultiplexer that splits a
// model's raw token stream into visible content, reasoning segments and an
// optional title. The parser is single-pass and fragmentation-invariant: any
// split of the input into Feed calls yields the same final result, and a
// partial tag is never emitted as content.
package stream

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// State is the active output channel of the demultiplexer.
type State int

const (
	StateContent State = iota
	StateReasoning
	StateTitle
)

func (s State) String() string {
	switch s {
	case StateReasoning:
		return "reasoning"
	case StateTitle:
		return "title"
	default:
		return "content"
	}
}

// Events carries the per-channel emission callbacks. Any callback may be nil;
// accumulation into the final Result is unaffected.
type Events struct {
	// OnContent receives visible text fragments in emission order. The
	// concatenation of all fragments equals Result.FullResponse.
	OnContent func(fragment string)

	// OnReasoning receives reasoning text fragments as they stream.
	OnReasoning func(fragment string)

	// OnTitle fires at most once, when a title close tag completes.
	OnTitle func(title string)
}

// Result is the aggregate produced by Finalize.
type Result struct {
	FullResponse string
	Thoughts     []string
	Title        string
}

type tagKind int

const (
	tagOpenTitle tagKind = iota
	tagCloseTitle
	tagOpenThought
	tagCloseThought
)

// tagTokens is ordered longest-first so "</thoughts>" wins over "</thought>".
// Matching is case-insensitive; the plural thought spelling is a synonym kept
// for models trained on the older prompt wording.
var tagTokens = []struct {
	token string
	kind  tagKind
}{
	{"</thoughts>", tagCloseThought},
	{"<thoughts>", tagOpenThought},
	{"</thought>", tagCloseThought},
	{"<thought>", tagOpenThought},
	{"</title>", tagCloseTitle},
	{"<title>", tagOpenTitle},
}

var strayTagPattern = regexp.MustCompile(`(?i)</?(?:title|thoughts?)>`)

// Parser demultiplexes one model turn. It is not safe for concurrent use;
// give each turn its own instance.
type Parser struct {
	state State

	// lookahead holds a fragment tail that may be the prefix of a tag split
	// across Feed calls.
	lookahead string

	// buf is the active channel's unflushed text.
	buf strings.Builder

	// segment accumulates the whole current reasoning segment or title,
	// including text already flushed from buf.
	segment strings.Builder

	full      strings.Builder
	thoughts  []string
	title     string
	hasTitle  bool
	finalized bool

	events Events
}

// NewParser returns a parser in the content state.
func NewParser(events Events) *Parser {
	return &Parser{state: StateContent, events: events}
}

// Feed consumes one fragment of model output. Fragments may be of any length
// and may split tags at any byte.
func (p *Parser) Feed(fragment string) {
	if p.finalized || fragment == "" && p.lookahead == "" {
		return
	}

	input := p.lookahead + fragment
	p.lookahead = ""

	i := 0
	for i < len(input) {
		lt := strings.IndexByte(input[i:], '<')
		if lt == -1 {
			p.appendText(input[i:])
			break
		}
		lt += i

		if lt > i {
			p.appendText(input[i:lt])
		}

		rest := input[lt:]
		if token, kind, ok := matchTag(rest); ok {
			p.handleTag(kind)
			i = lt + len(token)
			continue
		}
		if isTagPrefix(rest) {
			// Possibly a tag split across fragments; hold it back.
			p.lookahead = rest
			return
		}

		// A literal '<' that starts no recognized tag.
		p.appendText("<")
		i = lt + 1
	}

	p.maybeFlush()
}

// matchTag reports whether s begins with a complete recognized tag.
func matchTag(s string) (token string, kind tagKind, ok bool) {
	for _, t := range tagTokens {
		if len(s) >= len(t.token) && strings.EqualFold(s[:len(t.token)], t.token) {
			return s[:len(t.token)], t.kind, true
		}
	}
	return "", 0, false
}

// isTagPrefix reports whether s is a proper prefix of some recognized tag.
func isTagPrefix(s string) bool {
	for _, t := range tagTokens {
		if len(s) < len(t.token) && strings.EqualFold(s, t.token[:len(s)]) {
			return true
		}
	}
	return false
}

func (p *Parser) appendText(text string) {
	p.buf.WriteString(text)
	if p.state != StateContent {
		p.segment.WriteString(text)
	}
}

func (p *Parser) handleTag(kind tagKind) {
	// Inside a title, any tag other than its close is a stray marker and is
	// dropped rather than treated as a transition.
	if p.state == StateTitle && kind != tagCloseTitle {
		return
	}

	switch kind {
	case tagOpenTitle:
		p.closeActiveState()
		p.state = StateTitle

	case tagOpenThought:
		p.closeActiveState()
		p.state = StateReasoning

	case tagCloseTitle:
		if p.state != StateTitle {
			return // stray close tag, dropped
		}
		p.closeActiveState()

	case tagCloseThought:
		if p.state != StateReasoning {
			return // stray close tag, dropped
		}
		p.closeActiveState()
	}
}

// closeActiveState flushes the active buffer and, for reasoning and title
// states, completes the open segment before returning to content.
func (p *Parser) closeActiveState() {
	p.flush()
	switch p.state {
	case StateReasoning:
		p.thoughts = append(p.thoughts, p.segment.String())
	case StateTitle:
		p.title = strings.TrimSpace(strayTagPattern.ReplaceAllString(p.segment.String(), ""))
		p.hasTitle = true
		if p.events.OnTitle != nil {
			p.events.OnTitle(p.title)
		}
	}
	p.segment.Reset()
	p.state = StateContent
}

// maybeFlush emits the active buffer early once it holds at least two
// complete words and ends on a word boundary, bounding latency without
// splitting a partially streamed word. Title text is held until its close
// tag so the title is exposed exactly once.
func (p *Parser) maybeFlush() {
	if p.state == StateTitle {
		return
	}
	s := p.buf.String()
	if s == "" {
		return
	}
	last, _ := utf8.DecodeLastRuneInString(s)
	if !unicode.IsSpace(last) {
		return
	}
	if len(strings.Fields(s)) < 2 {
		return
	}
	p.flush()
}

// Flush drains any buffered text to its channel immediately, without waiting
// for a word boundary. Callers use it when the stream is interrupted, for
// example by a tool call, so already-produced text is emitted before later
// events. A partial tag held in the lookahead stays held, and title text
// stays buffered until its close tag.
func (p *Parser) Flush() {
	if p.finalized {
		return
	}
	p.flush()
}

// flush emits whatever is pending in the active buffer to its channel.
func (p *Parser) flush() {
	if p.buf.Len() == 0 {
		return
	}
	text := p.buf.String()
	p.buf.Reset()

	switch p.state {
	case StateContent:
		p.full.WriteString(text)
		if p.events.OnContent != nil {
			p.events.OnContent(text)
		}
	case StateReasoning:
		if p.events.OnReasoning != nil {
			p.events.OnReasoning(text)
		}
	case StateTitle:
		// Accumulated in segment; exposed once at close.
	}
}

// Finalize drains the lookahead buffer as literal text, force-closes any open
// reasoning or title state, flushes everything and returns the aggregate
// result. The parser accepts no further input afterwards.
func (p *Parser) Finalize() Result {
	if p.finalized {
		return Result{FullResponse: p.full.String(), Thoughts: p.thoughts, Title: p.title}
	}

	if p.lookahead != "" {
		p.appendText(p.lookahead)
		p.lookahead = ""
	}

	if p.state != StateContent {
		p.closeActiveState()
	}
	p.flush()

	p.finalized = true
	return Result{
		FullResponse: p.full.String(),
		Thoughts:     p.thoughts,
		Title:        p.title,
	}
}

// Title returns the extracted title and whether one was seen.
func (p *Parser) Title() (string, bool) {
	return p.title, p.hasTitle
}

// Thoughts returns the completed reasoning segments so far.
func (p *Parser) Thoughts() []string {
	return p.thoughts
}
