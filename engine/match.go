package engine

import (
	"bytes"

	"github.com/vividlight/vivid/internal/rex"
)

// InvalidOffset is stored in all three span accessors when a line fails
// UTF-8 validation.
const InvalidOffset = -1

// mappingEntry is one realized state in a matcher's mapping tree. parent
// chains upward to entry 0; entries are addressed by index, never by
// pointer, because the backing slice reallocates as it grows.
type mappingEntry struct {
	parent         int
	highlightState int
	dynamic        *dynamicState
}

// dynamicState is a lazily-compiled end regex embedding the bytes a start
// pattern extracted. The bytes are retained for deduplication.
type dynamicState struct {
	regex     *rex.Regexp
	extracted []byte
}

// Matcher walks one document through a graph, line by line. It owns its
// state mapping and dynamic-pattern registry; neither is shared, and the
// mapping only grows, so indices handed out by State stay valid for the
// matcher's lifetime.
type Matcher struct {
	graph   *Graph
	mapping []mappingEntry

	start      int
	matchStart int
	end        int
	state      int
	beginAttr  int
	matchAttr  int

	utf8Checked       bool
	lastProgressEnd   int
	lastProgressState int
}

// NewMatcher creates a matcher positioned at the root state.
func (g *Graph) NewMatcher() *Matcher {
	m := &Matcher{graph: g, mapping: make([]mappingEntry, 1, 8)}
	m.Reset(0)
	return m
}

// Reset clears all per-line scalars and re-enters the given mapping
// index, which must have been obtained from State or NextLine on this
// matcher.
func (m *Matcher) Reset(state int) {
	m.start = 0
	m.matchStart = 0
	m.end = 0
	m.beginAttr = 0
	m.matchAttr = 0
	m.state = state
	m.utf8Checked = false
	m.lastProgressEnd = 0
	m.lastProgressState = -1
}

// NextLine prepares the matcher for the next line, keeping the state
// mapping so unterminated multi-line constructs resume, and returns the
// current mapping index so the host can persist it.
func (m *Matcher) NextLine() int {
	m.end = 0
	m.utf8Checked = false
	m.lastProgressEnd = 0
	m.lastProgressState = -1
	return m.state
}

// Start returns the beginning of the pre-match span of the last match.
func (m *Matcher) Start() int { return m.start }

// MatchStart returns the beginning of the matched span of the last match.
func (m *Matcher) MatchStart() int { return m.matchStart }

// End returns the end of the matched span of the last match.
func (m *Matcher) End() int { return m.end }

// BeginAttribute returns the attribute of the pre-match span.
func (m *Matcher) BeginAttribute() int { return m.beginAttr }

// MatchAttribute returns the attribute of the matched span.
func (m *Matcher) MatchAttribute() int { return m.matchAttr }

// State returns the current mapping index.
func (m *Matcher) State() int { return m.state }

// Depth returns the number of parent links between the current mapping
// entry and the root.
func (m *Matcher) Depth() int {
	d := 0
	for s := m.state; s != 0; s = m.mapping[s].parent {
		d++
	}
	return d
}

// matchCtx accumulates the best candidate across the offsets of one Match
// call.
type matchCtx struct {
	line      []byte
	best      *pattern
	bestEnd   int
	extracted []byte
}

// Match finds the next highlighted span of line. On success the accessors
// describe a record (start, matchStart, end, beginAttribute,
// matchAttribute) and the matcher has transitioned; on false the rest of
// the line carries the begin attribute and the host should move to the
// next line.
func (m *Matcher) Match(line []byte) bool {
	size := len(line)

	if m.graph.utf8 && !m.graph.noUTF8Check && !m.utf8Checked {
		if !validLine(line) {
			m.state = 0
			m.beginAttr = 0
			m.matchAttr = 0
			m.start = InvalidOffset
			m.matchStart = InvalidOffset
			m.end = InvalidOffset
			return false
		}
		m.utf8Checked = true
	}

	ctx := matchCtx{line: line, bestEnd: -1}
	st := &m.graph.states[m.mapping[m.state].highlightState]

	m.start = m.end
	m.beginAttr = st.attribute

	if m.lastProgressEnd != m.end {
		m.lastProgressEnd = m.end
		m.lastProgressState = m.state
	} else if m.lastProgressState < m.state {
		m.lastProgressState = m.state
	}

	for m.matchStart = m.end; m.matchStart <= size; m.matchStart += m.step(line) {
		m.matchState(&ctx, st)

		if ctx.best == nil {
			continue
		}

		next := m.findState(ctx.best.next, ctx.best.extra, ctx.extracted, dynamicPatternOf(ctx.best))

		// Fixed-point guard: a forward transition that lands on a state
		// already visited at this position cannot make progress; skip
		// this candidate and keep scanning.
		if _, isGoto := ctx.best.next.Target(); isGoto &&
			m.lastProgressEnd == m.end && m.lastProgressState == next {
			continue
		}

		m.end = ctx.bestEnd
		m.state = next
		if ctx.best.extra != nil {
			for _, oe := range ctx.best.extra.onEntry {
				m.state = m.findState(Goto(oe.state), ctx.best.extra, ctx.extracted, oe.endPattern)
			}
		}
		m.matchAttr = ctx.best.attribute
		return true
	}

	m.matchStart = size
	m.end = size
	return false
}

// step returns the scan advance at matchStart: one byte, or one codepoint
// in UTF-8 mode.
func (m *Matcher) step(line []byte) int {
	if !m.graph.utf8 || m.matchStart >= len(line) {
		return 1
	}
	switch line[m.matchStart] & 0xf0 {
	case 0xf0:
		return 4
	case 0xe0:
		return 3
	case 0xc0, 0xd0:
		return 2
	default:
		return 1
	}
}

func dynamicPatternOf(p *pattern) string {
	if p.extra == nil {
		return ""
	}
	return p.extra.dynamicPattern
}

// matchState attempts every pattern of st at the current scan offset,
// inlining the targets of use-links, and keeps the longest match. Ties go
// to the earliest pattern in traversal order.
func (m *Matcher) matchState(ctx *matchCtx, st *state) {
	for i := range st.patterns {
		p := &st.patterns[i]
		re := p.regex
		flags := rex.NoUTF8Check

		if re == nil {
			if target, ok := p.next.Target(); ok {
				m.matchState(ctx, &m.graph.states[target])
				continue
			}
			// Deferred dynamic end: the compiled form lives in the
			// current mapping entry.
			dyn := m.mapping[m.state].dynamic
			if dyn == nil {
				continue
			}
			re = dyn.regex
		} else {
			// Patterns that stay in place must consume input, and so
			// must forward transitions unless the description opted
			// into empty starts.
			if p.next.IsNoChange() {
				flags |= rex.NoEmpty
			} else if _, ok := p.next.Target(); ok && !m.graph.allowEmptyStart {
				flags |= rex.NoEmpty
			}
		}

		extract := ""
		if p.extra != nil {
			extract = p.extra.dynamicName
		}
		res, ok := re.Run(ctx.line, m.matchStart, flags, extract)
		if !ok || res.End <= ctx.bestEnd {
			continue
		}
		ctx.best = p
		ctx.bestEnd = res.End
		if extract != "" {
			ctx.extracted = res.Extracted
		}
	}
}

// findState resolves a next-state directive against the mapping, creating
// (and for dynamic ends, compiling) child entries on demand.
func (m *Matcher) findState(next NextState, extra *patternExtra, extracted []byte, endPattern string) int {
	if n, ok := next.ExitDepth(); ok {
		ret := m.state
		for ; n > 1 && ret > 0; n-- {
			ret = m.mapping[ret].parent
		}
		if ret > 0 {
			return m.mapping[ret].parent
		}
		return 0
	}
	if next.IsNoChange() {
		return m.state
	}
	target, _ := next.Target()
	dynamic := extra != nil && extra.dynamicName != "" && endPattern != ""

	for i := m.state + 1; i < len(m.mapping); i++ {
		e := &m.mapping[i]
		if e.parent != m.state || e.highlightState != target {
			continue
		}
		if !dynamic {
			// First structural hit wins. A nested delimiter re-enters the
			// state its start created, and must share that entry (and its
			// dynamic end, if any) rather than shadow it.
			return i
		}
		if e.dynamic != nil && bytes.Equal(e.dynamic.extracted, extracted) {
			return i
		}
	}

	m.mapping = append(m.mapping, mappingEntry{parent: m.state, highlightState: target})
	idx := len(m.mapping) - 1
	if dynamic {
		re, err := compileDynamic(extra.dynamicName, extracted, endPattern, m.graph.utf8)
		if err != nil {
			// An end template that stops compiling once interpolated:
			// fall back to the root rather than matching garbage.
			m.mapping = m.mapping[:idx]
			return 0
		}
		m.mapping[idx].dynamic = &dynamicState{
			regex:     re,
			extracted: append([]byte(nil), extracted...),
		}
	}
	return idx
}

// compileDynamic interpolates the extracted bytes into an end template:
//
//	(?(DEFINE)(?<NAME>\Q<extracted>\E))<template>
//
// The extracted bytes sit inside \Q...\E, which protects everything except
// NUL and a literal \E; those two are spliced out of the quoted region and
// re-escaped.
func compileDynamic(name string, extracted []byte, template string, utf8 bool) (*rex.Regexp, error) {
	var b bytes.Buffer
	b.Grow(len(template) + len(extracted) + len(name) + 24)
	b.WriteString("(?(DEFINE)(?<")
	b.WriteString(name)
	b.WriteString(">\\Q")
	for i := 0; i < len(extracted); i++ {
		c := extracted[i]
		if c == 0 || (c == '\\' && i+1 < len(extracted) && extracted[i+1] == 'E') {
			b.WriteString("\\E\\")
			if c == 0 {
				b.WriteByte('0')
			} else {
				b.WriteByte('\\')
			}
			b.WriteString("\\Q")
		} else {
			b.WriteByte(c)
		}
	}
	b.WriteString("\\E))")
	b.WriteString(template)
	return rex.Compile(b.String(), rex.Options{UTF8: utf8, Anchored: true})
}
