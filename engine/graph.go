package engine

import (
	"github.com/vividlight/vivid/internal/rex"
)

// nextKind discriminates the NextState sum type.
type nextKind uint8

const (
	nextNoChange nextKind = iota
	nextExit
	nextGoto
)

// NextState directs the matcher after a pattern matches: stay in the
// current state, pop one or more levels off the state mapping, or enter a
// sub-state.
type NextState struct {
	kind nextKind
	n    int
}

// NoChange keeps the matcher in its current state.
func NoChange() NextState {
	return NextState{kind: nextNoChange}
}

// Exit pops n levels (n >= 1). Popping past the root saturates at the
// root entry.
func Exit(n int) NextState {
	if n < 1 {
		n = 1
	}
	return NextState{kind: nextExit, n: n}
}

// Goto enters the state with index s.
func Goto(s int) NextState {
	return NextState{kind: nextGoto, n: s}
}

// IsNoChange reports whether the directive leaves the state untouched.
func (ns NextState) IsNoChange() bool {
	return ns.kind == nextNoChange
}

// ExitDepth returns the pop count and whether this is an Exit directive.
func (ns NextState) ExitDepth() (int, bool) {
	return ns.n, ns.kind == nextExit
}

// Target returns the destination state and whether this is a Goto
// directive.
func (ns NextState) Target() (int, bool) {
	return ns.n, ns.kind == nextGoto
}

// onEntry is one auxiliary sub-state pushed alongside the main transition
// of a start pattern. endPattern, when non-empty, is the textual template
// of a dynamic end regex awaiting interpolation.
type onEntry struct {
	state      int
	endPattern string
}

// patternExtra carries the start-pattern-only fields: the name of the
// capture whose bytes feed dynamic end patterns, the textual end template
// awaiting those bytes, and the on-entry list.
type patternExtra struct {
	dynamicName    string
	dynamicPattern string
	onEntry        []onEntry
}

// pattern is one entry in a state's ordered pattern list. regex is nil for
// use-links (next is Goto) and for deferred dynamic end patterns (next is
// Exit); the matcher tells the two apart by the directive.
type pattern struct {
	regex     *rex.Regexp
	attribute int
	next      NextState
	extra     *patternExtra
}

// state is a node in the compiled graph: an ordered pattern list plus the
// attribute that applies to un-matched runs while the state is active.
type state struct {
	patterns  []pattern
	attribute int
}

// Graph is a compiled language description. It is immutable after Compile
// returns and safe to share across goroutines; create one Matcher per
// concurrent document.
type Graph struct {
	states          []state
	utf8            bool
	noUTF8Check     bool
	allowEmptyStart bool
	langFile        string
}

// NumStates returns the number of states in the graph. State 0 is the
// root.
func (g *Graph) NumStates() int {
	return len(g.states)
}

// UTF8 reports whether the graph was compiled in UTF-8 mode.
func (g *Graph) UTF8() bool {
	return g.utf8
}

// LangFile returns the file the description was loaded from, or "" when
// the graph was compiled from an in-memory tree.
func (g *Graph) LangFile() string {
	return g.langFile
}
