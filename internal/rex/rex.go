// Package rex is a thin adapter around the PCRE binding.
//
// The engine treats the regex library as a black box: rex compiles a
// pattern (optionally anchored, optionally in UTF-8 mode), JIT-studies it,
// and runs it against a line starting at a byte offset. Nothing above this
// package touches PCRE types or flags directly.
//
// Compiled Regexps are immutable and safe for concurrent use: the mutable
// PCRE scratch state lives in a per-Regexp sync.Pool.
package rex

import (
	"strings"
	"sync"

	"github.com/elmeyer/go-pcre"
)

// Options selects compile-time behaviour.
type Options struct {
	// UTF8 compiles the pattern in UTF-8 mode: quantifiers and character
	// classes operate on codepoints instead of bytes.
	UTF8 bool

	// Anchored restricts the pattern to match only at the offset given to
	// Run. All engine patterns are anchored; detection regexes are not.
	Anchored bool
}

// RunFlags modify a single Run call.
type RunFlags int

const (
	// NoEmpty forbids a zero-width match at the run offset.
	NoEmpty RunFlags = 1 << iota

	// NoUTF8Check skips PCRE's own UTF-8 validation of the subject. Set
	// once the caller has validated the line itself.
	NoUTF8Check
)

// Regexp is a compiled pattern plus a pool of PCRE scratch matchers.
type Regexp struct {
	re           *pcre.Regexp
	pattern      string
	matchesEmpty bool
	scratch      sync.Pool
}

// Result describes a successful Run.
type Result struct {
	// Start and End are byte offsets into the full subject (not the
	// sliced tail), half-open.
	Start, End int

	// Extracted holds a copy of the named capture requested via the
	// extract argument of Run. It is empty (not nil) when the group did not
	// participate or does not exist, and nil when no group was requested.
	Extracted []byte
}

// CompileError reports a pattern PCRE refused, with the byte offset of the
// problem inside the pattern text.
type CompileError struct {
	Pattern string
	Message string
	Offset  int
}

func (e *CompileError) Error() string {
	return e.Message
}

// OutOfMemory reports whether the underlying engine failed to allocate
// rather than rejecting the pattern text.
func (e *CompileError) OutOfMemory() bool {
	return strings.Contains(e.Message, "memory")
}

// Compile compiles pattern and JIT-studies the result. Study failures are
// ignored: the interpreted regex is still usable, just slower.
func Compile(pattern string, opts Options) (*Regexp, error) {
	var flags int
	if opts.UTF8 {
		flags |= pcre.UTF8
	}
	if opts.Anchored {
		flags |= pcre.ANCHORED
	}
	re, err := pcre.Compile(pattern, flags)
	if err != nil {
		if ce, ok := err.(*pcre.CompileError); ok {
			return nil, &CompileError{Pattern: pattern, Message: ce.Message, Offset: ce.Offset}
		}
		return nil, &CompileError{Pattern: pattern, Message: err.Error()}
	}
	_ = re.Study(pcre.STUDY_JIT_COMPILE)

	r := &Regexp{re: re, pattern: pattern}
	r.scratch.New = func() any { return r.re.NewMatcher() }
	r.matchesEmpty = r.probeEmpty()
	return r, nil
}

// Pattern returns the source text of the regex.
func (r *Regexp) Pattern() string {
	return r.pattern
}

// MinLength returns 0 when the pattern matches an empty subject and 1
// otherwise. A pattern that matches zero bytes only next to particular
// text (a lookahead, \b) does not match the empty subject and reports 1.
// The cycle analyzer only uses the zero/non-zero distinction.
func (r *Regexp) MinLength() int {
	if r.matchesEmpty {
		return 0
	}
	return 1
}

// probeEmpty runs the compiled pattern once against an empty subject.
func (r *Regexp) probeEmpty() bool {
	m := r.scratch.Get().(*pcre.Matcher)
	defer r.scratch.Put(m)
	return m.Match(nil, 0)
}

// Run attempts the pattern against subject starting at byte offset at.
// When extract is non-empty and the pattern matches, the bytes of that
// named capture group are copied into the result.
//
// The binding has no start-offset parameter, so Run matches against the
// tail slice and translates the reported spans back to full-subject
// offsets. NOTBOL is set for non-zero offsets so that ^ keeps its
// start-of-line meaning.
func (r *Regexp) Run(subject []byte, at int, flags RunFlags, extract string) (Result, bool) {
	var execFlags int
	if flags&NoEmpty != 0 {
		execFlags |= pcre.NOTEMPTY
	}
	if flags&NoUTF8Check != 0 {
		execFlags |= pcre.NO_UTF8_CHECK
	}
	if at > 0 {
		execFlags |= pcre.NOTBOL
	}

	m := r.scratch.Get().(*pcre.Matcher)
	defer r.scratch.Put(m)

	if !m.Match(subject[at:], execFlags) {
		return Result{}, false
	}
	loc := m.Index()
	res := Result{Start: at + loc[0], End: at + loc[1]}
	if extract != "" {
		if b, err := m.Named(extract); err == nil && b != nil {
			res.Extracted = append([]byte(nil), b...)
		} else {
			res.Extracted = []byte{}
		}
	}
	return res, true
}
