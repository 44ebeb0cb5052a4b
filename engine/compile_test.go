package engine

import (
	"errors"
	"testing"

	"github.com/vividlight/vivid/langdef"
)

func testStyles(name string) int {
	switch name {
	case "comment":
		return 1
	case "keyword":
		return 2
	case "misc":
		return 3
	case "string":
		return 4
	default:
		return 0
	}
}

func parseDesc(t *testing.T, desc string) *langdef.Node {
	t.Helper()
	root, err := langdef.Parse([]byte(desc), "test.lang")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	return root
}

func mustGraph(t *testing.T, desc string) *Graph {
	t.Helper()
	g, err := Compile(parseDesc(t, desc), testStyles, Config{VerboseError: true})
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	return g
}

func TestCompile_Errors(t *testing.T) {
	tests := []struct {
		name string
		desc string
		want error
	}{
		{
			name: "missing format",
			desc: "highlight:\n  - regex: 'a'\n",
			want: ErrInvalidFormat,
		},
		{
			name: "unknown key",
			desc: "format: 1\nhighlight:\n  - regex: 'a'\n    bogus: 1\n",
			want: ErrInvalidFormat,
		},
		{
			name: "two variants in one entry",
			desc: "format: 1\nhighlight:\n  - regex: 'a'\n    start: 'b'\n",
			want: ErrInvalidFormat,
		},
		{
			name: "bad regex",
			desc: "format: 1\nhighlight:\n  - regex: '('\n",
			want: ErrInvalidRegex,
		},
		{
			name: "bad end regex",
			desc: "format: 1\nhighlight:\n  - start: 'a'\n    end: '('\n",
			want: ErrInvalidRegex,
		},
		{
			name: "bad dynamic end template",
			desc: "format: 1\nhighlight:\n  - start: '(?<d>\\w+)'\n    extract: d\n    end: '(?&d))'\n",
			want: ErrInvalidRegex,
		},
		{
			name: "extract name with digit",
			desc: "format: 1\nhighlight:\n  - start: '(?<d1>\\w+)'\n    extract: d1\n    end: 'x'\n",
			want: ErrInvalidName,
		},
		{
			name: "extract name empty",
			desc: "format: 1\nhighlight:\n  - start: 'a'\n    extract: ''\n    end: 'x'\n",
			want: ErrInvalidName,
		},
		{
			name: "undefined use",
			desc: "format: 1\nhighlight:\n  - use: nosuch\n",
			want: ErrUndefinedUse,
		},
		{
			name: "use cycle",
			desc: `format: 1
define:
  a:
    - use: b
  b:
    - use: a
highlight:
  - use: a
`,
			want: ErrUseCycle,
		},
		{
			name: "empty start with exiting end",
			desc: "format: 2\nhighlight:\n  - start: ''\n    end: 'x'\n",
			want: ErrEmptyStartCycle,
		},
		{
			name: "empty start transitive self cycle",
			desc: `format: 2
define:
  loop:
    - start: 'x?'
      highlight:
        - use: loop
highlight:
  - use: loop
`,
			want: ErrEmptyStartCycle,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Compile(parseDesc(t, tt.desc), testStyles, Config{VerboseError: true})
			if err == nil {
				t.Fatalf("expected error %v, got nil", tt.want)
			}
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected error %v, got %v", tt.want, err)
			}
		})
	}
}

func TestCompile_NilStyleFunc(t *testing.T) {
	root := parseDesc(t, "format: 1\nhighlight:\n  - regex: 'a'\n")
	_, err := Compile(root, nil, Config{})
	if !errors.Is(err, ErrBadArg) {
		t.Fatalf("expected ErrBadArg, got %v", err)
	}
}

func TestCompile_VerboseErrorLocation(t *testing.T) {
	desc := "format: 1\nhighlight:\n  - use: nosuch\n"
	_, err := Compile(parseDesc(t, desc), testStyles, Config{VerboseError: true})
	var e *Error
	if !errors.As(err, &e) {
		t.Fatalf("expected *Error, got %T", err)
	}
	if e.Code != CodeUndefinedUse {
		t.Errorf("code = %d, want %d", e.Code, CodeUndefinedUse)
	}
	if e.Line != 3 {
		t.Errorf("line = %d, want 3", e.Line)
	}
	if e.File != "test.lang" {
		t.Errorf("file = %q, want test.lang", e.File)
	}
	if e.Extra != "nosuch" {
		t.Errorf("extra = %q, want nosuch", e.Extra)
	}
}

func TestCompile_TerseErrorHasNoLocation(t *testing.T) {
	desc := "format: 1\nhighlight:\n  - use: nosuch\n"
	_, err := Compile(parseDesc(t, desc), testStyles, Config{})
	var e *Error
	if !errors.As(err, &e) {
		t.Fatalf("expected *Error, got %T", err)
	}
	if e.Line != 0 || e.File != "" || e.Extra != "" {
		t.Errorf("terse error carries location: %+v", e)
	}
}

// Both use sites of a definition must share one compiled sub-state.
func TestCompile_UseSharesSubState(t *testing.T) {
	g := mustGraph(t, `format: 1
define:
  types:
    - regex: '\bint\b'
      style: keyword
highlight:
  - start: '\('
    end: '\)'
    highlight:
      - use: types
  - start: '\['
    end: '\]'
    highlight:
      - use: types
`)

	var targets []int
	for _, st := range g.states {
		for _, p := range st.patterns {
			if p.regex != nil {
				continue
			}
			if target, ok := p.next.Target(); ok {
				targets = append(targets, target)
			}
		}
	}
	if len(targets) != 2 {
		t.Fatalf("expected 2 use links, got %d", len(targets))
	}
	if targets[0] != targets[1] {
		t.Errorf("use links point at different states: %d vs %d", targets[0], targets[1])
	}
}

// The position of the end key relative to the highlight key decides
// whether the delimiter is tried before or after the body patterns.
func TestCompile_DelimiterPlacement(t *testing.T) {
	endFirst := mustGraph(t, `format: 1
highlight:
  - start: '"'
    end: '"'
    highlight:
      - regex: '\\.'
        style: misc
    style: string
`)
	sub := endFirst.states[1]
	if len(sub.patterns) != 2 {
		t.Fatalf("expected 2 patterns, got %d", len(sub.patterns))
	}
	if _, ok := sub.patterns[0].next.ExitDepth(); !ok {
		t.Errorf("end listed first should be prepended")
	}

	endLast := mustGraph(t, `format: 1
highlight:
  - start: '"'
    highlight:
      - regex: '\\.'
        style: misc
    end: '"'
    style: string
`)
	sub = endLast.states[1]
	if len(sub.patterns) != 2 {
		t.Fatalf("expected 2 patterns, got %d", len(sub.patterns))
	}
	if _, ok := sub.patterns[1].next.ExitDepth(); !ok {
		t.Errorf("end listed last should be appended")
	}
}

func TestCompile_AllowEmptyStartOptOut(t *testing.T) {
	desc := "format: 2\nallow-empty-start: false\nhighlight:\n  - start: ''\n    end: 'x'\n"
	g, err := Compile(parseDesc(t, desc), testStyles, Config{})
	if err != nil {
		t.Fatalf("compile: %v", err)
	}
	if g.allowEmptyStart {
		t.Error("allow-empty-start: false should disable empty starts")
	}
}

func TestCompile_Format1ForbidsEmptyStart(t *testing.T) {
	// The same description that format 2 rejects statically is fine under
	// format 1: the matcher forbids the empty match at run time instead.
	g := mustGraph(t, "format: 1\nhighlight:\n  - start: ''\n    end: 'x'\n")
	if g.allowEmptyStart {
		t.Error("format 1 must not permit empty starts")
	}
}

func TestCompile_ExitDepths(t *testing.T) {
	g := mustGraph(t, `format: 1
highlight:
  - start: 'a'
    highlight:
      - start: 'b'
        end: 'c'
        exit: 2
    end: 'z'
`)
	// State 2 is the body of 'b'; its delimiter must pop two levels.
	var found bool
	for _, p := range g.states[2].patterns {
		if n, ok := p.next.ExitDepth(); ok {
			found = true
			if n != 2 {
				t.Errorf("exit depth = %d, want 2", n)
			}
		}
	}
	if !found {
		t.Fatal("no exit pattern in inner state")
	}
}

func TestCompile_DynamicEndDeferred(t *testing.T) {
	g := mustGraph(t, `format: 1
highlight:
  - start: '<<\s*(?<delim>\w+)'
    extract: delim
    end: '^(?&delim)$'
    style: string
`)
	start := g.states[0].patterns[0]
	if start.extra == nil || start.extra.dynamicName != "delim" {
		t.Fatalf("start pattern extract not recorded: %+v", start.extra)
	}
	if start.extra.dynamicPattern != `^(?&delim)$` {
		t.Errorf("dynamic pattern = %q", start.extra.dynamicPattern)
	}
	// The deferred delimiter has no compiled regex yet.
	sub := g.states[1]
	if len(sub.patterns) != 1 {
		t.Fatalf("expected 1 pattern in sub-state, got %d", len(sub.patterns))
	}
	if sub.patterns[0].regex != nil {
		t.Error("dynamic end must not be compiled at graph-build time")
	}
	if _, ok := sub.patterns[0].next.ExitDepth(); !ok {
		t.Error("dynamic end must be an exit pattern")
	}
}

func TestCompile_OnEntryAllocatesStates(t *testing.T) {
	g := mustGraph(t, `format: 1
highlight:
  - start: '<(?<tag>\w+)'
    extract: tag
    end: '</(?&tag)>'
    style: misc
    on-entry:
      - end: '>'
        style: keyword
        highlight:
          - regex: '\w+='
            style: string
`)
	start := g.states[0].patterns[0]
	if len(start.extra.onEntry) != 1 {
		t.Fatalf("expected 1 on-entry state, got %d", len(start.extra.onEntry))
	}
	oe := start.extra.onEntry[0]
	if oe.state <= 0 || oe.state >= len(g.states) {
		t.Fatalf("on-entry state %d out of range", oe.state)
	}
	if g.states[oe.state].attribute != testStyles("keyword") {
		t.Errorf("on-entry state attribute = %d", g.states[oe.state].attribute)
	}
	// The on-entry end exits and the start extracts, so the entry's end
	// is deferred too.
	if oe.endPattern != ">" {
		t.Errorf("on-entry end pattern = %q, want >", oe.endPattern)
	}
}

// Parent states are always emitted before the sub-states they spawn.
func TestCompile_ParentBeforeChild(t *testing.T) {
	g := mustGraph(t, `format: 1
highlight:
  - start: 'a'
    highlight:
      - start: 'b'
        end: 'c'
    end: 'z'
`)
	for i, st := range g.states {
		for _, p := range st.patterns {
			if target, ok := p.next.Target(); ok && p.regex != nil && target <= i {
				t.Errorf("state %d starts into earlier state %d", i, target)
			}
		}
	}
}
