package langmap

import (
	"sync"

	"github.com/coregx/ahocorasick"

	"github.com/vividlight/vivid/internal/rex"
)

// Modeline detection. Editors embed the language in the first or last
// line ("-*- mode: c -*-", "vim: syntax=python"); those tags are tried
// before any per-language first-line regex.
//
// Most lines carry no modeline at all, so a multi-literal scan for the
// tag markers gates the modeline regexes: a line without a marker is not
// run against them. The modeline regexes are compiled once, on first use.

const (
	emacsModeline = `(?i)-\*-\s*(?:mode:\s*)?(?<lang>[^\s;]+);?.*-\*-`
	vimModeline   = `\s(?:vim?|ex): .*[: ]syntax=(?<lang>[^\s:]+)`
)

var modelineHints = []string{"-*-", "vim:", "vi:", "ex:", "syntax="}

var modelines struct {
	once   sync.Once
	filter *ahocorasick.Automaton
	regexp []*rex.Regexp
}

func initModelines() {
	builder := ahocorasick.NewBuilder()
	for _, hint := range modelineHints {
		builder.AddPattern([]byte(hint))
	}
	auto, err := builder.Build()
	if err == nil {
		modelines.filter = auto
	}
	for _, pattern := range []string{emacsModeline, vimModeline} {
		re, err := rex.Compile(pattern, rex.Options{})
		if err != nil {
			panic("langmap: modeline pattern: " + err.Error())
		}
		modelines.regexp = append(modelines.regexp, re)
	}
}

// DetectModeline extracts a language name from an editor modeline, if the
// line carries one. Works on any line of a document.
func DetectModeline(line []byte) (string, bool) {
	modelines.once.Do(initModelines)

	if modelines.filter != nil && !modelines.filter.IsMatch(line) {
		return "", false
	}
	for _, re := range modelines.regexp {
		if res, ok := re.Run(line, 0, 0, "lang"); ok && len(res.Extracted) > 0 {
			return string(res.Extracted), true
		}
	}
	return "", false
}

// Detect guesses the language of a document from line. Modelines are
// tried on any line; the per-language first-line regexes only apply when
// line is the first line of the document.
func (m *Map) Detect(line []byte, first bool) (string, bool) {
	if name, ok := DetectModeline(line); ok {
		return name, true
	}
	if !first {
		return "", false
	}
	for i := range m.entries {
		e := &m.entries[i]
		if e.FirstLineRegex == "" {
			continue
		}
		re, err := rex.Compile(e.FirstLineRegex, rex.Options{})
		if err != nil {
			continue
		}
		if _, ok := re.Run(line, 0, 0, ""); ok {
			return e.Name, true
		}
	}
	return "", false
}
