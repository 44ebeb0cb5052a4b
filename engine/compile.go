package engine

import (
	"errors"

	"github.com/vividlight/vivid/internal/rex"
	"github.com/vividlight/vivid/langdef"
)

// StyleFunc maps a style name (possibly suffixed with "@scope") to the
// integer attribute carried opaquely through match records. Index 0 is the
// unstyled default.
type StyleFunc func(name string) int

// Config selects compile-time behaviour of a graph.
type Config struct {
	// UTF8 compiles all patterns in UTF-8 mode and makes matchers
	// validate each line before matching it.
	UTF8 bool

	// NoUTF8Check promises that lines handed to Match are valid UTF-8,
	// skipping the per-line validation.
	NoUTF8Check bool

	// VerboseError populates Line, File and Extra on returned errors.
	VerboseError bool

	// LangFile is recorded on the graph for Graph.LangFile.
	LangFile string
}

type compiler struct {
	root   *langdef.Node
	styles StyleFunc
	cfg    Config
	g      *Graph
	useMap map[string]int
}

// Compile translates a validated description tree into an immutable state
// graph. The tree is checked against the schema first; the use-cycle pass
// always runs, and the empty-start pass runs when the description permits
// empty start patterns (format >= 2 without allow-empty-start: false).
func Compile(root *langdef.Node, styles StyleFunc, cfg Config) (*Graph, error) {
	if styles == nil {
		return nil, &Error{Code: CodeBadArg}
	}
	if err := langdef.ValidateSyntax(root); err != nil {
		return nil, schemaError(err, cfg)
	}

	allowEmpty := false
	if root.GetInt("format") > 1 {
		aes := root.Get("allow-empty-start")
		allowEmpty = aes == nil || aes.Bool()
	}

	g := &Graph{
		utf8:            cfg.UTF8,
		noUTF8Check:     cfg.NoUTF8Check,
		allowEmptyStart: allowEmpty,
		langFile:        cfg.LangFile,
	}
	g.states = append(g.states, state{})

	c := &compiler{root: root, styles: styles, cfg: cfg, g: g, useMap: make(map[string]int)}
	if err := c.walk(root.Get("highlight"), 0); err != nil {
		return nil, err
	}

	if err := g.checkUseCycles(); err != nil {
		return nil, err
	}
	if allowEmpty {
		if err := g.checkEmptyStartCycles(); err != nil {
			return nil, err
		}
	}
	return g, nil
}

func schemaError(err error, cfg Config) error {
	var se *langdef.SchemaError
	if cfg.VerboseError && errors.As(err, &se) {
		return &Error{Code: CodeInvalidFormat, Line: se.Line, File: se.File, Extra: se.Msg}
	}
	return &Error{Code: CodeInvalidFormat}
}

// errAt builds an Error anchored to a tree node. Location and extra text
// are only carried in verbose mode.
func (c *compiler) errAt(code Code, n *langdef.Node, extra string) error {
	if !c.cfg.VerboseError {
		return &Error{Code: code}
	}
	e := &Error{Code: code, Extra: extra}
	if n != nil {
		e.Line = n.Line()
		e.File = n.File()
	}
	return e
}

// compileRegex compiles one pattern text anchored, in the graph's UTF-8
// mode.
func (c *compiler) compileRegex(text string, n *langdef.Node) (*rex.Regexp, error) {
	re, err := rex.Compile(text, rex.Options{UTF8: c.cfg.UTF8, Anchored: true})
	if err != nil {
		var ce *rex.CompileError
		if errors.As(err, &ce) {
			if ce.OutOfMemory() {
				return nil, &Error{Code: CodeOutOfMemory}
			}
			return nil, c.errAt(CodeInvalidRegex, n, ce.Message)
		}
		return nil, c.errAt(CodeInvalidRegex, n, err.Error())
	}
	return re, nil
}

// walk compiles one highlight list into the state with index idx.
func (c *compiler) walk(list *langdef.Node, idx int) error {
	for _, item := range list.Items() {
		styleAttr := c.g.states[idx].attribute
		if s := item.Get("style"); s != nil {
			styleAttr = c.styles(s.String())
		}

		var pat pattern
		switch {
		case item.Get("regex") != nil:
			re, err := c.compileRegex(item.GetString("regex"), item.Get("regex"))
			if err != nil {
				return err
			}
			next := NoChange()
			if e := item.GetInt("exit"); e > 0 {
				next = Exit(e)
			}
			pat = pattern{regex: re, attribute: styleAttr, next: next}

		case item.Get("start") != nil:
			p, err := c.compileStart(item, styleAttr)
			if err != nil {
				return err
			}
			pat = p

		case item.Get("use") != nil:
			p, err := c.resolveUse(item.Get("use"))
			if err != nil {
				return err
			}
			p.attribute = styleAttr
			pat = p

		default:
			return &Error{Code: CodeInternal}
		}

		c.g.states[idx].patterns = append(c.g.states[idx].patterns, pat)
	}
	return nil
}

// compileStart compiles a start pattern: a new sub-state for its body, the
// on-entry substates, and the end/nested delimiter patterns.
func (c *compiler) compileStart(item *langdef.Node, styleAttr int) (pattern, error) {
	delimAttr := styleAttr
	if ds := item.Get("delim-style"); ds != nil {
		delimAttr = c.styles(ds.String())
	}

	re, err := c.compileRegex(item.GetString("start"), item.Get("start"))
	if err != nil {
		return pattern{}, err
	}

	extra := &patternExtra{}
	if ex := item.Get("extract"); ex != nil {
		name := ex.String()
		if !validExtractName(name) {
			return pattern{}, c.errAt(CodeInvalidName, ex, name)
		}
		extra.dynamicName = name
	}

	sub := len(c.g.states)
	c.g.states = append(c.g.states, state{attribute: styleAttr})
	pat := pattern{regex: re, attribute: delimAttr, next: Goto(sub), extra: extra}

	if hl := item.Get("highlight"); hl != nil {
		if err := c.walk(hl, sub); err != nil {
			return pattern{}, err
		}
	}

	if err := c.resolveOnEntry(&pat, item, styleAttr); err != nil {
		return pattern{}, err
	}

	if end := item.Get("end"); end != nil {
		next := Exit(item.GetInt("exit"))
		prepend := keyBefore(item, "end", "highlight")
		if err := c.addDelim(end, next, &pat, sub, prepend); err != nil {
			return pattern{}, err
		}
	}

	if item.GetBool("nested") {
		prepend := keyBefore(item, "start", "highlight")
		if err := c.addDelim(item.Get("start"), Goto(sub), &pat, sub, prepend); err != nil {
			return pattern{}, err
		}
	}
	return pat, nil
}

// keyBefore reports whether key appears before other inside section n,
// with other present. When the delimiter key precedes the body patterns in
// the source, the delimiter takes match priority and is prepended.
func keyBefore(n *langdef.Node, key, other string) bool {
	oi := n.KeyIndex(other)
	return oi >= 0 && n.KeyIndex(key) < oi
}

// addDelim wires a delimiter pattern (an end, or the start itself for
// nested highlights) into the sub-state owned by parent.
//
// When the parent start extracts a back-reference and the delimiter exits,
// the delimiter is not compiled now: its text is checked for compilability
// behind a synthetic empty DEFINE group and stored for interpolation at
// match time.
func (c *compiler) addDelim(regexNode *langdef.Node, next NextState, parent *pattern, target int, prepend bool) error {
	text := regexNode.String()
	np := pattern{attribute: parent.attribute, next: next}

	_, isExit := next.ExitDepth()
	if parent.extra != nil && parent.extra.dynamicName != "" && isExit {
		probe := "(?(DEFINE)(?<" + parent.extra.dynamicName + ">))" + text
		if _, err := c.compileRegex(probe, regexNode); err != nil {
			return err
		}
		parent.extra.dynamicPattern = text
	} else {
		re, err := c.compileRegex(text, regexNode)
		if err != nil {
			return err
		}
		np.regex = re
	}

	st := &c.g.states[target]
	if prepend {
		st.patterns = append([]pattern{np}, st.patterns...)
	} else {
		st.patterns = append(st.patterns, np)
	}
	return nil
}

// resolveOnEntry allocates the auxiliary substates a start pushes in
// addition to its main transition.
func (c *compiler) resolveOnEntry(parent *pattern, item *langdef.Node, startStyleAttr int) error {
	oe := item.Get("on-entry")
	if oe == nil {
		return nil
	}

	for _, entry := range oe.Items() {
		stateAttr := startStyleAttr
		delimAttr := parent.attribute
		if s := entry.Get("style"); s != nil {
			v := c.styles(s.String())
			stateAttr, delimAttr = v, v
		}
		if ds := entry.Get("delim-style"); ds != nil {
			delimAttr = c.styles(ds.String())
		}

		idx := len(c.g.states)
		c.g.states = append(c.g.states, state{attribute: stateAttr})
		parent.extra.onEntry = append(parent.extra.onEntry, onEntry{state: idx})

		if hl := entry.Get("highlight"); hl != nil {
			if err := c.walk(hl, idx); err != nil {
				return err
			}
		}
		if u := entry.Get("use"); u != nil {
			link, err := c.resolveUse(u)
			if err != nil {
				return err
			}
			link.attribute = stateAttr
			c.g.states[idx].patterns = append(c.g.states[idx].patterns, link)
		}

		if end := entry.Get("end"); end != nil {
			// A scratch parent redirects the delimiter into the entry's
			// own state while sharing the start's extract name, so a
			// dynamic end template lands here instead of on the start.
			tmp := pattern{
				attribute: delimAttr,
				next:      Goto(idx),
				extra:     &patternExtra{dynamicName: parent.extra.dynamicName},
			}
			next := Exit(entry.GetInt("exit"))
			prepend := keyBefore(entry, "end", "highlight")
			if err := c.addDelim(end, next, &tmp, idx, prepend); err != nil {
				return err
			}
			parent.extra.onEntry[len(parent.extra.onEntry)-1].endPattern = tmp.extra.dynamicPattern
		}
	}
	return nil
}

// resolveUse returns a link pattern for a use reference, compiling the
// definition on first sight and sharing the compiled sub-state afterwards.
func (c *compiler) resolveUse(u *langdef.Node) (pattern, error) {
	name := u.String()
	def := c.root.Get("define").Get(name)
	if def == nil {
		return pattern{}, c.errAt(CodeUndefinedUse, u, name)
	}

	if cached, ok := c.useMap[name]; ok {
		return pattern{next: Goto(cached)}, nil
	}

	idx := len(c.g.states)
	c.useMap[name] = idx
	c.g.states = append(c.g.states, state{})
	if err := c.walk(def, idx); err != nil {
		return pattern{}, err
	}
	return pattern{next: Goto(idx)}, nil
}

func validExtractName(name string) bool {
	if name == "" {
		return false
	}
	for i := 0; i < len(name); i++ {
		b := name[i]
		if (b < 'a' || b > 'z') && (b < 'A' || b > 'Z') {
			return false
		}
	}
	return true
}
