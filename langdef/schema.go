package langdef

import "fmt"

// SchemaError reports a tree that parsed but does not have the shape of a
// language description or map file.
type SchemaError struct {
	File string
	Line int
	Msg  string
}

func (e *SchemaError) Error() string {
	if e.File != "" {
		return fmt.Sprintf("%s:%d: %s", e.File, e.Line, e.Msg)
	}
	return fmt.Sprintf("line %d: %s", e.Line, e.Msg)
}

func schemaErr(n *Node, format string, args ...any) error {
	return &SchemaError{File: n.File(), Line: n.Line(), Msg: fmt.Sprintf(format, args...)}
}

func wantKind(n *Node, k Kind, what string) error {
	if n.Kind() != k {
		return schemaErr(n, "%s must be a %s, got %s", what, k, n.Kind())
	}
	return nil
}

// ValidateSyntax checks a language description tree: top-level keys,
// the exactly-one-of regex/start/use rule on every highlight node, and the
// types of all values. The extract name's character set is checked by the
// compiler, not here.
func ValidateSyntax(root *Node) error {
	if err := wantKind(root, KindSection, "description"); err != nil {
		return err
	}
	format := root.Get("format")
	if format == nil {
		return schemaErr(root, "missing required key 'format'")
	}
	if err := wantKind(format, KindInt, "'format'"); err != nil {
		return err
	}
	if format.Int() < 1 || format.Int() > 3 {
		return schemaErr(format, "unsupported format %d", format.Int())
	}

	for _, child := range root.Items() {
		switch child.Name() {
		case "format":
		case "allow-empty-start":
			if err := wantKind(child, KindBool, "'allow-empty-start'"); err != nil {
				return err
			}
		case "define":
			if err := wantKind(child, KindSection, "'define'"); err != nil {
				return err
			}
			for _, def := range child.Items() {
				if err := validateHighlightList(def, fmt.Sprintf("definition %q", def.Name())); err != nil {
					return err
				}
			}
		case "highlight":
			if err := validateHighlightList(child, "'highlight'"); err != nil {
				return err
			}
		default:
			return schemaErr(child, "unknown key %q", child.Name())
		}
	}

	if root.Get("highlight") == nil {
		return schemaErr(root, "missing required key 'highlight'")
	}
	return nil
}

func validateHighlightList(n *Node, what string) error {
	if err := wantKind(n, KindList, what); err != nil {
		return err
	}
	for _, item := range n.Items() {
		if err := validateHighlight(item); err != nil {
			return err
		}
	}
	return nil
}

func validateHighlight(n *Node) error {
	if err := wantKind(n, KindSection, "highlight entry"); err != nil {
		return err
	}
	variants := 0
	for _, key := range []string{"regex", "start", "use"} {
		if n.Get(key) != nil {
			variants++
		}
	}
	if variants != 1 {
		return schemaErr(n, "highlight entry needs exactly one of 'regex', 'start', 'use'")
	}

	switch {
	case n.Get("regex") != nil:
		return validateKeys(n, map[string]Kind{
			"regex": KindString,
			"style": KindString,
			"exit":  KindInt,
		})
	case n.Get("use") != nil:
		return validateKeys(n, map[string]Kind{"use": KindString})
	default:
		if err := validateKeys(n, map[string]Kind{
			"start":       KindString,
			"end":         KindString,
			"extract":     KindString,
			"style":       KindString,
			"delim-style": KindString,
			"nested":      KindBool,
			"exit":        KindInt,
			"on-entry":    KindList,
			"highlight":   KindList,
		}); err != nil {
			return err
		}
		if sub := n.Get("highlight"); sub != nil {
			if err := validateHighlightList(sub, "'highlight'"); err != nil {
				return err
			}
		}
		if oe := n.Get("on-entry"); oe != nil {
			for _, entry := range oe.Items() {
				if err := validateOnEntry(entry); err != nil {
					return err
				}
			}
		}
		return nil
	}
}

func validateOnEntry(n *Node) error {
	if err := wantKind(n, KindSection, "on-entry entry"); err != nil {
		return err
	}
	if err := validateKeys(n, map[string]Kind{
		"end":         KindString,
		"exit":        KindInt,
		"style":       KindString,
		"delim-style": KindString,
		"highlight":   KindList,
		"use":         KindString,
	}); err != nil {
		return err
	}
	if sub := n.Get("highlight"); sub != nil {
		return validateHighlightList(sub, "'highlight'")
	}
	return nil
}

func validateKeys(n *Node, allowed map[string]Kind) error {
	for _, child := range n.Items() {
		want, ok := allowed[child.Name()]
		if !ok {
			return schemaErr(child, "unknown key %q", child.Name())
		}
		if err := wantKind(child, want, fmt.Sprintf("%q", child.Name())); err != nil {
			return err
		}
	}
	return nil
}

// ValidateMap checks a language map tree.
func ValidateMap(root *Node) error {
	if err := wantKind(root, KindSection, "map"); err != nil {
		return err
	}
	format := root.Get("format")
	if format == nil {
		return schemaErr(root, "missing required key 'format'")
	}
	if err := wantKind(format, KindInt, "'format'"); err != nil {
		return err
	}
	if format.Int() != 1 {
		return schemaErr(format, "unsupported map format %d", format.Int())
	}

	for _, child := range root.Items() {
		switch child.Name() {
		case "format":
		case "lang":
			if err := wantKind(child, KindList, "'lang'"); err != nil {
				return err
			}
			for _, entry := range child.Items() {
				if err := validateLang(entry); err != nil {
					return err
				}
			}
		default:
			return schemaErr(child, "unknown key %q", child.Name())
		}
	}
	return nil
}

func validateLang(n *Node) error {
	if err := wantKind(n, KindSection, "lang entry"); err != nil {
		return err
	}
	if err := validateKeys(n, map[string]Kind{
		"name":             KindString,
		"lang-file":        KindString,
		"name-regex":       KindString,
		"file-regex":       KindString,
		"first-line-regex": KindString,
	}); err != nil {
		return err
	}
	for _, key := range []string{"name", "lang-file"} {
		if n.Get(key) == nil {
			return schemaErr(n, "lang entry missing required key %q", key)
		}
	}
	return nil
}
