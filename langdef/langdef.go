// Package langdef parses language description files and language map files
// into a typed tree with source locations.
//
// The wire format is YAML. The tree deliberately mirrors the shapes the
// compiler consumes — booleans, integers, strings, ordered lists and
// ordered sections — rather than exposing yaml.Node: the compiler never
// sees the serialization library, only this package's Node type.
package langdef

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Kind identifies the type of a Node.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindBool
	KindInt
	KindString
	KindList
	KindSection
)

func (k Kind) String() string {
	switch k {
	case KindBool:
		return "bool"
	case KindInt:
		return "int"
	case KindString:
		return "string"
	case KindList:
		return "list"
	case KindSection:
		return "section"
	default:
		return "invalid"
	}
}

// Node is one value in a description tree. Section and list children keep
// the order they had in the source file; Line reports where the value was
// written.
type Node struct {
	kind  Kind
	name  string
	file  string
	line  int
	b     bool
	i     int
	s     string
	items []*Node
}

// Kind returns the node's type.
func (n *Node) Kind() Kind { return n.kind }

// Name returns the key under which the node appears in its parent
// section, or "" for list elements and the root.
func (n *Node) Name() string { return n.name }

// File returns the name of the file the node was parsed from.
func (n *Node) File() string { return n.file }

// Line returns the 1-based source line of the node's value.
func (n *Node) Line() int { return n.line }

// Bool returns the node's boolean value (false for other kinds).
func (n *Node) Bool() bool { return n != nil && n.b }

// Int returns the node's integer value (0 for other kinds).
func (n *Node) Int() int {
	if n == nil {
		return 0
	}
	return n.i
}

// String returns the node's string value ("" for other kinds).
func (n *Node) String() string {
	if n == nil {
		return ""
	}
	return n.s
}

// Items returns the ordered children of a list or section node.
func (n *Node) Items() []*Node {
	if n == nil {
		return nil
	}
	return n.items
}

// Get returns the child of a section with the given key, or nil.
func (n *Node) Get(name string) *Node {
	if n == nil || n.kind != KindSection {
		return nil
	}
	for _, c := range n.items {
		if c.name == name {
			return c
		}
	}
	return nil
}

// KeyIndex returns the position of a key within a section, or -1 when the
// key is absent. The compiler uses relative key positions to decide
// whether a delimiter pattern is prepended or appended.
func (n *Node) KeyIndex(name string) int {
	if n == nil || n.kind != KindSection {
		return -1
	}
	for i, c := range n.items {
		if c.name == name {
			return i
		}
	}
	return -1
}

// GetString returns the string value of a section child, or "".
func (n *Node) GetString(name string) string { return n.Get(name).String() }

// GetInt returns the integer value of a section child, or 0.
func (n *Node) GetInt(name string) int { return n.Get(name).Int() }

// GetBool returns the boolean value of a section child, or false.
func (n *Node) GetBool(name string) bool { return n.Get(name).Bool() }

// ParseError reports a file that is not well-formed YAML.
type ParseError struct {
	File string
	Err  error
}

func (e *ParseError) Error() string {
	if e.File != "" {
		return fmt.Sprintf("%s: %v", e.File, e.Err)
	}
	return e.Err.Error()
}

func (e *ParseError) Unwrap() error { return e.Err }

// Parse decodes data into a typed tree. filename is recorded on every
// node for error reporting and may be empty.
func Parse(data []byte, filename string) (*Node, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, &ParseError{File: filename, Err: err}
	}
	if doc.Kind == 0 || len(doc.Content) == 0 {
		return &Node{kind: KindSection, file: filename, line: 1}, nil
	}
	return convert(doc.Content[0], "", filename)
}

// ParseFile reads and parses a description or map file.
func ParseFile(path string) (*Node, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return Parse(data, path)
}

func convert(y *yaml.Node, name, file string) (*Node, error) {
	n := &Node{name: name, file: file, line: y.Line}
	switch y.Kind {
	case yaml.MappingNode:
		n.kind = KindSection
		for i := 0; i+1 < len(y.Content); i += 2 {
			key := y.Content[i]
			child, err := convert(y.Content[i+1], key.Value, file)
			if err != nil {
				return nil, err
			}
			n.items = append(n.items, child)
		}
	case yaml.SequenceNode:
		n.kind = KindList
		for _, c := range y.Content {
			child, err := convert(c, "", file)
			if err != nil {
				return nil, err
			}
			n.items = append(n.items, child)
		}
	case yaml.ScalarNode:
		switch y.Tag {
		case "!!bool":
			n.kind = KindBool
			if err := y.Decode(&n.b); err != nil {
				return nil, &ParseError{File: file, Err: err}
			}
		case "!!int":
			n.kind = KindInt
			if err := y.Decode(&n.i); err != nil {
				return nil, &ParseError{File: file, Err: err}
			}
		case "!!null":
			n.kind = KindString
		default:
			n.kind = KindString
			n.s = y.Value
		}
	case yaml.AliasNode:
		return convert(y.Alias, name, file)
	default:
		return nil, &ParseError{File: file, Err: fmt.Errorf("unsupported node at line %d", y.Line)}
	}
	return n, nil
}
