// Package vivid is a syntax-highlighting engine. It compiles declarative
// language descriptions into immutable state graphs and walks documents
// through them one line at a time, emitting styled span records.
//
// Basic usage:
//
//	styles := func(name string) int { return myTheme.Index(name) }
//	graph, err := vivid.LoadByFilename("main.c", styles, vivid.DefaultConfig())
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	m := graph.NewMatcher()
//	for _, line := range lines {
//	    for m.Match(line) {
//	        paint(line[m.Start():m.MatchStart()], m.BeginAttribute())
//	        paint(line[m.MatchStart():m.End()], m.MatchAttribute())
//	    }
//	    paint(line[m.Start():], m.BeginAttribute())
//	    m.NextLine()
//	}
//
// The compiled graph is safe to share between goroutines; each Matcher
// belongs to one document and one goroutine at a time.
package vivid

import (
	"github.com/vividlight/vivid/engine"
	"github.com/vividlight/vivid/langdef"
	"github.com/vividlight/vivid/langmap"
)

// Re-exported core types. The engine package holds the implementation;
// hosts normally only import this package.
type (
	Graph     = engine.Graph
	Matcher   = engine.Matcher
	StyleFunc = engine.StyleFunc
	Error     = engine.Error
	Code      = engine.Code
	Language  = langmap.Language
)

// Error codes.
const (
	CodeInvalidFormat   = engine.CodeInvalidFormat
	CodeInvalidRegex    = engine.CodeInvalidRegex
	CodeInvalidName     = engine.CodeInvalidName
	CodeUndefinedUse    = engine.CodeUndefinedUse
	CodeUseCycle        = engine.CodeUseCycle
	CodeEmptyStartCycle = engine.CodeEmptyStartCycle
	CodeNoSyntax        = engine.CodeNoSyntax
	CodeOutOfMemory     = engine.CodeOutOfMemory
	CodeBadArg          = engine.CodeBadArg
	CodeInternal        = engine.CodeInternal
)

// Sentinel errors. Compile and lookup failures unwrap to one of these; a
// file that cannot be found or read, and a lang.map that is not well-formed
// YAML, are reported with the underlying error instead.
var (
	ErrInvalidFormat   = engine.ErrInvalidFormat
	ErrInvalidRegex    = engine.ErrInvalidRegex
	ErrInvalidName     = engine.ErrInvalidName
	ErrUndefinedUse    = engine.ErrUndefinedUse
	ErrUseCycle        = engine.ErrUseCycle
	ErrEmptyStartCycle = engine.ErrEmptyStartCycle
	ErrNoSyntax        = engine.ErrNoSyntax
	ErrOutOfMemory     = engine.ErrOutOfMemory
	ErrBadArg          = engine.ErrBadArg
	ErrInternal        = engine.ErrInternal
)

// InvalidOffset is reported by the span accessors after a line fails
// UTF-8 validation.
const InvalidOffset = engine.InvalidOffset

const version = "0.1.0"

// Version returns the library version.
func Version() string {
	return version
}

// Config selects library-wide behaviour.
type Config struct {
	// UTF8 compiles patterns in UTF-8 mode and validates each input line.
	UTF8 bool

	// NoUTF8Check skips the per-line validation; the host promises valid
	// UTF-8.
	NoUTF8Check bool

	// UsePath resolves description file names against the data search
	// path instead of the working directory.
	UsePath bool

	// VerboseError attaches file, line and diagnostic text to errors.
	VerboseError bool

	// DataDir overrides the system data directory searched after the
	// user's XDG data directory.
	DataDir string
}

// DefaultConfig returns the default configuration: byte-oriented
// matching, terse errors, search path enabled.
func DefaultConfig() Config {
	return Config{UsePath: true}
}

func (c Config) engine(langFile string) engine.Config {
	return engine.Config{
		UTF8:         c.UTF8,
		NoUTF8Check:  c.NoUTF8Check,
		VerboseError: c.VerboseError,
		LangFile:     langFile,
	}
}

// Compile builds a state graph from an already-parsed description tree.
func Compile(root *langdef.Node, styles StyleFunc, cfg Config) (*Graph, error) {
	return engine.Compile(root, styles, cfg.engine(""))
}

// Load reads, parses and compiles a description file. With cfg.UsePath
// the name is resolved against the data search path.
func Load(name string, styles StyleFunc, cfg Config) (*Graph, error) {
	path := name
	if cfg.UsePath {
		resolved, err := langmap.FindFile(langmap.Paths(cfg.DataDir), name)
		if err != nil {
			return nil, err
		}
		path = resolved
	}
	root, err := langdef.ParseFile(path)
	if err != nil {
		return nil, loadError(err, cfg)
	}
	return engine.Compile(root, styles, cfg.engine(name))
}

func loadError(err error, cfg Config) error {
	if pe, ok := err.(*langdef.ParseError); ok {
		if cfg.VerboseError {
			return &Error{Code: CodeInvalidFormat, File: pe.File, Extra: pe.Err.Error()}
		}
		return &Error{Code: CodeInvalidFormat}
	}
	return err
}

func loadMap(cfg Config) (*langmap.Map, error) {
	return langmap.LoadMap(langmap.Paths(cfg.DataDir), cfg.VerboseError)
}

// List enumerates the languages of the merged map.
func List(cfg Config) ([]Language, error) {
	m, err := loadMap(cfg)
	if err != nil {
		return nil, err
	}
	return m.List(), nil
}

// LoadByName loads the language whose map entry's name-regex matches
// name.
func LoadByName(name string, styles StyleFunc, cfg Config) (*Graph, error) {
	m, err := loadMap(cfg)
	if err != nil {
		return nil, err
	}
	entry, err := m.ByName(name)
	if err != nil {
		return nil, err
	}
	cfg.UsePath = true
	return Load(entry.LangFile, styles, cfg)
}

// LoadByFilename loads the language whose map entry's file-regex matches
// the file name.
func LoadByFilename(name string, styles StyleFunc, cfg Config) (*Graph, error) {
	m, err := loadMap(cfg)
	if err != nil {
		return nil, err
	}
	entry, err := m.ByFilename(name)
	if err != nil {
		return nil, err
	}
	cfg.UsePath = true
	return Load(entry.LangFile, styles, cfg)
}

// Detect guesses a language name from a line of the document: editor
// modelines on any line, per-language first-line regexes when first is
// true. Returns a CodeNoSyntax error when nothing matches.
func Detect(line []byte, first bool, cfg Config) (string, error) {
	m, err := loadMap(cfg)
	if err != nil {
		return "", err
	}
	name, ok := m.Detect(line, first)
	if !ok {
		return "", &Error{Code: CodeNoSyntax}
	}
	return name, nil
}

// LoadByDetect combines Detect and LoadByName.
func LoadByDetect(line []byte, first bool, styles StyleFunc, cfg Config) (*Graph, error) {
	name, err := Detect(line, first, cfg)
	if err != nil {
		return nil, err
	}
	return LoadByName(name, styles, cfg)
}
