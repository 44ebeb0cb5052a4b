// Package langmap locates language descriptions: it loads and merges
// lang.map files, looks languages up by name or file name, and guesses the
// language of a document from its first line.
package langmap

import (
	"errors"
	"os"
	"path/filepath"

	"github.com/vividlight/vivid/engine"
	"github.com/vividlight/vivid/internal/rex"
	"github.com/vividlight/vivid/langdef"
)

// MapFileName is the file name of a language map within a data directory.
const MapFileName = "lang.map"

// DefaultDataDir is the system fallback searched after the user's data
// directory.
const DefaultDataDir = "/usr/share/vivid"

// Language is one name/description-file pair from a map.
type Language struct {
	Name     string
	LangFile string
}

// Entry is a full lang.map entry.
type Entry struct {
	Name           string
	LangFile       string
	NameRegex      string
	FileRegex      string
	FirstLineRegex string
}

// Map is a merged language map. Lookup order follows load order: entries
// from earlier (user) maps shadow later (system) ones.
type Map struct {
	entries []Entry
}

// Paths returns the map/description search path: the user's XDG data
// directory first, then dataDir (DefaultDataDir when empty).
func Paths(dataDir string) []string {
	if dataDir == "" {
		dataDir = DefaultDataDir
	}
	var paths []string
	if x := os.Getenv("XDG_DATA_HOME"); x != "" {
		paths = append(paths, filepath.Join(x, "vivid"))
	} else if home, err := os.UserHomeDir(); err == nil {
		paths = append(paths, filepath.Join(home, ".local", "share", "vivid"))
	}
	return append(paths, dataDir)
}

// FindFile resolves name against the search path. Absolute names are used
// as-is.
func FindFile(paths []string, name string) (string, error) {
	if filepath.IsAbs(name) {
		if _, err := os.Stat(name); err != nil {
			return "", err
		}
		return name, nil
	}
	var firstErr error
	for _, p := range paths {
		full := filepath.Join(p, name)
		if _, err := os.Stat(full); err == nil {
			return full, nil
		} else if firstErr == nil {
			firstErr = err
		}
	}
	if firstErr == nil {
		firstErr = os.ErrNotExist
	}
	return "", firstErr
}

// LoadMap loads the lang.map from every path that has one and merges them
// in order. The map in the final (system) path must load; earlier ones are
// optional.
func LoadMap(paths []string, verbose bool) (*Map, error) {
	merged := &Map{}
	for i, p := range paths {
		m, err := LoadMapFile(filepath.Join(p, MapFileName), verbose)
		if err != nil {
			if i == len(paths)-1 {
				return nil, err
			}
			continue
		}
		merged.entries = append(merged.entries, m.entries...)
	}
	return merged, nil
}

// LoadMapFile loads and validates a single map file.
func LoadMapFile(path string, verbose bool) (*Map, error) {
	root, err := langdef.ParseFile(path)
	if err != nil {
		return nil, err
	}
	if err := langdef.ValidateMap(root); err != nil {
		var se *langdef.SchemaError
		if verbose && errors.As(err, &se) {
			return nil, &engine.Error{Code: engine.CodeInvalidFormat, Line: se.Line, File: se.File, Extra: se.Msg}
		}
		return nil, &engine.Error{Code: engine.CodeInvalidFormat}
	}

	m := &Map{}
	for _, lang := range root.Get("lang").Items() {
		m.entries = append(m.entries, Entry{
			Name:           lang.GetString("name"),
			LangFile:       lang.GetString("lang-file"),
			NameRegex:      lang.GetString("name-regex"),
			FileRegex:      lang.GetString("file-regex"),
			FirstLineRegex: lang.GetString("first-line-regex"),
		})
	}
	return m, nil
}

// List returns every language in the map, in lookup order.
func (m *Map) List() []Language {
	langs := make([]Language, 0, len(m.entries))
	for _, e := range m.entries {
		langs = append(langs, Language{Name: e.Name, LangFile: e.LangFile})
	}
	return langs
}

// ByName returns the first entry whose name-regex matches the language
// name.
func (m *Map) ByName(name string) (*Entry, error) {
	return m.lookup(name, func(e *Entry) string { return e.NameRegex })
}

// ByFilename returns the first entry whose file-regex matches the file
// name.
func (m *Map) ByFilename(name string) (*Entry, error) {
	return m.lookup(name, func(e *Entry) string { return e.FileRegex })
}

func (m *Map) lookup(subject string, field func(*Entry) string) (*Entry, error) {
	for i := range m.entries {
		pattern := field(&m.entries[i])
		if pattern == "" {
			continue
		}
		re, err := rex.Compile(pattern, rex.Options{})
		if err != nil {
			continue
		}
		if _, ok := re.Run([]byte(subject), 0, 0, ""); ok {
			return &m.entries[i], nil
		}
	}
	return nil, &engine.Error{Code: engine.CodeNoSyntax}
}
