package convert

import (
	"net/url"
	"path/filepath"
	"strings"
)

// Encoding is a source or target text encoding
type Encoding int

const (
	// Unknown is any source the dispatcher does not recognise
	Unknown Encoding = iota
	// Tabular is delimited rows with a header (csv)
	Tabular
	// Hierarchical is dotted-key records (json)
	Hierarchical
	// Tree is nested mappings and sequences (yml)
	Tree
)

// ArtifactPrefix is the base name of every produced artifact
const ArtifactPrefix = "converted_file"

// All lists the recognised encodings in output order
var All = []Encoding{Tabular, Hierarchical, Tree}

var extensions = map[string]Encoding{
	"csv":  Tabular,
	"json": Hierarchical,
	"yml":  Tree,
	"yaml": Tree,
}

// String returns the encoding tag
func (e Encoding) String() string {
	switch e {
	case Tabular:
		return "tabular"
	case Hierarchical:
		return "hierarchical"
	case Tree:
		return "tree"
	default:
		return "unknown"
	}
}

// Extension returns the file extension written for the encoding, without
// the dot. Unknown has none.
func (e Encoding) Extension() string {
	switch e {
	case Tabular:
		return "csv"
	case Hierarchical:
		return "json"
	case Tree:
		return "yml"
	default:
		return ""
	}
}

// ArtifactName returns converted_file.<ext>
func (e Encoding) ArtifactName() string {
	if e == Unknown {
		return ""
	}
	return ArtifactPrefix + "." + e.Extension()
}

// Targets returns the two encodings a source of e converts into. Unknown
// has no targets.
func (e Encoding) Targets() []Encoding {
	if e == Unknown {
		return nil
	}
	out := make([]Encoding, 0, len(All)-1)
	for _, t := range All {
		if t != e {
			out = append(out, t)
		}
	}
	return out
}

// ParseEncoding maps a tag ("tabular") or an extension ("csv", ".yaml")
// to its Encoding
func ParseEncoding(s string) Encoding {
	s = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(s), "."))
	if e, ok := extensions[s]; ok {
		return e
	}
	for _, e := range All {
		if e.String() == s {
			return e
		}
	}
	return Unknown
}

// DetectEncoding derives the source encoding from the extension of a file
// name, a path or the path of a URL. Matching ignores case.
func DetectEncoding(name string) Encoding {
	p := name
	if u, err := url.Parse(name); err == nil && u.Scheme != "" && u.Host != "" {
		p = u.Path
	}
	ext := filepath.Ext(p)
	if ext == "" {
		return Unknown
	}
	if e, ok := extensions[strings.ToLower(ext[1:])]; ok {
		return e
	}
	return Unknown
}
