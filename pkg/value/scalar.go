package value

import (
	"regexp"
	"strconv"
)

// ScalarKind is the type tag of a Scalar, decided once at decode time.
type ScalarKind int

const (
	// Null is the absent/empty value
	Null ScalarKind = iota
	// String is free text
	String
	// Number is a numeric literal, kept in its lexical form
	Number
	// Bool is true or false
	Bool
)

// String returns the kind name
func (k ScalarKind) String() string {
	switch k {
	case Null:
		return "null"
	case String:
		return "string"
	case Number:
		return "number"
	case Bool:
		return "bool"
	default:
		return "unknown"
	}
}

// Scalar is a leaf value. The zero Scalar is null.
type Scalar struct {
	kind ScalarKind
	text string
}

// Kind implements Value
func (Scalar) Kind() Kind { return KindScalar }

func (Scalar) isValue() {}

// NullValue returns the null scalar
func NullValue() Scalar { return Scalar{} }

// StringValue returns a string scalar
func StringValue(s string) Scalar { return Scalar{kind: String, text: s} }

// BoolValue returns a bool scalar
func BoolValue(b bool) Scalar {
	return Scalar{kind: Bool, text: strconv.FormatBool(b)}
}

// NumberValue returns a number scalar from its lexical form. It reports
// false when lit is not a valid number literal.
func NumberValue(lit string) (Scalar, bool) {
	if !IsNumber(lit) {
		return Scalar{}, false
	}
	return Scalar{kind: Number, text: lit}, true
}

// IntValue returns a number scalar holding n
func IntValue(n int64) Scalar {
	return Scalar{kind: Number, text: strconv.FormatInt(n, 10)}
}

// Type returns the scalar's kind tag
func (s Scalar) Type() ScalarKind { return s.kind }

// IsNull reports whether the scalar is null
func (s Scalar) IsNull() bool { return s.kind == Null }

// Text returns the textual form used by the text encoders: the string
// itself, the number literal, "true"/"false", or "" for null.
func (s Scalar) Text() string { return s.text }

// Bool returns the boolean value of a Bool scalar
func (s Scalar) Bool() bool { return s.kind == Bool && s.text == "true" }

// Float returns the numeric value of a Number scalar
func (s Scalar) Float() (float64, error) {
	return strconv.ParseFloat(s.text, 64)
}

// GoString renders the scalar with its kind for debugging output
func (s Scalar) GoString() string {
	if s.kind == String {
		return strconv.Quote(s.text)
	}
	if s.kind == Null {
		return "null"
	}
	return s.text
}

// numberLiteral matches the JSON number grammar. Restricting inference to
// it keeps every inferred Number valid in all three encodings.
var numberLiteral = regexp.MustCompile(`^-?(0|[1-9][0-9]*)(\.[0-9]+)?([eE][+-]?[0-9]+)?$`)

// IsNumber reports whether text is a number literal
func IsNumber(text string) bool {
	return numberLiteral.MatchString(text)
}

// Infer decodes untyped text into a tagged scalar: number literals become
// Number, "true"/"false" become Bool, the empty string becomes Null and
// everything else is a String.
func Infer(text string) Scalar {
	switch {
	case text == "":
		return Scalar{}
	case text == "true" || text == "false":
		return Scalar{kind: Bool, text: text}
	case IsNumber(text):
		return Scalar{kind: Number, text: text}
	default:
		return Scalar{kind: String, text: text}
	}
}

// Ambiguous reports whether a String scalar's text would infer to
// something other than a String. Encoders use it to decide when a string
// has to be quoted to survive a round trip.
func (s Scalar) Ambiguous() bool {
	return s.kind == String && Infer(s.text).kind != String
}
