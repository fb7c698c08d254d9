package scan

import (
	"strconv"
	"strings"

	"github.com/viant/parsly"
	"github.com/viant/parsly/matcher"
)

// DirectivePrefix starts every telepath directive comment.
const DirectivePrefix = "//telepath:"

// Directive kinds.
const (
	KindRoute    = "route"
	KindRole     = "role"
	KindHome     = "home"
	KindFallback = "fallback"
)

const (
	whitespaceToken = iota
	quotedToken
	wordToken
	equalsToken
)

var (
	whitespaceMatcher = parsly.NewToken(whitespaceToken, "Whitespace", matcher.NewWhiteSpace())
	quotedMatcher     = parsly.NewToken(quotedToken, "Quoted", matcher.NewBlock('"', '"', '\\'))
	wordMatcher       = parsly.NewToken(wordToken, "Word", &wordMatch{})
	equalsMatcher     = parsly.NewToken(equalsToken, "Equals", &equalsMatch{})
)

// wordMatch matches a run of bytes up to whitespace, '=' or '"'.
type wordMatch struct{}

func (w *wordMatch) Match(cursor *parsly.Cursor) int {
	pos := cursor.Pos
	for pos < cursor.InputSize && !isDelimiter(cursor.Input[pos]) {
		pos++
	}
	return pos - cursor.Pos
}

func isDelimiter(b byte) bool {
	switch b {
	case ' ', '\t', '\r', '\n', '=', '"':
		return true
	}
	return false
}

type equalsMatch struct{}

func (e *equalsMatch) Match(cursor *parsly.Cursor) int {
	if cursor.Pos < cursor.InputSize && cursor.Input[cursor.Pos] == '=' {
		return 1
	}
	return 0
}

// Arg is one directive argument: a bare word, a quoted string, or a
// key=value pair.
type Arg struct {
	Key    string
	Value  string
	Quoted bool
}

// Directive is a parsed //telepath: comment.
type Directive struct {
	Kind string
	Args []Arg
}

// ParseDirective parses a comment line. ok is false when the line is not a
// telepath directive.
func ParseDirective(line string) (d *Directive, ok bool, err error) {
	if !strings.HasPrefix(line, DirectivePrefix) {
		return nil, false, nil
	}
	rest := line[len(DirectivePrefix):]
	kind, argText, _ := strings.Cut(rest, " ")
	kind = strings.TrimSpace(kind)
	if kind == "" {
		return nil, true, &directiveError{msg: "missing directive kind"}
	}

	args, err := parseArgs(argText)
	if err != nil {
		return nil, true, err
	}
	return &Directive{Kind: kind, Args: args}, true, nil
}

func parseArgs(text string) ([]Arg, error) {
	cursor := parsly.NewCursor("", []byte(text), 0)
	var args []Arg
	for {
		matched := cursor.MatchAfterOptional(whitespaceMatcher, quotedMatcher, wordMatcher)
		switch matched.Code {
		case parsly.EOF:
			return args, nil
		case quotedToken:
			v, err := unquote(matched.Text(cursor))
			if err != nil {
				return nil, err
			}
			args = append(args, Arg{Value: v, Quoted: true})
		case wordToken:
			word := matched.Text(cursor)
			if eq := cursor.MatchOne(equalsMatcher); eq.Code != equalsToken {
				args = append(args, Arg{Value: word})
				continue
			}
			value := cursor.MatchAny(quotedMatcher, wordMatcher)
			switch value.Code {
			case quotedToken:
				v, err := unquote(value.Text(cursor))
				if err != nil {
					return nil, err
				}
				args = append(args, Arg{Key: word, Value: v, Quoted: true})
			case wordToken:
				args = append(args, Arg{Key: word, Value: value.Text(cursor)})
			default:
				return nil, cursor.NewError(quotedMatcher, wordMatcher)
			}
		default:
			return nil, cursor.NewError(quotedMatcher, wordMatcher)
		}
	}
}

func unquote(s string) (string, error) {
	v, err := strconv.Unquote(s)
	if err != nil {
		return "", &directiveError{msg: "invalid quoted string " + s}
	}
	return v, nil
}

// Positional returns the bare arguments in order.
func (d *Directive) Positional() []string {
	var out []string
	for _, a := range d.Args {
		if a.Key == "" {
			out = append(out, a.Value)
		}
	}
	return out
}

// Lookup returns the value of the last key=value argument named key.
func (d *Directive) Lookup(key string) (string, bool) {
	for i := len(d.Args) - 1; i >= 0; i-- {
		if d.Args[i].Key == key {
			return d.Args[i].Value, true
		}
	}
	return "", false
}

type directiveError struct {
	msg string
}

func (e *directiveError) Error() string {
	return e.msg
}
