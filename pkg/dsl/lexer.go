package dsl

import (
	"fmt"
	"strings"
	"unicode"
)

type tokenKind int

const (
	tkEOF tokenKind = iota
	tkIdent
	tkString
	tkNumber
	tkPunct // one of ( ) { } [ ] , : = > . ->
)

type lexToken struct {
	kind tokenKind
	text string
	line int
}

func (t lexToken) String() string {
	switch t.kind {
	case tkEOF:
		return "end of input"
	case tkString:
		return fmt.Sprintf("%q", t.text)
	default:
		return fmt.Sprintf("'%s'", t.text)
	}
}

// lexer splits a script into tokens, tracking line numbers for diagnostics.
// Comments run from "//" or "#" to end of line.
type lexer struct {
	src  string
	pos  int
	line int
}

func newLexer(src string) *lexer {
	return &lexer{src: src, line: 1}
}

func (l *lexer) errorf(format string, args ...any) error {
	return fmt.Errorf("line %d: %s", l.line, fmt.Sprintf(format, args...))
}

func (l *lexer) peekByte() byte {
	if l.pos >= len(l.src) {
		return 0
	}
	return l.src[l.pos]
}

func (l *lexer) skipSpace() {
	for l.pos < len(l.src) {
		c := l.src[l.pos]
		switch {
		case c == '\n':
			l.line++
			l.pos++
		case c == ' ' || c == '\t' || c == '\r':
			l.pos++
		case c == '#' || (c == '/' && l.pos+1 < len(l.src) && l.src[l.pos+1] == '/'):
			for l.pos < len(l.src) && l.src[l.pos] != '\n' {
				l.pos++
			}
		default:
			return
		}
	}
}

func isIdentStart(c byte) bool {
	return c == '_' || unicode.IsLetter(rune(c))
}

func isIdentPart(c byte) bool {
	return c == '_' || unicode.IsLetter(rune(c)) || unicode.IsDigit(rune(c))
}

func (l *lexer) next() (lexToken, error) {
	l.skipSpace()
	if l.pos >= len(l.src) {
		return lexToken{kind: tkEOF, line: l.line}, nil
	}

	start := l.pos
	line := l.line
	c := l.src[l.pos]

	switch {
	case isIdentStart(c):
		for l.pos < len(l.src) && isIdentPart(l.src[l.pos]) {
			l.pos++
		}
		return lexToken{kind: tkIdent, text: l.src[start:l.pos], line: line}, nil

	case c == '"':
		l.pos++
		var sb strings.Builder
		for l.pos < len(l.src) {
			c := l.src[l.pos]
			if c == '"' {
				l.pos++
				return lexToken{kind: tkString, text: sb.String(), line: line}, nil
			}
			if c == '\n' {
				return lexToken{}, l.errorf("unterminated string")
			}
			if c == '\\' && l.pos+1 < len(l.src) {
				l.pos++
				switch l.src[l.pos] {
				case 'n':
					sb.WriteByte('\n')
				case 't':
					sb.WriteByte('\t')
				case '"':
					sb.WriteByte('"')
				case '\\':
					sb.WriteByte('\\')
				default:
					return lexToken{}, l.errorf("unknown escape \\%c", l.src[l.pos])
				}
				l.pos++
				continue
			}
			sb.WriteByte(c)
			l.pos++
		}
		return lexToken{}, l.errorf("unterminated string")

	case c >= '0' && c <= '9' || c == '-' && l.pos+1 < len(l.src) && l.src[l.pos+1] >= '0' && l.src[l.pos+1] <= '9':
		l.pos++
		for l.pos < len(l.src) {
			c := l.src[l.pos]
			if c >= '0' && c <= '9' || c == '.' || c == 'e' || c == 'E' || c == '+' || c == '-' {
				// "a.out" never reaches here; numbers cannot follow idents.
				if c == '.' && l.pos+1 < len(l.src) && !(l.src[l.pos+1] >= '0' && l.src[l.pos+1] <= '9') {
					break
				}
				l.pos++
				continue
			}
			break
		}
		return lexToken{kind: tkNumber, text: l.src[start:l.pos], line: line}, nil

	case c == '-' && l.pos+1 < len(l.src) && l.src[l.pos+1] == '>':
		l.pos += 2
		return lexToken{kind: tkPunct, text: "->", line: line}, nil

	case strings.IndexByte("(){}[],:=>.", c) >= 0:
		l.pos++
		return lexToken{kind: tkPunct, text: string(c), line: line}, nil
	}

	return lexToken{}, l.errorf("unexpected character %q", c)
}
