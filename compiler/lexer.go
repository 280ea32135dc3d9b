package compiler

import (
	"unicode"
	"unicode/utf8"
)

// ---------------------------------------------------------------------------
// Lexer: Tokenizer for mia source
// ---------------------------------------------------------------------------

// Lexer tokenizes mia source code.
type Lexer struct {
	input   string
	pos     int  // current position in input
	readPos int  // reading position (after current char)
	ch      rune // current character
	line    int  // line of ch (1-based)
	col     int  // column of ch (1-based)
}

// NewLexer creates a new lexer for the given input.
func NewLexer(input string) *Lexer {
	l := &Lexer{
		input: input,
		line:  1,
	}
	l.readChar()
	return l
}

// readChar reads the next character.
func (l *Lexer) readChar() {
	if l.ch == '\n' {
		l.line++
		l.col = 0
	}
	if l.readPos >= len(l.input) {
		l.ch = 0 // EOF
		l.pos = l.readPos
		l.col++
		return
	}
	r, size := utf8.DecodeRuneInString(l.input[l.readPos:])
	l.ch = r
	l.pos = l.readPos
	l.readPos += size
	l.col++
}

// peekChar returns the next character without consuming it.
func (l *Lexer) peekChar() rune {
	if l.readPos >= len(l.input) {
		return 0
	}
	r, _ := utf8.DecodeRuneInString(l.input[l.readPos:])
	return r
}

// atEOF reports whether the whole input has been consumed.
func (l *Lexer) atEOF() bool {
	return l.pos >= len(l.input)
}

// position returns the current position.
func (l *Lexer) position() Position {
	return Position{
		Offset: l.pos,
		Line:   l.line,
		Column: l.col,
	}
}

var punctuation = map[rune]TokenType{
	'(': TokenLParen,
	')': TokenRParen,
	'[': TokenLBracket,
	']': TokenRBracket,
	'{': TokenLBrace,
	'}': TokenRBrace,
	'<': TokenLAngle,
	'>': TokenRAngle,
	'=': TokenEqual,
	'+': TokenPlus,
	'-': TokenMinus,
	'*': TokenStar,
	'/': TokenSlash,
	'.': TokenDot,
	';': TokenSemicolon,
	',': TokenComma,
	':': TokenColon,
	'?': TokenQuestion,
}

// NextToken returns the next token.
func (l *Lexer) NextToken() Token {
	l.skipWhitespaceAndComments()
	tok := l.scan(l.position())
	tok.End = l.position()
	return tok
}

func (l *Lexer) scan(pos Position) Token {
	switch {
	case l.atEOF():
		return Token{Type: TokenEOF, Pos: pos}

	case l.ch == '\'':
		return l.readString(pos)

	case isDigit(l.ch):
		return l.readNumber(pos)

	case unicode.IsLetter(l.ch) || l.ch == '_':
		return l.readIdentifier(pos)
	}

	if tt, ok := punctuation[l.ch]; ok {
		lit := string(l.ch)
		l.readChar()
		return Token{Type: tt, Literal: lit, Pos: pos}
	}

	ch := l.ch
	l.readChar()
	return Token{Type: TokenError, Literal: "unexpected character " + string(ch), Pos: pos}
}

// skipWhitespaceAndComments skips blanks and '#' line comments.
func (l *Lexer) skipWhitespaceAndComments() {
	for !l.atEOF() {
		switch {
		case unicode.IsSpace(l.ch):
			l.readChar()
		case l.ch == '#':
			for !l.atEOF() && l.ch != '\n' {
				l.readChar()
			}
		default:
			return
		}
	}
}

// readString reads a single-quoted string. The text is taken as is; there
// are no escape sequences and strings may span lines.
func (l *Lexer) readString(pos Position) Token {
	l.readChar() // opening quote
	start := l.pos
	for !l.atEOF() && l.ch != '\'' {
		l.readChar()
	}
	if l.atEOF() {
		return Token{Type: TokenError, Literal: "unterminated string", Pos: pos}
	}
	text := l.input[start:l.pos]
	l.readChar() // closing quote
	return Token{Type: TokenString, Literal: text, Pos: pos}
}

// readNumber reads digits with an optional fraction. A dot not followed by a
// digit is left for the next token.
func (l *Lexer) readNumber(pos Position) Token {
	start := l.pos
	for isDigit(l.ch) {
		l.readChar()
	}
	if l.ch == '.' && isDigit(l.peekChar()) {
		l.readChar()
		for isDigit(l.ch) {
			l.readChar()
		}
	}
	return Token{Type: TokenNumber, Literal: l.input[start:l.pos], Pos: pos}
}

// readIdentifier reads a keyword, an identifier or a type identifier.
func (l *Lexer) readIdentifier(pos Position) Token {
	start := l.pos
	for unicode.IsLetter(l.ch) || unicode.IsDigit(l.ch) || l.ch == '_' {
		l.readChar()
	}
	lit := l.input[start:l.pos]

	if tt, ok := reservedWords[lit]; ok {
		return Token{Type: tt, Literal: lit, Pos: pos}
	}
	first, _ := utf8.DecodeRuneInString(lit)
	if unicode.IsUpper(first) {
		return Token{Type: TokenTypeIdentifier, Literal: lit, Pos: pos}
	}
	return Token{Type: TokenIdentifier, Literal: lit, Pos: pos}
}

func isDigit(r rune) bool {
	return r >= '0' && r <= '9'
}

// Tokenize returns all tokens of input up to and including EOF, stopping
// early at the first error token.
func Tokenize(input string) []Token {
	l := NewLexer(input)
	var tokens []Token
	for {
		tok := l.NextToken()
		tokens = append(tokens, tok)
		if tok.Type == TokenEOF || tok.Type == TokenError {
			return tokens
		}
	}
}
