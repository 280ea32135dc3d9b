package compiler

import "fmt"

// ---------------------------------------------------------------------------
// Token types for the mia lexer
// ---------------------------------------------------------------------------

// TokenType represents the type of a token.
type TokenType int

const (
	// Special tokens
	TokenEOF TokenType = iota
	TokenError

	// Literals
	TokenNumber         // 42, 41.82
	TokenString         // 'hello'
	TokenIdentifier     // foo
	TokenTypeIdentifier // Foo

	// Delimiters and operators
	TokenLParen    // (
	TokenRParen    // )
	TokenLBracket  // [
	TokenRBracket  // ]
	TokenLBrace    // {
	TokenRBrace    // }
	TokenLAngle    // <
	TokenRAngle    // >
	TokenEqual     // =
	TokenPlus      // +
	TokenMinus     // -
	TokenStar      // *
	TokenSlash     // /
	TokenDot       // .
	TokenSemicolon // ;
	TokenComma     // ,
	TokenColon     // :
	TokenQuestion  // ?

	// Keywords
	TokenLet
	TokenPub
	TokenStruct
	TokenFn
	TokenReturn
	TokenImport
	TokenFrom
	TokenFor
	TokenIn
	TokenNil
)

var tokenNames = map[TokenType]string{
	TokenEOF:            "EOF",
	TokenError:          "ERROR",
	TokenNumber:         "NUMBER",
	TokenString:         "STRING",
	TokenIdentifier:     "IDENTIFIER",
	TokenTypeIdentifier: "TYPE_IDENTIFIER",
	TokenLParen:         "(",
	TokenRParen:         ")",
	TokenLBracket:       "[",
	TokenRBracket:       "]",
	TokenLBrace:         "{",
	TokenRBrace:         "}",
	TokenLAngle:         "<",
	TokenRAngle:         ">",
	TokenEqual:          "=",
	TokenPlus:           "+",
	TokenMinus:          "-",
	TokenStar:           "*",
	TokenSlash:          "/",
	TokenDot:            ".",
	TokenSemicolon:      ";",
	TokenComma:          ",",
	TokenColon:          ":",
	TokenQuestion:       "?",
	TokenLet:            "let",
	TokenPub:            "pub",
	TokenStruct:         "struct",
	TokenFn:             "fn",
	TokenReturn:         "return",
	TokenImport:         "import",
	TokenFrom:           "from",
	TokenFor:            "for",
	TokenIn:             "in",
	TokenNil:            "nil",
}

func (t TokenType) String() string {
	if name, ok := tokenNames[t]; ok {
		return name
	}
	return fmt.Sprintf("Token(%d)", t)
}

// Token represents a lexical token.
type Token struct {
	Type    TokenType
	Literal string   // the raw text; for strings, the text between the quotes
	Pos     Position // start position
	End     Position // position just past the token
}

func (t Token) String() string {
	if t.Type == TokenEOF {
		return "EOF"
	}
	if t.Type == TokenError {
		return fmt.Sprintf("ERROR(%s)", t.Literal)
	}
	if len(t.Literal) > 20 {
		return fmt.Sprintf("%s(%q...)", t.Type, t.Literal[:20])
	}
	return fmt.Sprintf("%s(%q)", t.Type, t.Literal)
}

// Reserved words mapped to their token types.
var reservedWords = map[string]TokenType{
	"let":    TokenLet,
	"pub":    TokenPub,
	"struct": TokenStruct,
	"fn":     TokenFn,
	"return": TokenReturn,
	"import": TokenImport,
	"from":   TokenFrom,
	"for":    TokenFor,
	"in":     TokenIn,
	"nil":    TokenNil,
}

// Keywords returns the reserved words of the language.
func Keywords() []string {
	words := make([]string, 0, len(reservedWords))
	for w := range reservedWords {
		words = append(words, w)
	}
	return words
}
