package config

import (
	"fmt"
	"strings"
	"unicode"
)

// argvLexer splits a command line into words with POSIX-style quoting.
// Nothing is expanded: no variables, globs, or command substitution.
type argvLexer struct {
	words   []string
	word    strings.Builder
	inWord  bool
	quote   rune
	escaped bool
}

func (l *argvLexer) feed(r rune) {
	switch {
	case l.escaped:
		l.word.WriteRune(r)
		l.escaped = false
	case r == '\\' && l.quote != '\'':
		l.escaped = true
		l.inWord = true
	case l.quote != 0:
		if r == l.quote {
			l.quote = 0
			return
		}
		l.word.WriteRune(r)
	case r == '\'' || r == '"':
		l.quote = r
		l.inWord = true
	case unicode.IsSpace(r):
		l.endWord()
	default:
		l.word.WriteRune(r)
		l.inWord = true
	}
}

func (l *argvLexer) endWord() {
	if !l.inWord {
		return
	}
	l.words = append(l.words, l.word.String())
	l.word.Reset()
	l.inWord = false
}

// parseArgv turns engine.result_cmd into an argv. A blank line or a line
// starting with # disables the command.
func parseArgv(input string) ([]string, error) {
	input = strings.TrimSpace(input)
	if input == "" || strings.HasPrefix(input, "#") {
		return nil, nil
	}

	var lx argvLexer
	for _, r := range input {
		lx.feed(r)
	}

	switch {
	case lx.escaped:
		return nil, fmt.Errorf("unterminated escape sequence in command: %q", input)
	case lx.quote != 0:
		return nil, fmt.Errorf("unterminated quote in command: %q", input)
	}

	lx.endWord()
	return lx.words, nil
}
