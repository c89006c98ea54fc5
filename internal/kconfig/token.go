package kconfig

import (
	"fmt"
	"strings"
)

type tokenKind uint8

const (
	tokWord tokenKind = iota
	tokString
	tokOp
)

type token struct {
	text string
	kind tokenKind
}

// tokenize splits a logical Kconfig line into words, quoted strings and operators.
// Text after an unquoted `#` is a comment.
func tokenize(line string) ([]token, error) {
	var tokens []token

	for i := 0; i < len(line); {
		ch := line[i]

		switch {
		case ch == ' ' || ch == '\t' || ch == '\r':
			i++
		case ch == '#':
			return tokens, nil
		case ch == '"' || ch == '\'':
			str, next, err := scanString(line, i)
			if err != nil {
				return nil, err
			}

			tokens = append(tokens, token{kind: tokString, text: str})
			i = next
		case ch == '$' && i+1 < len(line) && line[i+1] == '(':
			end := matchParen(line, i+1)
			if end < 0 {
				return nil, fmt.Errorf("unterminated macro %q", line[i:]) //nolint:err113
			}

			tokens = append(tokens, token{kind: tokString, text: line[i : end+1]})
			i = end + 1
		case strings.ContainsRune("()", rune(ch)):
			tokens = append(tokens, token{kind: tokOp, text: string(ch)})
			i++
		case strings.ContainsRune("&|!=<>", rune(ch)):
			op, ok := scanOp(line[i:])
			if !ok {
				return nil, fmt.Errorf("unexpected character %q", ch) //nolint:err113
			}

			tokens = append(tokens, token{kind: tokOp, text: op})
			i += len(op)
		default:
			start := i
			for i < len(line) && isWordChar(line[i]) {
				i++
			}

			if start == i {
				return nil, fmt.Errorf("unexpected character %q", ch) //nolint:err113
			}

			tokens = append(tokens, token{kind: tokWord, text: line[start:i]})
		}
	}

	return tokens, nil
}

func scanOp(str string) (string, bool) {
	for _, op := range []string{"&&", "||", "!=", "<=", ">=", "!", "=", "<", ">"} {
		if strings.HasPrefix(str, op) {
			return op, true
		}
	}

	return "", false
}

func scanString(line string, start int) (string, int, error) {
	quote := line[start]

	var sb strings.Builder

	for i := start + 1; i < len(line); i++ {
		switch line[i] {
		case '\\':
			if i+1 < len(line) {
				i++
				sb.WriteByte(line[i])
			}
		case quote:
			return sb.String(), i + 1, nil
		default:
			sb.WriteByte(line[i])
		}
	}

	return "", 0, fmt.Errorf("unterminated string %s", line[start:]) //nolint:err113
}

func matchParen(line string, open int) int {
	depth := 0

	for i := open; i < len(line); i++ {
		switch line[i] {
		case '(':
			depth++
		case ')':
			depth--
			if depth == 0 {
				return i
			}
		}
	}

	return -1
}

func isWordChar(ch byte) bool {
	return ch == '_' || ch == '-' || ch == '.' || ch == '/' || ch == '+' ||
		(ch >= 'a' && ch <= 'z') || (ch >= 'A' && ch <= 'Z') || (ch >= '0' && ch <= '9')
}
