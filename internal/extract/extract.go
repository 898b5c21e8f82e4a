// Package extract pulls structured data out of free-form model output.
//
// Model responses routinely wrap a JSON object in commentary or code-fence
// markup, and a naive "first { to last }" slice breaks as soon as the text
// contains a second object or a brace inside a string value. FirstJSONObject
// implements the minimal scan that handles both.
package extract

import (
	"errors"
	"strings"
)

// Errors returned by FirstJSONObject.
var (
	// ErrNoObject indicates the text contains no opening brace at all.
	ErrNoObject = errors.New("no JSON object found in response")

	// ErrUnbalanced indicates an object was opened but never closed.
	ErrUnbalanced = errors.New("no complete JSON object found (unbalanced braces)")
)

// FirstJSONObject returns the minimal substring of text that forms one
// complete, balanced JSON object, starting at the first opening brace.
//
// The scan tracks nesting depth and an in-string flag: inside a quoted string
// a backslash escapes the next character, an unescaped quote toggles the
// in-string state, and braces do not affect depth. The span from the first
// opening brace through the brace that returns depth to zero is the result.
func FirstJSONObject(text string) (string, error) {
	start := strings.IndexByte(text, '{')
	if start == -1 {
		return "", ErrNoObject
	}

	depth := 0
	inString := false
	escapeNext := false

	for i := start; i < len(text); i++ {
		c := text[i]

		if escapeNext {
			escapeNext = false
			continue
		}
		if c == '\\' && inString {
			escapeNext = true
			continue
		}
		if c == '"' {
			inString = !inString
			continue
		}
		if inString {
			continue
		}

		switch c {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return text[start : i+1], nil
			}
		}
	}

	return "", ErrUnbalanced
}
