package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
)

// normalizeJSONC turns JSONC into strict JSON. Comments become spaces so
// decoder offsets still map onto the original line/column positions.
func normalizeJSONC(content string) (string, error) {
	withoutComments, err := stripJSONCComments(content)
	if err != nil {
		return "", err
	}
	return stripJSONCTrailingCommas(withoutComments), nil
}

type jsoncScanState int

const (
	scanCode jsoncScanState = iota
	scanString
	scanStringEscape
	scanLineComment
	scanBlockComment
)

func stripJSONCComments(content string) (string, error) {
	var out strings.Builder
	out.Grow(len(content))

	state := scanCode
	for i := 0; i < len(content); i++ {
		ch := content[i]
		switch state {
		case scanString:
			out.WriteByte(ch)
			if ch == '\\' {
				state = scanStringEscape
			} else if ch == '"' {
				state = scanCode
			}
		case scanStringEscape:
			out.WriteByte(ch)
			state = scanString
		case scanLineComment:
			if ch == '\n' || ch == '\r' {
				out.WriteByte(ch)
				state = scanCode
				continue
			}
			out.WriteByte(' ')
		case scanBlockComment:
			if ch == '*' && i+1 < len(content) && content[i+1] == '/' {
				out.WriteString("  ")
				i++
				state = scanCode
				continue
			}
			if ch == '\n' || ch == '\r' || ch == '\t' {
				out.WriteByte(ch)
			} else {
				out.WriteByte(' ')
			}
		default:
			if ch == '/' && i+1 < len(content) && (content[i+1] == '/' || content[i+1] == '*') {
				if content[i+1] == '/' {
					state = scanLineComment
				} else {
					state = scanBlockComment
				}
				out.WriteString("  ")
				i++
				continue
			}
			if ch == '"' {
				state = scanString
			}
			out.WriteByte(ch)
		}
	}

	if state == scanBlockComment {
		return "", errors.New("unterminated block comment in JSONC")
	}
	return out.String(), nil
}

func stripJSONCTrailingCommas(content string) string {
	var out strings.Builder
	out.Grow(len(content))

	state := scanCode
	for i := 0; i < len(content); i++ {
		ch := content[i]
		switch state {
		case scanString:
			out.WriteByte(ch)
			if ch == '\\' {
				state = scanStringEscape
			} else if ch == '"' {
				state = scanCode
			}
			continue
		case scanStringEscape:
			out.WriteByte(ch)
			state = scanString
			continue
		}

		if ch == '"' {
			state = scanString
		}
		if ch == ',' {
			next := strings.TrimLeft(content[i+1:], " \t\r\n")
			if next != "" && (next[0] == '}' || next[0] == ']') {
				out.WriteByte(' ')
				continue
			}
		}
		out.WriteByte(ch)
	}
	return out.String()
}

func ensureSingleJSONValue(decoder *json.Decoder) error {
	var extra json.RawMessage
	err := decoder.Decode(&extra)
	if errors.Is(err, io.EOF) {
		return nil
	}
	if err == nil {
		return errors.New("multiple JSON values are not allowed")
	}
	return err
}

func wrapJSONDecodeError(content string, err error) error {
	var offset int64
	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	switch {
	case errors.As(err, &syntaxErr):
		offset = syntaxErr.Offset
	case errors.As(err, &typeErr):
		offset = typeErr.Offset
	default:
		return err
	}
	line, col := offsetToLineCol(content, offset)
	return fmt.Errorf("line %d column %d: %w", line, col, err)
}

func offsetToLineCol(content string, offset int64) (int, int) {
	if offset <= 0 {
		return 1, 1
	}
	limit := min(int(offset), len(content))

	line, col := 1, 1
	for i := 0; i < limit-1; i++ {
		if content[i] == '\n' {
			line++
			col = 1
			continue
		}
		col++
	}
	return line, col
}
