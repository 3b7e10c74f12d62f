// Package markdown escapes and checks text in Telegram's MarkdownV2 dialect.
package markdown

import (
	"errors"
	"fmt"
	"strings"
)

const reserved = "_*[]()~`>#+-=|{}.!\\"

var ErrInvalidMarkup = errors.New("invalid markdownv2 markup")

// Escape prefixes every reserved character with a backslash so the result renders as plain text.
func Escape(text string) string {
	if !strings.ContainsAny(text, reserved) {
		return text
	}

	var b strings.Builder
	b.Grow(len(text) + 8)
	for _, r := range text {
		if strings.ContainsRune(reserved, r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// EscapeLinkURL escapes the URL part of an inline link, where only ')' and '\' are special.
func EscapeLinkURL(url string) string {
	return escapeOnly(url, ")\\")
}

func escapeOnly(text, set string) string {
	var b strings.Builder
	b.Grow(len(text))
	for _, r := range text {
		if strings.ContainsRune(set, r) {
			b.WriteByte('\\')
		}
		b.WriteRune(r)
	}
	return b.String()
}

type entity int

const (
	entityBold entity = iota + 1
	entityItalic
	entityUnderline
	entityStrike
	entitySpoiler
	entityLinkText
)

func (e entity) String() string {
	switch e {
	case entityBold:
		return "bold"
	case entityItalic:
		return "italic"
	case entityUnderline:
		return "underline"
	case entityStrike:
		return "strikethrough"
	case entitySpoiler:
		return "spoiler"
	case entityLinkText:
		return "link"
	default:
		return "unknown"
	}
}

// Validate reports whether text would be accepted by Telegram's MarkdownV2 parser:
// every reserved character is escaped or part of a balanced, properly nested entity.
func Validate(text string) error {
	runes := []rune(text)
	var stack []entity

	toggle := func(e entity, pos int) error {
		for i := len(stack) - 1; i >= 0; i-- {
			if stack[i] != e {
				continue
			}
			if i != len(stack)-1 {
				return fmt.Errorf("%w: %s closed at %d before %s", ErrInvalidMarkup, e, pos, stack[len(stack)-1])
			}
			stack = stack[:i]
			return nil
		}
		stack = append(stack, e)
		return nil
	}

	for i := 0; i < len(runes); i++ {
		c := runes[i]
		switch c {
		case '\\':
			if i+1 >= len(runes) {
				return fmt.Errorf("%w: dangling escape at %d", ErrInvalidMarkup, i)
			}
			i++
		case '*':
			if err := toggle(entityBold, i); err != nil {
				return err
			}
		case '_':
			if i+1 < len(runes) && runes[i+1] == '_' {
				if err := toggle(entityUnderline, i); err != nil {
					return err
				}
				i++
				continue
			}
			if err := toggle(entityItalic, i); err != nil {
				return err
			}
		case '~':
			if err := toggle(entityStrike, i); err != nil {
				return err
			}
		case '|':
			if i+1 >= len(runes) || runes[i+1] != '|' {
				return fmt.Errorf("%w: unescaped '|' at %d", ErrInvalidMarkup, i)
			}
			if err := toggle(entitySpoiler, i); err != nil {
				return err
			}
			i++
		case '`':
			end, err := skipCode(runes, i)
			if err != nil {
				return err
			}
			i = end
		case '[':
			stack = append(stack, entityLinkText)
		case ']':
			if len(stack) == 0 || stack[len(stack)-1] != entityLinkText {
				return fmt.Errorf("%w: unescaped ']' at %d", ErrInvalidMarkup, i)
			}
			stack = stack[:len(stack)-1]
			end, err := skipLinkURL(runes, i+1)
			if err != nil {
				return err
			}
			i = end
		default:
			if strings.ContainsRune(reserved, c) {
				return fmt.Errorf("%w: unescaped %q at %d", ErrInvalidMarkup, c, i)
			}
		}
	}

	if len(stack) > 0 {
		return fmt.Errorf("%w: unclosed %s entity", ErrInvalidMarkup, stack[len(stack)-1])
	}
	return nil
}

// skipCode returns the index of the backtick closing the code entity opened at start.
func skipCode(runes []rune, start int) (int, error) {
	fence := 1
	if start+2 < len(runes) && runes[start+1] == '`' && runes[start+2] == '`' {
		fence = 3
	}

	for i := start + fence; i < len(runes); i++ {
		switch runes[i] {
		case '\\':
			if i+1 >= len(runes) || (runes[i+1] != '`' && runes[i+1] != '\\') {
				return 0, fmt.Errorf("%w: bad escape inside code at %d", ErrInvalidMarkup, i)
			}
			i++
		case '`':
			if fence == 1 {
				return i, nil
			}
			if i+2 < len(runes) && runes[i+1] == '`' && runes[i+2] == '`' {
				return i + 2, nil
			}
			return 0, fmt.Errorf("%w: unescaped '`' inside pre at %d", ErrInvalidMarkup, i)
		}
	}
	return 0, fmt.Errorf("%w: unclosed code entity opened at %d", ErrInvalidMarkup, start)
}

// skipLinkURL expects "(url)" at start and returns the index of the closing parenthesis.
func skipLinkURL(runes []rune, start int) (int, error) {
	if start >= len(runes) || runes[start] != '(' {
		return 0, fmt.Errorf("%w: link text without url at %d", ErrInvalidMarkup, start)
	}
	for i := start + 1; i < len(runes); i++ {
		switch runes[i] {
		case '\\':
			if i+1 >= len(runes) || (runes[i+1] != ')' && runes[i+1] != '\\') {
				return 0, fmt.Errorf("%w: bad escape inside url at %d", ErrInvalidMarkup, i)
			}
			i++
		case ')':
			if i == start+1 {
				return 0, fmt.Errorf("%w: empty link url at %d", ErrInvalidMarkup, i)
			}
			return i, nil
		}
	}
	return 0, fmt.Errorf("%w: unclosed link url opened at %d", ErrInvalidMarkup, start)
}

// Unescape strips escape markers, returning the plain text a reader would see for escaped input.
func Unescape(text string) string {
	var b strings.Builder
	b.Grow(len(text))
	escaped := false
	for _, r := range text {
		if !escaped && r == '\\' {
			escaped = true
			continue
		}
		escaped = false
		b.WriteRune(r)
	}
	return b.String()
}
