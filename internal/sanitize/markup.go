package sanitize

import "strings"

// TextStyle carries the style flags attached to a StyledSegment.
type TextStyle struct {
	Bold      bool
	Italic    bool
	Underline bool
}

// StyledSegment is a run of text sharing one style and (optionally) one
// link target, as produced by ParseMarkup.
type StyledSegment struct {
	Text  string
	Style TextStyle
	Link  string // empty means no link
}

type stackEntry struct {
	tag   string
	style TextStyle
	link  string
}

// ParseMarkup parses already-sanitized HTML into styled text segments using
// a character-wise state machine (no regex), matching
// original_source/cosmic-notifications-util/src/markup_parser.rs. It
// maintains a nesting stack, merges adjacent segments with identical
// style+link, decodes entities within text runs, and validates href
// through IsSafeURL. A close tag is honoured only when it matches the
// stack top — with b≡strong and i≡em treated as aliases — so malformed
// closes are silently ignored. Unknown tags are discarded; br and p each
// inject a newline segment.
func ParseMarkup(input string) []StyledSegment {
	var segments []StyledSegment
	var style TextStyle
	var link string
	var stack []stackEntry

	runes := []rune(input)
	i := 0
	var text strings.Builder

	flushText := func() {
		if text.Len() == 0 {
			return
		}
		decoded := decodeEntities(text.String())
		if decoded != "" {
			segments = append(segments, StyledSegment{Text: decoded, Style: style, Link: link})
		}
		text.Reset()
	}

	for i < len(runes) {
		ch := runes[i]
		if ch != '<' {
			text.WriteRune(ch)
			i++
			continue
		}

		flushText()

		end := indexRune(runes, i+1, '>')
		if end < 0 {
			// Unterminated tag: treat the rest as text content, matching the
			// original's best-effort behaviour of never producing a panic.
			text.WriteString(string(runes[i:]))
			i = len(runes)
			continue
		}
		tagContent := string(runes[i+1 : end])
		i = end + 1

		if strings.HasPrefix(tagContent, "/") {
			name := strings.ToLower(strings.TrimSpace(tagContent[1:]))
			if len(stack) > 0 && aliasMatches(stack[len(stack)-1].tag, name) {
				top := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				style = top.style
				link = top.link
			}
			continue
		}

		name, attrs := parseOpenTag(tagContent)
		name = strings.ToLower(name)
		switch name {
		case "b", "strong":
			stack = append(stack, stackEntry{tag: name, style: style, link: link})
			style.Bold = true
		case "i", "em":
			stack = append(stack, stackEntry{tag: name, style: style, link: link})
			style.Italic = true
		case "u":
			stack = append(stack, stackEntry{tag: name, style: style, link: link})
			style.Underline = true
		case "a":
			if href, ok := attrs["href"]; ok && IsSafeURL(decodeEntities(href), false) {
				stack = append(stack, stackEntry{tag: name, style: style, link: link})
				link = decodeEntities(href)
				style.Underline = true
			}
		case "br", "p":
			segments = append(segments, StyledSegment{Text: "\n"})
		default:
			// Unknown tags are discarded silently.
		}
	}

	flushText()

	if len(segments) == 0 && input != "" {
		segments = append(segments, StyledSegment{Text: decodeEntities(input)})
	}

	return mergeSegments(segments)
}

// aliasMatches reports whether a close tag name matches the stack-top open
// tag, treating b≡strong and i≡em as aliases.
func aliasMatches(open, close string) bool {
	if open == close {
		return true
	}
	switch {
	case open == "b" && close == "strong", open == "strong" && close == "b":
		return true
	case open == "i" && close == "em", open == "em" && close == "i":
		return true
	}
	return false
}

func indexRune(runes []rune, from int, target rune) int {
	for i := from; i < len(runes); i++ {
		if runes[i] == target {
			return i
		}
	}
	return -1
}

// parseOpenTag splits "a href="x" class="y"" into ("a", {href:"x"}).
// Values may be double-quoted, single-quoted or bare; surrounding quotes
// are trimmed.
func parseOpenTag(content string) (string, map[string]string) {
	fields := tokenizeTag(content)
	if len(fields) == 0 {
		return "", nil
	}
	attrs := make(map[string]string)
	for _, f := range fields[1:] {
		eq := strings.IndexByte(f, '=')
		if eq < 0 {
			continue
		}
		key := strings.ToLower(strings.TrimSpace(f[:eq]))
		val := strings.TrimSpace(f[eq+1:])
		val = strings.Trim(val, `"'`)
		attrs[key] = val
	}
	return fields[0], attrs
}

// tokenizeTag splits tag content on whitespace while keeping quoted
// attribute values intact.
func tokenizeTag(content string) []string {
	var fields []string
	var cur strings.Builder
	var quote rune
	for _, r := range content {
		switch {
		case quote != 0:
			cur.WriteRune(r)
			if r == quote {
				quote = 0
			}
		case r == '"' || r == '\'':
			quote = r
			cur.WriteRune(r)
		case r == ' ' || r == '\t' || r == '\n':
			if cur.Len() > 0 {
				fields = append(fields, cur.String())
				cur.Reset()
			}
		default:
			cur.WriteRune(r)
		}
	}
	if cur.Len() > 0 {
		fields = append(fields, cur.String())
	}
	return fields
}

// mergeSegments merges adjacent segments sharing identical style and link.
func mergeSegments(in []StyledSegment) []StyledSegment {
	if len(in) == 0 {
		return in
	}
	out := make([]StyledSegment, 0, len(in))
	out = append(out, in[0])
	for _, seg := range in[1:] {
		last := &out[len(out)-1]
		if last.Style == seg.Style && last.Link == seg.Link {
			last.Text += seg.Text
			continue
		}
		out = append(out, seg)
	}
	return out
}
