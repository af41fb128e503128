package sanitize

import (
	"regexp"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// allowedTags are the only tags preserved by Sanitize.
var allowedTags = map[atom.Atom]bool{
	atom.B:  true,
	atom.I:  true,
	atom.U:  true,
	atom.A:  true,
	atom.Br: true,
	atom.P:  true,
}

// allowedTagsNoLinks is the same whitelist with the anchor tag dropped, for
// callers whose configuration disables hyperlinks.
var allowedTagsNoLinks = map[atom.Atom]bool{
	atom.B:  true,
	atom.I:  true,
	atom.U:  true,
	atom.Br: true,
	atom.P:  true,
}

// Sanitize whitelist-cleans html: only b, i, u, a, br, p tags survive; only
// href survives on a (and only when its scheme is allowed); every anchor
// gains rel="noopener noreferrer"; everything else — other tags,
// attributes, event handlers, comments, scripts — is stripped.
func Sanitize(input string) string {
	return sanitizeTags(input, allowedTags)
}

// SanitizeContent behaves like Sanitize, but drops the anchor tag entirely
// (keeping its text, dropping the link) when allowLinks is false — for
// callers gating on a hyperlinks-disabled configuration.
func SanitizeContent(input string, allowLinks bool) string {
	if allowLinks {
		return sanitizeTags(input, allowedTags)
	}
	return sanitizeTags(input, allowedTagsNoLinks)
}

func sanitizeTags(input string, tags map[atom.Atom]bool) string {
	tokenizer := html.NewTokenizer(strings.NewReader(input))
	var out strings.Builder
	// stack of kept tag atoms, so closing tags for dropped opens are skipped.
	var kept []atom.Atom
	// inRawText is set between <script>/<style> and its close, whose
	// content is dropped along with the tags.
	inRawText := false

	for {
		tt := tokenizer.Next()
		switch tt {
		case html.ErrorToken:
			return out.String()
		case html.TextToken:
			if inRawText {
				continue
			}
			out.WriteString(html.EscapeString(string(tokenizer.Text())))
		case html.StartTagToken, html.SelfClosingTagToken:
			tok := tokenizer.Token()
			if tt == html.StartTagToken && (tok.DataAtom == atom.Script || tok.DataAtom == atom.Style) {
				inRawText = true
				continue
			}
			if !tags[tok.DataAtom] {
				continue
			}
			writeOpenTag(&out, tok)
			if tt == html.StartTagToken && tok.DataAtom != atom.Br {
				kept = append(kept, tok.DataAtom)
			}
		case html.EndTagToken:
			tok := tokenizer.Token()
			if tok.DataAtom == atom.Script || tok.DataAtom == atom.Style {
				inRawText = false
				continue
			}
			if !tags[tok.DataAtom] || tok.DataAtom == atom.Br {
				continue
			}
			if len(kept) > 0 && kept[len(kept)-1] == tok.DataAtom {
				kept = kept[:len(kept)-1]
				out.WriteString("</")
				out.WriteString(tok.Data)
				out.WriteByte('>')
			}
			// Unmatched closes (no corresponding kept open) are dropped silently.
		}
	}
}

func writeOpenTag(out *strings.Builder, tok html.Token) {
	out.WriteByte('<')
	out.WriteString(tok.Data)
	if tok.DataAtom == atom.A {
		href := ""
		for _, a := range tok.Attr {
			if a.Key == "href" {
				href = a.Val
			}
		}
		if href != "" && IsSafeURL(href, false) {
			out.WriteString(` href="`)
			out.WriteString(html.EscapeString(href))
			out.WriteByte('"')
		}
		out.WriteString(` rel="noopener noreferrer"`)
	}
	out.WriteByte('>')
}

// richContentPattern matches literal occurrences of the allowed tags only,
// so that entity-encoded markup ("&lt;a href=...&gt;") and math-style
// comparisons ("5 < 10") never register as rich content.
var richContentPattern = regexp.MustCompile(`(?i)<\s*/?(?:b|i|u|a|p|br)(?:\s+[^>]*)?>`)

// HasRichContent reports whether text contains literal markup for one of
// the allowed tags.
func HasRichContent(text string) bool {
	return richContentPattern.MatchString(text)
}

var anyTagPattern = regexp.MustCompile(`<[^>]*>`)

// Strip reduces html to plain text. Because browser-style clients
// sometimes emit entity-encoded markup ("&lt;a href=...&gt;"), a single
// (strip-tags, decode-entities) pass could leak an encoded script tag back
// out as plain text on decode. Strip iterates the pass up to three
// times, stopping early once the output stabilizes.
func Strip(input string) string {
	out := input
	for i := 0; i < 3; i++ {
		next := decodeEntities(anyTagPattern.ReplaceAllString(out, ""))
		if next == out {
			return next
		}
		out = next
	}
	return out
}

// HrefText pairs an extracted link URL with its anchor text.
type HrefText struct {
	URL  string
	Text string
}

var hrefPattern = regexp.MustCompile(`(?is)<a\s+[^>]*href\s*=\s*["']([^"']*)["'][^>]*>(.*?)</a>`)

// ExtractHrefs extracts (url, text) pairs from raw HTML, then decodes
// entities and extracts again — so entity-encoded anchors ("&lt;a
// href=...&gt;") are also recovered — deduplicating by URL and keeping
// only URLs whose scheme is allowed.
func ExtractHrefs(input string) []HrefText {
	seen := make(map[string]bool)
	var out []HrefText

	collect := func(src string) {
		for _, m := range hrefPattern.FindAllStringSubmatch(src, -1) {
			url := decodeEntities(m[1])
			if !IsSafeURL(url, false) {
				continue
			}
			if seen[url] {
				continue
			}
			seen[url] = true
			text := Strip(m[2])
			out = append(out, HrefText{URL: url, Text: text})
		}
	}

	collect(input)
	collect(decodeEntities(input))

	return out
}
