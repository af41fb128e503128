package sanitize

import "strings"

// entityReplacements is the HTML entity decode table. Order matters:
// "&amp;" must be decoded last so an already-decoded "&lt;" (from "&amp;lt;")
// is never re-decoded into "<" (double-decode cascade).
var entityReplacements = []struct {
	from string
	to   string
}{
	{"&lt;", "<"},
	{"&gt;", ">"},
	{"&quot;", "\""},
	{"&#39;", "'"},
	{"&#x27;", "'"},
	{"&#58;", ":"},
	{"&#x3A;", ":"},
	{"&#x3a;", ":"},
	{"&#47;", "/"},
	{"&#x2F;", "/"},
	{"&#x2f;", "/"},
	{"&#32;", " "},
	{"&#61;", "="},
	{"&nbsp;", " "},
	{"&amp;", "&"},
}

// decodeEntities decodes the fixed entity table in a single pass, with
// "&amp;" applied last.
func decodeEntities(s string) string {
	for _, r := range entityReplacements {
		s = strings.ReplaceAll(s, r.from, r.to)
	}
	return s
}
