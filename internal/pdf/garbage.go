package pdf

import "strings"

// isOperatorCode reports whether extracted text is leaked PostScript or
// content-stream operator code rather than page text. Some malformed
// documents surface these fragments through the text extractor.
func isOperatorCode(text string) bool {
	if text == "" {
		return false
	}
	lower := strings.ToLower(text)

	if (strings.Contains(text, " def ") || strings.HasSuffix(text, " def")) && strings.Contains(text, "/") {
		return true
	}
	if strings.Contains(lower, "null def") {
		return true
	}
	if strings.Contains(text, "@stx") || strings.Contains(text, "@etx") || strings.Contains(lower, "/burl") {
		return true
	}

	for _, op := range []string{
		"currentpoint", "gsave", "grestore", "newpath", "closepath",
		"setrgbcolor", "setgray", "setlinewidth", "showpage",
		"moveto", "lineto", "curveto",
	} {
		if strings.Contains(lower, op) {
			return true
		}
	}

	// Several /Name tokens in a row are operator syntax, not prose.
	if !strings.Contains(lower, "http") {
		names := 0
		for _, word := range strings.Fields(text) {
			if len(word) > 1 && word[0] == '/' && isNameToken(word[1:]) {
				names++
			}
		}
		if names >= 3 {
			return true
		}
	}
	return false
}

func isNameToken(s string) bool {
	for _, c := range s {
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9', c == '_', c == '@':
		default:
			return false
		}
	}
	return true
}

// hasExcessiveNonPrintable reports whether more than a tenth of the text
// is control characters, a sign of binary data mis-decoded as text.
func hasExcessiveNonPrintable(text string) bool {
	if text == "" {
		return false
	}
	bad := 0
	total := 0
	for _, r := range text {
		total++
		if (r < 32 && r != '\n' && r != '\r' && r != '\t') || (r >= 0x7F && r <= 0x9F) {
			bad++
		}
	}
	return float64(bad)/float64(total) > 0.1
}
