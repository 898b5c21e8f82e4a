package pipeline

import "strings"

// tldrFallbackLimit caps the fallback TLDR taken from the first body line.
const tldrFallbackLimit = 280

// tldrSearchWindow is how many lines below a matching header are scanned for
// the TLDR body line.
const tldrSearchWindow = 5

// ExtractTLDR pulls the one-line highlight out of a markdown summary. It
// looks for a "The Big Idea" or "TLDR" header and returns the next non-empty,
// non-header line within a few lines of it. If no header matches, the first
// non-empty non-header line is used, truncated.
func ExtractTLDR(markdown string) string {
	rawLines := strings.Split(markdown, "\n")
	lines := make([]string, len(rawLines))
	for i, l := range rawLines {
		lines[i] = strings.TrimSpace(l)
	}

	for i, l := range lines {
		low := strings.ReplaceAll(strings.ToLower(l), ";", "")
		if strings.Contains(low, "the big idea") || strings.Contains(low, "tldr") {
			end := i + 1 + tldrSearchWindow
			if end > len(lines) {
				end = len(lines)
			}
			for j := i + 1; j < end; j++ {
				if lines[j] != "" && !strings.HasPrefix(lines[j], "#") {
					return lines[j]
				}
			}
		}
	}

	// fallback: first non-empty line that isn't a header
	for _, l := range lines {
		if l != "" && !strings.HasPrefix(l, "#") {
			if len(l) > tldrFallbackLimit {
				return l[:tldrFallbackLimit]
			}
			return l
		}
	}

	return ""
}
