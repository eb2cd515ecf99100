// Package document extracts the request, prior code, and outline sections
// from the loosely formatted text files agents hand to the tools.
//
// Parsing runs in two passes: literal section markers are located first,
// then fenced blocks are located inside the selected section. Every tier has
// a tolerant fallback; a malformed document yields a best-effort string and
// never an error.
package document

import (
	"strings"
)

const fence = "```"

// Grammar names the literal markers and fence tags the parser looks for.
type Grammar struct {
	RequestMarker   string
	CodeMarkers     []string
	CodeFenceTags   []string
	OutlineFenceTag string
}

// DefaultGrammar matches the ContextWeave document conventions.
func DefaultGrammar() Grammar {
	return Grammar{
		RequestMarker:   "# Request",
		CodeMarkers:     []string{"# D2", "# Code"},
		CodeFenceTags:   []string{"d2", "cw"},
		OutlineFenceTag: "json",
	}
}

// Sections is the result of Parse.
type Sections struct {
	Request   string
	PriorCode string
}

// Parse splits text using DefaultGrammar.
func Parse(text string) Sections {
	return DefaultGrammar().Parse(text)
}

// ExtractOutline extracts an outline candidate using DefaultGrammar.
func ExtractOutline(text string) string {
	return DefaultGrammar().ExtractOutline(text)
}

// Parse splits text into the request and prior-code sections. Missing
// sections come back as empty strings.
func (g Grammar) Parse(text string) Sections {
	requestPart := text
	var code string

	if m, ok := findMarker(text, g.CodeMarkers); ok {
		requestPart = text[:m.start]
		codePart := text[m.end:]
		if inner, ok := findFence(codePart, g.CodeFenceTags); ok {
			code = inner
		} else {
			code = strings.TrimSpace(codePart)
		}
	}

	request := strings.TrimSpace(requestPart)
	if g.RequestMarker != "" {
		if m, ok := findMarker(requestPart, []string{g.RequestMarker}); ok {
			request = strings.TrimSpace(requestPart[m.end:])
		}
	}

	return Sections{Request: request, PriorCode: code}
}

// ExtractOutline returns the raw outline JSON candidate in text. It does not
// validate the result.
//
//  1. the first fenced block tagged with OutlineFenceTag, trimmed;
//  2. otherwise the suffix starting at the first '{' or '[', cut at the first
//     fence delimiter that follows;
//  3. otherwise text unchanged.
func (g Grammar) ExtractOutline(text string) string {
	if inner, ok := findFence(text, []string{g.OutlineFenceTag}); ok {
		return inner
	}
	if candidate, ok := bracketSuffix(text); ok {
		return candidate
	}
	return text
}

type markerMatch struct {
	start int
	end   int
}

// findMarker returns the earliest occurrence of any marker.
func findMarker(text string, markers []string) (markerMatch, bool) {
	best := markerMatch{start: -1}
	for _, marker := range markers {
		if marker == "" {
			continue
		}
		idx := strings.Index(text, marker)
		if idx < 0 {
			continue
		}
		if best.start < 0 || idx < best.start {
			best = markerMatch{start: idx, end: idx + len(marker)}
		}
	}
	return best, best.start >= 0
}

// findFence returns the trimmed body of the first fenced block whose info
// string starts with one of tags. Blocks with other tags are skipped whole,
// so their closing delimiter is never mistaken for an opening one. An
// unterminated block runs to the end of text.
func findFence(text string, tags []string) (string, bool) {
	pos := 0
	for {
		open := strings.Index(text[pos:], fence)
		if open < 0 {
			return "", false
		}
		open += pos
		infoStart := open + len(fence)

		infoEnd := strings.IndexByte(text[infoStart:], '\n')
		if infoEnd < 0 {
			infoEnd = len(text)
		} else {
			infoEnd += infoStart
		}
		info := text[infoStart:infoEnd]

		bodyStart, matched := matchFenceTag(info, tags)
		if matched {
			bodyStart += infoStart
		} else {
			// An inline span such as ```x``` closes on its own line.
			if inline := strings.Index(info, fence); inline >= 0 {
				pos = infoStart + inline + len(fence)
				continue
			}
			bodyStart = infoEnd
		}

		closeIdx := strings.Index(text[bodyStart:], fence)
		if closeIdx < 0 {
			if matched {
				return strings.TrimSpace(text[bodyStart:]), true
			}
			return "", false
		}
		closeIdx += bodyStart

		if matched {
			return strings.TrimSpace(text[bodyStart:closeIdx]), true
		}
		pos = closeIdx + len(fence)
	}
}

// matchFenceTag reports whether the info string names one of tags, and the
// offset inside info where the block body begins.
func matchFenceTag(info string, tags []string) (int, bool) {
	trimmed := strings.TrimLeft(info, " \t")
	lead := len(info) - len(trimmed)
	word := trimmed
	if idx := strings.IndexAny(trimmed, " \t\r{["); idx >= 0 {
		word = trimmed[:idx]
	}
	for _, tag := range tags {
		if tag != "" && strings.EqualFold(word, tag) {
			return lead + len(word), true
		}
	}
	return 0, false
}

func bracketSuffix(text string) (string, bool) {
	start := strings.IndexAny(text, "{[")
	if start < 0 {
		return "", false
	}
	candidate := text[start:]
	if idx := strings.Index(candidate, fence); idx >= 0 {
		candidate = candidate[:idx]
	}
	return candidate, true
}
