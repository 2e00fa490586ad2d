package parser

import (
	"encoding/json"
	"strings"
)

const fence = "```"

// scanState is the state of the fence scanner.
type scanState int

const (
	stateOutside scanState = iota
	stateInFence
)

// FenceBlock is the body of one fenced region of a response.
type FenceBlock struct {
	Info string // language tag after the opening fence, e.g. "json"
	Body string
	// Closed is false when the response ended inside the fence.
	Closed bool
}

// ScanFences walks the response line by line and returns every fenced block in
// order of appearance. A line whose trimmed text starts with ``` opens a block
// (the rest of the line is the info string); a line that is exactly ``` closes
// it. A fence opened and closed on the same line is a complete inline block.
// Fences are not nested: an opening token inside a block is body text.
func ScanFences(text string) []FenceBlock {
	var (
		blocks []FenceBlock
		state  = stateOutside
		cur    FenceBlock
		body   []string
	)

	for _, line := range strings.Split(text, "\n") {
		trimmed := strings.TrimSpace(line)
		switch state {
		case stateOutside:
			idx := strings.Index(trimmed, fence)
			if idx < 0 {
				continue
			}
			rest := trimmed[idx+len(fence):]
			if end := strings.Index(rest, fence); end >= 0 {
				// inline block: ```json {...}```
				info, inline := splitInfo(rest[:end])
				blocks = append(blocks, FenceBlock{Info: info, Body: inline, Closed: true})
				continue
			}
			if idx > 0 {
				// prose before the fence token on the same line; treat the
				// remainder as the opening
				rest = strings.TrimSpace(rest)
			}
			info, firstLine := splitInfo(rest)
			cur = FenceBlock{Info: info}
			body = body[:0]
			if firstLine != "" {
				body = append(body, firstLine)
			}
			state = stateInFence
		case stateInFence:
			if trimmed == fence {
				cur.Body = strings.Join(body, "\n")
				cur.Closed = true
				blocks = append(blocks, cur)
				state = stateOutside
				continue
			}
			if strings.HasSuffix(trimmed, fence) {
				// closing token glued to the last body line
				body = append(body, strings.TrimSuffix(trimmed, fence))
				cur.Body = strings.Join(body, "\n")
				cur.Closed = true
				blocks = append(blocks, cur)
				state = stateOutside
				continue
			}
			body = append(body, line)
		}
	}

	if state == stateInFence {
		cur.Body = strings.Join(body, "\n")
		blocks = append(blocks, cur)
	}
	return blocks
}

// splitInfo separates a fence info string from content that follows it on the
// same line. Info strings are a single word such as "json".
func splitInfo(s string) (info, content string) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", ""
	}
	if s[0] == '{' || s[0] == '[' {
		return "", s
	}
	if sp := strings.IndexAny(s, " \t"); sp >= 0 {
		return s[:sp], strings.TrimSpace(s[sp:])
	}
	return s, ""
}

// ExtractPayload locates the most complete structured payload in an oracle
// response. Among fenced candidates that are valid JSON objects the longest
// wins, first seen on ties. Without fenced candidates the whole response, then
// its outermost {...} span, is tried.
func ExtractPayload(text string) ([]byte, error) {
	var best string
	for _, b := range ScanFences(text) {
		candidate := strings.TrimSpace(b.Body)
		if !isJSONObject(candidate) {
			continue
		}
		if len(candidate) > len(best) {
			best = candidate
		}
	}
	if best != "" {
		return []byte(best), nil
	}

	whole := strings.TrimSpace(text)
	if isJSONObject(whole) {
		return []byte(whole), nil
	}

	start := strings.Index(whole, "{")
	end := strings.LastIndex(whole, "}")
	if start >= 0 && end > start {
		span := whole[start : end+1]
		if isJSONObject(span) {
			return []byte(span), nil
		}
	}

	return nil, NewParseError(ReasonNoValidPayload, truncate(whole, 200))
}

func isJSONObject(s string) bool {
	if len(s) < 2 || s[0] != '{' {
		return false
	}
	return json.Valid([]byte(s))
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
