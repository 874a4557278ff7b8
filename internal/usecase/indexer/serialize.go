package indexer

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/pkoukk/tiktoken-go"

	"browser-pilot/internal/application/port/output"
	"browser-pilot/internal/domain/entity"
)

// describe derives a human-readable element description, degrading from
// accessible name to visible text to input hints.
func describe(n entity.RawNode, maxLen int) string {
	desc := firstNonEmpty(n.Name, n.Text, n.Placeholder, n.Value)
	desc = strings.Join(strings.Fields(desc), " ")
	if desc == "" && n.Interactive {
		desc = fmt.Sprintf("unlabeled %s", n.Tag)
	}
	if maxLen > 0 && len(desc) > maxLen {
		desc = cutRunes(desc, maxLen) + "…"
	}
	return desc
}

// cutRunes truncates s to at most max bytes without splitting a rune.
func cutRunes(s string, max int) string {
	if len(s) <= max {
		return s
	}
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return s[:max]
}

// fingerprintOf hashes the structural sequence only. Free text is left out
// so a ticking clock does not churn the cache, while adding or removing an
// element always does.
func fingerprintOf(elements []entity.Element) string {
	h := sha256.New()
	for _, el := range elements {
		fmt.Fprintf(h, "%s|%s|%s\n", el.Tag, el.Role, el.Locator)
	}
	return hex.EncodeToString(h.Sum(nil))
}

func header(info entity.PageInfo) string {
	return fmt.Sprintf("URL: %s\nTitle: %s\n\n", info.URL, info.Title)
}

func elementLine(el entity.Element) string {
	if el.Role != "" {
		return fmt.Sprintf("[%d] <%s> (%s) %s", el.ID, el.Tag, el.Role, el.Description)
	}
	return fmt.Sprintf("[%d] <%s> %s", el.ID, el.Tag, el.Description)
}

func serialize(info entity.PageInfo, elements []entity.Element) string {
	var sb strings.Builder
	sb.WriteString(header(info))
	for _, el := range elements {
		sb.WriteString(elementLine(el))
		sb.WriteString("\n")
	}
	return sb.String()
}

// chunk greedily packs element lines under the token budget. Every chunk
// repeats the page header so it is independently serializable, and a line
// is never split across chunks.
func chunk(info entity.PageInfo, elements []entity.Element, budget int, countTokens func(string) int) []entity.Chunk {
	head := header(info)
	headTokens := countTokens(head)

	var chunks []entity.Chunk
	var sb strings.Builder
	used := headTokens
	sb.WriteString(head)
	empty := true

	flush := func() {
		if empty {
			return
		}
		chunks = append(chunks, entity.Chunk{Index: len(chunks), Text: sb.String()})
		sb.Reset()
		sb.WriteString(head)
		used = headTokens
		empty = true
	}

	for _, el := range elements {
		line := elementLine(el) + "\n"
		cost := countTokens(line)
		if !empty && used+cost > budget {
			flush()
		}
		sb.WriteString(line)
		used += cost
		empty = false
	}
	flush()

	if len(chunks) == 0 {
		chunks = []entity.Chunk{{Index: 0, Text: head}}
	}
	return chunks
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if trimmed := strings.TrimSpace(v); trimmed != "" {
			return trimmed
		}
	}
	return ""
}

// tokenCounter wraps tiktoken with a cheap length heuristic fallback, so
// indexing keeps working when the encoding cannot be loaded.
type tokenCounter struct {
	enc *tiktoken.Tiktoken
}

func newTokenCounter(logger output.LoggerPort) *tokenCounter {
	enc, err := tiktoken.GetEncoding("cl100k_base")
	if err != nil {
		if logger != nil {
			logger.Warn("tiktoken encoding unavailable, using length heuristic", "error", err)
		}
		return &tokenCounter{}
	}
	return &tokenCounter{enc: enc}
}

func (c *tokenCounter) Count(s string) int {
	if c.enc == nil {
		return approxTokens(s)
	}
	return len(c.enc.Encode(s, nil, nil))
}

func approxTokens(s string) int {
	return len(s)/4 + 1
}
