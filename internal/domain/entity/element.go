package entity

import "fmt"

// RawNode is a single node reported by the in-page snapshot routine.
// The browser adapter returns nodes in document order; IDs are assigned
// later by the indexer, never inside the page.
type RawNode struct {
	Tag         string `json:"tag"`
	Role        string `json:"role"`
	Name        string `json:"name"`
	Text        string `json:"text"`
	Value       string `json:"value"`
	Placeholder string `json:"placeholder"`
	Locator     string `json:"locator"`
	Interactive bool   `json:"interactive"`
}

// Element is one addressable node of a hybrid tree. IDs are unique within
// a single snapshot and are never valid across snapshots.
type Element struct {
	ID          int
	Tag         string
	Role        string
	Description string
	Locator     string

	// Filled only when grounding was asked to suggest an interaction.
	SuggestedMethod InteractionMethod
	SuggestedArgs   []string
}

type PageInfo struct {
	URL   string
	Title string
}

// Chunk is a size-bounded slice of a serialized snapshot. Each chunk carries
// the page header so it can be processed on its own.
type Chunk struct {
	Index int
	Text  string
}

// HybridTree is an immutable snapshot of the page: accessibility semantics
// fused with DOM structure, serialized to a bounded textual form.
type HybridTree struct {
	URL         string
	Title       string
	Elements    []Element
	Fingerprint string
	Serialized  string
	Chunks      []Chunk

	byID map[int]int
}

// NewHybridTree builds the ID lookup; Elements must already carry final IDs.
func NewHybridTree(info PageInfo, elements []Element, fingerprint, serialized string, chunks []Chunk) *HybridTree {
	byID := make(map[int]int, len(elements))
	for i, el := range elements {
		byID[el.ID] = i
	}
	return &HybridTree{
		URL:         info.URL,
		Title:       info.Title,
		Elements:    elements,
		Fingerprint: fingerprint,
		Serialized:  serialized,
		Chunks:      chunks,
		byID:        byID,
	}
}

func (t *HybridTree) ElementByID(id int) (*Element, bool) {
	i, ok := t.byID[id]
	if !ok {
		return nil, false
	}
	return &t.Elements[i], true
}

func (t *HybridTree) String() string {
	return fmt.Sprintf("HybridTree{url=%s elements=%d chunks=%d fp=%.12s}",
		t.URL, len(t.Elements), len(t.Chunks), t.Fingerprint)
}

type Screenshot struct {
	Data   []byte
	Format string
	Width  int
	Height int
}
