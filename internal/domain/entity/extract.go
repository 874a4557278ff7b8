package entity

import "encoding/json"

// ExtractionState is the mutable carry between chunk passes.
type ExtractionState struct {
	Instruction string
	Schema      *ResponseSchema
	Accumulated json.RawMessage
	Progress    string
	Completed   bool
	ChunkIndex  int
	ChunkTotal  int
}

// ExtractResult is what Extract returns to its caller. ChunkErr is set when
// a later chunk failed validation after at least one valid partial; the
// result is then best-effort with Completed=false.
type ExtractResult struct {
	Instruction     string
	Data            json.RawMessage
	Completed       bool
	Progress        string
	ChunksProcessed int
	ChunkTotal      int
	ChunkErr        error
	Usage           Usage
}
