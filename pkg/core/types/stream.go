package types

import "encoding/json"

// StreamChunk is the JSON payload of one data frame on the chat stream.
// Only the content delta path is consumed; everything else in the
// payload is provider noise.
type StreamChunk struct {
	Choices []ChunkChoice `json:"choices"`
}

// ChunkChoice is one alternative inside a stream chunk.
type ChunkChoice struct {
	Delta        ChunkDelta `json:"delta"`
	FinishReason string     `json:"finish_reason,omitempty"`
}

// ChunkDelta carries an incremental fragment of the assistant reply.
type ChunkDelta struct {
	Content string `json:"content"`
}

// DeltaContent extracts the content delta from a raw frame payload.
// It returns the empty string when the payload carries no content.
func DeltaContent(payload []byte) string {
	var chunk StreamChunk
	if err := json.Unmarshal(payload, &chunk); err != nil {
		return ""
	}
	if len(chunk.Choices) == 0 {
		return ""
	}
	return chunk.Choices[0].Delta.Content
}
