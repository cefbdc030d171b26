package types

// ChatRequest is the body of one conversational turn against the chat
// endpoint: the full history plus contextual metadata about the student.
type ChatRequest struct {
	Messages        []Message `json:"messages"`
	StudentName     string    `json:"studentName,omitempty"`
	Topic           string    `json:"topic,omitempty"`
	ConfidenceLevel int       `json:"confidenceLevel,omitempty"`
}

// SynthesisRequest is the body of a remote text-to-speech call.
type SynthesisRequest struct {
	Text    string `json:"text"`
	VoiceID string `json:"voiceId"`
}

// ErrorResponse is the JSON body carried by non-2xx endpoint responses.
type ErrorResponse struct {
	Error string `json:"error"`
}
