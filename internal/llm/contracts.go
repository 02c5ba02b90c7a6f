package llm

// Message is one chat turn.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// ResponseFormat constrains the model reply.
type ResponseFormat struct {
	Type string `json:"type"`
}

// ChatRequest is the chat/completions request body.
type ChatRequest struct {
	Model          string          `json:"model"`
	Temperature    float32         `json:"temperature"`
	ResponseFormat *ResponseFormat `json:"response_format,omitempty"`
	Messages       []Message       `json:"messages"`
}

// ChatResponse is the subset of the chat/completions reply we read.
type ChatResponse struct {
	Choices []struct {
		Message Message `json:"message"`
	} `json:"choices"`
}

// FirstContent returns the first choice's content, or false if there is none.
func (r ChatResponse) FirstContent() (string, bool) {
	if len(r.Choices) == 0 {
		return "", false
	}
	return r.Choices[0].Message.Content, true
}
