package agent

import "time"

// Event types emitted during one Assist call, in stream order.
const (
	EventQueryAnalysis   = "QUERY_ANALYSIS"
	EventQueryIntent     = "QUERY_INTENT"
	EventSearch          = "SEARCH"
	EventNoResults       = "NO_RESULTS"
	EventProcessing      = "PROCESSING"
	EventRedditPosts     = "REDDIT_POSTS"
	EventTwitterPosts    = "TWITTER_POSTS"
	EventFinalResponse   = "FINAL_RESPONSE"
	EventProcessingError = "PROCESSING_ERROR"
)

// Event is one progress notification in the response stream.
type Event struct {
	Type      string      `json:"type"`
	Content   string      `json:"content,omitempty"`
	Data      interface{} `json:"data,omitempty"`
	Timestamp time.Time   `json:"timestamp"`
}

// ResponseHandler receives the event stream for one Assist call.
type ResponseHandler interface {
	OnEvent(event Event)
	OnComplete(finalResponse string)
	OnError(code, message string)
}

// Collector is a ResponseHandler that buffers the whole stream, for callers
// that want the finished response rather than progressive delivery.
type Collector struct {
	Events        []Event
	FinalResponse string
	Completed     bool
	ErrorCode     string
	ErrorMessage  string
}

func (c *Collector) OnEvent(event Event) {
	c.Events = append(c.Events, event)
}

func (c *Collector) OnComplete(finalResponse string) {
	c.FinalResponse = finalResponse
	c.Completed = true
}

func (c *Collector) OnError(code, message string) {
	c.ErrorCode = code
	c.ErrorMessage = message
}
