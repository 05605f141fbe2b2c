package chat

import (
	"encoding/json"

	"github.com/mjkim-dev/smartstore-chatbot/internal/domain/index"
)

// StreamEvent is the unit emitted by Service.StreamAnswer. The variant set is
// closed: transport code switches on the concrete type and the compiler keeps
// the wire mapping exhaustive.
type StreamEvent interface {
	Kind() string
	json.Marshaler
}

// StatusEvent reports pipeline progress to the user.
type StatusEvent struct {
	Message string
}

func (StatusEvent) Kind() string { return "status" }

func (e StatusEvent) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type    string `json:"type"`
		Message string `json:"message"`
	}{Type: "status", Message: e.Message})
}

// SearchResultsEvent carries the threshold-filtered retrieval set.
type SearchResultsEvent struct {
	Results []index.SearchResult
}

func (SearchResultsEvent) Kind() string { return "search_results" }

func (e SearchResultsEvent) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type string               `json:"type"`
		Data []index.SearchResult `json:"data"`
	}{Type: "search_results", Data: e.Results})
}

// AnswerChunkEvent is one incremental generation token.
type AnswerChunkEvent struct {
	Content string
}

func (AnswerChunkEvent) Kind() string { return "answer_chunk" }

func (e AnswerChunkEvent) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type    string `json:"type"`
		Content string `json:"content"`
	}{Type: "answer_chunk", Content: e.Content})
}

// AnswerEvent is a complete answer delivered in one piece: the off-topic
// message or the fallback answer when generation fails.
type AnswerEvent struct {
	Content string
}

func (AnswerEvent) Kind() string { return "answer" }

func (e AnswerEvent) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type    string `json:"type"`
		Content string `json:"content"`
	}{Type: "answer", Content: e.Content})
}

// SourcesEvent lists the FAQ entries the answer drew on.
type SourcesEvent struct {
	Results []index.SearchResult
}

func (SourcesEvent) Kind() string { return "sources" }

func (e SourcesEvent) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type string               `json:"type"`
		Data []index.SearchResult `json:"data"`
	}{Type: "sources", Data: e.Results})
}

// FollowUpEvent carries suggested follow-up questions.
type FollowUpEvent struct {
	Questions []string
	Source    FollowUpSource
}

func (FollowUpEvent) Kind() string { return "follow_up_questions" }

func (e FollowUpEvent) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		Type string `json:"type"`
		Data struct {
			Questions []string       `json:"questions"`
			Source    FollowUpSource `json:"source"`
		} `json:"data"`
	}{
		Type: "follow_up_questions",
		Data: struct {
			Questions []string       `json:"questions"`
			Source    FollowUpSource `json:"source"`
		}{Questions: e.Questions, Source: e.Source},
	})
}
