package chat

import (
	"fmt"
	"strings"
	"time"

	"github.com/mjkim-dev/smartstore-chatbot/internal/domain/index"
	"github.com/mjkim-dev/smartstore-chatbot/pkg/util"
)

const answerContextRunes = 100

// Turn is one question/answer exchange kept in conversation memory.
type Turn struct {
	Question  string               `json:"question"`
	Answer    string               `json:"answer"`
	Sources   []index.SearchResult `json:"sources"`
	Timestamp string               `json:"timestamp"`
}

// Memory is a bounded FIFO of conversation turns for a single session.
// It assumes a single writer; sessions serialize access externally.
type Memory struct {
	turns    []Turn
	maxTurns int
	now      func() time.Time
}

// NewMemory constructs a memory holding at most maxTurns turns (default 5).
func NewMemory(maxTurns int) *Memory {
	if maxTurns <= 0 {
		maxTurns = 5
	}
	return &Memory{maxTurns: maxTurns, now: util.NowUTC}
}

// AddTurn appends a turn with a server-generated timestamp, evicting the
// oldest turn once capacity is exceeded.
func (m *Memory) AddTurn(question, answer string, sources []index.SearchResult) {
	m.turns = append(m.turns, Turn{
		Question:  question,
		Answer:    answer,
		Sources:   sources,
		Timestamp: m.now().Format(time.RFC3339),
	})
	if len(m.turns) > m.maxTurns {
		m.turns = m.turns[1:]
	}
}

// RecentContext renders the last numTurns turns as labelled question/answer
// lines. Answers are cut at 100 runes; an ellipsis marker always follows.
func (m *Memory) RecentContext(numTurns int) string {
	if len(m.turns) == 0 || numTurns <= 0 {
		return ""
	}
	start := len(m.turns) - numTurns
	if start < 0 {
		start = 0
	}
	recent := m.turns[start:]

	var b strings.Builder
	for i, turn := range recent {
		if i > 0 {
			b.WriteByte('\n')
		}
		fmt.Fprintf(&b, "대화%d - 질문: %s\n", i+1, turn.Question)
		fmt.Fprintf(&b, "대화%d - 답변: %s...", i+1, truncateRunes(turn.Answer, answerContextRunes))
	}
	return b.String()
}

// History returns a snapshot copy of the stored turns.
func (m *Memory) History() []Turn {
	out := make([]Turn, len(m.turns))
	copy(out, m.turns)
	return out
}

// Clear empties the turn sequence.
func (m *Memory) Clear() {
	m.turns = nil
}

// Len reports the number of stored turns.
func (m *Memory) Len() int {
	return len(m.turns)
}

func truncateRunes(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit])
}
