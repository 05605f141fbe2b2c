package chat

import (
	"strings"
	"testing"
	"time"

	"github.com/mjkim-dev/smartstore-chatbot/internal/domain/index"
)

func fixedClock() time.Time {
	return time.Date(2025, 3, 1, 9, 30, 0, 0, time.UTC)
}

func TestMemoryEvictsOldestFirst(t *testing.T) {
	m := NewMemory(2)
	m.AddTurn("A", "답변 A", nil)
	m.AddTurn("B", "답변 B", nil)
	m.AddTurn("C", "답변 C", nil)

	history := m.History()
	if len(history) != 2 {
		t.Fatalf("expected 2 turns, got %d", len(history))
	}
	if history[0].Question != "B" || history[1].Question != "C" {
		t.Fatalf("expected [B C], got [%s %s]", history[0].Question, history[1].Question)
	}
}

func TestMemoryTimestamps(t *testing.T) {
	m := NewMemory(5)
	m.now = fixedClock
	m.AddTurn("질문", "답변", nil)

	if got, want := m.History()[0].Timestamp, "2025-03-01T09:30:00Z"; got != want {
		t.Fatalf("timestamp = %q, want %q", got, want)
	}
}

func TestRecentContextFormat(t *testing.T) {
	m := NewMemory(5)
	m.AddTurn("회원가입 방법이 궁금합니다", "회원가입은 다음과 같이 진행됩니다", nil)
	m.AddTurn("수수료는 얼마인가요?", "수수료는 다음과 같습니다", nil)

	context := m.RecentContext(2)
	want := "대화1 - 질문: 회원가입 방법이 궁금합니다\n" +
		"대화1 - 답변: 회원가입은 다음과 같이 진행됩니다...\n" +
		"대화2 - 질문: 수수료는 얼마인가요?\n" +
		"대화2 - 답변: 수수료는 다음과 같습니다..."
	if context != want {
		t.Fatalf("context mismatch:\ngot:\n%s\nwant:\n%s", context, want)
	}
}

func TestRecentContextTruncatesLongAnswers(t *testing.T) {
	m := NewMemory(5)
	longAnswer := strings.Repeat("가", 150)
	m.AddTurn("질문", longAnswer, nil)

	context := m.RecentContext(1)
	if !strings.Contains(context, strings.Repeat("가", 100)+"...") {
		t.Fatal("answer not truncated at 100 runes")
	}
	if strings.Contains(context, strings.Repeat("가", 101)) {
		t.Fatal("answer exceeds 100 runes")
	}
}

func TestRecentContextWindowsToAvailableTurns(t *testing.T) {
	m := NewMemory(5)
	m.AddTurn("첫 질문", "첫 답변", nil)

	context := m.RecentContext(3)
	if !strings.HasPrefix(context, "대화1 - 질문: 첫 질문") {
		t.Fatalf("unexpected context: %q", context)
	}
	if strings.Count(context, "질문:") != 1 {
		t.Fatalf("expected a single turn, got: %q", context)
	}
}

func TestRecentContextEmptyCases(t *testing.T) {
	m := NewMemory(5)
	if got := m.RecentContext(2); got != "" {
		t.Fatalf("empty memory should render empty context, got %q", got)
	}
	m.AddTurn("질문", "답변", nil)
	if got := m.RecentContext(0); got != "" {
		t.Fatalf("num_turns=0 should render empty context, got %q", got)
	}
	if got := m.RecentContext(-1); got != "" {
		t.Fatalf("negative num_turns should render empty context, got %q", got)
	}
}

func TestHistoryIsSnapshot(t *testing.T) {
	m := NewMemory(5)
	m.AddTurn("질문", "답변", []index.SearchResult{{ID: "faq_0"}})

	history := m.History()
	history[0].Question = "변조"

	if m.History()[0].Question != "질문" {
		t.Fatal("mutating the snapshot leaked into memory state")
	}
}

func TestClear(t *testing.T) {
	m := NewMemory(5)
	m.AddTurn("질문", "답변", nil)
	m.Clear()
	if m.Len() != 0 {
		t.Fatalf("expected empty memory after Clear, got %d turns", m.Len())
	}
	if got := m.RecentContext(2); got != "" {
		t.Fatalf("cleared memory should render empty context, got %q", got)
	}
}
