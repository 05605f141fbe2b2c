package seed

import (
	"os"
	"path/filepath"
	"testing"

	apperrors "github.com/mjkim-dev/smartstore-chatbot/pkg/errors"
)

func writeSeed(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "faq.json")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatalf("write seed file: %v", err)
	}
	return path
}

func TestLoadParsesRecords(t *testing.T) {
	path := writeSeed(t, `[
		{"question": "미성년자도 판매 회원 등록이 가능한가요?", "answer": "법정대리인 동의가 필요합니다.", "categories": ["회원관리"], "related_keywords": ["법정대리인", "판매 등록"]},
		{"question": "판매 수수료는 얼마인가요?", "answer": "결제 수단에 따라 다릅니다."}
	]`)

	records, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(records) != 2 {
		t.Fatalf("expected 2 records, got %d", len(records))
	}
	if records[0].RelatedKeywords[0] != "법정대리인" {
		t.Fatalf("related keywords not parsed: %v", records[0].RelatedKeywords)
	}
	if records[1].Categories != nil {
		t.Fatalf("missing categories should stay nil, got %v", records[1].Categories)
	}
}

func TestLoadRejectsMissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "absent.json"))
	if !apperrors.IsCode(err, "invalid_input") {
		t.Fatalf("expected invalid_input, got %v", err)
	}
}

func TestLoadRejectsEmptyArray(t *testing.T) {
	_, err := Load(writeSeed(t, `[]`))
	if !apperrors.IsCode(err, "invalid_input") {
		t.Fatalf("expected invalid_input, got %v", err)
	}
}

func TestLoadRejectsBlankQuestion(t *testing.T) {
	_, err := Load(writeSeed(t, `[{"question": "  ", "answer": "답변"}]`))
	if !apperrors.IsCode(err, "invalid_input") {
		t.Fatalf("expected invalid_input, got %v", err)
	}
}
