package seed

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/mjkim-dev/smartstore-chatbot/internal/domain/index"
	apperrors "github.com/mjkim-dev/smartstore-chatbot/pkg/errors"
)

// Load reads a JSON array of cleaned FAQ records from path. Records with a
// blank question or answer are rejected rather than silently skipped, since
// they indicate a broken preprocessing run.
func Load(path string) ([]index.SeedRecord, error) {
	payload, err := os.ReadFile(path)
	if err != nil {
		return nil, apperrors.Wrap("invalid_input", fmt.Sprintf("cannot read seed file %s", path), err)
	}

	var records []index.SeedRecord
	if err := json.Unmarshal(payload, &records); err != nil {
		return nil, apperrors.Wrap("invalid_input", fmt.Sprintf("seed file %s is not a JSON record array", path), err)
	}
	if len(records) == 0 {
		return nil, apperrors.Wrap("invalid_input", fmt.Sprintf("seed file %s contains no records", path), nil)
	}

	for i, rec := range records {
		if strings.TrimSpace(rec.Question) == "" {
			return nil, apperrors.Wrap("invalid_input", fmt.Sprintf("seed record %d has an empty question", i), nil)
		}
		if strings.TrimSpace(rec.Answer) == "" {
			return nil, apperrors.Wrap("invalid_input", fmt.Sprintf("seed record %d has an empty answer", i), nil)
		}
	}
	return records, nil
}
