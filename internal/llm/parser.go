package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/Veraticus/dispute-assistant/internal/common"
	"github.com/Veraticus/dispute-assistant/internal/model"
)

// cleanMarkdownWrapper strips ```json fences and any prose around the outermost JSON object.
func cleanMarkdownWrapper(content string) string {
	content = strings.TrimSpace(content)

	if strings.HasPrefix(content, "```") {
		content = strings.TrimPrefix(content, "```json")
		content = strings.TrimPrefix(content, "```JSON")
		content = strings.TrimPrefix(content, "```")
		content = strings.TrimSuffix(strings.TrimSpace(content), "```")
		content = strings.TrimSpace(content)
	}

	start := strings.Index(content, "{")
	end := strings.LastIndex(content, "}")
	if start >= 0 && end > start {
		content = content[start : end+1]
	}

	return content
}

// classificationPayload is the JSON object the model is asked to return.
type classificationPayload struct {
	Category    string   `json:"category"`
	Confidence  *float64 `json:"confidence"`
	Explanation string   `json:"explanation"`
}

// parseClassification validates a model answer. Extra fields are tolerated.
func parseClassification(content string) (model.Category, float64, string, error) {
	var payload classificationPayload
	if err := json.Unmarshal([]byte(cleanMarkdownWrapper(content)), &payload); err != nil {
		return "", 0, "", fmt.Errorf("%w: %w", common.ErrModelOutputInvalid, err)
	}

	category, err := model.ParseCategory(payload.Category)
	if err != nil {
		return "", 0, "", fmt.Errorf("%w: %w", common.ErrModelOutputInvalid, err)
	}

	if payload.Confidence == nil {
		return "", 0, "", fmt.Errorf("%w: confidence missing", common.ErrModelOutputInvalid)
	}
	confidence := *payload.Confidence
	if confidence < 0 || confidence > 1 {
		return "", 0, "", fmt.Errorf("%w: confidence %v outside [0,1]", common.ErrModelOutputInvalid, confidence)
	}

	explanation := strings.TrimSpace(payload.Explanation)
	if explanation == "" {
		explanation = fmt.Sprintf("model classified as %s", category)
	}

	return category, confidence, explanation, nil
}
