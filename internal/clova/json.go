package clova

import (
	"encoding/json"
	"errors"
	"strings"
)

var errEmptyAnswer = errors.New("empty answer")

// parseAnswer decodes a final answer as a JSON object. Answers wrapped in
// markdown code fences are unwrapped first.
func parseAnswer(text string) (map[string]any, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, errEmptyAnswer
	}

	if strings.HasPrefix(text, "```") {
		lines := strings.Split(text, "\n")
		end := len(lines)
		for i := len(lines) - 1; i > 0; i-- {
			if strings.TrimSpace(lines[i]) == "```" {
				end = i
				break
			}
		}
		text = strings.Join(lines[1:end], "\n")
	}

	var result map[string]any
	if err := json.Unmarshal([]byte(text), &result); err != nil {
		return nil, err
	}
	return result, nil
}
