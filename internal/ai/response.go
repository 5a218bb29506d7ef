package ai

import (
	"encoding/json"
	"fmt"
	"math"

	appErr "github.com/xxxsen/aimarket/internal/pkg/errors"
)

// ParsedAnswer holds the model authored part of an answer.
type ParsedAnswer struct {
	Summary         string
	RiskFactors     []string
	ConfidenceScore float64
}

// ParseAnswer validates raw model output against the answer schema. Unknown
// fields are ignored and non-string risk factors are dropped; every other
// deviation fails with ErrInvalidModelResponse.
func ParseAnswer(raw string) (*ParsedAnswer, error) {
	var tree interface{}
	if err := json.Unmarshal([]byte(raw), &tree); err != nil {
		return nil, fmt.Errorf("%w: parse json: %v", appErr.ErrInvalidModelResponse, err)
	}
	root, ok := tree.(map[string]interface{})
	if !ok {
		return nil, fmt.Errorf("%w: root is not an object", appErr.ErrInvalidModelResponse)
	}

	summary, ok := root["summary"].(string)
	if !ok {
		return nil, fmt.Errorf("%w: missing or invalid 'summary'", appErr.ErrInvalidModelResponse)
	}

	items, ok := root["riskFactors"].([]interface{})
	if !ok {
		return nil, fmt.Errorf("%w: missing or invalid 'riskFactors'", appErr.ErrInvalidModelResponse)
	}
	riskFactors := make([]string, 0, len(items))
	for _, item := range items {
		if s, ok := item.(string); ok {
			riskFactors = append(riskFactors, s)
		}
	}

	score, ok := root["confidenceScore"].(float64)
	if !ok {
		return nil, fmt.Errorf("%w: missing or invalid 'confidenceScore'", appErr.ErrInvalidModelResponse)
	}
	if math.IsNaN(score) || score < 0 || score > 1 {
		return nil, fmt.Errorf("%w: 'confidenceScore' out of range: %v", appErr.ErrInvalidModelResponse, score)
	}

	return &ParsedAnswer{
		Summary:         summary,
		RiskFactors:     riskFactors,
		ConfidenceScore: score,
	}, nil
}
