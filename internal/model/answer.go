package model

type QueryRequest struct {
	Query string `json:"query"`
	TopK  *int   `json:"topK,omitempty"`
}

// EffectiveTopK returns the override or 0 when absent, leaving defaulting to retrieval.
func (q QueryRequest) EffectiveTopK() int {
	if q.TopK == nil {
		return 0
	}
	return *q.TopK
}

type Answer struct {
	Summary         string   `json:"summary"`
	RiskFactors     []string `json:"riskFactors"`
	ConfidenceScore float64  `json:"confidenceScore"`
	ModelUsed       string   `json:"modelUsed"`
	TokensUsed      int      `json:"tokensUsed"`
}
