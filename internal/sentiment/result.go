package sentiment

// Result is the response value of one analysis: the backend label verbatim,
// its confidence, and the canonical category derived from it.
type Result struct {
	LabelRaw string   `json:"label_raw"`
	Score    float64  `json:"score"`
	Label    Category `json:"label"`
}

// NewResult builds a Result from a backend prediction.
func NewResult(labelRaw string, score float64) Result {
	return Result{
		LabelRaw: labelRaw,
		Score:    score,
		Label:    Normalize(labelRaw),
	}
}
