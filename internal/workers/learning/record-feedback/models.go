package recordfeedback

type Input struct {
	Question      string   `json:"question"`
	Answer        string   `json:"answer"`
	Sources       []string `json:"sources,omitempty"`
	Confidence    float64  `json:"confidence"`
	Feedback      string   `json:"feedback,omitempty"`
	CorrectAnswer string   `json:"correctAnswer,omitempty"`
	Category      string   `json:"category,omitempty"`
	UserID        string   `json:"userId,omitempty"`
	SessionID     string   `json:"sessionId,omitempty"`
}

type Output struct {
	InteractionID  string `json:"interactionId"`
	Category       string `json:"category"`
	GapFlagged     bool   `json:"gapFlagged"`
	InsightUpdated bool   `json:"insightUpdated"`
}
