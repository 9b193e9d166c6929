package cleanuplearningdata

type Input struct {
	RequestedBy string `json:"requestedBy,omitempty"`
}

type Output struct {
	Removed               int `json:"removed"`
	RemainingInteractions int `json:"remainingInteractions"`
	KnowledgeGaps         int `json:"knowledgeGaps"`
}
