package llm

// charsPerToken is the rough character-to-token ratio used when no provider
// usage is available. Four characters per token is a serviceable estimate
// for English prose across the supported model families.
const charsPerToken = 4

// EstimateTokens approximates the token count of text as ceil(len/4).
// Used for cost accounting when a provider reports no usage, and for the
// complexity estimator's token gate.
func EstimateTokens(text string) int {
	if text == "" {
		return 0
	}
	return (len(text) + charsPerToken - 1) / charsPerToken
}
