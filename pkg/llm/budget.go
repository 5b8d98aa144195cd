package llm

// CharsPerToken is the fixed tokens-to-characters approximation (1 token is
// about 4 characters of English text). The same ratio is used for the map
// and reduce phases of summarization and for history sizing, so budgets
// stay comparable across call sites.
const CharsPerToken = 4

// EstimateTokens approximates the token count of text.
func EstimateTokens(text string) int {
	return (len(text) + CharsPerToken - 1) / CharsPerToken
}

// AvailableChars converts a model's context window into a character budget
// for input text, after reserving completionTokens for the response and
// overheadTokens for prompt scaffolding (system prompt, recent-message
// tail).
//
// When the reservation and overhead consume the whole window the budget is
// defined as contentLen, forcing the content into a single chunk. That is a
// deliberate fallback so summarization degrades instead of failing.
func AvailableChars(contextWindowTokens, completionTokens, overheadTokens, contentLen int) int {
	available := contextWindowTokens - completionTokens - overheadTokens
	if available <= 0 {
		return contentLen
	}
	return available * CharsPerToken
}
