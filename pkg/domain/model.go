package domain

type Provider string

const (
	ProviderOpenAI    Provider = "openai"
	ProviderAnthropic Provider = "anthropic"
)

// LLMModel describes one entry of a provider's static model registry.
type LLMModel struct {
	ID                  string
	Provider            Provider
	Label               string
	SupportsImages      bool
	SupportsPDFs        bool
	ContextWindowTokens int
}
