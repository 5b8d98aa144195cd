package llm

import (
	"github.com/agencyenterprise/AI-Scientist-exp0-sub003/pkg/domain"
)

// Registry is the static catalog of models the service can route to.
// Provider selection is a pure lookup on model id.
type Registry struct {
	models map[string]domain.LLMModel
	order  []string
}

func NewRegistry(models []domain.LLMModel) *Registry {
	r := &Registry{models: make(map[string]domain.LLMModel, len(models))}
	for _, m := range models {
		if _, ok := r.models[m.ID]; ok {
			continue
		}
		r.models[m.ID] = m
		r.order = append(r.order, m.ID)
	}
	return r
}

func (r *Registry) Get(id string) (domain.LLMModel, error) {
	m, ok := r.models[id]
	if !ok {
		return domain.LLMModel{}, &domain.UnknownModelError{ModelID: id}
	}
	return m, nil
}

func (r *Registry) ContextWindowTokens(id string) (int, error) {
	m, err := r.Get(id)
	if err != nil {
		return 0, err
	}
	return m.ContextWindowTokens, nil
}

// List returns models in registration order, for the models API.
func (r *Registry) List() []domain.LLMModel {
	out := make([]domain.LLMModel, 0, len(r.order))
	for _, id := range r.order {
		out = append(out, r.models[id])
	}
	return out
}

// DefaultModels is the catalog shipped with the service. Context windows
// are the providers' published limits.
func DefaultModels() []domain.LLMModel {
	return []domain.LLMModel{
		{
			ID:                  "gpt-4o",
			Provider:            domain.ProviderOpenAI,
			Label:               "GPT-4o",
			SupportsImages:      true,
			ContextWindowTokens: 128000,
		},
		{
			ID:                  "gpt-4o-mini",
			Provider:            domain.ProviderOpenAI,
			Label:               "GPT-4o mini",
			SupportsImages:      true,
			ContextWindowTokens: 128000,
		},
		{
			ID:                  "o3-mini",
			Provider:            domain.ProviderOpenAI,
			Label:               "o3-mini",
			ContextWindowTokens: 200000,
		},
		{
			ID:                  "claude-3-5-sonnet-latest",
			Provider:            domain.ProviderAnthropic,
			Label:               "Claude 3.5 Sonnet",
			SupportsImages:      true,
			SupportsPDFs:        true,
			ContextWindowTokens: 200000,
		},
		{
			ID:                  "claude-3-5-haiku-latest",
			Provider:            domain.ProviderAnthropic,
			Label:               "Claude 3.5 Haiku",
			ContextWindowTokens: 200000,
		},
	}
}
