package resolution

// ProviderName identifies one of the five answer providers.
type ProviderName string

const (
	ProviderExa        ProviderName = "exa"
	ProviderPerplexity ProviderName = "perplexity"
	ProviderGPT        ProviderName = "gpt"
	ProviderGrok       ProviderName = "grok"
	ProviderGemini     ProviderName = "gemini"
)

// Providers returns all provider names in canonical order.
func Providers() []ProviderName {
	return []ProviderName{
		ProviderExa,
		ProviderPerplexity,
		ProviderGPT,
		ProviderGrok,
		ProviderGemini,
	}
}

// Valid reports whether the name is a known provider.
func (p ProviderName) Valid() bool {
	switch p {
	case ProviderExa, ProviderPerplexity, ProviderGPT, ProviderGrok, ProviderGemini:
		return true
	}
	return false
}

func (p ProviderName) String() string {
	return string(p)
}
