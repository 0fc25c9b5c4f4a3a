package ai

import (
	"context"
	"encoding/json"

	"github.com/shopspring/decimal"

	"oracle/internal/domain/resolution"
)

// Provider is one external answer source. Each call is independent and may
// fail without affecting the other providers.
type Provider interface {
	Name() resolution.ProviderName

	// Ask submits the formatted question. Providers that take the option
	// list embed it in their prompt; providers that do not (exa) ignore it.
	Ask(ctx context.Context, question string, options []string) (*Reply, error)
}

// Reply is a provider answer resolved to a single textual representation at
// the adapter boundary. Downstream code never inspects payload shapes; Raw is
// kept only for the response payload and the persisted record.
type Reply struct {
	Text string
	Raw  json.RawMessage
	Cost decimal.Decimal
}

// RawJSON returns the opaque payload as a JSON string for response assembly.
func (r *Reply) RawJSON() string {
	if r == nil || len(r.Raw) == 0 {
		return `"No response"`
	}
	return string(r.Raw)
}
