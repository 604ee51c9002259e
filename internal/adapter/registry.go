package adapter

import (
	"fmt"
	"sort"

	clierr "github.com/alemendo/intent-cli/internal/errors"
	"github.com/alemendo/intent-cli/internal/intent"
)

// Pair binds the two implementations of one effect. Fallback may be nil for
// effects that only have an SDK path.
type Pair struct {
	Primary  Effecter
	Fallback Effecter
}

// Registry selects execution paths by intent kind. Dispatch is by tag, never
// by runtime type inspection, so adding a chain integration is a single
// Register call.
type Registry struct {
	pairs map[intent.Kind]Pair
}

func NewRegistry() *Registry {
	return &Registry{pairs: make(map[intent.Kind]Pair)}
}

func (r *Registry) Register(kind intent.Kind, pair Pair) {
	r.pairs[kind] = pair
}

func (r *Registry) Resolve(kind intent.Kind) (Pair, error) {
	pair, ok := r.pairs[kind]
	if !ok {
		return Pair{}, clierr.New(clierr.CodeUnsupported,
			fmt.Sprintf("no execution adapter registered for action %q", kind))
	}
	return pair, nil
}

// Kinds lists the registered intent kinds, sorted, for schema output.
func (r *Registry) Kinds() []string {
	kinds := make([]string, 0, len(r.pairs))
	for kind := range r.pairs {
		kinds = append(kinds, string(kind))
	}
	sort.Strings(kinds)
	return kinds
}
