package validators

// Validator is a node identity permitted to cast validation votes on blocks.
// Identities are plain strings; Lamarck does not authenticate them.
type Validator struct {
	ID      string `json:"id"`
	Moniker string `json:"moniker"`
}

// NewValidator is a factory method for a Validator.
func NewValidator(id string, moniker string) *Validator {
	return &Validator{
		ID:      id,
		Moniker: moniker,
	}
}
