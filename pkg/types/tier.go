package types

// Tier is one entry of the plan catalog configured for the application.
// The remote processor only carries the tier id in checkout metadata; price
// and currency here are display values, the ledger records what was charged.
type Tier struct {
	ID         string `json:"id" mapstructure:"id"`
	Name       string `json:"name" mapstructure:"name"`
	PriceCents int64  `json:"price_cents" mapstructure:"price_cents"`
	Currency   string `json:"currency" mapstructure:"currency"`
	// TrialDays is the trial length granted at checkout, 0 for none.
	TrialDays int `json:"trial_days" mapstructure:"trial_days"`
}
