package authflowrepo

import "time"

// AuthFlowState is what the portal remembers between sending a browser to the identity
// provider and receiving it back on the callback, keyed by the OAuth2 state parameter.
type AuthFlowState struct {
	CodeVerifier string
	Nonce        string
	ReturnURL    string
	CreatedAt    time.Time
}

type Repo interface {
	Upsert(state string, authState *AuthFlowState) error
	// Take returns the flow for state and forgets it, so a state is redeemable once.
	Take(state string) (*AuthFlowState, error)
	// Prune drops flows started before cutoff and reports how many went.
	Prune(cutoff time.Time) int
}
