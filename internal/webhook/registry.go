package webhook

import (
	"fmt"
	"strings"
	"time"
)

// ProviderStripe is the provider code of Stripe.
const ProviderStripe = "stripe"

// Provider pairs the verifier and parser of one payment provider.
type Provider struct {
	Code     string
	Verifier Verifier
	Parser   Parser
}

// Registry looks providers up by code.
type Registry struct {
	providers map[string]Provider
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{providers: make(map[string]Provider)}
}

// Register adds or replaces a provider.
func (r *Registry) Register(p Provider) {
	r.providers[strings.ToLower(p.Code)] = p
}

// Lookup returns the provider registered under code.
func (r *Registry) Lookup(code string) (Provider, bool) {
	p, ok := r.providers[strings.ToLower(code)]
	return p, ok
}

// Codes returns the registered provider codes.
func (r *Registry) Codes() []string {
	codes := make([]string, 0, len(r.providers))
	for code := range r.providers {
		codes = append(codes, code)
	}
	return codes
}

// NewRegistryFromSecrets registers one provider per provider:secret pair.
// Stripe gets the Stripe-Signature scheme; every other provider uses the
// generic envelope signed with HMACVerifier.
func NewRegistryFromSecrets(secrets map[string]string, stripeTolerance time.Duration) (*Registry, error) {
	r := NewRegistry()
	for code, secret := range secrets {
		code = strings.ToLower(strings.TrimSpace(code))
		if code == "" || secret == "" {
			return nil, fmt.Errorf("webhook provider %q: code and secret are required", code)
		}
		if code == ProviderStripe {
			r.Register(Provider{
				Code:     code,
				Verifier: NewStripeVerifier(secret, stripeTolerance),
				Parser:   ParserFunc(ParseStripe),
			})
			continue
		}
		r.Register(Provider{
			Code:     code,
			Verifier: NewHMACVerifier(secret, ""),
			Parser:   ParserFunc(ParseGeneric),
		})
	}
	return r, nil
}
