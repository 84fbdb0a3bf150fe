package instagram

import (
	"time"
)

// xsrfKey is the Properties item holding the flow's anti-forgery marker.
const xsrfKey = ".xsrf"

// DefaultExpirySkew defines a default time skew when checking the expiration
// of Properties.
const DefaultExpirySkew = 1 * time.Second

// Properties is the bag of authentication properties which travels with a
// single flow. It's protected into the oauth "state" parameter when the
// challenge is issued and recovered from it when the callback arrives. After
// a successful callback it's handed to the host along with the Identity.
type Properties struct {
	// RedirectURI is where the user-agent is returned once the flow
	// completes.
	RedirectURI string

	// Items holds arbitrary host data and the flow's anti-forgery marker.
	Items map[string]string

	// IssuedAt is when the challenge was issued.
	IssuedAt time.Time

	// ExpiresAt is when the flow's state expires.
	ExpiresAt time.Time

	// IsPersistent is a hint for the host's sign in about the lifetime of
	// the resulting session.
	IsPersistent bool
}

// NewProperties creates Properties which will return the user-agent to the
// redirectURI.
func NewProperties(redirectURI string) *Properties {
	return &Properties{
		RedirectURI: redirectURI,
		Items:       map[string]string{},
	}
}

// Clone returns a deep copy.
func (p *Properties) Clone() *Properties {
	if p == nil {
		return NewProperties("")
	}
	c := *p
	c.Items = make(map[string]string, len(p.Items))
	for k, v := range p.Items {
		c.Items[k] = v
	}
	return &c
}

// Item returns the value of a host item (empty if not set).
func (p *Properties) Item(key string) string {
	if p == nil || p.Items == nil {
		return ""
	}
	return p.Items[key]
}

// SetItem sets a host item.
func (p *Properties) SetItem(key, value string) {
	if p.Items == nil {
		p.Items = map[string]string{}
	}
	p.Items[key] = value
}

// IsExpired returns true if the properties have expired. Properties without
// an expiration never expire. Supports the WithExpirySkew and WithNow options.
func (p *Properties) IsExpired(opt ...Option) bool {
	if p.ExpiresAt.IsZero() {
		return false
	}
	opts := getPropertiesOpts(opt...)
	return p.ExpiresAt.Before(opts.withNowFunc().Add(opts.withExpirySkew))
}

// xsrf returns the anti-forgery marker.
func (p *Properties) xsrf() string {
	return p.Item(xsrfKey)
}

// propertiesOptions is the set of available options for Properties functions
type propertiesOptions struct {
	withExpirySkew time.Duration
	withNowFunc    func() time.Time
}

// propertiesDefaults is a handy way to get the defaults at runtime and during
// unit tests.
func propertiesDefaults() propertiesOptions {
	return propertiesOptions{
		withExpirySkew: DefaultExpirySkew,
		withNowFunc:    time.Now,
	}
}

// getPropertiesOpts gets the defaults and applies the opt overrides passed in
func getPropertiesOpts(opt ...Option) propertiesOptions {
	opts := propertiesDefaults()
	ApplyOpts(&opts, opt...)
	return opts
}
