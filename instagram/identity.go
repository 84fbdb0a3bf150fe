package instagram

// XMLSchemaString is the value type of every claim issued by this package.
const XMLSchemaString = "http://www.w3.org/2001/XMLSchema#string"

// ClaimsIssuer is the issuer of the urn:instagram:* claims.
const ClaimsIssuer = "instagram"

// Claim types added to an Identity after a successful token exchange.
const (
	ClaimNameIdentifier = "sub"
	ClaimName           = "name"
	ClaimUsername       = "urn:instagram:username"
	ClaimFullName       = "urn:instagram:full_name"
	ClaimAccessToken    = "urn:instagram:access_token"
	ClaimProfilePicture = "urn:instagram:profile_picture"
)

// Claim is a single (type, value) attribute of an authenticated principal.
type Claim struct {
	Type      string
	Value     string
	ValueType string
	Issuer    string
}

// Identity is a claims identity representing an authenticated principal.
type Identity struct {
	// AuthenticationType is the authentication type which produced the
	// identity (see Config.AuthenticationType).
	AuthenticationType string

	// Claims about the principal, in the order they were added.
	Claims []Claim
}

// NewIdentity creates an empty Identity.
func NewIdentity(authenticationType string) *Identity {
	return &Identity{AuthenticationType: authenticationType}
}

// AddClaim appends a claim.
func (i *Identity) AddClaim(c Claim) {
	i.Claims = append(i.Claims, c)
}

// FindFirst returns the first claim of type claimType.
func (i *Identity) FindFirst(claimType string) (Claim, bool) {
	if i == nil {
		return Claim{}, false
	}
	for _, c := range i.Claims {
		if c.Type == claimType {
			return c, true
		}
	}
	return Claim{}, false
}

// Value returns the value of the first claim of type claimType, or "".
func (i *Identity) Value(claimType string) string {
	c, _ := i.FindFirst(claimType)
	return c.Value
}

// Name returns the value of the ClaimName claim.
func (i *Identity) Name() string {
	return i.Value(ClaimName)
}

// IsAuthenticated reports whether the identity carries an authentication
// type.
func (i *Identity) IsAuthenticated() bool {
	return i != nil && i.AuthenticationType != ""
}

// WithAuthenticationType returns a copy of the identity issued under a
// different authentication type. It's used when a sign in is delegated to
// another authentication type.
func (i *Identity) WithAuthenticationType(authenticationType string) *Identity {
	c := &Identity{
		AuthenticationType: authenticationType,
		Claims:             make([]Claim, len(i.Claims)),
	}
	copy(c.Claims, i.Claims)
	return c
}

// newIdentity maps a token response into an Identity. Empty fields of the
// response don't produce a claim.
func newIdentity(authenticationType string, tr *TokenResponse) *Identity {
	id := NewIdentity(authenticationType)
	add := func(claimType, value, issuer string) {
		if value == "" {
			return
		}
		id.AddClaim(Claim{
			Type:      claimType,
			Value:     value,
			ValueType: XMLSchemaString,
			Issuer:    issuer,
		})
	}
	add(ClaimNameIdentifier, string(tr.User.Id), authenticationType)
	add(ClaimName, tr.User.Username, authenticationType)
	add(ClaimUsername, tr.User.Username, ClaimsIssuer)
	add(ClaimFullName, tr.User.FullName, ClaimsIssuer)
	add(ClaimAccessToken, string(tr.AccessToken), ClaimsIssuer)
	add(ClaimProfilePicture, tr.User.ProfilePicture, ClaimsIssuer)
	return id
}
