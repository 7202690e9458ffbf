package api

import (
	"fmt"
	"math"
	"time"
)

// User is the authenticated backend user.
type User struct {
	ID    string `json:"id"`
	Email string `json:"email"`
}

// Session is the credential pair returned by signup/login.
type Session struct {
	Token string `json:"token"`
	User  User   `json:"user"`
}

// PhylloUser is the remote counterpart user provisioned for the Connect flow.
type PhylloUser struct {
	ID string `json:"id"`
}

// SDKToken is a short-lived token for initializing the Connect widget.
type SDKToken struct {
	Token     string    `json:"sdk_token"`
	ExpiresAt time.Time `json:"expires_at"`
}

// ConnectedAccount is one linked social account. The client holds a read-only,
// refreshable snapshot of these; account IDs are unique within one snapshot.
type ConnectedAccount struct {
	ID        string    `json:"id"`
	Platform  string    `json:"platform"`
	Username  string    `json:"username"`
	CreatedAt time.Time `json:"created_at"`
}

// AudienceDemographics holds the demographic percentage splits for one
// account. Every field is optional; absent splits render as empty charts.
type AudienceDemographics struct {
	Gender    map[string]float64 `json:"gender,omitempty"`
	Age       map[string]float64 `json:"age,omitempty"`
	Countries map[string]float64 `json:"countries,omitempty"`
	Cities    map[string]float64 `json:"cities,omitempty"`
}

// AudienceRecord is the demographic payload for one account plus its fetch
// time. Ephemeral: latest fetch wins.
type AudienceRecord struct {
	AccountID    string               `json:"account_id"`
	Demographics AudienceDemographics `json:"demographics"`
	FetchedAt    time.Time            `json:"fetched_at"`
}

// Validate checks that every split is a sane percentage mapping. Payloads come
// from a loosely-typed upstream, so this is the single checkpoint before the
// rest of the app trusts the numbers.
func (d AudienceDemographics) Validate() error {
	for name, split := range map[string]map[string]float64{
		"gender":    d.Gender,
		"age":       d.Age,
		"countries": d.Countries,
		"cities":    d.Cities,
	} {
		for key, pct := range split {
			if key == "" {
				return fmt.Errorf("%s split has an empty bucket name", name)
			}
			if math.IsNaN(pct) || math.IsInf(pct, 0) {
				return fmt.Errorf("%s split %q is not a number", name, key)
			}
			if pct < 0 || pct > 100 {
				return fmt.Errorf("%s split %q out of range: %v", name, key, pct)
			}
		}
	}
	return nil
}

// Empty reports whether no split carries any data.
func (d AudienceDemographics) Empty() bool {
	return len(d.Gender) == 0 && len(d.Age) == 0 && len(d.Countries) == 0 && len(d.Cities) == 0
}
