package utils // package utils provides helper functions for token creation and hashing

import (
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// AccessToken represents a signed JWT access token along with its expiry.
// Access tokens carry the full seat-requester identity: subject, tenant,
// emails and roles.  External identity providers sharing the HS256 secret
// issue tokens with the same claim shape for seat requesters.
type AccessToken struct {
	Token string    // the serialized JWT string
	Exp   time.Time // the UTC expiration time
}

// NewAccessToken builds and signs an HS256 JWT.  The claims are: subject
// (sub), tenant id (tid), email addresses (emails), role names (roles),
// expiration (exp) and issued at (iat).
func NewAccessToken(secret, userID, tenantID string, emails, roles []string, ttlMin int) (AccessToken, error) {
	exp := time.Now().UTC().Add(time.Duration(ttlMin) * time.Minute)
	claims := jwt.MapClaims{
		"sub":    userID,
		"tid":    tenantID,
		"emails": emails,
		"roles":  roles,
		"exp":    exp.Unix(),
		"iat":    time.Now().UTC().Unix(),
	}
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := tok.SignedString([]byte(secret))
	if err != nil {
		return AccessToken{}, err
	}
	return AccessToken{Token: signed, Exp: exp}, nil
}
