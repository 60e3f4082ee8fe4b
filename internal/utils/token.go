package utils // package utils provides helpers for provisioning staff screens

import (
    "errors"
    "strings"
    "time"

    "github.com/golang-jwt/jwt/v5"

    "github.com/iliyamo/waitlist-display/internal/middleware"
)

// AccessToken is a signed staff token and its expiry.
type AccessToken struct {
    Token string
    Exp   time.Time
}

// NewStaffToken signs an HS256 token accepted by middleware.JWTAuth.  The
// subject names the screen or person holding it (e.g. "kiosk-1"); role is
// stored upper-cased.
func NewStaffToken(secret, subject, role string, ttl time.Duration, now time.Time) (AccessToken, error) {
    if secret == "" {
        return AccessToken{}, errors.New("empty signing secret")
    }
    if subject == "" || role == "" {
        return AccessToken{}, errors.New("subject and role are required")
    }
    if ttl <= 0 {
        return AccessToken{}, errors.New("ttl must be positive")
    }
    now = now.UTC()
    exp := now.Add(ttl)
    claims := middleware.StaffClaims{
        Role: strings.ToUpper(role),
        RegisteredClaims: jwt.RegisteredClaims{
            Subject:   subject,
            IssuedAt:  jwt.NewNumericDate(now),
            ExpiresAt: jwt.NewNumericDate(exp),
        },
    }
    signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
    if err != nil {
        return AccessToken{}, err
    }
    return AccessToken{Token: signed, Exp: exp}, nil
}
