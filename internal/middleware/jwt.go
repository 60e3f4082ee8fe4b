package middleware // reusable HTTP middleware for the waitlist API

import (
    "net/http"
    "strings"

    "github.com/golang-jwt/jwt/v5"
    "github.com/labstack/echo/v4"
)

// StaffClaims is the token payload issued to reception and admin screens by
// the external identity provider.
type StaffClaims struct {
    Role string `json:"role"`
    jwt.RegisteredClaims
}

// JWTAuth returns an Echo middleware that validates an HS256 Bearer token
// signed with secret.  On success the subject and the upper-cased role are
// stored in the context under "user_id" and "role".
func JWTAuth(secret string) echo.MiddlewareFunc {
    key := []byte(secret)
    parser := jwt.NewParser(jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
    return func(next echo.HandlerFunc) echo.HandlerFunc {
        return func(c echo.Context) error {
            auth := c.Request().Header.Get(echo.HeaderAuthorization)
            if !strings.HasPrefix(auth, "Bearer ") {
                return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized", "message": "missing bearer token"})
            }
            raw := strings.TrimSpace(strings.TrimPrefix(auth, "Bearer "))

            var claims StaffClaims
            tok, err := parser.ParseWithClaims(raw, &claims, func(*jwt.Token) (interface{}, error) {
                return key, nil
            })
            if err != nil || !tok.Valid {
                return c.JSON(http.StatusUnauthorized, echo.Map{"error": "unauthorized", "message": "invalid token"})
            }

            c.Set("user_id", claims.Subject)
            c.Set("role", strings.ToUpper(claims.Role))
            return next(c)
        }
    }
}
