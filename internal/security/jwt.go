package security

import (
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// JWT validation errors.
var (
	// ErrInvalidToken indicates a token is malformed or fails validation.
	ErrInvalidToken = errors.New("invalid token")
	// ErrExpiredToken indicates a token has expired.
	ErrExpiredToken = errors.New("token expired")
)

// tokenIssuer is written to and required in the iss claim.
const tokenIssuer = "banlist"

// AccountClaims defines JWT claims for login accounts.
//
// Admin is informational; authorization reads the flag from the account row.
type AccountClaims struct {
	AccountID uint64 `json:"account_id"`
	Username  string `json:"username"`
	Admin     bool   `json:"admin"`
	jwt.RegisteredClaims
}

// GenerateAccountToken signs an account JWT with the configured expiry.
func GenerateAccountToken(secret string, accountID uint64, username string, admin bool, expiry time.Duration) (string, time.Time, error) {
	now := time.Now().UTC()
	expiresAt := now.Add(expiry)
	claims := AccountClaims{
		AccountID: accountID,
		Username:  username,
		Admin:     admin,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    tokenIssuer,
			Subject:   strconv.FormatUint(accountID, 10),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(secret))
	if err != nil {
		return "", time.Time{}, err
	}
	return signed, expiresAt, nil
}

// ParseAccountToken validates an account JWT and returns its claims.
func ParseAccountToken(secret string, tokenString string) (*AccountClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &AccountClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return []byte(secret), nil
	}, jwt.WithIssuer(tokenIssuer), jwt.WithExpirationRequired())
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, ErrExpiredToken
		}
		return nil, ErrInvalidToken
	}
	claims, ok := token.Claims.(*AccountClaims)
	if !ok || !token.Valid || claims.AccountID == 0 {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// LooksLikeJWT reports whether s has the three dot-separated segments of a compact JWS.
func LooksLikeJWT(s string) bool {
	return strings.Count(s, ".") == 2 && !strings.HasPrefix(s, apiKeyPrefix)
}
