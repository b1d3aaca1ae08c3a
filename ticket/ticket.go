// Package ticket mints and verifies signed open tickets. A ticket names the
// one document a remote viewer may open, so clients never hand the host an
// arbitrary URL to fetch.
package ticket

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const Issuer = "pdfviewer"

var (
	ErrInvalid     = errors.New("ticket: invalid")
	ErrShortSecret = errors.New("ticket: secret must be at least 32 bytes")
)

// Claims are the JWT claims of a ticket.
type Claims struct {
	URL string `json:"url"`
	jwt.RegisteredClaims
}

// Signer issues and verifies HS256 tickets.
type Signer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

func NewSigner(secret []byte, ttl time.Duration) (*Signer, error) {
	if len(secret) < 32 {
		return nil, ErrShortSecret
	}
	if ttl <= 0 {
		ttl = 15 * time.Minute
	}
	return &Signer{secret: secret, ttl: ttl, now: time.Now}, nil
}

// Issue returns a ticket for url valid for the signer's TTL.
func (s *Signer) Issue(url string) (string, error) {
	if url == "" {
		return "", fmt.Errorf("ticket: empty url")
	}
	now := s.now()
	claims := Claims{
		URL: url,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    Issuer,
			ID:        uuid.NewString(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

// Verify checks the signature and expiry of signed and returns its URL.
func (s *Signer) Verify(signed string) (string, error) {
	claims := &Claims{}
	_, err := jwt.ParseWithClaims(signed, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(Issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(s.now),
	)
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if claims.URL == "" {
		return "", fmt.Errorf("%w: no url", ErrInvalid)
	}
	return claims.URL, nil
}
