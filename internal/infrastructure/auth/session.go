// Package auth decodes the session token a client presents on connect
// into a domain.Session. It is intentionally narrow: unlike the teacher's
// AuthService, it never issues or refreshes tokens — issuing a token is
// the job of the out-of-scope account/login system; this package only
// has to trust and read one that already exists.
package auth

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"github.com/Akitash/opentogethertube/internal/core/domain"
)

var ErrInvalidSessionToken = errors.New("invalid session token")

// sessionClaims is the subset of a login JWT's claims this gateway needs:
// a registered user id, or (for anonymous sessions) a display name.
type sessionClaims struct {
	SessionID string  `json:"sid"`
	UserID    *int64  `json:"userId,omitempty"`
	Username  string  `json:"username,omitempty"`
	jwt.RegisteredClaims
}

// SessionDecoder turns a bearer token from the socket-upgrade request
// into a domain.Session, verifying its signature against secret.
type SessionDecoder struct {
	secret []byte
}

func NewSessionDecoder(secret string) *SessionDecoder {
	return &SessionDecoder{secret: []byte(secret)}
}

func (d *SessionDecoder) Decode(tokenString string) (domain.Session, error) {
	var claims sessionClaims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidSessionToken
		}
		return d.secret, nil
	})
	if err != nil || !token.Valid {
		return domain.Session{}, fmt.Errorf("%w: %v", ErrInvalidSessionToken, err)
	}

	session := domain.Session{ID: domain.SessionID(claims.SessionID), Username: claims.Username}
	if claims.UserID != nil {
		id := domain.UserID(*claims.UserID)
		session.UserID = &id
	}
	return session, nil
}
