package storage

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/golang-jwt/jwt/v5"
)

const signedBlobPurpose = "blob"

// ErrInvalidSignature is returned for signed ids that do not verify
var ErrInvalidSignature = errors.New("invalid signed blob id")

type blobClaims struct {
	Purpose string `json:"pur"`
	jwt.RegisteredClaims
}

// Signer produces tamper-proof public ids for blobs. Signed ids do not
// expire, so URLs stay stable.
type Signer struct {
	secret []byte
}

// NewSigner creates a Signer using secret
func NewSigner(secret string) *Signer {
	return &Signer{secret: []byte(secret)}
}

// Sign returns the signed id of blob id
func (s *Signer) Sign(id int64) (string, error) {
	claims := blobClaims{
		Purpose:          signedBlobPurpose,
		RegisteredClaims: jwt.RegisteredClaims{Subject: strconv.FormatInt(id, 10)},
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("failed to sign blob id: %w", err)
	}
	return signed, nil
}

// Verify returns the blob id inside a signed id
func (s *Signer) Verify(signed string) (int64, error) {
	claims := &blobClaims{}
	token, err := jwt.ParseWithClaims(signed, claims, func(token *jwt.Token) (interface{}, error) {
		if token.Method.Alg() != jwt.SigningMethodHS256.Alg() {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid || claims.Purpose != signedBlobPurpose {
		return 0, ErrInvalidSignature
	}

	id, err := strconv.ParseInt(claims.Subject, 10, 64)
	if err != nil || id <= 0 {
		return 0, ErrInvalidSignature
	}
	return id, nil
}
