package security

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"

	"golang.org/x/crypto/bcrypt"
)

var ErrPasswordMismatch = errors.New("password does not match")

// Unambiguous alphanumerics: no 0/O, 1/l/I.
const tempPasswordAlphabet = "abcdefghijkmnpqrstuvwxyzABCDEFGHJKLMNPQRSTUVWXYZ23456789"

type PasswordHasher interface {
	Hash(plain string) (string, error)
	Compare(hash, plain string) error
}

type bcryptHasher struct {
	cost int
}

func NewPasswordHasher(cost int) PasswordHasher {
	if cost == 0 {
		cost = bcrypt.DefaultCost
	}
	return &bcryptHasher{cost: cost}
}

func (h *bcryptHasher) Hash(plain string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(plain), h.cost)
	if err != nil {
		return "", fmt.Errorf("failed to hash password: %w", err)
	}
	return string(b), nil
}

func (h *bcryptHasher) Compare(hash, plain string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plain))
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return ErrPasswordMismatch
	}
	return err
}

// Credential is a freshly issued temporary password. Plain must only ever
// leave the process through the applicant notification or the approve
// response; it is never logged or persisted.
type Credential struct {
	Plain string
	Hash  string
}

type CredentialIssuer interface {
	Issue() (*Credential, error)
}

type credentialIssuer struct {
	hasher PasswordHasher
	length int
}

func NewCredentialIssuer(hasher PasswordHasher, length int) CredentialIssuer {
	return &credentialIssuer{hasher: hasher, length: length}
}

func (c *credentialIssuer) Issue() (*Credential, error) {
	plain, err := GenerateTempPassword(c.length)
	if err != nil {
		return nil, err
	}
	hash, err := c.hasher.Hash(plain)
	if err != nil {
		return nil, err
	}
	return &Credential{Plain: plain, Hash: hash}, nil
}

// GenerateTempPassword returns length characters drawn from a CSPRNG, split
// into groups of four by dashes for readability.
func GenerateTempPassword(length int) (string, error) {
	if length < 8 {
		return "", fmt.Errorf("temporary password length %d is too short", length)
	}
	max := big.NewInt(int64(len(tempPasswordAlphabet)))
	var sb strings.Builder
	for i := 0; i < length; i++ {
		if i > 0 && i%4 == 0 {
			sb.WriteByte('-')
		}
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("failed to read random source: %w", err)
		}
		sb.WriteByte(tempPasswordAlphabet[n.Int64()])
	}
	return sb.String(), nil
}
