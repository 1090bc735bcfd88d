package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

const (
	defaultPasswordCost = 12
	maxPasswordBytes    = 72
)

var (
	// ErrPasswordTooLong indicates a password bcrypt would silently truncate.
	ErrPasswordTooLong = errors.New("auth: password must be 72 bytes or fewer")
	// ErrPasswordMismatch indicates the password does not match the stored hash.
	ErrPasswordMismatch = errors.New("auth: invalid password")
)

// PasswordService hashes and verifies passwords with bcrypt.
type PasswordService struct {
	cost int
}

// NewPasswordService returns a PasswordService. A non-positive cost selects the default.
func NewPasswordService(cost int) *PasswordService {
	if cost <= 0 {
		cost = defaultPasswordCost
	}
	if cost < bcrypt.MinCost {
		cost = bcrypt.MinCost
	}
	return &PasswordService{cost: cost}
}

// Hash returns the bcrypt hash of plaintext.
func (p *PasswordService) Hash(plaintext string) (string, error) {
	if len(plaintext) > maxPasswordBytes {
		return "", ErrPasswordTooLong
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(plaintext), p.cost)
	if err != nil {
		return "", fmt.Errorf("auth: hashing password: %w", err)
	}
	return string(hashed), nil
}

// Verify returns nil when plaintext matches hash.
func (p *PasswordService) Verify(hash, plaintext string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext))
	if err == nil {
		return nil
	}
	if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
		return ErrPasswordMismatch
	}
	return fmt.Errorf("auth: comparing password hash: %w", err)
}
