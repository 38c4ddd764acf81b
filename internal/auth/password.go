package auth

import (
	"errors"
	"fmt"

	"golang.org/x/crypto/bcrypt"
)

// defaultCost is the bcrypt work factor for hashes made by the
// -hash-passphrase command.
const defaultCost = 12

// maxPassphraseLen is bcrypt's input limit; longer input would be
// silently truncated.
const maxPassphraseLen = 72

// ErrInvalidPassphrase is returned by Verify on a mismatch.
var ErrInvalidPassphrase = errors.New("auth: invalid passphrase")

// PasswordService hashes and checks the shared access passphrase. The cost
// is a field so tests can use bcrypt.MinCost.
type PasswordService struct {
	cost int
}

func NewPasswordService() *PasswordService {
	return &PasswordService{cost: defaultCost}
}

// NewPasswordServiceForTest uses the given cost; pass bcrypt.MinCost.
func NewPasswordServiceForTest(cost int) *PasswordService {
	return &PasswordService{cost: cost}
}

// Hash returns a bcrypt hash suitable for ACCESS_PASSPHRASE_HASH.
func (p *PasswordService) Hash(plaintext string) (string, error) {
	if len(plaintext) > maxPassphraseLen {
		return "", fmt.Errorf("auth: passphrase must be %d bytes or fewer", maxPassphraseLen)
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(plaintext), p.cost)
	if err != nil {
		return "", fmt.Errorf("auth: hashing passphrase: %w", err)
	}
	return string(hashed), nil
}

// Verify returns nil when plaintext matches hash and ErrInvalidPassphrase
// on a mismatch. A malformed hash is a configuration error.
func (p *PasswordService) Verify(hash, plaintext string) error {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(plaintext))
	switch {
	case err == nil:
		return nil
	case errors.Is(err, bcrypt.ErrMismatchedHashAndPassword):
		return ErrInvalidPassphrase
	default:
		return fmt.Errorf("auth: comparing passphrase hash: %w", err)
	}
}
