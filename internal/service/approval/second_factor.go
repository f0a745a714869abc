// Package approval verifies the second factor required for HIGH-risk
// approval decisions.
package approval

import "golang.org/x/crypto/bcrypt"

// BcryptVerifier compares submitted codes against a bcrypt hash configured
// at deployment time. An empty hash fails closed: Verify always returns
// false.
type BcryptVerifier struct {
	hash string
}

// NewBcryptVerifier creates a verifier over the configured code hash.
func NewBcryptVerifier(hash string) *BcryptVerifier {
	return &BcryptVerifier{hash: hash}
}

// Verify implements ports.SecondFactorVerifier.
func (v *BcryptVerifier) Verify(code string) bool {
	if v.hash == "" || code == "" {
		return false
	}
	return bcrypt.CompareHashAndPassword([]byte(v.hash), []byte(code)) == nil
}

// HashCode produces a bcrypt hash for provisioning approval codes.
func HashCode(code string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(code), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// StaticVerifier accepts a fixed code. Test use only.
type StaticVerifier struct {
	Code string
}

// Verify implements ports.SecondFactorVerifier.
func (v StaticVerifier) Verify(code string) bool {
	return v.Code != "" && code == v.Code
}
