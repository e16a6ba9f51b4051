package auth

import "golang.org/x/crypto/bcrypt"

// PasswordEncoder hashes and verifies account secrets with bcrypt.
type PasswordEncoder struct {
	cost int
}

// NewPasswordEncoder returns an encoder using cost, or bcrypt.DefaultCost when cost is out of range.
func NewPasswordEncoder(cost int) *PasswordEncoder {
	if cost < bcrypt.MinCost || cost > bcrypt.MaxCost {
		cost = bcrypt.DefaultCost
	}
	return &PasswordEncoder{cost: cost}
}

// Encode hashes a plaintext secret.
func (e *PasswordEncoder) Encode(secret string) (string, error) {
	hashed, err := bcrypt.GenerateFromPassword([]byte(secret), e.cost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

// Matches verifies a plaintext secret against its hash.
func (e *PasswordEncoder) Matches(secret, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(secret)) == nil
}
