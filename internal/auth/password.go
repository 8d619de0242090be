package auth

import (
	"errors"
	"fmt"

	"shopmanager/internal/domain"

	"golang.org/x/crypto/bcrypt"
)

const minPasswordLength = 8

func HashPassword(password string) (string, error) {
	if len(password) < minPasswordLength {
		return "", domain.NewValidationError(fmt.Sprintf("password must be at least %d characters", minPasswordLength))
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		if errors.Is(err, bcrypt.ErrPasswordTooLong) {
			return "", domain.NewValidationError("password is too long")
		}
		return "", fmt.Errorf("hash password: %w", err)
	}
	return string(hash), nil
}

func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
