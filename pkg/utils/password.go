package utils

import "golang.org/x/crypto/bcrypt"

const minPasswordLength = 8

func HashPassword(raw string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(raw), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

func CheckPassword(hash, raw string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(raw)) == nil
}

func IsPasswordStrongEnough(raw string) bool {
	return len(raw) >= minPasswordLength
}
