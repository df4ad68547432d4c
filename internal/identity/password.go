package identity

import "golang.org/x/crypto/bcrypt"

// HashPassword はbcryptでパスワードをハッシュ化する。
func HashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	return string(bytes), err
}

// CheckPasswordHash はパスワードがハッシュと一致するかを検証する。
func CheckPasswordHash(password, hash string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
