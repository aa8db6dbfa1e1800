package auth

import "golang.org/x/crypto/bcrypt"

// bcrypt は先頭72バイトしか使わないため、それを超える入力は受け付けない
const maxPasswordBytes = 72

// HashPassword はソルト付きの bcrypt ハッシュを返します。
func HashPassword(password string, cost int) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), cost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword はハッシュとパスワードが一致するかを定数時間で比較します。
func CheckPassword(hash, password string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)) == nil
}
