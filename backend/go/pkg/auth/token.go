package auth

import (
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/golang-jwt/jwt"
)

const (
	issuer   = "askarchive"
	audience = "askarchive_clients"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrNoSubject    = errors.New("token has no subject")
)

// IssueToken 为指定用户生成一个 HS256 签名的 JWT，sub 为用户 ID。
func IssueToken(secret, userID string, ttl time.Duration) (string, error) {
	if secret == "" {
		return "", errors.New("jwt secret is empty")
	}
	if userID == "" {
		return "", ErrNoSubject
	}
	now := time.Now()
	claims := jwt.MapClaims{
		"sub": userID,
		"iss": issuer,
		"aud": audience,
		"iat": now.Unix(),
	}
	if ttl > 0 {
		claims["exp"] = now.Add(ttl).Unix()
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(secret))
}

// ParseToken 校验 token 的签名和有效期，并返回 sub 中的用户 ID。
// 数字形式的 sub（JWT 解析数字时默认为 float64）会被转换为十进制字符串。
func ParseToken(secret, tokenString string) (string, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		// 确保 token 的签名方法是我们期望的
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", ErrInvalidToken
	}

	switch sub := claims["sub"].(type) {
	case string:
		if sub == "" {
			return "", ErrNoSubject
		}
		return sub, nil
	case float64:
		return strconv.FormatFloat(sub, 'f', -1, 64), nil
	default:
		return "", ErrNoSubject
	}
}
