package auth

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	AccessTokenCookie  = "access_token"
	RefreshTokenCookie = "refresh_token"

	accessTokenTTL  = 24 * time.Hour
	refreshTokenTTL = 30 * 24 * time.Hour
	issuer          = "novelnest"
)

var ErrInvalidToken = errors.New("invalid token")

type UserClaims struct {
	Id string `json:"id"`
	jwt.RegisteredClaims
}

func CreateJWTToken(id string, secret string, ttl time.Duration) (string, error) {
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, &UserClaims{
		Id: id,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			IssuedAt:  jwt.NewNumericDate(time.Now()),
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(ttl)),
		},
	}).SignedString([]byte(secret))

	if err != nil {
		return "", fmt.Errorf("error creating jwt token: %v", err)
	}

	return token, nil
}

func DecodeJWTToken(token string, secret string) (string, error) {
	claims := &UserClaims{}

	parsed, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
		return []byte(secret), nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithIssuer(issuer))

	if err != nil || !parsed.Valid || claims.Id == "" {
		return "", fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	return claims.Id, nil
}

// SetTokenCookies issues a fresh access and refresh token pair for id.
func SetTokenCookies(w http.ResponseWriter, id string, secret string, secure bool) error {
	accessToken, err := CreateJWTToken(id, secret, accessTokenTTL)
	if err != nil {
		return err
	}

	refreshToken, err := CreateJWTToken(id, secret, refreshTokenTTL)
	if err != nil {
		return err
	}

	http.SetCookie(w, tokenCookie(AccessTokenCookie, accessToken, int(accessTokenTTL.Seconds()), secure))
	http.SetCookie(w, tokenCookie(RefreshTokenCookie, refreshToken, int(refreshTokenTTL.Seconds()), secure))

	return nil
}

func ClearTokenCookies(w http.ResponseWriter, secure bool) {
	http.SetCookie(w, tokenCookie(AccessTokenCookie, "", -1, secure))
	http.SetCookie(w, tokenCookie(RefreshTokenCookie, "", -1, secure))
}

func tokenCookie(name, value string, maxAge int, secure bool) *http.Cookie {
	return &http.Cookie{
		Name:     name,
		Value:    value,
		Path:     "/",
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   maxAge,
	}
}
