package service

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	jwtSecret []byte
	tokenTTL  = 24 * time.Hour
)

var ErrInvalidToken = errors.New("invalid token")

// RelayClaims is what a relay token grants: a display name and the channel
// namespace the holder may subscribe and publish under.
type RelayClaims struct {
	Player    string
	Namespace string
}

func InitJWT(secret string, ttl time.Duration) {
	if secret == "" {
		panic("JWT_SECRET is not set")
	}
	jwtSecret = []byte(secret)
	if ttl > 0 {
		tokenTTL = ttl
	}
}

func GenerateRelayToken(player, namespace string) (string, error) {
	if len(jwtSecret) == 0 {
		return "", errors.New("jwt secret not initialized")
	}
	now := time.Now().Unix()
	claims := jwt.MapClaims{
		"player": player,
		"ns":     namespace,
		"exp":    time.Now().Add(tokenTTL).Unix(),
		"iat":    now,
		"nbf":    now,
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(jwtSecret)
}

func ParseRelayToken(tokenString string) (RelayClaims, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return jwtSecret, nil
	})

	if err != nil || !token.Valid {
		return RelayClaims{}, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return RelayClaims{}, errors.New("invalid claims")
	}

	// validate time-based claims
	now := time.Now().Unix()
	if exp, ok := claims["exp"].(float64); ok {
		if int64(exp) < now {
			return RelayClaims{}, errors.New("token expired")
		}
	}
	if nbf, ok := claims["nbf"].(float64); ok {
		if int64(nbf) > now {
			return RelayClaims{}, errors.New("token not valid yet")
		}
	}

	player, ok := claims["player"].(string)
	if !ok {
		return RelayClaims{}, errors.New("player not found")
	}
	ns, ok := claims["ns"].(string)
	if !ok || ns == "" {
		return RelayClaims{}, errors.New("namespace not found")
	}

	return RelayClaims{Player: player, Namespace: ns}, nil
}
