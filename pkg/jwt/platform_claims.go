package jwt

import (
	"github.com/enlighten-app/enlighten-chat/pkg/errcode"
	"github.com/golang-jwt/jwt/v5"
)

// PlatformClaims represents claims from a token issued by the main Enlighten
// backend. Those tokens carry the user id in the "id" field and no platform id.
type PlatformClaims struct {
	Id string `json:"id"`
	jwt.RegisteredClaims
}

// ParsePlatformToken parses a token issued by the main platform and converts
// it to the chat service's Claims. The chat service does not issue sessions
// itself; this is the usual login path for browser clients.
//
// Parameters:
//   - tokenString: the raw JWT from the platform
//   - secret: the platform's signing secret
//   - defaultPlatformId: platform id to assign to the converted claims
func ParsePlatformToken(tokenString, secret string, defaultPlatformId int) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &PlatformClaims{}, func(token *jwt.Token) (any, error) {
		return []byte(secret), nil
	})
	if err != nil {
		return nil, errcode.ErrTokenInvalid.Wrap(err)
	}

	platClaims, ok := token.Claims.(*PlatformClaims)
	if !ok || !token.Valid {
		return nil, errcode.ErrTokenInvalid
	}
	if platClaims.Id == "" {
		return nil, errcode.ErrTokenInvalid
	}

	return &Claims{
		UserId:           platClaims.Id,
		PlatformId:       defaultPlatformId,
		RegisteredClaims: platClaims.RegisteredClaims,
	}, nil
}
