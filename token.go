package session

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	goerrors "github.com/goliatone/go-errors"
)

// DecodedToken is the result of an unverified payload decode: the expiry claim
// plus whatever else the server embedded.
type DecodedToken struct {
	Expiry time.Time
	Claims map[string]any
}

// DecodeToken splits a three-segment bearer token, base64-decodes the middle
// segment, and extracts the numeric exp claim (seconds since epoch). The
// header and signature segments are opaque: no signature verification happens
// here. The decoded expiry only schedules refreshes, authorization stays
// enforced server-side.
func DecodeToken(raw string) (*DecodedToken, error) {
	parts := strings.Split(raw, ".")
	if len(parts) != 3 {
		return nil, ErrMalformedToken.WithMetadata(map[string]any{"segments": len(parts)})
	}

	payload, err := jwt.NewParser().DecodeSegment(parts[1])
	if err != nil {
		return nil, goerrors.Wrap(err, ErrMalformedToken.Category, ErrMalformedToken.Message).
			WithTextCode(textCodeMalformedToken)
	}

	claims := jwt.MapClaims{}
	if err := json.Unmarshal(payload, &claims); err != nil {
		return nil, goerrors.Wrap(err, ErrMalformedToken.Category, ErrMalformedToken.Message).
			WithTextCode(textCodeMalformedToken)
	}

	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return nil, ErrMalformedToken.WithMetadata(map[string]any{"claim": "exp"})
	}

	return &DecodedToken{
		Expiry: exp.Time,
		Claims: claims,
	}, nil
}
