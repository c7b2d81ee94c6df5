package utils

import (
	"errors"
	"fmt"

	gonanoid "github.com/matoous/go-nanoid/v2"
	"github.com/yukikurage/taskboard/internal/constants"
)

// ErrTokenSpaceExhausted is returned when no unused token was drawn within
// the attempt limit.
var ErrTokenSpaceExhausted = errors.New("could not draw an unused token")

// TokenSource draws one random candidate token.
type TokenSource func() (string, error)

// TokenExists reports whether a candidate is already taken.
type TokenExists func(token string) (bool, error)

// RandomURLSafeToken draws a URL-safe token using the nanoid alphabet
// (A-Za-z0-9_-).
func RandomURLSafeToken() (string, error) {
	token, err := gonanoid.New(constants.AuthTokenLength)
	if err != nil {
		return "", fmt.Errorf("failed to generate random token: %w", err)
	}
	return token, nil
}

// NewUploadID draws the per-upload segment of an attachment key.
func NewUploadID() (string, error) {
	id, err := gonanoid.New(constants.UploadIDLength)
	if err != nil {
		return "", fmt.Errorf("failed to generate upload id: %w", err)
	}
	return id, nil
}

// GenerateUniqueToken keeps drawing from source until exists reports the
// candidate unused.
func GenerateUniqueToken(source TokenSource, exists TokenExists) (string, error) {
	if source == nil {
		source = RandomURLSafeToken
	}

	for attempt := 0; attempt < constants.MaxTokenAttempts; attempt++ {
		token, err := source()
		if err != nil {
			return "", err
		}

		taken, err := exists(token)
		if err != nil {
			return "", fmt.Errorf("failed to check token: %w", err)
		}
		if !taken {
			return token, nil
		}
	}

	return "", ErrTokenSpaceExhausted
}
