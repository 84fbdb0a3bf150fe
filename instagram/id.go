package instagram

import (
	"fmt"

	"github.com/hashicorp/cap-instagram/sdk/id"
)

// NewId generates an ID with an optional prefix. The ID generated is suitable
// for an anti-forgery marker or a state signing key id.
func NewId(optionalPrefix string) (string, error) {
	const op = "NewId"
	id, err := id.New(optionalPrefix)
	if err != nil {
		return "", fmt.Errorf("%s: unable to generate id: %w: %w", op, ErrIdGeneratorFailed, err)
	}
	return id, nil
}
