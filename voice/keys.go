package voice

import (
	"encoding/base64"

	"github.com/pkg/errors"
)

// SessionKeys holds the shared symmetric key negotiated in
// SessionDescribe, and the AEAD mode it was declared under. A session
// has at most one SessionKeys alive at a time; it is replaced wholesale
// on every SessionDescribe, including after a reconnect.
type SessionKeys struct {
	Mode   string
	Secret [32]byte
}

// DecodeSessionKeys parses the base64 secret key and AEAD mode from a
// SessionDescribe payload.
func DecodeSessionKeys(mode, secretKeyB64 string) (SessionKeys, error) {
	raw, err := base64.StdEncoding.DecodeString(secretKeyB64)
	if err != nil {
		return SessionKeys{}, errors.Wrap(err, "failed to decode secret key")
	}
	if len(raw) != 32 {
		return SessionKeys{}, errors.Errorf("secret key must be 32 bytes, got %d", len(raw))
	}

	var keys SessionKeys
	keys.Mode = mode
	copy(keys.Secret[:], raw)
	return keys, nil
}
