// Copyright (C) 2025-2026, Advanced Micro Devices, Inc. All rights reserved.
// See LICENSE for license information.

package deployment

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/sha256"
	"encoding/base64"

	"github.com/AMD-AGI/primus-papi/pkg/errors"
)

// obscureKey is the fixed key the storage client uses for reversible
// password obscuring. Not encryption: the container needs the obscured
// form, and anyone with the client can reveal it.
var obscureKey = []byte{
	0x9c, 0x93, 0x5b, 0x48, 0x73, 0x0a, 0x55, 0x4d,
	0x6b, 0xfd, 0x7c, 0x63, 0xc8, 0x86, 0xa9, 0x2b,
	0xd3, 0x90, 0x19, 0x8e, 0xb8, 0x12, 0x8a, 0xfb,
	0xf4, 0xde, 0x16, 0x2b, 0x8b, 0x95, 0xf6, 0x38,
}

// Obscure produces the storage client's obscured form of a password. The
// IV is derived from the plaintext so rendering stays deterministic.
func Obscure(plain string) (string, error) {
	if plain == "" {
		return "", nil
	}
	block, err := aes.NewCipher(obscureKey)
	if err != nil {
		return "", errors.NewInternalError("obscure cipher init failed").WithError(err)
	}
	digest := sha256.Sum256([]byte(plain))
	buf := make([]byte, aes.BlockSize+len(plain))
	copy(buf[:aes.BlockSize], digest[:aes.BlockSize])
	stream := cipher.NewCTR(block, buf[:aes.BlockSize])
	stream.XORKeyStream(buf[aes.BlockSize:], []byte(plain))
	return base64.RawURLEncoding.EncodeToString(buf), nil
}
