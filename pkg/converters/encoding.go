package converters

import (
	"crypto/md5"
	"encoding/base64"
	"encoding/hex"
	"fmt"
)

// EncodeBase64 returns the standard base64 encoding of data.
func EncodeBase64(data []byte) string {
	return base64.StdEncoding.EncodeToString(data)
}

// DecodeBase64 decodes a standard base64 payload, rejecting anything that
// is not strictly encoded.
func DecodeBase64(s string) ([]byte, error) {
	data, err := base64.StdEncoding.Strict().DecodeString(s)
	if err != nil {
		return nil, fmt.Errorf("failed to decode base64 payload: %w", err)
	}
	return data, nil
}

// MD5Hex returns the hex md5 digest of a payload string, as sent alongside
// base64 uploads.
func MD5Hex(payload string) string {
	sum := md5.Sum([]byte(payload))
	return hex.EncodeToString(sum[:])
}
