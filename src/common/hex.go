package common

import (
	"encoding/hex"
)

//EncodeToString returns the lowercase hex representation of hashBytes, the
//same form block hashes are stored in
func EncodeToString(hashBytes []byte) string {
	return hex.EncodeToString(hashBytes)
}

//DecodeFromString converts a lowercase hex string back to a byte slice
func DecodeFromString(hexString string) ([]byte, error) {
	return hex.DecodeString(hexString)
}
