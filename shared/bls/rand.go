package bls

import "crypto/rand"

// cryptoRandRead is a thin indirection over crypto/rand.Read so RandKey's
// entropy source can be swapped in tests without touching blst.go.
func cryptoRandRead(b []byte) (int, error) {
	return rand.Read(b)
}
