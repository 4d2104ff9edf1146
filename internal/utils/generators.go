package utils

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"time"
)

// GenerateOrderNumber produces the human-readable order number shown to
// customers, e.g. RMN-20260828-4821.
func GenerateOrderNumber() string {
	date := time.Now().Format("20060102")
	randomNum, _ := rand.Int(rand.Reader, big.NewInt(9999))
	return fmt.Sprintf("RMN-%s-%04d", date, randomNum.Int64())
}

// GenerateCartID creates an opaque key for pre-checkout cart capture.
func GenerateCartID() string {
	timestamp := time.Now().Unix()
	randomNum, _ := rand.Int(rand.Reader, big.NewInt(999999))
	return fmt.Sprintf("cart_%d_%06d", timestamp, randomNum.Int64())
}

// Round2 rounds to two decimal places; all money fields are stored rounded.
func Round2(v float64) float64 {
	return float64(int64(v*100+0.5)) / 100
}
