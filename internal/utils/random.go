package utils

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"path/filepath"
	"time"

	"github.com/google/uuid"
)

// GenerateOTP returns a numeric one-time password of the given length.
func GenerateOTP(length int) string {
	digits := make([]byte, length)
	for i := range digits {
		n, err := rand.Int(rand.Reader, big.NewInt(10))
		if err != nil {
			// crypto/rand only fails if the system source is broken
			panic(err)
		}
		digits[i] = byte('0' + n.Int64())
	}
	return string(digits)
}

// GenerateStorageKey returns a date-partitioned object key for a transcoded
// image, e.g. uploads/2025/03/14/<uuid>.jpg.
func GenerateStorageKey() string {
	d := time.Now()
	return fmt.Sprintf("uploads/%d/%02d/%02d/%s.jpg", d.Year(), d.Month(), d.Day(), uuid.New())
}

// TempFileName builds a unique filename in dir preserving the original
// file's extension.
func TempFileName(dir, original string) string {
	return filepath.Join(dir, uuid.New().String()+filepath.Ext(original))
}
