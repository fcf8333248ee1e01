package utils

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/binary"
	"fmt"
	"time"
)

// GenerateTicketCode returns a URL-safe code built from the current time and
// 16 random bytes.
func GenerateTicketCode() (string, error) {
	buf := make([]byte, 8+16)
	binary.LittleEndian.PutUint64(buf, uint64(time.Now().Unix()))
	if _, err := rand.Read(buf[8:]); err != nil {
		return "", fmt.Errorf("failed to read random bytes: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(buf), nil
}

// GuestNumber formats the printed number of an anonymous guest, e.g. G005_02.
func GuestNumber(index, batch int) string {
	return fmt.Sprintf("G%03d_%02d", index, batch)
}

// GuestLabel is the display name of an anonymous guest.
func GuestLabel(index int) string {
	return fmt.Sprintf("Guest %d", index)
}
