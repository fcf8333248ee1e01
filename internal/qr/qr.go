package qr

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/skip2/go-qrcode"
)

const DefaultSize = 256

// Encode renders code as a PNG QR image of size pixels square.
func Encode(code string, size int) ([]byte, error) {
	if code == "" {
		return nil, fmt.Errorf("empty code")
	}
	if size <= 0 {
		size = DefaultSize
	}
	return qrcode.Encode(code, qrcode.Medium, size)
}

// WriteFiles writes one <name>.png per entry into dir, creating it if needed.
// Names map to the code they encode.
func WriteFiles(dir string, codes map[string]string) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("failed to create %s: %w", dir, err)
	}
	for name, code := range codes {
		png, err := Encode(code, DefaultSize)
		if err != nil {
			return fmt.Errorf("failed to encode %s: %w", name, err)
		}
		if err := os.WriteFile(filepath.Join(dir, name+".png"), png, 0o644); err != nil {
			return fmt.Errorf("failed to write %s: %w", name, err)
		}
	}
	return nil
}
