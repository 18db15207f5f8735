package report

import (
	"errors"
	"strings"

	qrcode "github.com/skip2/go-qrcode"
)

const defaultQRSize = 128

// CaptureDigestQR renders the capture's SHA-256 digest as a QR code PNG so a
// printed report can be matched back to the exact capture file it was
// produced from.
func CaptureDigestQR(digest string, size int) ([]byte, error) {
	normalized := sanitizeDigest(digest)
	if normalized == "" {
		return nil, errors.New("capture digest is empty")
	}
	if size <= 0 {
		size = defaultQRSize
	}
	return qrcode.Encode(normalized, qrcode.Medium, size)
}

// sanitizeDigest keeps the digest's hex digits in upper case and drops any
// separators or whitespace a caller carried along.
func sanitizeDigest(digest string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r >= '0' && r <= '9':
			return r
		case r >= 'a' && r <= 'f':
			return r - ('a' - 'A')
		case r >= 'A' && r <= 'F':
			return r
		}
		return -1
	}, digest)
}
