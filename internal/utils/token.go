// Package utils provides small helpers shared across the service,
// currently check-in token minting and QR rendering.
package utils

import (
	"encoding/base64"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/skip2/go-qrcode"
)

// NewCheckInToken mints an opaque check-in token.  Tokens are random
// UUIDs rendered as 32 hex characters and are unique for all practical
// purposes; the database enforces uniqueness as a backstop.
func NewCheckInToken() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

// QRCodePNG renders the token as a PNG QR code and returns it base64
// encoded, ready to embed in a ticket or a data URL.
func QRCodePNG(token string) (string, error) {
	png, err := qrcode.Encode(token, qrcode.Medium, 256)
	if err != nil {
		return "", fmt.Errorf("encode qr code: %w", err)
	}
	return base64.StdEncoding.EncodeToString(png), nil
}
