package whatsapp

import (
	"encoding/base64"
	"strings"

	qrcode "github.com/skip2/go-qrcode"
)

const pngDataURLPrefix = "data:image/png;base64,"

// qrDataURL returns value unchanged when it already is an image data URL,
// otherwise renders it as a PNG QR code.
func qrDataURL(value string) (string, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", nil
	}
	if strings.HasPrefix(value, "data:image/") {
		return value, nil
	}
	png, err := qrcode.Encode(value, qrcode.Medium, 256)
	if err != nil {
		return "", err
	}
	return pngDataURLPrefix + base64.StdEncoding.EncodeToString(png), nil
}

// finishPayload fills QRCode from Code when the provider sent only the raw content.
// A payload with neither code nor image nor pairing code is not usable.
func finishPayload(p *ConnectionPayload) (*ConnectionPayload, bool) {
	if p == nil {
		return nil, false
	}
	if p.QRCode == "" && p.Code != "" {
		img, err := qrDataURL(p.Code)
		if err == nil {
			p.QRCode = img
		}
	} else if p.QRCode != "" && !strings.HasPrefix(p.QRCode, "data:image/") {
		// some builds return bare base64 PNG
		if _, err := base64.StdEncoding.DecodeString(p.QRCode); err == nil {
			p.QRCode = pngDataURLPrefix + p.QRCode
		} else if img, err := qrDataURL(p.QRCode); err == nil {
			p.Code, p.QRCode = p.QRCode, img
		}
	}
	return p, p.Connected || p.QRCode != "" || p.PairingCode != ""
}
