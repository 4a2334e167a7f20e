// Package share builds join links and QR codes for rooms
package share

import (
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/skip2/go-qrcode"

	"github.com/mcoot/hotpotato/internal/model"
)

// PNGSize is the default QR image edge in pixels, sized for phone cameras
const PNGSize = 320

// JoinURL returns the link players open to join code
func JoinURL(base string, code model.RoomCode) string {
	return strings.TrimRight(base, "/") + "/join/" + url.PathEscape(string(code))
}

// BaseURL derives the public base URL from an incoming request,
// respecting TLS and X-Forwarded-Proto
func BaseURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	}
	if proto := r.Header.Get("X-Forwarded-Proto"); proto != "" {
		scheme = proto
	}
	return scheme + "://" + r.Host
}

// PNG encodes link as a QR code image
func PNG(link string, size int) ([]byte, error) {
	png, err := qrcode.Encode(link, qrcode.Medium, size)
	if err != nil {
		return nil, fmt.Errorf("encode qr code: %w", err)
	}
	return png, nil
}

// Terminal renders link as a QR code made of block characters
func Terminal(link string) (string, error) {
	q, err := qrcode.New(link, qrcode.Medium)
	if err != nil {
		return "", fmt.Errorf("encode qr code: %w", err)
	}
	return q.ToSmallString(false), nil
}
