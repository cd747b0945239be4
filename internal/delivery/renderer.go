// Package delivery renders a finished enrollment for the channels a device
// can consume it through: a deep link for installed clients, a QR code for
// mobile clients and plain text for manual entry.
package delivery

import (
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"net/url"
	"strings"

	qrgen "github.com/skip2/go-qrcode"
)

const (
	DefaultScheme = "defguard"
	DefaultQRSize = 256
	maxQRSize     = 4096

	// privateKeyPlaceholder is what the core API puts in configs it cannot
	// complete because it never sees the private key.
	privateKeyPlaceholder = "YOUR_PRIVATE_KEY"
)

var (
	ErrInvalidPayload = errors.New("invalid QR payload")
	ErrQREncode       = errors.New("failed to encode QR code")
	ErrInvalidSize    = errors.New("invalid QR code size")
)

// Enrollment is the one-time credential pair issued for a user.
type Enrollment struct {
	Token string `json:"token"`
	URL   string `json:"url"`
}

type qrEnvelope struct {
	URL   string `json:"url"`
	Token string `json:"token"`
}

type Renderer struct {
	scheme string
}

func NewRenderer(scheme string) *Renderer {
	if scheme == "" {
		scheme = DefaultScheme
	}
	return &Renderer{scheme: scheme}
}

// DeepLink returns scheme://addinstance?token=...&url=...
func (r *Renderer) DeepLink(e Enrollment) string {
	return fmt.Sprintf("%s://addinstance?token=%s&url=%s",
		r.scheme, url.QueryEscape(e.Token), url.QueryEscape(e.URL))
}

// QRPayload is base64 of {"url","token"}.
func (r *Renderer) QRPayload(e Enrollment) string {
	b, _ := json.Marshal(qrEnvelope{URL: e.URL, Token: e.Token})
	return base64.StdEncoding.EncodeToString(b)
}

func DecodeQRPayload(payload string) (Enrollment, error) {
	raw, err := base64.StdEncoding.DecodeString(strings.TrimSpace(payload))
	if err != nil {
		return Enrollment{}, errors.Join(ErrInvalidPayload, err)
	}
	var env qrEnvelope
	if err := json.Unmarshal(raw, &env); err != nil {
		return Enrollment{}, errors.Join(ErrInvalidPayload, err)
	}
	return Enrollment{Token: env.Token, URL: env.URL}, nil
}

func (r *Renderer) Text(e Enrollment) string {
	var b strings.Builder
	b.WriteString("URL: ")
	b.WriteString(e.URL)
	b.WriteString("\nToken: ")
	b.WriteString(e.Token)
	b.WriteString("\n")
	return b.String()
}

// QRCode encodes content as a PNG.
func QRCode(content string, size int) ([]byte, error) {
	if size <= 0 {
		size = DefaultQRSize
	}
	if size > maxQRSize {
		return nil, ErrInvalidSize
	}

	qr, err := qrgen.New(content, qrgen.Medium)
	if err != nil {
		return nil, errors.Join(ErrQREncode, err)
	}
	png, err := qr.PNG(size)
	if err != nil {
		return nil, errors.Join(ErrQREncode, err)
	}
	return png, nil
}

// ConfigText fills the private key into a config returned by the core API.
// With no private key (operator-held keys) the config is returned unchanged.
func ConfigText(config, privateKey string) string {
	if privateKey == "" {
		return config
	}
	return strings.ReplaceAll(config, privateKeyPlaceholder, privateKey)
}
