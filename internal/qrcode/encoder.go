package qrcode

import (
	"errors"
	"fmt"
	"image/color"

	goqrcode "github.com/skip2/go-qrcode"
)

// ErrPayloadTooLarge is returned when the payload exceeds the byte capacity
// of a version 40 symbol at the encoder's recovery level.
var ErrPayloadTooLarge = errors.New("QR payload too large")

// DefaultModulePx is the default width of one module in pixels.
const DefaultModulePx = 8

var byteCapacity = map[goqrcode.RecoveryLevel]int{
	goqrcode.Low:     2953,
	goqrcode.Medium:  2331,
	goqrcode.High:    1663,
	goqrcode.Highest: 1273,
}

// Encoder renders payloads as black-on-white PNG images with a 4-module
// quiet zone.
type Encoder struct {
	ModulePx int
	Level    goqrcode.RecoveryLevel
}

// NewEncoder creates an encoder with medium error correction.
func NewEncoder(modulePx int) *Encoder {
	if modulePx <= 0 {
		modulePx = DefaultModulePx
	}
	return &Encoder{ModulePx: modulePx, Level: goqrcode.Medium}
}

// Encode validates p and returns the PNG bytes of its QR code.
func (e *Encoder) Encode(p Payload) ([]byte, error) {
	if err := p.Validate(); err != nil {
		return nil, err
	}
	data, err := p.Marshal()
	if err != nil {
		return nil, fmt.Errorf("marshal payload: %w", err)
	}
	return e.EncodeText(string(data))
}

// EncodeText returns the PNG bytes of a QR code holding text.
func (e *Encoder) EncodeText(text string) ([]byte, error) {
	if limit, ok := byteCapacity[e.Level]; ok && len(text) > limit {
		return nil, fmt.Errorf("%w: %d bytes, limit %d", ErrPayloadTooLarge, len(text), limit)
	}
	q, err := goqrcode.New(text, e.Level)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrPayloadTooLarge, err)
	}
	q.ForegroundColor = color.Black
	q.BackgroundColor = color.White
	png, err := q.PNG(-e.ModulePx)
	if err != nil {
		return nil, fmt.Errorf("render png: %w", err)
	}
	return png, nil
}
