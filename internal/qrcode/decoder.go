package qrcode

import (
	"bytes"
	"image"
	_ "image/jpeg"
	_ "image/png"

	"github.com/makiuchi-d/gozxing"
	zxqrcode "github.com/makiuchi-d/gozxing/qrcode"
)

var decodeHints = map[gozxing.DecodeHintType]interface{}{
	gozxing.DecodeHintType_TRY_HARDER:    true,
	gozxing.DecodeHintType_CHARACTER_SET: "UTF-8",
}

// DecodeImage looks for one QR code in img. ok is false when the frame
// holds no readable code.
func DecodeImage(img image.Image) (text string, ok bool) {
	bmp, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		return "", false
	}
	res, err := zxqrcode.NewQRCodeReader().Decode(bmp, decodeHints)
	if err != nil {
		return "", false
	}
	return res.GetText(), true
}

// DecodeBytes decodes a PNG or JPEG frame and looks for a QR code in it.
func DecodeBytes(data []byte) (string, bool, error) {
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return "", false, err
	}
	text, ok := DecodeImage(img)
	return text, ok, nil
}
