package scan

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"

	"github.com/disintegration/imaging"
	"github.com/makiuchi-d/gozxing"
	zxingqr "github.com/makiuchi-d/gozxing/qrcode"
)

var (
	ErrNoQRCode          = errors.New("no qr code found")
	ErrCameraUnavailable = errors.New("camera unavailable")
	ErrUnreadableImage   = errors.New("unreadable image")
)

const defaultMaxEdge = 1600

// Source is either a live camera stream or a single uploaded image.
type Source interface {
	isSource()
}

// CameraSource delivers decoded video frames. A nil or closed channel
// before the first frame means the camera is unavailable.
type CameraSource struct {
	Frames <-chan image.Image
}

// ImageSource carries an encoded image file (PNG, JPEG, GIF, BMP, TIFF).
type ImageSource struct {
	Data []byte
}

func (CameraSource) isSource() {}
func (ImageSource) isSource()  {}

type Decoder struct {
	maxEdge int
}

func NewDecoder(maxEdge int) *Decoder {
	if maxEdge <= 0 {
		maxEdge = defaultMaxEdge
	}
	return &Decoder{maxEdge: maxEdge}
}

// Decode returns the first QR text found in src.
func (d *Decoder) Decode(ctx context.Context, src Source) (string, error) {
	switch s := src.(type) {
	case ImageSource:
		return d.decodeUpload(s.Data)
	case CameraSource:
		return d.decodeStream(ctx, s.Frames)
	default:
		return "", fmt.Errorf("unsupported scan source %T", src)
	}
}

func (d *Decoder) decodeUpload(data []byte) (string, error) {
	if len(data) == 0 {
		return "", ErrUnreadableImage
	}
	img, err := imaging.Decode(bytes.NewReader(data), imaging.AutoOrientation(true))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUnreadableImage, err)
	}
	return d.DecodeFrame(img)
}

func (d *Decoder) decodeStream(ctx context.Context, frames <-chan image.Image) (string, error) {
	if frames == nil {
		return "", ErrCameraUnavailable
	}
	received := false
	for {
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case frame, ok := <-frames:
			if !ok {
				if !received {
					return "", ErrCameraUnavailable
				}
				return "", ErrNoQRCode
			}
			received = true
			text, err := d.DecodeFrame(frame)
			if err == nil {
				return text, nil
			}
		}
	}
}

// DecodeFrame looks for a QR code in one image.
func (d *Decoder) DecodeFrame(img image.Image) (string, error) {
	if img == nil {
		return "", ErrNoQRCode
	}
	bounds := img.Bounds()
	if bounds.Dx() > d.maxEdge || bounds.Dy() > d.maxEdge {
		img = imaging.Fit(img, d.maxEdge, d.maxEdge, imaging.Lanczos)
	}

	bmp, err := gozxing.NewBinaryBitmapFromImage(img)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNoQRCode, err)
	}
	hints := map[gozxing.DecodeHintType]interface{}{
		gozxing.DecodeHintType_TRY_HARDER: true,
	}
	result, err := zxingqr.NewQRCodeReader().Decode(bmp, hints)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNoQRCode, err)
	}
	return result.GetText(), nil
}
