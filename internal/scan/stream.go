package scan

import (
	"context"
	"image"

	"govlink/checkin-service/internal/checkin"
)

// Watch decodes every frame from a camera and calls handle once per distinct
// code, using history to drop the repeated reads a code produces while it is
// held in front of the lens. handle runs synchronously, so a second scan from
// the same stream never starts while one is pending. A nil history disables
// suppression. Watch returns when the stream closes or ctx is done.
func Watch(ctx context.Context, d *Decoder, terminalID string, frames <-chan image.Image, history checkin.ScanHistory, handle func(ctx context.Context, raw string)) error {
	if frames == nil {
		return ErrCameraUnavailable
	}
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case frame, ok := <-frames:
			if !ok {
				return nil
			}
			raw, err := d.DecodeFrame(frame)
			if err != nil {
				continue
			}
			if history != nil {
				seen, err := history.Seen(ctx, checkin.ScanKey(terminalID, raw))
				if err == nil && seen {
					continue
				}
			}
			handle(ctx, raw)
		}
	}
}
