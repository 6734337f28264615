package alerting

import (
	"context"
	"io"
)

// Tone plays an audible cue alongside a notification.
type Tone interface {
	Play(ctx context.Context) error
}

// BellTone rings the terminal bell.
type BellTone struct {
	Out io.Writer
}

// Play writes the BEL control character.
func (b BellTone) Play(context.Context) error {
	if b.Out == nil {
		return nil
	}
	_, err := io.WriteString(b.Out, "\a")
	return err
}

var _ Tone = BellTone{}
