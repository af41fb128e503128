package imageproc

import (
	"bytes"
	gifpkg "image/gif"
	"time"
)

// MaxFrames and MaxAnimationDuration bound memory for decoded animations.
// Excess frames are dropped tail-first.
const (
	MaxFrames            = 100
	MaxAnimationDuration = 30 * time.Second
)

// AnimationFrame is one decoded frame: RGBA pixels, dimensions and the
// delay before the next frame (always >= 10ms).
type AnimationFrame struct {
	RGBA     []byte
	Width    int
	Height   int
	DelayMs  int
}

// AnimatedImage is a capped sequence of frames with precomputed total
// duration, supporting time-based frame lookup for display loops.
type AnimatedImage struct {
	Frames          []AnimationFrame
	TotalDurationMs int
}

// MightBeAnimated sniffs the magic bytes for formats that can carry
// animation: GIF87a/GIF89a, the PNG signature (APNG candidate) and a
// RIFF....WEBP container (animated WebP candidate). It is a hint only —
// AnimatedFrom performs the actual decode and may still return nil.
func MightBeAnimated(data []byte) bool {
	switch {
	case bytes.HasPrefix(data, []byte("GIF87a")):
		return true
	case bytes.HasPrefix(data, []byte("GIF89a")):
		return true
	case bytes.HasPrefix(data, []byte("\x89PNG\r\n\x1a\n")):
		return true
	case len(data) >= 12 && bytes.HasPrefix(data, []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WEBP")):
		return true
	}
	return false
}

// AnimatedFrom decodes an animated GIF, capping at MaxFrames frames and
// MaxAnimationDuration total (excess frames dropped tail-first); each
// frame's delay is clamped to a 10ms floor. Returns nil for a single-frame
// (i.e. non-animated) input or on decode failure.
func AnimatedFrom(data []byte) *AnimatedImage {
	g, err := gifpkg.DecodeAll(bytes.NewReader(data))
	if err != nil || len(g.Image) < 2 {
		return nil
	}

	frames := make([]AnimationFrame, 0, len(g.Image))
	total := 0
	for i, frame := range g.Image {
		if i >= MaxFrames {
			break
		}
		delayMs := frame.Delay * 10 // GIF delay units are 1/100s.
		if delayMs < 10 {
			delayMs = 10
		}
		if total+delayMs > int(MaxAnimationDuration/time.Millisecond) {
			break
		}

		b := frame.Bounds()
		rgba := make([]byte, b.Dx()*b.Dy()*4)
		idx := 0
		for y := b.Min.Y; y < b.Max.Y; y++ {
			for x := b.Min.X; x < b.Max.X; x++ {
				r, gr, bl, a := frame.At(x, y).RGBA()
				rgba[idx], rgba[idx+1], rgba[idx+2], rgba[idx+3] = byte(r>>8), byte(gr>>8), byte(bl>>8), byte(a>>8)
				idx += 4
			}
		}

		frames = append(frames, AnimationFrame{RGBA: rgba, Width: b.Dx(), Height: b.Dy(), DelayMs: delayMs})
		total += delayMs
	}

	if len(frames) < 2 {
		return nil
	}

	return &AnimatedImage{Frames: frames, TotalDurationMs: total}
}

// FrameAt returns the frame active at elapsed milliseconds, looping at the
// total duration and linearly scanning accumulated delays.
func (a *AnimatedImage) FrameAt(elapsedMs int) AnimationFrame {
	if len(a.Frames) == 0 {
		return AnimationFrame{}
	}
	if a.TotalDurationMs == 0 {
		return a.Frames[0]
	}

	looped := elapsedMs % a.TotalDurationMs
	accumulated := 0
	for _, f := range a.Frames {
		accumulated += f.DelayMs
		if accumulated > looped {
			return f
		}
	}
	return a.Frames[0]
}
