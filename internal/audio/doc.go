// Package audio provides notification sound playback functionality.
// It uses the beep library to play WAV, OGG, MP3 and FLAC audio files
// with volume control and per-urgency sound configuration.
package audio
