package audio

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
)

// MaxConcurrentSounds bounds the number of sound-playback goroutines that
// may be in flight at once, guarding against notification floods turning
// into a resource-exhaustion DoS.
const MaxConcurrentSounds = 4

// activeSounds is the process-wide concurrency gate. It is intentionally a
// package-level atomic: the cap applies to a single counter shared by
// every sender, not one per Manager instance.
var activeSounds atomic.Int64

var (
	ErrFileNotFound   = errors.New("audio: sound file not found")
	ErrPathNotAllowed = errors.New("audio: sound path is outside the allowed directories")
	ErrSoundNotFound  = errors.New("audio: no sound theme file matches the given name")
)

// allowedSoundDirs returns the canonicalized allow-list of directories a
// sound file may live under: the two system directories plus the user's
// XDG_DATA_HOME/sounds (or ~/.local/share/sounds as a fallback).
func allowedSoundDirs() []string {
	var dirs []string
	for _, d := range []string{"/usr/share/sounds", "/usr/local/share/sounds"} {
		if canon, err := filepath.EvalSymlinks(d); err == nil {
			dirs = append(dirs, canon)
		}
	}

	if dataHome := os.Getenv("XDG_DATA_HOME"); dataHome != "" {
		if canon, err := filepath.EvalSymlinks(filepath.Join(dataHome, "sounds")); err == nil {
			dirs = append(dirs, canon)
		}
	} else if home := os.Getenv("HOME"); home != "" {
		if canon, err := filepath.EvalSymlinks(filepath.Join(home, ".local/share/sounds")); err == nil {
			dirs = append(dirs, canon)
		}
	}

	return dirs
}

// isAllowedSoundPath canonicalises path (resolving symlinks and ".."
// components) and checks it lies under one of allowedSoundDirs. This is
// the CWE-22 (path traversal) mitigation guarding PlayFile.
func isAllowedSoundPath(path string) (string, bool) {
	canonical, err := filepath.EvalSymlinks(path)
	if err != nil {
		return "", false
	}
	for _, dir := range allowedSoundDirs() {
		if canonical == dir || strings.HasPrefix(canonical, dir+string(filepath.Separator)) {
			return canonical, true
		}
	}
	return "", false
}

// PlayFile validates path against the sound-directory allowlist and, if
// the concurrent-playback cap has not been reached, spawns a worker that
// decodes and plays it. Overflow beyond MaxConcurrentSounds is a silent
// drop, not an error.
func (p *Player) PlayFile(path string) error {
	if path == "" {
		return nil
	}
	path = expandPath(path)

	if _, err := os.Stat(path); err != nil {
		return ErrFileNotFound
	}

	canonical, ok := isAllowedSoundPath(path)
	if !ok {
		p.logger.Warn("audio: rejected path outside allowed sound directories", "path", path)
		return ErrPathNotAllowed
	}

	if !acquireSoundSlot() {
		p.logger.Debug("audio: concurrent sound cap reached, dropping", "path", canonical)
		return nil
	}

	go func() {
		defer releaseSoundSlot()
		if err := p.Play(canonical); err != nil {
			p.logger.Warn("audio: playback failed", "path", canonical, "error", err)
		}
	}()

	return nil
}

// acquireSoundSlot atomically increments activeSounds iff it is below
// MaxConcurrentSounds, using a compare-and-swap loop so concurrent callers
// never overshoot the cap.
func acquireSoundSlot() bool {
	for {
		cur := activeSounds.Load()
		if cur >= MaxConcurrentSounds {
			return false
		}
		if activeSounds.CompareAndSwap(cur, cur+1) {
			return true
		}
	}
}

// releaseSoundSlot is unconditional on every exit path, including when the
// decode/play itself failed.
func releaseSoundSlot() {
	activeSounds.Add(-1)
}

// xdgSoundThemeDirs returns the search path for named sounds, following
// the freedesktop Sound Theme spec: user directories before system ones,
// each with and without its "stereo" subdirectory.
func xdgSoundThemeDirs() []string {
	var dirs []string
	if dataHome := os.Getenv("XDG_DATA_HOME"); dataHome != "" {
		dirs = append(dirs,
			filepath.Join(dataHome, "sounds/freedesktop/stereo"),
			filepath.Join(dataHome, "sounds"),
		)
	} else if home := os.Getenv("HOME"); home != "" {
		dirs = append(dirs,
			filepath.Join(home, ".local/share/sounds/freedesktop/stereo"),
			filepath.Join(home, ".local/share/sounds"),
		)
	}
	dirs = append(dirs,
		"/usr/share/sounds/freedesktop/stereo",
		"/usr/share/sounds/freedesktop",
		"/usr/share/sounds",
		"/usr/local/share/sounds/freedesktop/stereo",
		"/usr/local/share/sounds/freedesktop",
		"/usr/local/share/sounds",
	)
	return dirs
}

var soundThemeExtensions = []string{"oga", "ogg", "wav", "mp3", "flac"}

// findSoundThemeFile resolves a symbolic sound name (e.g.
// "message-new-instant") to a concrete file by scanning the XDG sound
// theme directories in order, trying each of soundThemeExtensions.
func findSoundThemeFile(name string) (string, error) {
	for _, dir := range xdgSoundThemeDirs() {
		for _, ext := range soundThemeExtensions {
			candidate := filepath.Join(dir, name+"."+ext)
			if _, err := os.Stat(candidate); err == nil {
				return candidate, nil
			}
		}
	}
	return "", ErrSoundNotFound
}

// PlayName resolves name to a file via the XDG sound theme and, if found,
// delegates to PlayFile so the same allowlist and concurrency gate apply.
func (p *Player) PlayName(name string) error {
	path, err := findSoundThemeFile(name)
	if err != nil {
		p.logger.Debug("audio: sound theme lookup failed", "name", name, "error", err)
		return err
	}
	return p.PlayFile(path)
}
