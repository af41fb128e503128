package dbusface

import (
	"log/slog"
	"net/url"
	"os"
	"strings"

	"github.com/godbus/dbus/v5"

	"github.com/jmylchreest/notifd/internal/config"
	"github.com/jmylchreest/notifd/internal/imageproc"
	"github.com/jmylchreest/notifd/internal/notification"
)

// ParseActions converts the D-Bus actions array (alternating action_id,
// label pairs) into the tagged Action slice.
func ParseActions(actions []string) []notification.Action {
	out := make([]notification.Action, 0, len(actions)/2)
	for i := 0; i+1 < len(actions); i += 2 {
		id := notification.ActionID{}
		if actions[i] != "default" {
			id.Custom = actions[i]
		}
		out = append(out, notification.Action{ID: id, Label: actions[i+1]})
	}
	return out
}

// ParseHints decodes the wire a{sv} hints map into the typed Hint slice.
// Unknown keys are logged and ignored; malformed values for known keys are
// ignored with a warning. Image hints are resolved under the
// priority image-data > image-path > icon_data, and at most one HintImage
// entry is ever produced. cfg gates and bounds image processing (nil means
// "show images, default size cap"); a nil cfg is what tests and any
// not-yet-reloaded caller pass.
func ParseHints(hints map[string]dbus.Variant, cfg *config.ContentConfig, logger *slog.Logger) []notification.Hint {
	if logger == nil {
		logger = slog.Default()
	}

	out := make([]notification.Hint, 0, len(hints))
	var imageData, imagePath, iconData *notification.Hint

	for key, v := range hints {
		switch key {
		case "action-icons":
			if b, ok := v.Value().(bool); ok {
				out = append(out, notification.Hint{Kind: notification.HintActionIcons, Bool: b})
			} else {
				logger.Warn("malformed hint value", "key", key)
			}
		case "category":
			if s, ok := v.Value().(string); ok {
				out = append(out, notification.Hint{Kind: notification.HintCategory, String: s})
			} else {
				logger.Warn("malformed hint value", "key", key)
			}
		case "desktop-entry":
			if s, ok := v.Value().(string); ok {
				out = append(out, notification.Hint{Kind: notification.HintDesktopEntry, String: s})
			} else {
				logger.Warn("malformed hint value", "key", key)
			}
		case "resident":
			if b, ok := v.Value().(bool); ok {
				out = append(out, notification.Hint{Kind: notification.HintResident, Bool: b})
			} else {
				logger.Warn("malformed hint value", "key", key)
			}
		case "sender-pid":
			if pid, ok := asUint32(v); ok {
				out = append(out, notification.Hint{Kind: notification.HintSenderPid, Uint: pid})
			} else {
				logger.Warn("malformed hint value", "key", key)
			}
		case "sound-file":
			if s, ok := v.Value().(string); ok {
				out = append(out, notification.Hint{Kind: notification.HintSoundFile, String: s})
			} else {
				logger.Warn("malformed hint value", "key", key)
			}
		case "sound-name":
			if s, ok := v.Value().(string); ok {
				out = append(out, notification.Hint{Kind: notification.HintSoundName, String: s})
			} else {
				logger.Warn("malformed hint value", "key", key)
			}
		case "suppress-sound":
			if b, ok := v.Value().(bool); ok {
				out = append(out, notification.Hint{Kind: notification.HintSuppressSound, Bool: b})
			} else {
				logger.Warn("malformed hint value", "key", key)
			}
		case "transient":
			if b, ok := v.Value().(bool); ok {
				out = append(out, notification.Hint{Kind: notification.HintTransient, Bool: b})
			} else {
				logger.Warn("malformed hint value", "key", key)
			}
		case "urgency":
			if u, ok := asUint32(v); ok {
				out = append(out, notification.Hint{Kind: notification.HintUrgency, Uint: u})
			} else {
				logger.Warn("malformed hint value", "key", key)
			}
		case "value":
			if i, ok := asInt32(v); ok {
				out = append(out, notification.Hint{Kind: notification.HintValue, Int: i})
			} else {
				logger.Warn("malformed hint value", "key", key)
			}
		case "x":
			if i, ok := asInt32(v); ok {
				out = append(out, notification.Hint{Kind: notification.HintX, Int: i})
			} else {
				logger.Warn("malformed hint value", "key", key)
			}
		case "y":
			if i, ok := asInt32(v); ok {
				out = append(out, notification.Hint{Kind: notification.HintY, Int: i})
			} else {
				logger.Warn("malformed hint value", "key", key)
			}
		case "image-data":
			if !showImages(cfg) {
				logger.Debug("ignoring image-data hint, images disabled")
				continue
			}
			if img, ok := decodeRawImage(v, maxImageDim(cfg)); ok {
				h := notification.Hint{Kind: notification.HintImage, Image: img}
				imageData = &h
			} else {
				logger.Warn("malformed hint value", "key", key)
			}
		case "image-path":
			if !showImages(cfg) {
				logger.Debug("ignoring image-path hint, images disabled")
				continue
			}
			if s, ok := v.Value().(string); ok {
				h := notification.Hint{Kind: notification.HintImage, Image: resolveImagePath(s, cfg)}
				imagePath = &h
			} else {
				logger.Warn("malformed hint value", "key", key)
			}
		case "icon_data":
			if !showImages(cfg) {
				logger.Debug("ignoring icon_data hint, images disabled")
				continue
			}
			if img, ok := decodeRawImage(v, maxImageDim(cfg)); ok {
				h := notification.Hint{Kind: notification.HintImage, Image: img}
				iconData = &h
			} else {
				logger.Warn("malformed hint value", "key", key)
			}
		default:
			logger.Debug("ignoring unknown hint", "key", key)
		}
	}

	switch {
	case imageData != nil:
		out = append(out, *imageData)
	case imagePath != nil:
		out = append(out, *imagePath)
	case iconData != nil:
		out = append(out, *iconData)
	}

	return out
}

// resolveImagePath parses an image-path hint as a file:// URL, then as an
// absolute filesystem path; anything else is kept as a symbolic icon name.
// A local file path is eagerly decoded when animated so the animation-frame
// and -duration caps in imageproc apply before the data ever reaches
// history or an applet; a static file is left as a path reference for the
// eventual renderer to decode itself.
func resolveImagePath(s string, cfg *config.ContentConfig) notification.ImageRef {
	if u, err := url.Parse(s); err == nil && u.Scheme == "file" {
		return imageRefForFile(u.Path, cfg)
	}
	if strings.HasPrefix(s, "/") {
		return imageRefForFile(s, cfg)
	}
	return notification.ImageRef{Kind: notification.ImageKindName, Name: s}
}

func imageRefForFile(path string, cfg *config.ContentConfig) notification.ImageRef {
	if cfg == nil || cfg.EnableAnimations {
		if data, err := os.ReadFile(path); err == nil && imageproc.MightBeAnimated(data) {
			if anim := imageproc.AnimatedFrom(data); anim != nil {
				first := anim.Frames[0]
				maxDim := maxImageDim(cfg)
				resized := imageproc.ResizeIfNeeded(imageproc.ProcessedImage{
					RGBA: first.RGBA, Width: first.Width, Height: first.Height,
				}, maxDim, maxDim)
				return notification.ImageRef{
					Kind:   notification.ImageKindRaw,
					Width:  resized.Width,
					Height: resized.Height,
					RGBA:   resized.RGBA,
				}
			}
		}
	}
	return notification.ImageRef{Kind: notification.ImageKindFile, Path: path}
}

// decodeRawImage decodes the (iiibiiay) image-data/icon_data struct: width,
// height, rowstride, has_alpha, bits_per_sample, channels, data. The buffer
// is normalized through imageproc.FromRaw, which strips rowstride padding,
// inflates a missing alpha channel, and downscales to maxDim.
func decodeRawImage(v dbus.Variant, maxDim int) (notification.ImageRef, bool) {
	fields, ok := v.Value().([]interface{})
	if !ok || len(fields) != 7 {
		return notification.ImageRef{}, false
	}

	width, ok := asInt(fields[0])
	if !ok {
		return notification.ImageRef{}, false
	}
	height, ok := asInt(fields[1])
	if !ok {
		return notification.ImageRef{}, false
	}
	rowstride, ok := asInt(fields[2])
	if !ok {
		return notification.ImageRef{}, false
	}
	hasAlpha, ok := fields[3].(bool)
	if !ok {
		return notification.ImageRef{}, false
	}
	data, ok := fields[6].([]byte)
	if !ok {
		return notification.ImageRef{}, false
	}

	processed, err := imageproc.FromRaw(data, width, height, rowstride, hasAlpha, maxDim, maxDim)
	if err != nil {
		return notification.ImageRef{}, false
	}

	return notification.ImageRef{
		Kind:   notification.ImageKindRaw,
		Width:  processed.Width,
		Height: processed.Height,
		RGBA:   processed.RGBA,
	}, true
}

// showImages reports whether image hints should be processed at all; a nil
// cfg (not-yet-wired callers, tests) defaults to showing them.
func showImages(cfg *config.ContentConfig) bool {
	return cfg == nil || cfg.ShowImages
}

// maxImageDim returns the configured downscale cap, falling back to
// imageproc's own default when cfg is nil or leaves it unset.
func maxImageDim(cfg *config.ContentConfig) int {
	if cfg == nil || cfg.MaxImageSize <= 0 {
		return imageproc.DefaultMaxDim
	}
	return cfg.MaxImageSize
}

func asInt(v interface{}) (int, bool) {
	switch n := v.(type) {
	case int32:
		return int(n), true
	case uint32:
		return int(n), true
	case int:
		return n, true
	}
	return 0, false
}

func asInt32(v dbus.Variant) (int32, bool) {
	switch n := v.Value().(type) {
	case int32:
		return n, true
	case uint32:
		return int32(n), true
	case byte:
		return int32(n), true
	case int:
		return int32(n), true
	}
	return 0, false
}

func asUint32(v dbus.Variant) (uint32, bool) {
	switch n := v.Value().(type) {
	case byte:
		return uint32(n), true
	case uint32:
		return n, true
	case int32:
		return uint32(n), true
	case int:
		return uint32(n), true
	}
	return 0, false
}
