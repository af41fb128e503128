package dbusface

import (
	"testing"

	"github.com/godbus/dbus/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jmylchreest/notifd/internal/notification"
)

func TestParseActionsPairsIDsWithLabels(t *testing.T) {
	actions := ParseActions([]string{"default", "Open", "reply", "Reply"})
	require.Len(t, actions, 2)
	assert.True(t, actions[0].ID.IsDefault())
	assert.Equal(t, "Open", actions[0].Label)
	assert.Equal(t, "reply", actions[1].ID.Custom)
	assert.Equal(t, "Reply", actions[1].Label)
}

func TestParseActionsIgnoresTrailingUnpairedEntry(t *testing.T) {
	actions := ParseActions([]string{"default", "Open", "orphan"})
	assert.Len(t, actions, 1)
}

func TestParseHintsKnownScalarKeys(t *testing.T) {
	hints := map[string]dbus.Variant{
		"urgency":        dbus.MakeVariant(byte(2)),
		"category":       dbus.MakeVariant("email.arrived"),
		"resident":       dbus.MakeVariant(true),
		"transient":      dbus.MakeVariant(true),
		"suppress-sound": dbus.MakeVariant(false),
		"desktop-entry":  dbus.MakeVariant("org.example.App"),
	}

	out := ParseHints(hints, nil, nil)
	n := &notification.Notification{Hints: out}

	assert.Equal(t, notification.UrgencyCritical, n.Urgency())
	assert.Equal(t, "email.arrived", n.Category())
	assert.True(t, n.Resident())
	assert.True(t, n.Transient())
	assert.False(t, n.SuppressSound())
	assert.Equal(t, "org.example.App", n.DesktopEntry())
}

func TestParseHintsMalformedValueIsIgnoredNotFatal(t *testing.T) {
	hints := map[string]dbus.Variant{
		"urgency": dbus.MakeVariant("not-a-number"),
		"resident": dbus.MakeVariant("not-a-bool"),
	}
	out := ParseHints(hints, nil, nil)
	assert.Empty(t, out)
}

func TestParseHintsUnknownKeyIgnored(t *testing.T) {
	hints := map[string]dbus.Variant{
		"x-vendor-custom": dbus.MakeVariant("whatever"),
	}
	out := ParseHints(hints, nil, nil)
	assert.Empty(t, out)
}

func TestParseHintsImagePriorityDataOverPathOverIconData(t *testing.T) {
	// 2x2 RGBA, rowstride 8 (no padding): 16 bytes.
	pixels := make([]byte, 16)
	for i := range pixels {
		pixels[i] = byte(i)
	}
	rawImage := []interface{}{int32(2), int32(2), int32(8), true, int32(8), int32(4), pixels}

	hints := map[string]dbus.Variant{
		"image-data": dbus.MakeVariant(rawImage),
		"image-path": dbus.MakeVariant("/tmp/icon.png"),
		"icon_data":  dbus.MakeVariant(rawImage),
	}
	out := ParseHints(hints, nil, nil)
	n := &notification.Notification{Hints: out}

	img, ok := n.Image()
	require.True(t, ok)
	assert.Equal(t, notification.ImageKindRaw, img.Kind)
}

func TestParseHintsImagePathFallsBackWhenNoImageData(t *testing.T) {
	hints := map[string]dbus.Variant{
		"image-path": dbus.MakeVariant("file:///tmp/icon.png"),
	}
	out := ParseHints(hints, nil, nil)
	n := &notification.Notification{Hints: out}

	img, ok := n.Image()
	require.True(t, ok)
	assert.Equal(t, notification.ImageKindFile, img.Kind)
	assert.Equal(t, "/tmp/icon.png", img.Path)
}

func TestParseHintsImagePathSymbolicName(t *testing.T) {
	hints := map[string]dbus.Variant{
		"image-path": dbus.MakeVariant("dialog-information"),
	}
	out := ParseHints(hints, nil, nil)
	n := &notification.Notification{Hints: out}

	img, ok := n.Image()
	require.True(t, ok)
	assert.Equal(t, notification.ImageKindName, img.Kind)
	assert.Equal(t, "dialog-information", img.Name)
}
