// Package notification defines the core notification data model: urgency,
// hints, actions, images and the close-reason wire values shared by the
// ingress D-Bus interface, the history store and the applet IPC.
package notification

import "time"

// Urgency levels matching the freedesktop.org notification spec.
const (
	UrgencyLow      = 0
	UrgencyNormal   = 1
	UrgencyCritical = 2
)

// UrgencyNames maps urgency levels to human-readable names.
var UrgencyNames = map[int]string{
	UrgencyLow:      "low",
	UrgencyNormal:   "normal",
	UrgencyCritical: "critical",
}

// ClampUrgency normalizes an out-of-range urgency byte to UrgencyNormal,
// matching the freedesktop "unknown urgency defaults to normal" rule.
func ClampUrgency(v int) int {
	switch v {
	case UrgencyLow, UrgencyNormal, UrgencyCritical:
		return v
	default:
		return UrgencyNormal
	}
}

// CloseReason is the wire-visible reason code carried by NotificationClosed.
type CloseReason uint32

const (
	CloseReasonExpired           CloseReason = 1
	CloseReasonDismissed         CloseReason = 2
	CloseReasonCloseNotification CloseReason = 3
	CloseReasonUndefined         CloseReason = 4
)

func (r CloseReason) String() string {
	switch r {
	case CloseReasonExpired:
		return "expired"
	case CloseReasonDismissed:
		return "dismissed"
	case CloseReasonCloseNotification:
		return "close_notification"
	default:
		return "undefined"
	}
}

// ActionID is a tagged variant: either the well-known "default" action or a
// custom application-defined action key.
type ActionID struct {
	Custom string // empty means Default
}

// IsDefault reports whether this is the default (activation) action.
func (a ActionID) IsDefault() bool { return a.Custom == "" }

// Key returns the D-Bus wire key for this action.
func (a ActionID) Key() string {
	if a.Custom == "" {
		return "default"
	}
	return a.Custom
}

// Action pairs an action id with its display label.
type Action struct {
	ID    ActionID
	Label string
}

// ImageKind tags the variant carried by ImageRef.
type ImageKind int

const (
	ImageKindName ImageKind = iota
	ImageKindFile
	ImageKindRaw
)

// ImageRef is the tagged union of image hint sources. Raw pixel bytes are
// shared (not copied) across subscribers via the slice header; callers must
// treat RGBA as immutable once published.
type ImageRef struct {
	Kind   ImageKind
	Name   string // ImageKindName
	Path   string // ImageKindFile
	Width  int    // ImageKindRaw
	Height int    // ImageKindRaw
	RGBA   []byte // ImageKindRaw, shared/read-only after construction
}

// HintKind enumerates the known hint variants.
type HintKind int

const (
	HintActionIcons HintKind = iota
	HintCategory
	HintDesktopEntry
	HintImage
	HintIconData
	HintResident
	HintSenderPid
	HintSoundFile
	HintSoundName
	HintSuppressSound
	HintTransient
	HintUrgency
	HintValue
	HintX
	HintY
)

// Hint is a single tagged hint value. Only the field matching Kind is valid.
type Hint struct {
	Kind     HintKind
	Bool     bool
	String   string
	Int      int32
	Uint     uint32
	Bytes    []byte
	Image    ImageRef
}

// Notification is the normalized, in-process representation of a single
// notification, built from a D-Bus Notify call (or an internal daemon
// event). Identity is the 32-bit id allocated by the daemon. Equality is
// structural, which is exploited by dedup-oriented tests only.
type Notification struct {
	ID              uint32
	HistoryID       string // ULID, stable across a replaces_id chain; set on enqueue
	AppName         string
	AppIcon         string
	Summary         string
	Body            string
	Actions         []Action
	Hints           []Hint
	ExpireTimeoutMs int32 // -1 = server default, 0 = sticky
	ReceivedAt      time.Time
	ReplacesID      uint32
}

// Urgency extracts the urgency hint, defaulting to UrgencyNormal.
func (n *Notification) Urgency() int {
	for _, h := range n.Hints {
		if h.Kind == HintUrgency {
			return ClampUrgency(int(h.Uint))
		}
	}
	return UrgencyNormal
}

// Transient reports whether the sender flagged this notification as
// not worth persisting (Transient).
func (n *Notification) Transient() bool {
	return n.boolHint(HintTransient)
}

// Resident reports whether the notification should survive action
// invocation without being auto-removed.
func (n *Notification) Resident() bool {
	return n.boolHint(HintResident)
}

// SuppressSound reports whether sound playback should be skipped.
func (n *Notification) SuppressSound() bool {
	return n.boolHint(HintSuppressSound)
}

func (n *Notification) boolHint(kind HintKind) bool {
	for _, h := range n.Hints {
		if h.Kind == kind {
			return h.Bool
		}
	}
	return false
}

// StringHint returns the string value for the given hint kind, if present.
func (n *Notification) StringHint(kind HintKind) (string, bool) {
	for _, h := range n.Hints {
		if h.Kind == kind {
			return h.String, true
		}
	}
	return "", false
}

// Category returns the category hint, if present.
func (n *Notification) Category() string {
	s, _ := n.StringHint(HintCategory)
	return s
}

// DesktopEntry returns the desktop-entry hint, if present.
func (n *Notification) DesktopEntry() string {
	s, _ := n.StringHint(HintDesktopEntry)
	return s
}

// Image returns the resolved image hint following the priority
// image-data > image-path > icon_data, applied by the caller when hints
// are parsed off the wire (see dbusface).
func (n *Notification) Image() (ImageRef, bool) {
	for _, h := range n.Hints {
		if h.Kind == HintImage {
			return h.Image, true
		}
	}
	return ImageRef{}, false
}

// GroupKey derives the key used for per-app capping and stack-duplicate
// grouping: the application name. Kept as a method so the store and
// future grouping strategies share one definition.
func (n *Notification) GroupKey() string {
	return n.AppName
}

// EstimatedSize approximates the in-memory footprint of this notification
// for the hidden-history memory budget.
// It sums string lengths, action text, hint payloads (image bytes counted
// for Raw images), plus a fixed struct-overhead constant.
func (n *Notification) EstimatedSize() int {
	const structOverhead = 200
	size := structOverhead
	size += len(n.AppName) + len(n.AppIcon) + len(n.Summary) + len(n.Body)
	for _, a := range n.Actions {
		size += len(a.ID.Key()) + len(a.Label)
	}
	for _, h := range n.Hints {
		size += len(h.String) + len(h.Bytes)
		if h.Kind == HintImage && h.Image.Kind == ImageKindRaw {
			size += len(h.Image.RGBA)
		}
	}
	return size
}

// Less implements the display ordering from urgency desc, then
// received-at asc, which is what the history store's binary-search insert
// relies on.
func Less(a, b *Notification) bool {
	if a.Urgency() != b.Urgency() {
		return a.Urgency() > b.Urgency()
	}
	return a.ReceivedAt.Before(b.ReceivedAt)
}
