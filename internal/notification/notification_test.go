package notification

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestClampUrgency(t *testing.T) {
	assert.Equal(t, UrgencyLow, ClampUrgency(0))
	assert.Equal(t, UrgencyNormal, ClampUrgency(1))
	assert.Equal(t, UrgencyCritical, ClampUrgency(2))
	assert.Equal(t, UrgencyNormal, ClampUrgency(3))
	assert.Equal(t, UrgencyNormal, ClampUrgency(255))
}

func TestActionIDDefault(t *testing.T) {
	a := ActionID{}
	assert.True(t, a.IsDefault())
	assert.Equal(t, "default", a.Key())

	custom := ActionID{Custom: "reply"}
	assert.False(t, custom.IsDefault())
	assert.Equal(t, "reply", custom.Key())
}

func TestNotificationUrgencyHint(t *testing.T) {
	n := &Notification{}
	assert.Equal(t, UrgencyNormal, n.Urgency())

	n.Hints = []Hint{{Kind: HintUrgency, Uint: 2}}
	assert.Equal(t, UrgencyCritical, n.Urgency())

	n.Hints = []Hint{{Kind: HintUrgency, Uint: 9}}
	assert.Equal(t, UrgencyNormal, n.Urgency())
}

func TestNotificationBoolHints(t *testing.T) {
	n := &Notification{Hints: []Hint{
		{Kind: HintTransient, Bool: true},
		{Kind: HintResident, Bool: false},
	}}
	assert.True(t, n.Transient())
	assert.False(t, n.Resident())
	assert.False(t, n.SuppressSound())
}

func TestEstimatedSizeGrowsWithContent(t *testing.T) {
	small := &Notification{AppName: "a", Summary: "s", Body: "b"}
	big := &Notification{AppName: "a", Summary: "s", Body: "a much longer body of text goes here"}
	assert.Greater(t, big.EstimatedSize(), small.EstimatedSize())
}

func TestEstimatedSizeCountsRawImageBytes(t *testing.T) {
	n := &Notification{
		Hints: []Hint{{
			Kind: HintImage,
			Image: ImageRef{
				Kind: ImageKindRaw,
				RGBA: make([]byte, 4096),
			},
		}},
	}
	assert.GreaterOrEqual(t, n.EstimatedSize(), 4096+200)
}

func TestLessOrdersByUrgencyThenTime(t *testing.T) {
	now := time.Now()
	low := &Notification{ReceivedAt: now, Hints: []Hint{{Kind: HintUrgency, Uint: UrgencyLow}}}
	critical := &Notification{ReceivedAt: now.Add(time.Second), Hints: []Hint{{Kind: HintUrgency, Uint: UrgencyCritical}}}

	assert.True(t, Less(critical, low), "higher urgency sorts first even if received later")

	earlier := &Notification{ReceivedAt: now}
	later := &Notification{ReceivedAt: now.Add(time.Second)}
	assert.True(t, Less(earlier, later), "same urgency: earlier received_at sorts first")
}

func TestGroupKeyIsAppName(t *testing.T) {
	n := &Notification{AppName: "thunderbird"}
	assert.Equal(t, "thunderbird", n.GroupKey())
}
