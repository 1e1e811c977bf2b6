package ws

import (
	"errors"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"x-scene/backend/internal/control"
	"x-scene/backend/internal/scene"
	"x-scene/backend/internal/world"
)

func TestGetCurrentServerTime(t *testing.T) {
	now := time.Now().UnixNano() / int64(time.Millisecond)
	serverTime := GetCurrentServerTime()
	if serverTime < now-100 || serverTime > now+100 {
		t.Errorf("GetCurrentServerTime() returned time too far from current time. Got %d, expected around %d", serverTime, now)
	}
}

func TestParseKeyMessage(t *testing.T) {
	msg, err := ParseMessage([]byte(`{"type":"key","event":"down","key":"W","code":"KeyW","shift":true}`))
	require.NoError(t, err)

	ev, ok := ToEvent(msg)
	require.True(t, ok)
	assert.Equal(t, control.EventKey, ev.Type)
	assert.Equal(t, control.KeyEvent{Down: true, Key: "W", Code: "KeyW", Shift: true}, ev.Key)
}

func TestParseWheelAndPointer(t *testing.T) {
	msg, err := ParseMessage([]byte(`{"type":"wheel","delta":-120}`))
	require.NoError(t, err)
	ev, ok := ToEvent(msg)
	require.True(t, ok)
	assert.Equal(t, control.Event{Type: control.EventWheel, Wheel: -120}, ev)

	msg, err = ParseMessage([]byte(`{"type":"pointer","dx":3,"dy":-2,"buttons":1}`))
	require.NoError(t, err)
	ev, ok = ToEvent(msg)
	require.True(t, ok)
	assert.Equal(t, control.Event{Type: control.EventPointer, DX: 3, DY: -2, Buttons: 1}, ev)
}

func TestParsePingIsNotAnInputEvent(t *testing.T) {
	msg, err := ParseMessage([]byte(`{"type":"ping","client_time":42}`))
	require.NoError(t, err)
	ping, ok := msg.(*PingMessage)
	require.True(t, ok)
	assert.Equal(t, int64(42), ping.ClientTime)

	_, ok = ToEvent(msg)
	assert.False(t, ok)
}

func TestParseRejectsBadMessages(t *testing.T) {
	_, err := ParseMessage([]byte(`{"type":"teleport"}`))
	assert.True(t, errors.Is(err, ErrUnknownMessage))

	_, err = ParseMessage([]byte(`{"type":"key","event":"hold","key":"w"}`))
	assert.Error(t, err)

	_, err = ParseMessage([]byte(`{"type":"key","event":"down"}`))
	assert.Error(t, err)

	_, err = ParseMessage([]byte(`not json`))
	assert.Error(t, err)
}

func TestStateOf(t *testing.T) {
	parent := world.NewEntity(&scene.Node{ID: "root", Kind: scene.KindMesh})
	parent.Local.Position = mgl64.Vec3{1, 0, 0}
	child := world.NewEntity(&scene.Node{ID: "child", Kind: scene.KindMesh})
	child.Local.Position = mgl64.Vec3{0, 2, 0}
	child.Local.Rotation = mgl64.Vec3{0, 0.5, 0}
	child.SetParent(parent)

	st := StateOf(child)
	assert.Equal(t, "child", st.ID)
	assert.Equal(t, "mesh", st.Kind)
	assert.InDelta(t, 1.0, st.Position[0], 1e-9)
	assert.InDelta(t, 2.0, st.Position[1], 1e-9)
	assert.Equal(t, 0.5, st.Rotation[1])
}
