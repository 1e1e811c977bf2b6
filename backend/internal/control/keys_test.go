package control

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"x-scene/backend/internal/scene"
)

func down(key, code string) KeyEvent {
	return KeyEvent{Down: true, Key: key, Code: code}
}

func up(key, code string) KeyEvent {
	return KeyEvent{Key: key, Code: code}
}

func TestSpellings(t *testing.T) {
	tests := []struct {
		key  string
		want []string
	}{
		{"w", []string{"w", "KeyW"}},
		{"W", []string{"w", "KeyW"}},
		{"KeyW", []string{"KeyW", "w"}},
		{"1", []string{"1", "Digit1"}},
		{"Digit1", []string{"Digit1", "1"}},
		{" ", []string{" ", "Space"}},
		{"Space", []string{"Space", " "}},
		{"ArrowUp", []string{"ArrowUp"}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, Spellings(tt.key), tt.key)
	}
}

func TestChord(t *testing.T) {
	assert.Equal(t, "w", Chord(Modifiers{}, "W"))
	assert.Equal(t, "ctrl+shift+alt+meta+x", Chord(Modifiers{Ctrl: true, Shift: true, Alt: true, Meta: true}, "x"))
	assert.Equal(t, "shift+KeyW", Chord(Modifiers{Shift: true}, "KeyW"))
}

func TestBindingMatchesBothSpellings(t *testing.T) {
	s := NewKeyState()
	s.Apply(down("w", "KeyW"))

	assert.True(t, s.Matches(scene.KeyBinding{Key: "w"}))
	assert.True(t, s.Matches(scene.KeyBinding{Key: "KeyW"}))
	assert.True(t, s.Matches(scene.KeyBinding{Key: "W"}))
	assert.False(t, s.Matches(scene.KeyBinding{Key: "s"}))
	assert.True(t, s.Held("KeyW"))

	s.Apply(up("w", "KeyW"))
	assert.False(t, s.Matches(scene.KeyBinding{Key: "w"}))
	assert.Empty(t, s.Chords())
}

func TestCodeOnlyEventMatchesLiteralBinding(t *testing.T) {
	s := NewKeyState()
	s.Apply(down("", "Digit2"))
	assert.True(t, s.Matches(scene.KeyBinding{Key: "2"}))
}

func TestModifierChords(t *testing.T) {
	s := NewKeyState()
	s.Apply(KeyEvent{Down: true, Key: "Control", Code: "ControlLeft", Ctrl: true})
	s.Apply(KeyEvent{Down: true, Key: "j", Code: "KeyJ", Ctrl: true})

	assert.True(t, s.Matches(scene.KeyBinding{Key: "j", Ctrl: true}))
	assert.True(t, s.Matches(scene.KeyBinding{Key: "KeyJ", Ctrl: true}))
	assert.False(t, s.Matches(scene.KeyBinding{Key: "j", Shift: true}))
	assert.True(t, s.Matches(scene.KeyBinding{Key: "j"}), "plain binding ignores extra modifiers")
	assert.Equal(t, []string{"KeyJ", "ctrl+KeyJ", "ctrl+j", "j"}, s.Chords())

	// модификатор отпущен, клавиша еще удерживается
	s.Apply(KeyEvent{Key: "Control", Code: "ControlLeft"})
	assert.False(t, s.Matches(scene.KeyBinding{Key: "j", Ctrl: true}))
	assert.True(t, s.Matches(scene.KeyBinding{Key: "j"}))
}

func TestModifierOnlyBinding(t *testing.T) {
	s := NewKeyState()
	boost := scene.KeyBinding{Shift: true}

	assert.False(t, s.Matches(boost))
	s.Apply(KeyEvent{Down: true, Key: "Shift", Code: "ShiftLeft", Shift: true})
	assert.True(t, s.Matches(boost))
	assert.Empty(t, s.Chords(), "modifier keys are not chords")

	s.Apply(KeyEvent{Down: true, Key: "Alt", Code: "AltLeft", Shift: true, Alt: true})
	assert.False(t, s.Matches(boost), "modifier state must match exactly")

	assert.False(t, s.Matches(scene.KeyBinding{}), "empty binding never matches")
}

func TestReset(t *testing.T) {
	s := NewKeyState()
	s.Apply(KeyEvent{Down: true, Key: "a", Code: "KeyA", Shift: true})
	s.Reset()
	assert.False(t, s.Held("a"))
	assert.Equal(t, Modifiers{}, s.Modifiers())
}
