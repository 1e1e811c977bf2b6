package control

import (
	"sort"
	"strings"
	"sync"
	"unicode"

	"x-scene/backend/internal/scene"
)

// Modifiers состояние клавиш-модификаторов
type Modifiers struct {
	Ctrl  bool
	Shift bool
	Alt   bool
	Meta  bool
}

// Any нажат хотя бы один модификатор
func (m Modifiers) Any() bool {
	return m.Ctrl || m.Shift || m.Alt || m.Meta
}

// Prefix префикс аккорда в фиксированном порядке ctrl+shift+alt+meta+
func (m Modifiers) Prefix() string {
	var b strings.Builder
	if m.Ctrl {
		b.WriteString("ctrl+")
	}
	if m.Shift {
		b.WriteString("shift+")
	}
	if m.Alt {
		b.WriteString("alt+")
	}
	if m.Meta {
		b.WriteString("meta+")
	}
	return b.String()
}

func modifiersOf(k scene.KeyBinding) Modifiers {
	return Modifiers{Ctrl: k.Ctrl, Shift: k.Shift, Alt: k.Alt, Meta: k.Meta}
}

// KeyEvent нажатие или отпускание клавиши.
// Key - символ ("w", " "), Code - физический код ("KeyW", "Space").
type KeyEvent struct {
	Down  bool
	Key   string
	Code  string
	Ctrl  bool
	Shift bool
	Alt   bool
	Meta  bool
}

func (ev KeyEvent) modifiers() Modifiers {
	return Modifiers{Ctrl: ev.Ctrl, Shift: ev.Shift, Alt: ev.Alt, Meta: ev.Meta}
}

var modifierKeys = map[string]bool{
	"control": true, "shift": true, "alt": true, "meta": true,
	"controlleft": true, "controlright": true, "shiftleft": true, "shiftright": true,
	"altleft": true, "altright": true, "metaleft": true, "metaright": true, "os": true,
}

// normalizeKey одиночные символы приводятся к нижнему регистру, остальное как есть
func normalizeKey(k string) string {
	if len([]rune(k)) == 1 {
		return strings.ToLower(k)
	}
	return k
}

// Chord строка аккорда: модификаторы плюс клавиша
func Chord(m Modifiers, key string) string {
	return m.Prefix() + normalizeKey(key)
}

// Spellings варианты написания клавиши: символ и код ("w" и "KeyW", "1" и "Digit1")
func Spellings(key string) []string {
	key = normalizeKey(key)
	r := []rune(key)
	switch {
	case len(r) == 1 && unicode.IsLetter(r[0]):
		return []string{key, "Key" + strings.ToUpper(key)}
	case len(r) == 1 && unicode.IsDigit(r[0]):
		return []string{key, "Digit" + key}
	case key == " ":
		return []string{key, "Space"}
	case len(r) == 4 && strings.HasPrefix(key, "Key") && unicode.IsLetter(r[3]):
		return []string{key, strings.ToLower(key[3:])}
	case len(r) == 6 && strings.HasPrefix(key, "Digit") && unicode.IsDigit(r[5]):
		return []string{key, key[5:]}
	case key == "Space":
		return []string{key, " "}
	}
	return []string{key}
}

// KeyState удерживаемые клавиши, аккорды и модификаторы
type KeyState struct {
	keys   map[string]bool
	chords map[string]bool
	mods   Modifiers
	mu     sync.RWMutex
}

func NewKeyState() *KeyState {
	return &KeyState{
		keys:   make(map[string]bool),
		chords: make(map[string]bool),
	}
}

// Apply обновляет состояние по событию. Модификаторы берутся из флагов события.
func (s *KeyState) Apply(ev KeyEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.mods = ev.modifiers()
	for _, k := range []string{ev.Key, ev.Code} {
		if k == "" || modifierKeys[strings.ToLower(k)] {
			continue
		}
		if ev.Down {
			s.keys[normalizeKey(k)] = true
		} else {
			delete(s.keys, normalizeKey(k))
		}
	}
	s.rebuild()
}

// rebuild каждая удерживаемая клавиша дает голый аккорд и аккорд с текущими модификаторами
func (s *KeyState) rebuild() {
	s.chords = make(map[string]bool, 2*len(s.keys))
	for k := range s.keys {
		s.chords[k] = true
		if s.mods.Any() {
			s.chords[Chord(s.mods, k)] = true
		}
	}
}

// Reset отпускает все клавиши (потеря фокуса, отключение клиента)
func (s *KeyState) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.keys = make(map[string]bool)
	s.chords = make(map[string]bool)
	s.mods = Modifiers{}
}

// Matches привязка выполнена. Привязка только к модификаторам требует точного
// совпадения флагов; привязка с клавишей ищет аккорд в обоих написаниях.
func (s *KeyState) Matches(b scene.KeyBinding) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()

	want := modifiersOf(b)
	if b.Key == "" {
		return want.Any() && s.mods == want
	}
	for _, k := range Spellings(b.Key) {
		if s.chords[Chord(want, k)] {
			return true
		}
	}
	return false
}

// Held клавиша удерживается в любом написании
func (s *KeyState) Held(key string) bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, k := range Spellings(key) {
		if s.keys[k] {
			return true
		}
	}
	return false
}

// Modifiers текущие модификаторы
func (s *KeyState) Modifiers() Modifiers {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.mods
}

// Chords удерживаемые аккорды, отсортированные
func (s *KeyState) Chords() []string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]string, 0, len(s.chords))
	for c := range s.chords {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}
