package world

// AnimationGroup одна именованная анимация модели
type AnimationGroup struct {
	Name    string
	Playing bool
	Loop    bool
	Starts  int
}

// AnimationSet набор анимаций сущности. Смешивание - остановить текущую, запустить новую.
type AnimationSet struct {
	groups  map[string]*AnimationGroup
	order   []string
	current string
}

// NewAnimationSet создает набор с перечисленными группами
func NewAnimationSet(names ...string) *AnimationSet {
	s := &AnimationSet{groups: make(map[string]*AnimationGroup)}
	for _, n := range names {
		s.Add(n)
	}
	return s
}

// Add регистрирует группу, повторная регистрация игнорируется
func (s *AnimationSet) Add(name string) {
	if name == "" {
		return
	}
	if _, ok := s.groups[name]; ok {
		return
	}
	s.groups[name] = &AnimationGroup{Name: name, Loop: true}
	s.order = append(s.order, name)
}

// Has группа существует
func (s *AnimationSet) Has(name string) bool {
	_, ok := s.groups[name]
	return ok
}

// Names имена групп в порядке регистрации
func (s *AnimationSet) Names() []string {
	out := make([]string, len(s.order))
	copy(out, s.order)
	return out
}

// Group группа по имени
func (s *AnimationSet) Group(name string) (*AnimationGroup, bool) {
	g, ok := s.groups[name]
	return g, ok
}

// Current имя играющей группы
func (s *AnimationSet) Current() string {
	return s.current
}

// Play останавливает текущую группу и запускает name. Возвращает false, если группы нет.
func (s *AnimationSet) Play(name string) bool {
	g, ok := s.groups[name]
	if !ok {
		return false
	}
	if s.current == name && g.Playing {
		return true
	}
	s.StopAll()
	g.Playing = true
	g.Starts++
	s.current = name
	return true
}

// StopAll останавливает все группы
func (s *AnimationSet) StopAll() {
	for _, g := range s.groups {
		g.Playing = false
	}
	s.current = ""
}
