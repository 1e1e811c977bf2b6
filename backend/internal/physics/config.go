package physics

import (
	"sync"

	"github.com/go-gl/mathgl/mgl64"

	"x-scene/backend/internal/config"
)

// SimulationConfig содержит настройки встроенной симуляции
type SimulationConfig struct {
	// Gravity - ускорение свободного падения
	Gravity mgl64.Vec3

	// LinearDamping - затухание линейного движения в секунду
	LinearDamping float64

	// AngularDamping - затухание углового движения в секунду
	AngularDamping float64

	// Friction - трение по умолчанию для тел без своего значения
	Friction float64

	// MaxStep - максимальный шаг интегрирования, длинные шаги режутся на части
	MaxStep float64

	// GroundProbe - насколько выше низа тела начинается луч поиска опоры
	GroundProbe float64
}

// GlobalSimulationConfig - глобальная конфигурация симуляции
var GlobalSimulationConfig *SimulationConfig
var configMutex sync.RWMutex

// DefaultSimulationConfig возвращает конфигурацию по умолчанию
func DefaultSimulationConfig() *SimulationConfig {
	return &SimulationConfig{
		Gravity:        mgl64.Vec3{0, -9.81, 0},
		LinearDamping:  0.0,
		AngularDamping: 0.1,
		Friction:       0.5,
		MaxStep:        1.0 / 60.0,
		GroundProbe:    0.5,
	}
}

// FromSettings строит конфигурацию симуляции из конфигурации приложения
func FromSettings(p config.PhysicsConfig) *SimulationConfig {
	cfg := DefaultSimulationConfig()
	cfg.Gravity = mgl64.Vec3{p.GravityX, p.GravityY, p.GravityZ}
	cfg.LinearDamping = p.LinearDamping
	cfg.AngularDamping = p.AngularDamping
	cfg.Friction = p.Friction
	return cfg
}

func init() {
	GlobalSimulationConfig = DefaultSimulationConfig()
}

// GetSimulationConfig возвращает текущую глобальную конфигурацию
func GetSimulationConfig() *SimulationConfig {
	configMutex.RLock()
	defer configMutex.RUnlock()
	cfg := *GlobalSimulationConfig
	return &cfg
}

// SetSimulationConfig устанавливает глобальную конфигурацию
func SetSimulationConfig(cfg *SimulationConfig) {
	configMutex.Lock()
	defer configMutex.Unlock()
	GlobalSimulationConfig = cfg
}
