package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pelletier/go-toml/v2"
)

// EnvPrefix префикс переменных окружения, переопределяющих файл
const EnvPrefix = "XSCENE_"

// ServerConfig websocket и метрики
type ServerConfig struct {
	Addr           string `toml:"addr"`
	MetricsPath    string `toml:"metrics_path"`
	StreamInterval int    `toml:"stream_interval_ms"`
}

// StreamPeriod период рассылки состояния сущностей
func (s ServerConfig) StreamPeriod() time.Duration {
	if s.StreamInterval <= 0 {
		return 50 * time.Millisecond
	}
	return time.Duration(s.StreamInterval) * time.Millisecond
}

// RuntimeConfig источники сцены и частота тиков
type RuntimeConfig struct {
	TPS           int    `toml:"tps"`
	Scene         string `toml:"scene"`
	LogicManifest string `toml:"logic_manifest"`
	AssetsDir     string `toml:"assets_dir"`
	UIFile        string `toml:"ui_file"`
	Watch         bool   `toml:"watch"`
	LoadParallel  int    `toml:"load_parallel"`
}

// PhysicsConfig глобальные настройки физики
type PhysicsConfig struct {
	Enabled        bool    `toml:"enabled"`
	GravityX       float64 `toml:"gravity_x"`
	GravityY       float64 `toml:"gravity_y"`
	GravityZ       float64 `toml:"gravity_z"`
	LinearDamping  float64 `toml:"linear_damping"`
	AngularDamping float64 `toml:"angular_damping"`
	Friction       float64 `toml:"friction"`
}

// ControlConfig настройки управления
type ControlConfig struct {
	DampingFactor   float64 `toml:"damping_factor"`
	BoostMultiplier float64 `toml:"boost_multiplier"`
	TurnSpeed       float64 `toml:"turn_speed"`
	LandingEpsilon  float64 `toml:"landing_epsilon"`
}

// CameraConfig настройки камеры
type CameraConfig struct {
	CollisionEase float64 `toml:"collision_ease"`
	MinRadius     float64 `toml:"min_radius"`
	ZoomStep      float64 `toml:"zoom_step"`
}

// TracingConfig OpenTelemetry
type TracingConfig struct {
	Enabled  bool   `toml:"enabled"`
	Exporter string `toml:"exporter"`
}

// ViewportConfig размер области вывода для проекции
type ViewportConfig struct {
	Width  int `toml:"width"`
	Height int `toml:"height"`
}

// Config объединяет все конфигурации
type Config struct {
	Server   ServerConfig   `toml:"server"`
	Runtime  RuntimeConfig  `toml:"runtime"`
	Physics  PhysicsConfig  `toml:"physics"`
	Control  ControlConfig  `toml:"control"`
	Camera   CameraConfig   `toml:"camera"`
	Tracing  TracingConfig  `toml:"tracing"`
	Viewport ViewportConfig `toml:"viewport"`
}

var (
	current Config
	mu      sync.RWMutex
)

func init() {
	current = Default()
}

// Default конфигурация по умолчанию
func Default() Config {
	return Config{
		Server: ServerConfig{
			Addr:           ":8080",
			MetricsPath:    "/metrics",
			StreamInterval: 50,
		},
		Runtime: RuntimeConfig{
			TPS:          60,
			Scene:        "scene.json",
			LoadParallel: 4,
		},
		Physics: PhysicsConfig{
			Enabled:        true,
			GravityY:       -9.81,
			LinearDamping:  0.0,
			AngularDamping: 0.1,
			Friction:       0.5,
		},
		Control: ControlConfig{
			DampingFactor:   0.85,
			BoostMultiplier: 2.0,
			TurnSpeed:       3.141592653589793,
			LandingEpsilon:  0.05,
		},
		Camera: CameraConfig{
			CollisionEase: 0.3,
			MinRadius:     0.1,
			ZoomStep:      0.01,
		},
		Tracing: TracingConfig{
			Enabled:  false,
			Exporter: "stdout",
		},
		Viewport: ViewportConfig{
			Width:  1280,
			Height: 720,
		},
	}
}

// Load читает TOML поверх значений по умолчанию. Отсутствующий файл - не ошибка.
func Load(path string) (Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return cfg, nil
	}
	if err != nil {
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return cfg, fmt.Errorf("parse config %s: %w", path, err)
	}
	return cfg, nil
}

// ApplyEnv переопределяет поля из окружения (XSCENE_SCENE, XSCENE_ADDR, ...)
func (c *Config) ApplyEnv() error {
	lookup := func(name string) (string, bool) {
		return os.LookupEnv(EnvPrefix + name)
	}

	if v, ok := lookup("ADDR"); ok {
		c.Server.Addr = v
	}
	if v, ok := lookup("SCENE"); ok {
		c.Runtime.Scene = v
	}
	if v, ok := lookup("LOGIC_MANIFEST"); ok {
		c.Runtime.LogicManifest = v
	}
	if v, ok := lookup("ASSETS_DIR"); ok {
		c.Runtime.AssetsDir = v
	}
	if v, ok := lookup("UI_FILE"); ok {
		c.Runtime.UIFile = v
	}
	if v, ok := lookup("TPS"); ok {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%sTPS: %w", EnvPrefix, err)
		}
		c.Runtime.TPS = n
	}
	if v, ok := lookup("PHYSICS"); ok {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("%sPHYSICS: %w", EnvPrefix, err)
		}
		c.Physics.Enabled = b
	}
	if v, ok := lookup("TRACING"); ok {
		c.Tracing.Enabled = v != "" && !strings.EqualFold(v, "false") && v != "0"
		if c.Tracing.Enabled && !strings.EqualFold(v, "true") && v != "1" {
			c.Tracing.Exporter = v
		}
	}
	return nil
}

// Get возвращает текущую конфигурацию
func Get() Config {
	mu.RLock()
	defer mu.RUnlock()
	return current
}

// Set устанавливает новую конфигурацию
func Set(cfg Config) {
	mu.Lock()
	defer mu.Unlock()
	current = cfg
}

// GetPhysics возвращает только конфигурацию физики
func GetPhysics() PhysicsConfig {
	mu.RLock()
	defer mu.RUnlock()
	return current.Physics
}

// GetControl возвращает только конфигурацию управления
func GetControl() ControlConfig {
	mu.RLock()
	defer mu.RUnlock()
	return current.Control
}

// GetCamera возвращает только конфигурацию камеры
func GetCamera() CameraConfig {
	mu.RLock()
	defer mu.RUnlock()
	return current.Camera
}
