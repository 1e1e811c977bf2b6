package camera

import (
	"log"
	"math"
	"time"

	"github.com/go-gl/mathgl/mgl64"

	"x-scene/backend/internal/world"
)

// ShakePreset параметры тряски по умолчанию
type ShakePreset struct {
	Strength  float64
	Frequency float64
	Position  mgl64.Vec3
	Rotation  mgl64.Vec3
}

// ShakePresets встроенные пресеты. "none" отключает тряску.
var ShakePresets = map[string]ShakePreset{
	"subtle": {
		Strength: 0.3, Frequency: 1.5,
		Position: mgl64.Vec3{0.02, 0.02, 0.01},
		Rotation: mgl64.Vec3{0.002, 0.002, 0.001},
	},
	"handheld": {
		Strength: 0.6, Frequency: 2.0,
		Position: mgl64.Vec3{0.05, 0.04, 0.03},
		Rotation: mgl64.Vec3{0.006, 0.005, 0.003},
	},
	"vehicle": {
		Strength: 0.8, Frequency: 4.0,
		Position: mgl64.Vec3{0.04, 0.08, 0.04},
		Rotation: mgl64.Vec3{0.004, 0.002, 0.006},
	},
	"earthquake": {
		Strength: 1.0, Frequency: 6.0,
		Position: mgl64.Vec3{0.3, 0.2, 0.3},
		Rotation: mgl64.Vec3{0.02, 0.01, 0.02},
	},
}

// множители частоты и фазы по осям: некратные, чтобы оси не качались в такт
var (
	axisFrequency = mgl64.Vec3{1.0, 1.37, 0.83}
	axisPhase     = mgl64.Vec3{0, 1.7, 4.1}
	rotFrequency  = mgl64.Vec3{0.91, 1.23, 1.53}
	rotPhase      = mgl64.Vec3{2.3, 0.6, 3.3}
)

type shakingCamera struct {
	camera *world.Entity
	preset ShakePreset
	phase  float64
}

// ShakeManager процедурная тряска камер
type ShakeManager struct {
	manager *world.Manager
	cameras []*shakingCamera
	logger  *log.Logger
}

func NewShakeManager(manager *world.Manager, logger *log.Logger) *ShakeManager {
	if logger == nil {
		logger = log.Default()
	}
	return &ShakeManager{manager: manager, logger: logger}
}

// Initialize регистрирует камеры с пресетом, отличным от "none"
func (s *ShakeManager) Initialize() int {
	s.cameras = s.cameras[:0]
	for _, e := range s.manager.GetAllEntities() {
		if e.Camera == nil || e.Node == nil || e.Node.Camera == nil || e.Node.Camera.Shake == nil {
			continue
		}
		d := e.Node.Camera.Shake
		if d.Preset == "" || d.Preset == "none" {
			continue
		}

		preset, ok := ShakePresets[d.Preset]
		if !ok {
			s.logger.Printf("[CameraShake] camera %s: unknown preset %q, using handheld", e.ID, d.Preset)
			preset = ShakePresets["handheld"]
		}
		if d.Strength > 0 {
			preset.Strength = d.Strength
		}
		if d.Frequency > 0 {
			preset.Frequency = d.Frequency
		}
		if d.PositionAmplitude != nil {
			preset.Position = d.PositionAmplitude.Mgl()
		}
		if d.RotationAmplitude != nil {
			preset.Rotation = d.RotationAmplitude.Mgl()
		}
		s.cameras = append(s.cameras, &shakingCamera{camera: e, preset: preset})
	}
	return len(s.cameras)
}

// Offsets смещения для фазы: позиция и углы
func (p ShakePreset) Offsets(phase float64) (mgl64.Vec3, mgl64.Vec3) {
	var pos, rot mgl64.Vec3
	for i := 0; i < 3; i++ {
		pos[i] = p.Strength * p.Position[i] * math.Sin(2*math.Pi*phase*axisFrequency[i]+axisPhase[i])
		rot[i] = p.Strength * p.Rotation[i] * math.Sin(2*math.Pi*phase*rotFrequency[i]+rotPhase[i])
	}
	return pos, rot
}

// Update продвигает фазы и вносит смещения в конвейер
func (s *ShakeManager) Update(dt time.Duration, p *Pipeline) {
	for _, sc := range s.cameras {
		if !sc.camera.Enabled {
			continue
		}
		sc.phase += dt.Seconds() * sc.preset.Frequency
		pos, rot := sc.preset.Offsets(sc.phase)
		p.AddShake(sc.camera, pos, rot)
	}
}

// Count число трясущихся камер
func (s *ShakeManager) Count() int {
	return len(s.cameras)
}
