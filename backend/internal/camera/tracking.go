package camera

import (
	"log"

	"github.com/go-gl/mathgl/mgl64"

	"x-scene/backend/internal/scene"
	"x-scene/backend/internal/world"
)

type trackedCamera struct {
	camera *world.Entity
	target *world.Entity
	offset mgl64.Vec3
}

// TrackingManager каждый кадр наводит камеры с targetMode=object на
// мировую позицию цели плюс смещение
type TrackingManager struct {
	manager *world.Manager
	tracked []trackedCamera
	logger  *log.Logger
}

func NewTrackingManager(manager *world.Manager, logger *log.Logger) *TrackingManager {
	if logger == nil {
		logger = log.Default()
	}
	return &TrackingManager{manager: manager, logger: logger}
}

// Initialize строит список регистраций один раз
func (t *TrackingManager) Initialize() int {
	t.tracked = t.tracked[:0]
	for _, e := range t.manager.GetAllEntities() {
		if e.Camera == nil || e.Node == nil || e.Node.Camera == nil {
			continue
		}
		d := e.Node.Camera
		if d.TargetMode != scene.TargetObject || d.TargetObject == "" {
			continue
		}

		target, ok := t.manager.GetEntity(d.TargetObject)
		if !ok {
			target, ok = t.manager.FindByName(d.TargetObject)
		}
		if !ok {
			t.logger.Printf("[CameraTracking] camera %s: target %q not found", e.ID, d.TargetObject)
			continue
		}

		offset := mgl64.Vec3{}
		if d.TargetOffset != nil {
			offset = d.TargetOffset.Mgl()
		}
		t.tracked = append(t.tracked, trackedCamera{camera: e, target: target, offset: offset})
	}

	t.logger.Printf("[CameraTracking] tracking %d cameras", len(t.tracked))
	return len(t.tracked)
}

// Update вносит цели в конвейер кадра
func (t *TrackingManager) Update(p *Pipeline) {
	for _, tc := range t.tracked {
		p.SetTarget(tc.camera, tc.target.WorldPosition().Add(tc.offset))
	}
}

// Count число отслеживающих камер
func (t *TrackingManager) Count() int {
	return len(t.tracked)
}
