package spatialui

import (
	"errors"
	"log"

	"github.com/go-gl/mathgl/mgl64"

	"x-scene/backend/internal/config"
	"x-scene/backend/internal/world"
)

// Projector каждый кадр проецирует точки привязки в экранные координаты
type Projector struct {
	entities *world.Manager
	store    *Store
	viewport config.ViewportConfig
	anchors  []*world.Entity
	missing  map[string]bool
	logger   *log.Logger
}

func NewProjector(entities *world.Manager, store *Store, viewport config.ViewportConfig, logger *log.Logger) *Projector {
	if logger == nil {
		logger = log.Default()
	}
	if viewport.Width <= 0 || viewport.Height <= 0 {
		viewport = config.ViewportConfig{Width: 1280, Height: 720}
	}
	return &Projector{
		entities: entities,
		store:    store,
		viewport: viewport,
		missing:  make(map[string]bool),
		logger:   logger,
	}
}

// Initialize собирает сущности с привязкой UI
func (p *Projector) Initialize() int {
	p.anchors = p.entities.Filter(func(e *world.Entity) bool {
		return e.SpatialUI != nil && e.SpatialUI.ElementID != ""
	})
	p.logger.Printf("[SpatialUI] %d anchors", len(p.anchors))
	return len(p.anchors)
}

// Update проецирует все привязки через активную камеру
func (p *Projector) Update() {
	cam, ok := p.entities.ActiveCamera()
	if !ok {
		return
	}
	w, h := p.viewport.Width, p.viewport.Height
	view := cam.Camera.View(cam)
	proj := cam.Camera.Projection(float64(w) / float64(h))

	for _, e := range p.anchors {
		ui := e.SpatialUI
		pos := e.WorldPosition().Add(ui.Offset)
		placement, onScreen := Project(pos, view, proj, w, h)
		ui.ScreenX, ui.ScreenY, ui.Depth = placement.X, placement.Y, placement.Depth
		ui.OnScreen = onScreen && e.Enabled && e.Visible
		placement.Visible = ui.OnScreen

		if err := p.store.Place(ui.ElementID, placement); err != nil {
			if errors.Is(err, ErrUnknownElement) && !p.missing[ui.ElementID] {
				p.missing[ui.ElementID] = true
				p.logger.Printf("[SpatialUI] %s: element %q not found", e.ID, ui.ElementID)
			}
			continue
		}
		delete(p.missing, ui.ElementID)
	}
}

// Project переводит мировую точку в пиксели с началом в левом верхнем углу.
// Вторым значением возвращает, видна ли точка: перед камерой и внутри окна.
func Project(pos mgl64.Vec3, view, proj mgl64.Mat4, width, height int) (Placement, bool) {
	eye := view.Mul4x1(pos.Vec4(1))
	if eye.Z() >= 0 {
		return Placement{}, false
	}

	win := mgl64.Project(pos, view, proj, 0, 0, width, height)
	pl := Placement{
		X:     win.X(),
		Y:     float64(height) - win.Y(),
		Depth: -eye.Z(),
	}
	inside := pl.X >= 0 && pl.X <= float64(width) && pl.Y >= 0 && pl.Y <= float64(height)
	return pl, inside
}
