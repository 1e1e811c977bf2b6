package scene

import "github.com/go-gl/mathgl/mgl64"

// Kind тип узла сцены
type Kind string

const (
	KindCamera    Kind = "camera"
	KindLight     Kind = "light"
	KindMesh      Kind = "mesh"
	KindModel     Kind = "model"
	KindAudio     Kind = "audio"
	KindSpatialUI Kind = "spatialui"
	KindParticle  Kind = "particle"
)

// SceneEntityRef ссылка на саму сцену в манифесте пользовательской логики
const SceneEntityRef = "__scene__"

// Vec3 вектор в формате документа сцены
type Vec3 struct {
	X float64 `json:"x" yaml:"x"`
	Y float64 `json:"y" yaml:"y"`
	Z float64 `json:"z" yaml:"z"`
}

// Mgl переводит вектор документа в mgl64
func (v Vec3) Mgl() mgl64.Vec3 {
	return mgl64.Vec3{v.X, v.Y, v.Z}
}

// Transform локальная трансформация узла. Rotation - углы Эйлера в радианах.
type Transform struct {
	Position Vec3  `json:"position" yaml:"position"`
	Rotation *Vec3 `json:"rotation,omitempty" yaml:"rotation,omitempty"`
	Scaling  *Vec3 `json:"scaling,omitempty" yaml:"scaling,omitempty"`
}

// RotationOrZero возвращает вращение, ноль по умолчанию
func (t Transform) RotationOrZero() Vec3 {
	if t.Rotation == nil {
		return Vec3{}
	}
	return *t.Rotation
}

// ScalingOrOne возвращает масштаб, единица по умолчанию
func (t Transform) ScalingOrOne() Vec3 {
	if t.Scaling == nil {
		return Vec3{X: 1, Y: 1, Z: 1}
	}
	return *t.Scaling
}

// Graph корневой контейнер сцены
type Graph struct {
	Nodes    []Node   `json:"nodes" yaml:"nodes"`
	Settings Settings `json:"sceneSettings" yaml:"sceneSettings"`
}

// Settings глобальные настройки сцены
type Settings struct {
	Environment    map[string]any `json:"environment,omitempty" yaml:"environment,omitempty"`
	Fog            *Fog           `json:"fog,omitempty" yaml:"fog,omitempty"`
	PostProcessing map[string]any `json:"postProcessing,omitempty" yaml:"postProcessing,omitempty"`
	Skybox         map[string]any `json:"skybox,omitempty" yaml:"skybox,omitempty"`
	Gravity        *Vec3          `json:"gravity,omitempty" yaml:"gravity,omitempty"`
	PhysicsEnabled *bool          `json:"physicsEnabled,omitempty" yaml:"physicsEnabled,omitempty"`
}

// Fog параметры тумана
type Fog struct {
	Mode    string  `json:"mode" yaml:"mode"`
	Density float64 `json:"density" yaml:"density"`
	Start   float64 `json:"start" yaml:"start"`
	End     float64 `json:"end" yaml:"end"`
	Color   string  `json:"color" yaml:"color"`
}

// Node одна запись описания сцены
type Node struct {
	ID        string    `json:"id" yaml:"id"`
	Name      string    `json:"name,omitempty" yaml:"name,omitempty"`
	Kind      Kind      `json:"kind" yaml:"kind"`
	ParentID  string    `json:"parentId,omitempty" yaml:"parentId,omitempty"`
	Transform Transform `json:"transform" yaml:"transform"`
	Visible   *bool     `json:"visible,omitempty" yaml:"visible,omitempty"`
	Enabled   *bool     `json:"enabled,omitempty" yaml:"enabled,omitempty"`

	Physics      *PhysicsDescriptor      `json:"physics,omitempty" yaml:"physics,omitempty"`
	InputControl *InputControlDescriptor `json:"inputControl,omitempty" yaml:"inputControl,omitempty"`

	Camera    *CameraDescriptor    `json:"camera,omitempty" yaml:"camera,omitempty"`
	Light     *LightDescriptor     `json:"light,omitempty" yaml:"light,omitempty"`
	Mesh      *MeshDescriptor      `json:"mesh,omitempty" yaml:"mesh,omitempty"`
	Model     *ModelDescriptor     `json:"model,omitempty" yaml:"model,omitempty"`
	Audio     *AudioDescriptor     `json:"audio,omitempty" yaml:"audio,omitempty"`
	SpatialUI *SpatialUIDescriptor `json:"spatialUI,omitempty" yaml:"spatialUI,omitempty"`
	Particle  *ParticleDescriptor  `json:"particle,omitempty" yaml:"particle,omitempty"`
}

// IsVisible видимость узла, true по умолчанию
func (n *Node) IsVisible() bool {
	return n.Visible == nil || *n.Visible
}

// IsEnabled активность узла, true по умолчанию
func (n *Node) IsEnabled() bool {
	return n.Enabled == nil || *n.Enabled
}

// DisplayName имя узла, id если имя не задано
func (n *Node) DisplayName() string {
	if n.Name != "" {
		return n.Name
	}
	return n.ID
}

// PhysicsType тип физического тела
type PhysicsType string

const (
	PhysicsStatic    PhysicsType = "static"
	PhysicsDynamic   PhysicsType = "dynamic"
	PhysicsKinematic PhysicsType = "kinematic"
)

// Impostor форма физического представления
type Impostor string

const (
	ImpostorBox          Impostor = "box"
	ImpostorSphere       Impostor = "sphere"
	ImpostorCapsule      Impostor = "capsule"
	ImpostorCylinder     Impostor = "cylinder"
	ImpostorMesh         Impostor = "mesh"
	ImpostorConvexHull   Impostor = "convexHull"
	ImpostorMeshCollider Impostor = "meshCollider"
)

// PhysicsDescriptor физические параметры узла
type PhysicsDescriptor struct {
	Enabled     bool        `json:"enabled" yaml:"enabled"`
	Type        PhysicsType `json:"type" yaml:"type"`
	Impostor    Impostor    `json:"impostor" yaml:"impostor"`
	Mass        float64     `json:"mass" yaml:"mass"`
	Restitution float64     `json:"restitution" yaml:"restitution"`
	Friction    float64     `json:"friction" yaml:"friction"`
	IsTrigger   bool        `json:"isTrigger,omitempty" yaml:"isTrigger,omitempty"`
	IsCollider  bool        `json:"isCollider,omitempty" yaml:"isCollider,omitempty"`
}

// EffectiveMass масса с учетом типа: static и kinematic всегда 0
func (d *PhysicsDescriptor) EffectiveMass() float64 {
	if d.Type == PhysicsStatic || d.Type == PhysicsKinematic {
		return 0
	}
	return d.Mass
}

// KeyBinding клавиша плюс модификаторы. Пустой Key - привязка только к модификаторам.
type KeyBinding struct {
	Key   string `json:"key,omitempty" yaml:"key,omitempty"`
	Ctrl  bool   `json:"ctrl,omitempty" yaml:"ctrl,omitempty"`
	Shift bool   `json:"shift,omitempty" yaml:"shift,omitempty"`
	Alt   bool   `json:"alt,omitempty" yaml:"alt,omitempty"`
	Meta  bool   `json:"meta,omitempty" yaml:"meta,omitempty"`
}

// IsZero привязка не задана
func (k KeyBinding) IsZero() bool {
	return k.Key == "" && !k.Ctrl && !k.Shift && !k.Alt && !k.Meta
}

// MovementBinding привязка одного слота движения
type MovementBinding struct {
	KeyBinding     KeyBinding `json:"keyBinding" yaml:"keyBinding"`
	Animation      string     `json:"animation,omitempty" yaml:"animation,omitempty"`
	BoostAnimation string     `json:"boostAnimation,omitempty" yaml:"boostAnimation,omitempty"`
}

// InputControlDescriptor параметры управления с клавиатуры
type InputControlDescriptor struct {
	Active         bool   `json:"active" yaml:"active"`
	LocomotionType string `json:"locomotionType,omitempty" yaml:"locomotionType,omitempty"`

	Forward   *MovementBinding `json:"forward,omitempty" yaml:"forward,omitempty"`
	Backward  *MovementBinding `json:"backward,omitempty" yaml:"backward,omitempty"`
	TurnLeft  *MovementBinding `json:"turnLeft,omitempty" yaml:"turnLeft,omitempty"`
	TurnRight *MovementBinding `json:"turnRight,omitempty" yaml:"turnRight,omitempty"`
	Jump      *MovementBinding `json:"jump,omitempty" yaml:"jump,omitempty"`

	Speed                float64    `json:"speed" yaml:"speed"`
	TurnSpeed            float64    `json:"turnSpeed,omitempty" yaml:"turnSpeed,omitempty"`
	SpeedBoostEnabled    bool       `json:"speedBoostEnabled,omitempty" yaml:"speedBoostEnabled,omitempty"`
	SpeedBoostKey        KeyBinding `json:"speedBoostKey,omitempty" yaml:"speedBoostKey,omitempty"`
	SpeedBoostMultiplier float64    `json:"speedBoostMultiplier,omitempty" yaml:"speedBoostMultiplier,omitempty"`
	JumpHeight           float64    `json:"jumpHeight,omitempty" yaml:"jumpHeight,omitempty"`
	IdleAnimation        string     `json:"idleAnimation,omitempty" yaml:"idleAnimation,omitempty"`
}

// CameraType подтип камеры
type CameraType string

const (
	CameraArcRotate CameraType = "arcRotate"
	CameraFree      CameraType = "free"
	CameraFollow    CameraType = "follow"
)

// TargetMode режим цели камеры
type TargetMode string

const (
	TargetFixed  TargetMode = "fixed"
	TargetObject TargetMode = "object"
)

// CameraDescriptor параметры камеры
type CameraDescriptor struct {
	Type         CameraType `json:"type" yaml:"type"`
	Active       bool       `json:"active,omitempty" yaml:"active,omitempty"`
	Fov          *float64   `json:"fov,omitempty" yaml:"fov,omitempty"`
	Alpha        *float64   `json:"alpha,omitempty" yaml:"alpha,omitempty"`
	Beta         *float64   `json:"beta,omitempty" yaml:"beta,omitempty"`
	Radius       *float64   `json:"radius,omitempty" yaml:"radius,omitempty"`
	Target       *Vec3      `json:"target,omitempty" yaml:"target,omitempty"`
	TargetMode   TargetMode `json:"targetMode,omitempty" yaml:"targetMode,omitempty"`
	TargetObject string     `json:"targetObject,omitempty" yaml:"targetObject,omitempty"`
	TargetOffset *Vec3      `json:"targetOffset,omitempty" yaml:"targetOffset,omitempty"`

	Shake     *ShakeDescriptor     `json:"shake,omitempty" yaml:"shake,omitempty"`
	Collision *CollisionDescriptor `json:"collision,omitempty" yaml:"collision,omitempty"`
}

// ShakeDescriptor параметры тряски камеры
type ShakeDescriptor struct {
	Preset            string  `json:"preset" yaml:"preset"`
	Strength          float64 `json:"strength,omitempty" yaml:"strength,omitempty"`
	Frequency         float64 `json:"frequency,omitempty" yaml:"frequency,omitempty"`
	PositionAmplitude *Vec3   `json:"positionAmplitude,omitempty" yaml:"positionAmplitude,omitempty"`
	RotationAmplitude *Vec3   `json:"rotationAmplitude,omitempty" yaml:"rotationAmplitude,omitempty"`
}

// CollisionDescriptor параметры предотвращения столкновений камеры
type CollisionDescriptor struct {
	Enabled  bool    `json:"enabled" yaml:"enabled"`
	Distance float64 `json:"distance,omitempty" yaml:"distance,omitempty"`
	Cushion  float64 `json:"cushion,omitempty" yaml:"cushion,omitempty"`
}

// LightType подтип источника света
type LightType string

const (
	LightPoint       LightType = "point"
	LightSpot        LightType = "spot"
	LightDirectional LightType = "directional"
	LightHemispheric LightType = "hemispheric"
)

// LightDescriptor параметры света
type LightDescriptor struct {
	Type      LightType `json:"type" yaml:"type"`
	Intensity *float64  `json:"intensity,omitempty" yaml:"intensity,omitempty"`
	Color     string    `json:"color,omitempty" yaml:"color,omitempty"`
	Direction *Vec3     `json:"direction,omitempty" yaml:"direction,omitempty"`
	Angle     *float64  `json:"angle,omitempty" yaml:"angle,omitempty"`
	Exponent  *float64  `json:"exponent,omitempty" yaml:"exponent,omitempty"`
	Range     *float64  `json:"range,omitempty" yaml:"range,omitempty"`
}

// MeshDescriptor параметры примитива или импортированного под-меша
type MeshDescriptor struct {
	Primitive string  `json:"primitive,omitempty" yaml:"primitive,omitempty"`
	Size      float64 `json:"size,omitempty" yaml:"size,omitempty"`
	Width     float64 `json:"width,omitempty" yaml:"width,omitempty"`
	Height    float64 `json:"height,omitempty" yaml:"height,omitempty"`
	Depth     float64 `json:"depth,omitempty" yaml:"depth,omitempty"`
	Diameter  float64 `json:"diameter,omitempty" yaml:"diameter,omitempty"`
	// сетка ground и terrain
	Subdivisions int      `json:"subdivisions,omitempty" yaml:"subdivisions,omitempty"`
	MinHeight    float64  `json:"minHeight,omitempty" yaml:"minHeight,omitempty"`
	MaxHeight    float64  `json:"maxHeight,omitempty" yaml:"maxHeight,omitempty"`
	Seed         float64  `json:"seed,omitempty" yaml:"seed,omitempty"`
	Material     string   `json:"material,omitempty" yaml:"material,omitempty"`
	Pickable     *bool    `json:"pickable,omitempty" yaml:"pickable,omitempty"`
	NonSolid     bool     `json:"nonSolid,omitempty" yaml:"nonSolid,omitempty"`
	Visibility   *float64 `json:"visibility,omitempty" yaml:"visibility,omitempty"`
}

// ModelDescriptor ссылка на импортируемую модель
type ModelDescriptor struct {
	Source     string   `json:"source" yaml:"source"`
	Animations []string `json:"animations,omitempty" yaml:"animations,omitempty"`
	AutoPlay   string   `json:"autoPlay,omitempty" yaml:"autoPlay,omitempty"`
}

// AudioDescriptor параметры звукового якоря
type AudioDescriptor struct {
	Source      string  `json:"source" yaml:"source"`
	Volume      float64 `json:"volume" yaml:"volume"`
	Loop        bool    `json:"loop,omitempty" yaml:"loop,omitempty"`
	Autoplay    bool    `json:"autoplay,omitempty" yaml:"autoplay,omitempty"`
	Spatial     bool    `json:"spatial,omitempty" yaml:"spatial,omitempty"`
	RefDistance float64 `json:"refDistance,omitempty" yaml:"refDistance,omitempty"`
	MaxDistance float64 `json:"maxDistance,omitempty" yaml:"maxDistance,omitempty"`
}

// SpatialUIDescriptor привязка UI-фрагмента к точке в мире
type SpatialUIDescriptor struct {
	ElementID string `json:"elementId" yaml:"elementId"`
	Offset    *Vec3  `json:"offset,omitempty" yaml:"offset,omitempty"`
}

// ParticleDescriptor параметры системы частиц
type ParticleDescriptor struct {
	Capacity int     `json:"capacity" yaml:"capacity"`
	EmitRate float64 `json:"emitRate" yaml:"emitRate"`
	Texture  string  `json:"texture,omitempty" yaml:"texture,omitempty"`
}

// IsPickable меш участвует в пикинге, true по умолчанию
func (d *MeshDescriptor) IsPickable() bool {
	return d == nil || d.Pickable == nil || *d.Pickable
}

// EffectiveVisibility прозрачность меша, 1 по умолчанию
func (d *MeshDescriptor) EffectiveVisibility() float64 {
	if d == nil || d.Visibility == nil {
		return 1
	}
	return *d.Visibility
}

// IsPrimitive меш построен из примитива, а не импортирован
func (d *MeshDescriptor) IsPrimitive() bool {
	return d != nil && d.Primitive != ""
}

// Clone возвращает независимую копию графа. Дескрипторы разделяются: после загрузки они только читаются.
func (g *Graph) Clone() *Graph {
	if g == nil {
		return nil
	}
	out := &Graph{Settings: g.Settings}
	out.Nodes = make([]Node, len(g.Nodes))
	copy(out.Nodes, g.Nodes)
	return out
}

// NodeByID ищет узел по id
func (g *Graph) NodeByID(id string) (*Node, bool) {
	for i := range g.Nodes {
		if g.Nodes[i].ID == id {
			return &g.Nodes[i], true
		}
	}
	return nil, false
}
