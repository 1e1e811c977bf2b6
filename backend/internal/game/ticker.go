package game

import (
	"context"
	"log"
	"sync"
	"time"

	"x-scene/backend/internal/telemetry"
	"x-scene/backend/internal/world"
)

// TickSystem интерфейс для всех систем кадра
type TickSystem interface {
	Update(deltaTime time.Duration) error
	GetName() string
	GetPriority() int // Приоритет выполнения (меньше = раньше)
}

// GameTicker основной цикл кадров сцены
type GameTicker struct {
	// Конфигурация
	targetTPS    int           // Целевая частота тиков в секунду
	tickDuration time.Duration // Длительность одного тика
	maxTickTime  time.Duration // Максимальное время на один тик

	// Состояние
	stateMu      sync.Mutex
	isRunning    bool
	isPaused     bool
	tickCount    uint64
	startTime    time.Time
	lastTickTime time.Time

	worldManager *world.Manager

	// Системы
	systems      []TickSystem
	systemsMutex sync.RWMutex

	// Мониторинг производительности
	perfMonitor *PerformanceMonitor
	collector   *telemetry.FrameCollector

	// Управление
	cancel    context.CancelFunc
	done      chan struct{}
	pauseChan chan bool

	// Метрики
	averageTickTime time.Duration
	maxObservedTick time.Duration
	skippedTicks    uint64

	logger           *log.Logger
	warningThreshold time.Duration
}

// PerformanceMonitor отслеживает производительность каждой системы
type PerformanceMonitor struct {
	systemMetrics map[string]*SystemMetrics
	mutex         sync.RWMutex

	metricsWindow     int           // Количество последних тиков для усреднения
	warningThreshold  time.Duration // Порог предупреждения для системы
	criticalThreshold time.Duration
}

// SystemMetrics метрики производительности системы
type SystemMetrics struct {
	Name              string
	LastExecutionTime time.Duration
	AverageTime       time.Duration
	MaxTime           time.Duration
	TotalExecutions   uint64
	Errors            uint64
	Panics            uint64

	// Скользящее окно для вычисления среднего
	recentTimes  []time.Duration
	recentIndex  int
	windowFilled bool
}

// NewGameTicker создает тикер. collector может быть nil.
func NewGameTicker(targetTPS int, worldManager *world.Manager, collector *telemetry.FrameCollector, logger *log.Logger) *GameTicker {
	if targetTPS <= 0 {
		targetTPS = 60
	}
	if logger == nil {
		logger = log.Default()
	}

	tickDuration := time.Second / time.Duration(targetTPS)

	return &GameTicker{
		targetTPS:        targetTPS,
		tickDuration:     tickDuration,
		maxTickTime:      tickDuration * 2,
		worldManager:     worldManager,
		systems:          make([]TickSystem, 0),
		perfMonitor:      NewPerformanceMonitor(50, tickDuration/4),
		collector:        collector,
		pauseChan:        make(chan bool, 1),
		logger:           logger,
		warningThreshold: tickDuration / 2,
	}
}

// NewPerformanceMonitor создает новый монитор производительности
func NewPerformanceMonitor(windowSize int, warningThreshold time.Duration) *PerformanceMonitor {
	if windowSize <= 0 {
		windowSize = 50
	}
	return &PerformanceMonitor{
		systemMetrics:     make(map[string]*SystemMetrics),
		metricsWindow:     windowSize,
		warningThreshold:  warningThreshold,
		criticalThreshold: warningThreshold * 2,
	}
}

// TickDuration целевая длительность тика
func (gt *GameTicker) TickDuration() time.Duration {
	return gt.tickDuration
}

// Start запускает цикл кадров в отдельной горутине
func (gt *GameTicker) Start() error {
	gt.stateMu.Lock()
	defer gt.stateMu.Unlock()

	if gt.isRunning {
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	gt.cancel = cancel
	gt.done = make(chan struct{})
	gt.isRunning = true
	gt.startTime = time.Now()
	gt.lastTickTime = gt.startTime

	gt.logger.Printf("[GameTicker] starting frame loop: %d TPS (tick every %v)", gt.targetTPS, gt.tickDuration)

	go gt.gameLoop(ctx, gt.done)
	return nil
}

// Stop останавливает цикл и ждет завершения текущего кадра
func (gt *GameTicker) Stop() {
	gt.stateMu.Lock()
	if !gt.isRunning {
		gt.stateMu.Unlock()
		return
	}
	gt.isRunning = false
	gt.cancel()
	done := gt.done
	gt.stateMu.Unlock()

	<-done
	gt.logger.Printf("[GameTicker] frame loop stopped after %d ticks", gt.GetTickCount())
}

// Pause приостанавливает или возобновляет цикл
func (gt *GameTicker) Pause(pause bool) {
	gt.stateMu.Lock()
	gt.isPaused = pause
	gt.stateMu.Unlock()

	select {
	case gt.pauseChan <- pause:
	default:
		// значение еще не прочитано; заменяем его актуальным
		select {
		case <-gt.pauseChan:
		default:
		}
		gt.pauseChan <- pause
	}
}

// RegisterSystem добавляет систему, сохраняя порядок по приоритету.
// Системы с равным приоритетом выполняются в порядке регистрации.
func (gt *GameTicker) RegisterSystem(system TickSystem) {
	gt.systemsMutex.Lock()
	defer gt.systemsMutex.Unlock()

	gt.systems = append(gt.systems, system)
	for i := len(gt.systems) - 1; i > 0; i-- {
		if gt.systems[i].GetPriority() < gt.systems[i-1].GetPriority() {
			gt.systems[i], gt.systems[i-1] = gt.systems[i-1], gt.systems[i]
		} else {
			break
		}
	}

	gt.perfMonitor.initSystemMetrics(system.GetName())

	gt.logger.Printf("[GameTicker] registered system %s (priority %d)", system.GetName(), system.GetPriority())
}

// Systems имена систем в порядке выполнения
func (gt *GameTicker) Systems() []string {
	gt.systemsMutex.RLock()
	defer gt.systemsMutex.RUnlock()

	names := make([]string, len(gt.systems))
	for i, s := range gt.systems {
		names[i] = s.GetName()
	}
	return names
}

func (gt *GameTicker) gameLoop(ctx context.Context, done chan struct{}) {
	defer close(done)

	ticker := time.NewTicker(gt.tickDuration)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case pause := <-gt.pauseChan:
			for pause {
				select {
				case <-ctx.Done():
					return
				case pause = <-gt.pauseChan:
				}
			}
			// после паузы не считаем простой одним длинным кадром
			gt.lastTickTime = time.Now()

		case tickTime := <-ticker.C:
			gt.executeTick(tickTime)
		}
	}
}

// Step синхронно выполняет один кадр с заданным шагом. Не смешивать с Start.
func (gt *GameTicker) Step(deltaTime time.Duration) {
	gt.stateMu.Lock()
	gt.tickCount++
	gt.stateMu.Unlock()

	tickStart := time.Now()
	gt.executeAllSystems(deltaTime)
	gt.finishTick(time.Since(tickStart))
}

func (gt *GameTicker) executeTick(tickTime time.Time) {
	tickStart := time.Now()
	deltaTime := tickTime.Sub(gt.lastTickTime)

	if deltaTime > gt.tickDuration*2 {
		gt.logger.Printf("[GameTicker] WARNING: large gap between ticks: %v (expected %v)", deltaTime, gt.tickDuration)
		gt.stateMu.Lock()
		gt.skippedTicks++
		gt.stateMu.Unlock()
	}

	gt.stateMu.Lock()
	gt.tickCount++
	gt.stateMu.Unlock()
	gt.lastTickTime = tickTime

	gt.executeAllSystems(deltaTime)
	gt.finishTick(time.Since(tickStart))
}

func (gt *GameTicker) finishTick(totalTickTime time.Duration) {
	gt.stateMu.Lock()
	gt.updateTickMetrics(totalTickTime)
	gt.stateMu.Unlock()
	gt.collector.ObserveTick(totalTickTime)
	gt.checkPerformance(totalTickTime)
}

func (gt *GameTicker) executeAllSystems(deltaTime time.Duration) {
	gt.systemsMutex.RLock()
	systems := make([]TickSystem, len(gt.systems))
	copy(systems, gt.systems)
	gt.systemsMutex.RUnlock()

	for _, system := range systems {
		gt.executeSystem(system, deltaTime)
	}
}

// executeSystem выполняет одну систему с замером времени; паника не останавливает кадр
func (gt *GameTicker) executeSystem(system TickSystem, deltaTime time.Duration) {
	systemStart := time.Now()
	systemName := system.GetName()

	defer func() {
		if r := recover(); r != nil {
			gt.logger.Printf("[GameTicker] CRITICAL: panic in system %s: %v", systemName, r)
			gt.perfMonitor.recordPanic(systemName)
			gt.collector.ObserveSystem(systemName, time.Since(systemStart), nil, true)
		}
	}()

	err := system.Update(deltaTime)
	executionTime := time.Since(systemStart)

	gt.perfMonitor.recordExecution(systemName, executionTime)
	gt.collector.ObserveSystem(systemName, executionTime, err, false)

	if err != nil {
		gt.logger.Printf("[GameTicker] system %s failed: %v", systemName, err)
		gt.perfMonitor.recordError(systemName)
	}
}

// GetStats возвращает статистику цикла
func (gt *GameTicker) GetStats() map[string]interface{} {
	gt.stateMu.Lock()
	defer gt.stateMu.Unlock()

	uptime := time.Since(gt.startTime)
	actualTPS := 0.0
	if gt.isRunning && uptime > 0 {
		actualTPS = float64(gt.tickCount) / uptime.Seconds()
	}

	entities := 0
	if gt.worldManager != nil {
		entities = gt.worldManager.Count()
	}

	gt.systemsMutex.RLock()
	systemsCount := len(gt.systems)
	gt.systemsMutex.RUnlock()

	return map[string]interface{}{
		"target_tps":        gt.targetTPS,
		"actual_tps":        actualTPS,
		"tick_count":        gt.tickCount,
		"uptime_seconds":    uptime.Seconds(),
		"average_tick_time": gt.averageTickTime,
		"max_observed_tick": gt.maxObservedTick,
		"skipped_ticks":     gt.skippedTicks,
		"is_running":        gt.isRunning,
		"is_paused":         gt.isPaused,
		"systems_count":     systemsCount,
		"entities_count":    entities,
	}
}

// GetTickCount возвращает текущее количество тиков
func (gt *GameTicker) GetTickCount() uint64 {
	gt.stateMu.Lock()
	defer gt.stateMu.Unlock()
	return gt.tickCount
}

// Monitor монитор производительности систем
func (gt *GameTicker) Monitor() *PerformanceMonitor {
	return gt.perfMonitor
}

func (pm *PerformanceMonitor) initSystemMetrics(systemName string) {
	pm.mutex.Lock()
	defer pm.mutex.Unlock()

	pm.systemMetrics[systemName] = &SystemMetrics{
		Name:        systemName,
		recentTimes: make([]time.Duration, pm.metricsWindow),
	}
}

func (pm *PerformanceMonitor) recordExecution(systemName string, executionTime time.Duration) {
	pm.mutex.Lock()
	defer pm.mutex.Unlock()

	metrics, exists := pm.systemMetrics[systemName]
	if !exists {
		return
	}

	metrics.LastExecutionTime = executionTime
	metrics.TotalExecutions++
	if executionTime > metrics.MaxTime {
		metrics.MaxTime = executionTime
	}

	metrics.recentTimes[metrics.recentIndex] = executionTime
	metrics.recentIndex = (metrics.recentIndex + 1) % pm.metricsWindow
	if !metrics.windowFilled && metrics.recentIndex == 0 {
		metrics.windowFilled = true
	}

	pm.recalculateAverage(metrics)
}

func (pm *PerformanceMonitor) recordError(systemName string) {
	pm.mutex.Lock()
	defer pm.mutex.Unlock()

	if metrics, exists := pm.systemMetrics[systemName]; exists {
		metrics.Errors++
	}
}

func (pm *PerformanceMonitor) recordPanic(systemName string) {
	pm.mutex.Lock()
	defer pm.mutex.Unlock()

	if metrics, exists := pm.systemMetrics[systemName]; exists {
		metrics.Errors++
		metrics.Panics++
	}
}

func (pm *PerformanceMonitor) recalculateAverage(metrics *SystemMetrics) {
	var total time.Duration
	var count int

	limit := pm.metricsWindow
	if !metrics.windowFilled {
		limit = metrics.recentIndex
	}

	for i := 0; i < limit; i++ {
		total += metrics.recentTimes[i]
		count++
	}

	if count > 0 {
		metrics.AverageTime = total / time.Duration(count)
	}
}

// Metrics копия метрик системы
func (pm *PerformanceMonitor) Metrics(systemName string) (SystemMetrics, bool) {
	pm.mutex.RLock()
	defer pm.mutex.RUnlock()

	m, ok := pm.systemMetrics[systemName]
	if !ok {
		return SystemMetrics{}, false
	}
	out := *m
	out.recentTimes = nil
	return out, true
}

func (pm *PerformanceMonitor) GetSystemsStats() map[string]interface{} {
	pm.mutex.RLock()
	defer pm.mutex.RUnlock()

	systemsStats := make(map[string]interface{})
	for name, metrics := range pm.systemMetrics {
		systemsStats[name] = map[string]interface{}{
			"last_execution_time": metrics.LastExecutionTime,
			"average_time":        metrics.AverageTime,
			"max_time":            metrics.MaxTime,
			"total_executions":    metrics.TotalExecutions,
			"errors":              metrics.Errors,
			"panics":              metrics.Panics,
		}
	}
	return systemsStats
}

func (gt *GameTicker) updateTickMetrics(tickTime time.Duration) {
	if tickTime > gt.maxObservedTick {
		gt.maxObservedTick = tickTime
	}

	// Простое скользящее среднее
	if gt.averageTickTime == 0 {
		gt.averageTickTime = tickTime
	} else {
		gt.averageTickTime = (gt.averageTickTime*9 + tickTime) / 10
	}
}

func (gt *GameTicker) checkPerformance(tickTime time.Duration) {
	if tickTime > gt.maxTickTime {
		gt.logger.Printf("[GameTicker] CRITICAL: tick exceeded max time: %v > %v (target %v)",
			tickTime, gt.maxTickTime, gt.tickDuration)
	} else if tickTime > gt.warningThreshold {
		gt.logger.Printf("[GameTicker] WARNING: slow tick: %v (target %v)", tickTime, gt.tickDuration)
	}
}
