package logic

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"path/filepath"
	"regexp"
	"strings"

	"x-scene/backend/internal/scene"
)

var (
	// ErrNoBehavior в тексте скрипта не найдено объявление поведения
	ErrNoBehavior = errors.New("logic: no behavior declared")
	// ErrUnknownBehavior имя не зарегистрировано
	ErrUnknownBehavior = errors.New("logic: unknown behavior")
)

// ScriptEntry одна запись манифеста
type ScriptEntry struct {
	ScriptName    string         `json:"scriptName,omitempty" yaml:"scriptName,omitempty"`
	Enabled       *bool          `json:"enabled,omitempty" yaml:"enabled,omitempty"`
	Parameters    map[string]any `json:"parameters,omitempty" yaml:"parameters,omitempty"`
	ScriptContent string         `json:"scriptContent,omitempty" yaml:"scriptContent,omitempty"`
	ScriptPath    string         `json:"scriptPath,omitempty" yaml:"scriptPath,omitempty"`
}

// IsEnabled по умолчанию скрипт включен
func (s ScriptEntry) IsEnabled() bool {
	return s.Enabled == nil || *s.Enabled
}

// Manifest сопоставляет id сущности (или __scene__) упорядоченному списку скриптов
type Manifest struct {
	Entities map[string][]ScriptEntry `json:"entities" yaml:"entities"`
}

// ParseManifest разбирает манифест в формате JSON или YAML
func ParseManifest(data []byte, format scene.Format) (*Manifest, error) {
	var m Manifest
	if err := scene.Decode(data, format, &m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}
	if m.Entities == nil {
		m.Entities = make(map[string][]ScriptEntry)
	}
	return &m, nil
}

// LoadManifest получает и разбирает манифест из файла или по http(s)
func LoadManifest(ctx context.Context, client *http.Client, source string) (*Manifest, error) {
	data, err := scene.Fetch(ctx, client, source)
	if err != nil {
		return nil, err
	}
	return ParseManifest(data, scene.FormatFromPath(source))
}

var (
	classPattern   = regexp.MustCompile(`(?m)^\s*(?:export\s+)?(?:default\s+)?class\s+([A-Za-z_$][\w$]*)`)
	commentPattern = regexp.MustCompile(`(?s)/\*.*?\*/|//[^\n]*`)
)

// ScanBehaviorNames имена классов, объявленных в тексте, в порядке появления.
// Комментарии вырезаются до поиска.
func ScanBehaviorNames(text string) []string {
	text = commentPattern.ReplaceAllString(text, "")
	var names []string
	for _, m := range classPattern.FindAllStringSubmatch(text, -1) {
		names = append(names, m[1])
	}
	return names
}

// resolveName имя поведения для записи: scriptName, иначе первое
// зарегистрированное имя из текста, иначе первое объявленное
func resolveName(ctx context.Context, client *http.Client, baseDir string, entry ScriptEntry, registry *Registry) (string, error) {
	if entry.ScriptName != "" {
		return entry.ScriptName, nil
	}

	text := entry.ScriptContent
	if text == "" && entry.ScriptPath != "" {
		data, err := scene.Fetch(ctx, client, scriptLocation(baseDir, entry.ScriptPath))
		if err != nil {
			return "", fmt.Errorf("fetch %s: %w", entry.ScriptPath, err)
		}
		text = string(data)
	}

	names := ScanBehaviorNames(text)
	if len(names) == 0 {
		return "", ErrNoBehavior
	}
	for _, n := range names {
		if registry.Has(n) {
			return n, nil
		}
	}
	return names[0], nil
}

func scriptLocation(baseDir, path string) string {
	if baseDir == "" || filepath.IsAbs(path) ||
		strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	if strings.HasPrefix(baseDir, "http://") || strings.HasPrefix(baseDir, "https://") {
		return strings.TrimSuffix(baseDir, "/") + "/" + strings.TrimPrefix(path, "/")
	}
	return filepath.Join(baseDir, path)
}

// baseOf каталог источника манифеста
func baseOf(source string) string {
	if strings.HasPrefix(source, "http://") || strings.HasPrefix(source, "https://") {
		if i := strings.LastIndex(source, "/"); i > len("https://") {
			return source[:i]
		}
		return source
	}
	return filepath.Dir(source)
}
