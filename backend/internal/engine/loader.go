package engine

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"x-scene/backend/internal/scene"
)

// FileLoader загружает модели из каталога ассетов или по http(s)
type FileLoader struct {
	BaseDir string
	Client  *http.Client
}

// NewFileLoader создает загрузчик
func NewFileLoader(baseDir string, client *http.Client) *FileLoader {
	return &FileLoader{BaseDir: baseDir, Client: client}
}

// Resolve превращает относительный путь в путь внутри BaseDir
func (l *FileLoader) Resolve(source string) string {
	if strings.Contains(source, "://") || filepath.IsAbs(source) || l.BaseDir == "" {
		return source
	}
	if strings.HasPrefix(l.BaseDir, "http://") || strings.HasPrefix(l.BaseDir, "https://") {
		return strings.TrimSuffix(l.BaseDir, "/") + "/" + strings.TrimPrefix(source, "/")
	}
	return filepath.Join(l.BaseDir, source)
}

// LoadModel читает документ модели (JSON или YAML)
func (l *FileLoader) LoadModel(ctx context.Context, source string) (*Model, error) {
	path := l.Resolve(source)
	data, err := scene.Fetch(ctx, l.Client, path)
	if err != nil {
		return nil, fmt.Errorf("load model %s: %w", source, err)
	}

	var m Model
	if err := scene.Decode(data, scene.FormatFromPath(path), &m); err != nil {
		return nil, fmt.Errorf("decode model %s: %w", source, err)
	}
	m.Source = source
	return &m, nil
}
