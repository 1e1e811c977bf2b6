package scene

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

var (
	// ErrEmptyDocument документ сцены пуст
	ErrEmptyDocument = errors.New("scene: empty document")
	// ErrFetch документ не удалось получить
	ErrFetch = errors.New("scene: fetch failed")
)

// Format формат документа
type Format int

const (
	FormatAuto Format = iota
	FormatJSON
	FormatYAML
)

// FormatFromPath определяет формат по расширению
func FormatFromPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON
	case ".yaml", ".yml":
		return FormatYAML
	}
	return FormatAuto
}

func sniff(data []byte) Format {
	trimmed := bytes.TrimLeft(data, " \t\r\n")
	if len(trimmed) > 0 && (trimmed[0] == '{' || trimmed[0] == '[') {
		return FormatJSON
	}
	return FormatYAML
}

// Decode разбирает документ в v. Используется также для манифеста логики и моделей.
func Decode(data []byte, format Format, v any) error {
	if len(bytes.TrimSpace(data)) == 0 {
		return ErrEmptyDocument
	}
	if format == FormatAuto {
		format = sniff(data)
	}
	if format == FormatJSON {
		return json.Unmarshal(data, v)
	}
	return yaml.Unmarshal(data, v)
}

// Parse разбирает описание сцены
func Parse(data []byte, format Format) (*Graph, error) {
	var g Graph
	if err := Decode(data, format, &g); err != nil {
		return nil, fmt.Errorf("parse scene: %w", err)
	}
	return &g, nil
}

// Fetch читает документ из файла или по http(s)
func Fetch(ctx context.Context, client *http.Client, source string) ([]byte, error) {
	if !strings.HasPrefix(source, "http://") && !strings.HasPrefix(source, "https://") {
		data, err := os.ReadFile(source)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrFetch, err)
		}
		return data, nil
	}

	if client == nil {
		client = http.DefaultClient
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetch, err)
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s returned %d", ErrFetch, source, resp.StatusCode)
	}
	return io.ReadAll(resp.Body)
}

// Load получает и разбирает описание сцены. Любая ошибка фатальна для запуска.
func Load(ctx context.Context, client *http.Client, source string) (*Graph, error) {
	data, err := Fetch(ctx, client, source)
	if err != nil {
		return nil, err
	}
	return Parse(data, FormatFromPath(source))
}
