// Package export writes order listings to disk.
package export

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/shopspring/decimal"

	"delivery/internal/model"
)

type Exporter interface {
	WriteExport(exportID string, orders []model.Order, revenue decimal.Decimal) (string, error)
}

// Document is the on-disk layout of an export.
type Document struct {
	ExportID    string        `json:"exportId"`
	GeneratedAt time.Time     `json:"generatedAt"`
	Count       int           `json:"count"`
	Revenue     json.Number   `json:"revenue"`
	Orders      []model.Order `json:"orders"`
}

type FilesystemExporter struct {
	baseDir string
	now     func() time.Time
}

func NewFilesystemExporter(baseDir string) *FilesystemExporter {
	return &FilesystemExporter{baseDir: baseDir, now: time.Now}
}

// WriteExport writes <baseDir>/<exportID>/orders.json and returns its path.
func (f *FilesystemExporter) WriteExport(exportID string, orders []model.Order, revenue decimal.Decimal) (string, error) {
	if exportID == "" || exportID != filepath.Base(exportID) {
		return "", fmt.Errorf("invalid export id %q", exportID)
	}
	dir := filepath.Join(f.baseDir, exportID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("mkdir: %w", err)
	}
	file := filepath.Join(dir, "orders.json")
	tmp := file + ".tmp"
	out, err := os.Create(tmp)
	if err != nil {
		return "", fmt.Errorf("create: %w", err)
	}

	if orders == nil {
		orders = []model.Order{}
	}
	doc := Document{
		ExportID:    exportID,
		GeneratedAt: f.now().UTC(),
		Count:       len(orders),
		Revenue:     model.Money(revenue),
		Orders:      orders,
	}
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		out.Close()
		return "", fmt.Errorf("encode: %w", err)
	}
	if err := out.Close(); err != nil {
		return "", fmt.Errorf("close: %w", err)
	}
	if err := os.Rename(tmp, file); err != nil {
		return "", fmt.Errorf("rename: %w", err)
	}
	return file, nil
}
