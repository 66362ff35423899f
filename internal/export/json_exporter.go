package export

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/Avi18971911/Sibyl/internal/pipeline/data_pipeline/model"
	"github.com/bytedance/sonic"
	"go.uber.org/zap"
)

// JSONExporter writes each scan report to a file. The run id is left out so
// that an unchanged corpus and configuration produce the same bytes.
type JSONExporter struct {
	path    string
	perMode bool
	logger  *zap.Logger
}

// NewJSONExporter writes to path. With perMode set, every report goes to its
// own file named after the mode, e.g. out.json becomes out.global.json.
func NewJSONExporter(path string, perMode bool, logger *zap.Logger) *JSONExporter {
	return &JSONExporter{
		path:    path,
		perMode: perMode,
		logger:  logger,
	}
}

// MarshalReport renders a report with sorted map keys and no run id.
func MarshalReport(report model.ScanReport) ([]byte, error) {
	report.RunID = ""
	content, err := sonic.ConfigStd.MarshalIndent(report, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal scan report: %w", err)
	}
	return append(content, '\n'), nil
}

func (je *JSONExporter) Export(report model.ScanReport) error {
	content, err := MarshalReport(report)
	if err != nil {
		return err
	}

	path := je.PathFor(report)
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("failed to create output directory %s: %w", dir, err)
		}
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, content, 0o644); err != nil {
		return fmt.Errorf("failed to write scan report %s: %w", tmp, err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("failed to move scan report into place %s: %w", path, err)
	}

	je.logger.Info(
		"Exported scan report",
		zap.String("path", path),
		zap.String("mode", string(report.Mode)),
		zap.Int("records", len(report.Records)),
	)
	return nil
}

func (je *JSONExporter) PathFor(report model.ScanReport) string {
	if !je.perMode {
		return je.path
	}
	ext := filepath.Ext(je.path)
	return strings.TrimSuffix(je.path, ext) + "." + string(report.Mode) + ext
}
