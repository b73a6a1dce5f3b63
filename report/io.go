// Package report writes run artifacts: JSON documents, gob model files and
// PNG figures drawn with gonum/plot.
package report

import (
	"encoding/json"
	"os"
	"path/filepath"

	"github.com/YuminosukeSato/co2stack/core/model"
	"github.com/YuminosukeSato/co2stack/pkg/errors"
	"github.com/YuminosukeSato/co2stack/pkg/log"
)

func logger() log.Logger {
	return log.GetLoggerWithName("report")
}

// ensureParentDir creates the parent directory of path if needed.
func ensureParentDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "" || dir == "." {
		return nil
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.Wrapf(err, "failed to create directory %s", dir)
	}
	return nil
}

// SaveJSON writes v as JSON indented by two spaces, creating parent
// directories and overwriting any existing file.
func SaveJSON(v any, path string) error {
	if err := ensureParentDir(path); err != nil {
		return err
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return errors.Wrapf(err, "failed to encode %s", path)
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return errors.Wrapf(err, "failed to write %s", path)
	}
	logger().Info("saved JSON", log.PathKey, path)
	return nil
}

// SaveModel creates the parent directories of path and gob-encodes v into it.
func SaveModel(v any, path string) error {
	if err := ensureParentDir(path); err != nil {
		return err
	}
	if err := model.SaveModel(v, path); err != nil {
		return err
	}
	logger().Info("saved model", log.PathKey, path)
	return nil
}

// LoadModel decodes a model written by SaveModel into, which must be a
// pointer.
func LoadModel(path string, into any) error {
	return model.LoadModel(into, path)
}
