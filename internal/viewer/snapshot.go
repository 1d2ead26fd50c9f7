package viewer

import (
	"fmt"
	"os"

	"github.com/vmihailenco/msgpack/v5"
	"go.uber.org/zap"

	"github.com/Faultbox/meshview/internal/ingest"
)

// Export serializes the whole scene as an object description in msgpack.
func (v *Viewer) Export() ([]byte, error) {
	data, err := msgpack.Marshal(ingest.Encode(v.tree.Root().Object()))
	if err != nil {
		return nil, fmt.Errorf("encoding scene: %w", err)
	}
	return data, nil
}

// Import replaces the scene with an exported one. The current scene is
// untouched when the snapshot fails to parse.
func (v *Viewer) Import(data []byte) error {
	var desc map[string]any
	if err := msgpack.Unmarshal(data, &desc); err != nil {
		return fmt.Errorf("decoding scene: %w", err)
	}
	root, err := v.ingester.Parse(desc)
	if err != nil {
		return fmt.Errorf("parsing scene: %w", err)
	}

	v.animator.Clear()
	// Reset disposes the old textures, so image decodes still in flight
	// for them are dropped.
	v.tree.Reset(root)
	v.updateBackground()
	v.MarkDirty()
	v.log.Info("scene imported", zap.String("root", root.Name))
	return nil
}

// ExportFile writes Export's output to path.
func (v *Viewer) ExportFile(path string) error {
	data, err := v.Export()
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0644)
}

// ImportFile reads a snapshot written by ExportFile.
func (v *Viewer) ImportFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	return v.Import(data)
}
