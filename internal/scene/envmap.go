package scene

import (
	"context"
	"encoding/base64"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/Faultbox/meshview/internal/engine/texture"
)

// FileLoader loads environment maps from local files, http(s) URLs and
// base64 data URLs.
type FileLoader struct {
	// Dir resolves relative file names.
	Dir    string
	Client *http.Client
}

// Load fetches and decodes name.
func (l *FileLoader) Load(ctx context.Context, name string) (*Texture, error) {
	data, err := l.fetch(ctx, name)
	if err != nil {
		return nil, err
	}
	img, _, err := texture.Decode(data, name)
	if err != nil {
		return nil, fmt.Errorf("environment map %q: %w", name, err)
	}
	t := NewImageTexture(texture.ImageToRGBA(img), MappingEquirectangularReflection)
	t.Name = name
	return t, nil
}

func (l *FileLoader) fetch(ctx context.Context, name string) ([]byte, error) {
	switch {
	case strings.HasPrefix(name, "data:"):
		return decodeDataURL(name)
	case strings.HasPrefix(name, "http://"), strings.HasPrefix(name, "https://"):
		client := l.Client
		if client == nil {
			client = http.DefaultClient
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, name, nil)
		if err != nil {
			return nil, err
		}
		resp, err := client.Do(req)
		if err != nil {
			return nil, err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return nil, fmt.Errorf("environment map %q: %s", name, resp.Status)
		}
		return io.ReadAll(resp.Body)
	}
	path := name
	if !filepath.IsAbs(path) && l.Dir != "" {
		path = filepath.Join(l.Dir, path)
	}
	return os.ReadFile(path)
}

// decodeDataURL handles "data:<mime>;base64,<payload>".
func decodeDataURL(s string) ([]byte, error) {
	meta, payload, ok := strings.Cut(strings.TrimPrefix(s, "data:"), ",")
	if !ok {
		return nil, fmt.Errorf("malformed data URL")
	}
	if !strings.HasSuffix(meta, ";base64") {
		return []byte(payload), nil
	}
	return base64.StdEncoding.DecodeString(payload)
}
