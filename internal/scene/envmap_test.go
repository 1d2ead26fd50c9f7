package scene

import (
	"bytes"
	"context"
	"encoding/base64"
	"image"
	"image/color"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 4, 2))
	img.SetRGBA(0, 0, color.RGBA{200, 100, 50, 255})
	var buf bytes.Buffer
	require.NoError(t, png.Encode(&buf, img))
	return buf.Bytes()
}

func TestFileLoaderSources(t *testing.T) {
	data := pngBytes(t)
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "sky.png"), data, 0o644))

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/sky.png" {
			http.NotFound(w, r)
			return
		}
		_, _ = w.Write(data)
	}))
	defer srv.Close()

	loader := &FileLoader{Dir: dir}
	sources := []string{
		"sky.png",
		filepath.Join(dir, "sky.png"),
		"data:image/png;base64," + base64.StdEncoding.EncodeToString(data),
		srv.URL + "/sky.png",
	}
	for _, src := range sources {
		t.Run(src[:min(len(src), 24)], func(t *testing.T) {
			tex, err := loader.Load(context.Background(), src)
			require.NoError(t, err)
			assert.Equal(t, 4, tex.Width)
			assert.Equal(t, 2, tex.Height)
			assert.Equal(t, MappingEquirectangularReflection, tex.Mapping)
			assert.Equal(t, src, tex.Name)
			require.NotNil(t, tex.Image)
		})
	}
}

func TestFileLoaderErrors(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	defer srv.Close()

	loader := &FileLoader{Dir: t.TempDir()}
	for _, src := range []string{"absent.png", srv.URL + "/absent.png", "data:image/png;base64,@@@", "data:nocomma"} {
		_, err := loader.Load(context.Background(), src)
		assert.Error(t, err, src)
	}
}
