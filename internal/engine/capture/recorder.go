package capture

import (
	"archive/tar"
	"bytes"
	"errors"
	"fmt"
	"image"
	"os"
	"path/filepath"
	"time"
)

// ErrNotRecording is returned when frames arrive outside a recording.
var ErrNotRecording = errors.New("recorder is not capturing")

// Recorder collects encoded frames and writes them as a tar archive of
// files named %07d.<format>, ready for ffmpeg.
type Recorder struct {
	dir    string
	prefix string
	now    func() time.Time

	format    string
	capturing bool
	frames    [][]byte
	started   time.Time
}

// NewRecorder returns a recorder saving archives under dir.
func NewRecorder(dir, prefix string) *Recorder {
	return &Recorder{dir: dir, prefix: prefix, now: time.Now, format: FormatPNG}
}

// Start begins a new capture, dropping frames from an unsaved one.
func (r *Recorder) Start(format string) error {
	if format != FormatPNG && format != FormatJPG {
		return fmt.Errorf("unsupported frame format %q", format)
	}
	r.format = format
	r.frames = nil
	r.capturing = true
	r.started = r.now()
	return nil
}

// Capture encodes and keeps one frame.
func (r *Recorder) Capture(frame image.Image) error {
	if !r.capturing {
		return ErrNotRecording
	}
	var buf bytes.Buffer
	if err := Encode(&buf, frame, r.format); err != nil {
		return err
	}
	r.frames = append(r.frames, buf.Bytes())
	return nil
}

// Stop ends the capture and keeps the frames for Save.
func (r *Recorder) Stop() { r.capturing = false }

// Discard drops every kept frame.
func (r *Recorder) Discard() {
	r.frames = nil
	r.capturing = false
}

// Frames returns the number of kept frames.
func (r *Recorder) Frames() int { return len(r.frames) }

// Save writes the kept frames to a new archive and returns its path.
func (r *Recorder) Save() (string, error) {
	if r.dir != "" {
		if err := os.MkdirAll(r.dir, 0755); err != nil {
			return "", fmt.Errorf("creating output dir: %w", err)
		}
	}
	name := fmt.Sprintf("%s_%d.tar", r.prefix, r.started.UnixMilli())
	if r.dir != "" {
		name = filepath.Join(r.dir, name)
	}
	f, err := os.Create(name)
	if err != nil {
		return "", fmt.Errorf("creating archive: %w", err)
	}
	defer f.Close()

	tw := tar.NewWriter(f)
	for i, data := range r.frames {
		hdr := &tar.Header{
			Name:    fmt.Sprintf("%07d.%s", i, r.format),
			Mode:    0644,
			Size:    int64(len(data)),
			ModTime: r.started,
		}
		if err := tw.WriteHeader(hdr); err != nil {
			return "", fmt.Errorf("writing frame %d: %w", i, err)
		}
		if _, err := tw.Write(data); err != nil {
			return "", fmt.Errorf("writing frame %d: %w", i, err)
		}
	}
	if err := tw.Close(); err != nil {
		return "", fmt.Errorf("closing archive: %w", err)
	}
	return name, nil
}
