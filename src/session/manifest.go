package session

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	jsoniter "github.com/json-iterator/go"
)

var manifestJSON = jsoniter.ConfigCompatibleWithStandardLibrary

// maxSocketPathBytes is the conservative Unix-domain socket path
// limit the manager enforces before spawn; sockaddr_un.sun_path is
// typically 108 bytes, so anything tighter is rejected up front
// rather than failing deep inside bind(2).
const maxSocketPathBytes = 103

// Manifest is the on-disk shape written under <controlRoot>/<id>/manifest.json.
type Manifest struct {
	ID         string    `json:"id"`
	Command    []string  `json:"command"`
	WorkingDir string    `json:"workingDir"`
	Name       string    `json:"name,omitempty"`
	Status     Status    `json:"status"`
	Cols       uint16    `json:"cols"`
	Rows       uint16    `json:"rows"`
	PID        int       `json:"pid,omitempty"`
	CreatedAt  time.Time `json:"createdAt"`
	ExitCode   *int      `json:"exitCode,omitempty"`
}

// ManifestOf converts a snapshot into its persisted shape.
func ManifestOf(s Snapshot) Manifest {
	return Manifest{
		ID:         s.ID,
		Command:    s.Command,
		WorkingDir: s.WorkingDir,
		Name:       s.Name,
		Status:     s.Status,
		Cols:       s.Cols,
		Rows:       s.Rows,
		PID:        s.PID,
		CreatedAt:  s.CreatedAt,
		ExitCode:   s.ExitCode,
	}
}

// Dir returns the per-session directory under controlRoot.
func Dir(controlRoot, id string) string {
	return filepath.Join(controlRoot, id)
}

// ManifestPath, RecordingPath, SocketPath and ActivityPath are the
// fixed filenames within a session directory.
func ManifestPath(dir string) string  { return filepath.Join(dir, "manifest.json") }
func RecordingPath(dir string) string { return filepath.Join(dir, "recording.log") }
func SocketPath(dir string) string    { return filepath.Join(dir, "ipc.sock") }
func ActivityPath(dir string) string  { return filepath.Join(dir, "activity.json") }

// CheckSocketPath validates the assembled socket path length before
// spawn, so a too-long control root fails fast with a clear error
// instead of an opaque bind(2) failure deep inside session creation.
func CheckSocketPath(dir string) error {
	p := SocketPath(dir)
	abs, err := filepath.Abs(p)
	if err != nil {
		return fmt.Errorf("session: resolve socket path: %w", err)
	}
	if len(abs) > maxSocketPathBytes {
		return errResource("", fmt.Sprintf("socket path %q exceeds %d bytes", abs, maxSocketPathBytes), nil)
	}
	return nil
}

// WriteManifest atomically persists m to dir/manifest.json: write to a
// temp file, then rename, so a crash mid-write never leaves a
// truncated manifest behind.
func WriteManifest(dir string, m Manifest) error {
	data, err := manifestJSON.MarshalIndent(m, "", "  ")
	if err != nil {
		return fmt.Errorf("session: marshal manifest: %w", err)
	}
	path := ManifestPath(dir)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("session: write manifest temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("session: rename manifest into place: %w", err)
	}
	return nil
}

// ReadManifest loads a session directory's manifest.
func ReadManifest(dir string) (Manifest, error) {
	data, err := os.ReadFile(ManifestPath(dir))
	if err != nil {
		return Manifest{}, fmt.Errorf("session: read manifest: %w", err)
	}
	var m Manifest
	if err := manifestJSON.Unmarshal(data, &m); err != nil {
		return Manifest{}, fmt.Errorf("session: unmarshal manifest: %w", err)
	}
	return m, nil
}

// ActivitySnapshot is the on-disk shape for activity.json, rewritten
// on change only.
type ActivitySnapshot struct {
	IsActive      bool      `json:"isActive"`
	AppName       string    `json:"appName,omitempty"`
	AppStatus     string    `json:"appStatus,omitempty"`
	Timestamp     time.Time `json:"timestamp"`
}

// WriteActivitySnapshot atomically persists the activity snapshot.
func WriteActivitySnapshot(dir string, a ActivitySnapshot) error {
	data, err := manifestJSON.Marshal(a)
	if err != nil {
		return fmt.Errorf("session: marshal activity snapshot: %w", err)
	}
	path := ActivityPath(dir)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("session: write activity temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("session: rename activity snapshot into place: %w", err)
	}
	return nil
}
