package app

import (
	"os"
	"path/filepath"
)

// Paths holds the resolved filesystem paths under the .mapbuilder/ project
// directory.
type Paths struct {
	Root   string // .mapbuilder/
	DB     string // .mapbuilder/cache.db
	Config string // .mapbuilder/config.yaml

	RunDir   string // .mapbuilder/run/
	PortFile string // .mapbuilder/run/http.port
}

// NewPaths constructs all resolved paths from a project root directory.
func NewPaths(projectRoot string) *Paths {
	root := filepath.Join(projectRoot, ".mapbuilder")
	return &Paths{
		Root:   root,
		DB:     filepath.Join(root, "cache.db"),
		Config: filepath.Join(root, "config.yaml"),

		RunDir:   filepath.Join(root, "run"),
		PortFile: filepath.Join(root, "run", "http.port"),
	}
}

// EnsureDirs creates the .mapbuilder/ directories. Idempotent.
func (p *Paths) EnsureDirs() error {
	for _, d := range []string{p.Root, p.RunDir} {
		if err := os.MkdirAll(d, 0755); err != nil {
			return err
		}
	}
	return nil
}

// CleanEphemeral removes runtime files left by a server.
func (p *Paths) CleanEphemeral() {
	os.Remove(p.PortFile)
}

// Resolve makes a configured path absolute against the project root.
func Resolve(projectRoot, path string) string {
	if path == "" || filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(projectRoot, path)
}
