package swcache

import (
	"errors"
	"fmt"
	"net/url"
	"os"

	"gopkg.in/yaml.v2"
)

// DefaultVersion is the cache store name of the current deployment.
//
// Bumping it is the only supported way to make clients drop previous caches.
const DefaultVersion = "worship-pads-v3"

// DefaultShell is the path of the application root document.
const DefaultShell = "./index.html"

// SkipWaitingMessage is a control message that activates a waiting version immediately.
const SkipWaitingMessage = "SKIP_WAITING"

// Manifest lists resources to pre-cache for a version.
type Manifest struct {
	// Version is a cache store name.
	Version string `yaml:"version"`

	// Scope is a base URL to resolve relative paths, e.g. "https://pads.example/".
	Scope string `yaml:"scope"`

	// Shell is a path of core HTML document served to offline navigations.
	Shell string `yaml:"shell"`

	// Core are the shell files, pre-cached on install.
	Core []string `yaml:"core"`

	// Assets are audio files, pre-cached on install on a best-effort basis.
	Assets []string `yaml:"assets"`
}

// DefaultManifest returns manifest of the current deployment.
func DefaultManifest() Manifest {
	return Manifest{
		Version: DefaultVersion,
		Scope:   "http://localhost/",
		Shell:   DefaultShell,
		Core:    []string{"./", DefaultShell},
		Assets: []string{
			"audio/ambiente1.mp3",
			"audio/ambiente2.mp3",
			"audio/anjo.mp3",
			"audio/atimosfera.mp3",
			"audio/chorim.mp3",
			"audio/grave.mp3",
			"audio/guitar.mp3",
			"audio/hard.mp3",
			"audio/hillsong.mp3",
			"audio/motion1.mp3",
			"audio/motion2.mp3",
			"audio/piano.mp3",
			"audio/reverse.mp3",
			"audio/shimmer.mp3",
			"audio/shiny.mp3",
			"audio/syntevoice.mp3",
			"audio/vovoder.mp3",
			"audio/warm.mp3",
			"audio/worship.mp3",
		},
	}
}

// LoadManifest reads manifest from YAML file, omitted fields are taken from DefaultManifest.
func LoadManifest(fn string) (Manifest, error) {
	m := Manifest{}

	data, err := os.ReadFile(fn) //nolint:gosec // File name is provided by operator.
	if err != nil {
		return m, fmt.Errorf("read manifest: %w", err)
	}

	if err := yaml.UnmarshalStrict(data, &m); err != nil {
		return m, fmt.Errorf("decode manifest %s: %w", fn, err)
	}

	def := DefaultManifest()

	if m.Scope == "" {
		m.Scope = def.Scope
	}

	if m.Shell == "" {
		m.Shell = def.Shell
	}

	if m.Core == nil {
		m.Core = def.Core
	}

	if m.Assets == nil {
		m.Assets = def.Assets
	}

	return m, m.Validate()
}

// Validate checks manifest consistency.
func (m Manifest) Validate() error {
	if m.Version == "" {
		return errors.New("manifest version is required")
	}

	u, err := url.Parse(m.Scope)
	if err != nil {
		return fmt.Errorf("invalid scope %q: %w", m.Scope, err)
	}

	if !u.IsAbs() {
		return fmt.Errorf("scope %q must be an absolute URL", m.Scope)
	}

	return nil
}

// Resolve returns absolute URL of a path relative to scope.
func (m Manifest) Resolve(p string) (string, error) {
	base, err := url.Parse(m.Scope)
	if err != nil {
		return "", fmt.Errorf("invalid scope %q: %w", m.Scope, err)
	}

	ref, err := url.Parse(p)
	if err != nil {
		return "", fmt.Errorf("invalid path %q: %w", p, err)
	}

	u := base.ResolveReference(ref)
	u.Fragment = ""

	return u.String(), nil
}
