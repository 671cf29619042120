package app

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
)

// Paths are the default locations of the gallery's files.
type Paths struct {
	ConfigPath string
	BaseDir    string
	LogDir     string
	// EnvFile is read by LoadEnv before the working directory's .env.
	EnvFile string
}

// DefaultPaths resolves the default locations. In order of precedence:
//   - config: GALLERY_CONFIG_PATH, $XDG_CONFIG_HOME/gallery.toml, ~/.config/gallery.toml
//   - data: GALLERY_HOME, $XDG_DATA_HOME/gallery, ~/.local/share/gallery
//
// The env file sits next to the config file as gallery.env.
func DefaultPaths() (Paths, error) {
	configPath, err := envOrHome("GALLERY_CONFIG_PATH", "XDG_CONFIG_HOME", "gallery.toml", ".config")
	if err != nil {
		return Paths{}, err
	}
	baseDir, err := envOrHome("GALLERY_HOME", "XDG_DATA_HOME", "gallery", ".local", "share")
	if err != nil {
		return Paths{}, err
	}

	return Paths{
		ConfigPath: configPath,
		BaseDir:    baseDir,
		LogDir:     filepath.Join(baseDir, "log"),
		EnvFile:    filepath.Join(filepath.Dir(configPath), "gallery.env"),
	}, nil
}

// envOrHome returns $override if set, else $xdg/name, else ~/fallback.../name.
func envOrHome(override, xdg, name string, fallback ...string) (string, error) {
	if p := os.Getenv(override); p != "" {
		return p, nil
	}
	if dir := os.Getenv(xdg); dir != "" {
		return filepath.Join(dir, name), nil
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("cannot determine home directory: %w", err)
	}
	return filepath.Join(append(append([]string{home}, fallback...), name)...), nil
}

// LoadEnv sets variables from the given env files, skipping files that do
// not exist. Variables already set in the environment win, and earlier
// files win over later ones.
func LoadEnv(files ...string) error {
	for _, f := range files {
		if err := godotenv.Load(f); err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return fmt.Errorf("loading %s: %w", f, err)
		}
	}
	return nil
}
