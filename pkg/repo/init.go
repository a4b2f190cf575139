package repo

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/caskvcs/cask/pkg/object"
	"github.com/caskvcs/cask/pkg/refs"
)

// InitOptions controls repository creation.
type InitOptions struct {
	// Digest selects the object identity algorithm. Empty means the
	// default (sha256).
	Digest object.Algo
	// DefaultBranch is the branch HEAD points at. Empty means "main".
	DefaultBranch string
}

// Init creates a new cask repository at path: the .cask/ directory with
// objects/, refs/heads/, refs/tags/, logs/, a symbolic HEAD, and config.toml.
// Fails if .cask/ already exists.
func Init(path string, opts InitOptions) (*Repo, error) {
	caskDir := filepath.Join(path, ".cask")

	if _, err := os.Stat(caskDir); err == nil {
		return nil, fmt.Errorf("init: repository already exists at %s", caskDir)
	}

	algo := opts.Digest
	if algo == "" {
		algo = object.SHA256
	}
	if _, err := object.ParseAlgo(string(algo)); err != nil {
		return nil, fmt.Errorf("init: %w", err)
	}
	branch := opts.DefaultBranch
	if branch == "" {
		branch = "main"
	}

	dirs := []string{
		filepath.Join(caskDir, "objects"),
		filepath.Join(caskDir, "refs", "heads"),
		filepath.Join(caskDir, "refs", "tags"),
		filepath.Join(caskDir, "logs", "refs", "heads"),
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return nil, fmt.Errorf("init: mkdir %s: %w", d, err)
		}
	}

	refStore := refs.NewStore(caskDir)
	if err := refStore.SetSymbolic("HEAD", "refs/heads/"+branch); err != nil {
		return nil, fmt.Errorf("init: write HEAD: %w", err)
	}

	cfg := &Config{
		Core: CoreConfig{
			FormatVersion: currentFormatVersion,
			Digest:        string(algo),
		},
	}
	if err := writeConfig(caskDir, cfg); err != nil {
		return nil, fmt.Errorf("init: %w", err)
	}

	return &Repo{
		RootDir: path,
		CaskDir: caskDir,
		Store:   object.NewStore(caskDir, algo),
		Refs:    refStore,
		Config:  cfg,
	}, nil
}

// Open searches upward from path for a .cask/ directory and opens the
// repository, reading the digest algorithm from config.toml.
func Open(path string) (*Repo, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("open: abs path: %w", err)
	}

	cur := abs
	for {
		caskDir := filepath.Join(cur, ".cask")
		info, err := os.Stat(caskDir)
		if err == nil && info.IsDir() {
			cfg, err := readConfig(caskDir)
			if err != nil {
				return nil, fmt.Errorf("open: %w", err)
			}
			algo, err := object.ParseAlgo(cfg.Core.Digest)
			if err != nil {
				return nil, fmt.Errorf("open: %w", err)
			}
			return &Repo{
				RootDir: cur,
				CaskDir: caskDir,
				Store:   object.NewStore(caskDir, algo),
				Refs:    refs.NewStore(caskDir),
				Config:  cfg,
			}, nil
		}

		parent := filepath.Dir(cur)
		if parent == cur {
			return nil, fmt.Errorf("open: not a cask repository (or any parent up to /)")
		}
		cur = parent
	}
}
