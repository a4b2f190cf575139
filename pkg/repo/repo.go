// Package repo ties the object store and ref store together under a .cask/
// metadata directory and provides the repository-level operations built on
// both.
package repo

import (
	"github.com/caskvcs/cask/pkg/object"
	"github.com/caskvcs/cask/pkg/refs"
)

// Repo represents an opened cask repository.
type Repo struct {
	RootDir string        // working directory root
	CaskDir string        // .cask/ directory
	Store   *object.Store // content-addressed object store
	Refs    *refs.Store   // reference store
	Config  *Config       // repository-local settings
}
