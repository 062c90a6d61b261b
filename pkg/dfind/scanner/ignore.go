package scanner

import (
	"os"
	"path/filepath"

	gitignore "github.com/denormal/go-gitignore"
)

// loadIgnore parses name inside root. A missing file yields nil.
func loadIgnore(root, name string) (gitignore.GitIgnore, error) {
	if name == "" {
		return nil, nil
	}

	f, err := os.Open(filepath.Join(root, name)) // #nosec G304
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer func() { _ = f.Close() }()

	return gitignore.New(f, root, nil), nil
}

// ignored reports whether the slash-separated relative path is excluded
// by the ignore rules.
func ignored(gi gitignore.GitIgnore, rel string, isDir bool) bool {
	if gi == nil {
		return false
	}
	m := gi.Relative(rel, isDir)
	return m != nil && m.Ignore()
}
