package modules

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/dlclark/regexp2"
	"github.com/nooga/ecmacore/pkg/host"
)

// FSResolver resolves module specifiers against a filesystem root: relative
// and absolute path handling plus extension and index-file probing, the
// usual ESM loader conventions.
type FSResolver struct {
	name       string
	fsys       fs.FS
	baseDir    string
	extensions []string
	indexFiles []string
	ignore     *regexp2.Regexp
}

// NewFSResolver creates a resolver rooted at baseDir on the OS filesystem.
// ignoreGlob, if non-empty, excludes specifiers matching it (e.g.
// "**/*.test.js") from resolution; translated to a regexp2 pattern.
func NewFSResolver(baseDir string, ignoreGlob string) (*FSResolver, error) {
	absDir, err := filepath.Abs(baseDir)
	if err != nil {
		absDir = baseDir
	}
	r := &FSResolver{
		name:       "fs",
		fsys:       os.DirFS(absDir),
		baseDir:    absDir,
		extensions: []string{".mjs", ".js"},
		indexFiles: []string{"index.mjs", "index.js"},
	}
	if ignoreGlob != "" {
		re, err := regexp2.Compile(globToRegex(ignoreGlob), regexp2.None)
		if err != nil {
			return nil, fmt.Errorf("invalid ignore glob %q: %w", ignoreGlob, err)
		}
		r.ignore = re
	}
	return r, nil
}

// Name implements host.ModuleResolver.
func (r *FSResolver) Name() string { return r.name }

// Resolve implements host.ModuleResolver: resolves specifier relative
// to referrer (the referrer's ResolvedPath, "" for the entry module) and
// reads its contents.
func (r *FSResolver) Resolve(referrer, specifier string) (*host.ResolvedSource, error) {
	target, err := r.targetPath(referrer, specifier)
	if err != nil {
		return nil, err
	}

	resolvedPath, err := r.tryResolve(target)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %q: %w", specifier, err)
	}

	if r.ignored(resolvedPath) {
		return nil, fmt.Errorf("module %q matches the ignore pattern", resolvedPath)
	}

	data, err := fs.ReadFile(r.fsys, resolvedPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read %q: %w", resolvedPath, err)
	}

	return &host.ResolvedSource{
		Specifier:    specifier,
		ResolvedPath: resolvedPath,
		Source:       string(data),
	}, nil
}

func (r *FSResolver) targetPath(referrer, specifier string) (string, error) {
	switch {
	case strings.HasPrefix(specifier, "./") || strings.HasPrefix(specifier, "../"):
		if referrer == "" {
			return filepath.Clean(strings.TrimPrefix(specifier, "./")), nil
		}
		return filepath.Clean(filepath.Join(filepath.Dir(referrer), specifier)), nil
	case strings.HasPrefix(specifier, "/"):
		return strings.TrimPrefix(specifier, "/"), nil
	default:
		return "", fmt.Errorf("unsupported bare specifier %q (no package resolution in this resolver)", specifier)
	}
}

func (r *FSResolver) tryResolve(target string) (string, error) {
	target = filepath.Clean(target)

	if r.isFile(target) {
		return target, nil
	}
	for _, ext := range r.extensions {
		if candidate := target + ext; r.isFile(candidate) {
			return candidate, nil
		}
	}
	for _, idx := range r.indexFiles {
		if candidate := filepath.Join(target, idx); r.isFile(candidate) {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("module not found: %s", target)
}

func (r *FSResolver) isFile(path string) bool {
	info, err := fs.Stat(r.fsys, path)
	return err == nil && !info.IsDir()
}

func (r *FSResolver) ignored(path string) bool {
	if r.ignore == nil {
		return false
	}
	matched, err := r.ignore.MatchString(path)
	return err == nil && matched
}

// globToRegex translates the small subset of glob syntax ignore lists need
// ("**", "*", ".") into a regexp2 pattern. This is not a general glob
// engine; just enough for filtering ignored specifiers.
func globToRegex(glob string) string {
	var b strings.Builder
	b.WriteString("^")
	for i := 0; i < len(glob); {
		switch {
		case strings.HasPrefix(glob[i:], "**"):
			b.WriteString(".*")
			i += 2
		case glob[i] == '*':
			b.WriteString("[^/]*")
			i++
		case glob[i] == '.':
			b.WriteString(`\.`)
			i++
		default:
			b.WriteByte(glob[i])
			i++
		}
	}
	b.WriteString("$")
	return b.String()
}
