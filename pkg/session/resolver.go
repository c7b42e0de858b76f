package session

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/getmockd/inspectd/pkg/exchange"
	"github.com/getmockd/inspectd/pkg/logging"
)

// Resolver turns a session name into the exchanges it holds. Entries that
// could not be read are returned as nil. Unknown names yield an error matching
// ErrSessionNotFound.
type Resolver interface {
	Resolve(ctx context.Context, name string) ([]*exchange.Exchange, error)
}

// ResolverFunc adapts a function to the Resolver interface.
type ResolverFunc func(ctx context.Context, name string) ([]*exchange.Exchange, error)

// Resolve calls f.
func (f ResolverFunc) Resolve(ctx context.Context, name string) ([]*exchange.Exchange, error) {
	return f(ctx, name)
}

// Info describes a dump file found in a sessions directory.
type Info struct {
	Name    string    `json:"name"`
	Path    string    `json:"path"`
	Format  Format    `json:"format"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"modTime"`
}

// DirResolver resolves session names to dump files in a directory.
type DirResolver struct {
	Dir string
	Log *slog.Logger
}

// NewDirResolver creates a resolver reading dumps from dir.
func NewDirResolver(dir string, log *slog.Logger) *DirResolver {
	if log == nil {
		log = logging.Nop()
	}
	return &DirResolver{Dir: dir, Log: log}
}

// Path returns the dump file backing name.
func (r *DirResolver) Path(name string) (string, error) {
	if !ValidName(name) {
		return "", fmt.Errorf("%w: %q", ErrSessionNotFound, name)
	}
	for _, ext := range Extensions {
		p := filepath.Join(r.Dir, name+ext)
		if info, err := os.Stat(p); err == nil && info.Mode().IsRegular() {
			return p, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrSessionNotFound, name)
}

// Resolve implements Resolver.
func (r *DirResolver) Resolve(ctx context.Context, name string) ([]*exchange.Exchange, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	path, err := r.Path(name)
	if err != nil {
		return nil, err
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("%w: %q", ErrSessionNotFound, name)
		}
		return nil, fmt.Errorf("failed to read session %s: %w", path, err)
	}

	log := r.Log
	if log == nil {
		log = logging.Nop()
	}
	log = log.With("session", name)
	exchanges, err := DecodeDump(data, FormatOf(path), log)
	if err != nil {
		return nil, fmt.Errorf("session %q: %w", name, err)
	}
	return exchanges, nil
}

// List returns the sessions available from the resolver's directory.
func (r *DirResolver) List() ([]Info, error) {
	return List(r.Dir)
}

// ValidName reports whether name can refer to a dump. Empty names, the
// reserved live name, and names that could escape the sessions directory are
// rejected.
func ValidName(name string) bool {
	if name == "" || name == LiveName || name == "." {
		return false
	}
	if strings.ContainsAny(name, `/\`) || strings.Contains(name, "..") {
		return false
	}
	return true
}

// List enumerates dumps in dir, sorted by name. When a name exists with more
// than one extension the first in Extensions wins. A missing directory yields
// an empty list.
func List(dir string) ([]Info, error) {
	fsys := os.DirFS(dir)
	matches, err := doublestar.Glob(fsys, "*.{json,yaml,yml}", doublestar.WithFilesOnly())
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions in %s: %w", dir, err)
	}

	byName := make(map[string]Info, len(matches))
	for _, m := range matches {
		ext := filepath.Ext(m)
		name := strings.TrimSuffix(m, ext)
		if !ValidName(name) {
			continue
		}
		if prev, ok := byName[name]; ok && extRank(filepath.Ext(prev.Path)) <= extRank(ext) {
			continue
		}
		st, err := fs.Stat(fsys, m)
		if err != nil {
			continue
		}
		byName[name] = Info{
			Name:    name,
			Path:    filepath.Join(dir, m),
			Format:  FormatOf(m),
			Size:    st.Size(),
			ModTime: st.ModTime(),
		}
	}

	out := make([]Info, 0, len(byName))
	for _, info := range byName {
		out = append(out, info)
	}
	slices.SortFunc(out, func(a, b Info) int { return strings.Compare(a.Name, b.Name) })
	return out, nil
}

func extRank(ext string) int {
	if i := slices.Index(Extensions, ext); i >= 0 {
		return i
	}
	return len(Extensions)
}
