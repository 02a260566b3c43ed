package media

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/charlievieth/fastwalk"
	"github.com/gabriel-vasile/mimetype"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/builderbridge/internal/domain/dispatch"
	"github.com/GriffinCanCode/builderbridge/internal/domain/protocol"
	"github.com/GriffinCanCode/builderbridge/internal/infrastructure/monitoring"
)

// ErrNoMatch is returned when no asset satisfies a request.
var ErrNoMatch = errors.New("no matching media asset")

// Config describes a local media library.
type Config struct {
	// Root is the directory holding the assets.
	Root string `yaml:"root" toml:"root"`
	// Patterns are doublestar globs relative to Root. Empty matches
	// everything.
	Patterns []string `yaml:"patterns" toml:"patterns"`
	// BaseURL is prefixed to the relative path to form the asset URL.
	BaseURL string `yaml:"base_url" toml:"base_url"`
}

// Asset is one file in the library.
type Asset struct {
	Path     string
	Size     int64
	MIME     string
	Modified time.Time
}

// Library answers addMedia requests from a directory tree.
type Library struct {
	cfg     Config
	logger  *zap.Logger
	metrics *monitoring.Metrics
}

// NewLibrary validates cfg and returns a library over it.
func NewLibrary(cfg Config, logger *zap.Logger, metrics *monitoring.Metrics) (*Library, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	info, err := os.Stat(cfg.Root)
	if err != nil {
		return nil, fmt.Errorf("media root: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("media root %s is not a directory", cfg.Root)
	}
	for _, p := range cfg.Patterns {
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("invalid media pattern %q", p)
		}
	}
	return &Library{cfg: cfg, logger: logger.Named("media"), metrics: metrics}, nil
}

// List returns the assets accepted by extensions (all when empty), newest
// first.
func (l *Library) List(ctx context.Context, extensions []string) ([]Asset, error) {
	accept := normalizeExtensions(extensions)

	var (
		mu     sync.Mutex
		assets []Asset
	)
	conf := fastwalk.Config{Follow: false}
	err := fastwalk.Walk(&conf, l.cfg.Root, func(p string, d fs.DirEntry, err error) error {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		if err != nil || d.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(l.cfg.Root, p)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if !l.matches(rel) {
			return nil
		}
		if len(accept) > 0 && !slices.Contains(accept, strings.ToLower(path.Ext(rel))) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return nil
		}
		asset := Asset{Path: rel, Size: info.Size(), Modified: info.ModTime()}
		if mt, err := mimetype.DetectFile(p); err == nil {
			asset.MIME = mt.String()
		}

		mu.Lock()
		assets = append(assets, asset)
		mu.Unlock()
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk media root: %w", err)
	}

	slices.SortFunc(assets, func(a, b Asset) int {
		if c := b.Modified.Compare(a.Modified); c != 0 {
			return c
		}
		return strings.Compare(a.Path, b.Path)
	})
	return assets, nil
}

func (l *Library) matches(rel string) bool {
	if len(l.cfg.Patterns) == 0 {
		return true
	}
	for _, p := range l.cfg.Patterns {
		if ok, _ := doublestar.Match(p, rel); ok {
			return true
		}
	}
	return false
}

// Pick selects the asset for a request. A "fileName" entry in the request
// context selects that file; otherwise the newest accepted asset wins.
func (l *Library) Pick(ctx context.Context, extra protocol.AddMediaExtra) (protocol.AddMediaData, error) {
	timer := monitoring.NewTimer(l.metrics, "media", "pick")

	assets, err := l.List(ctx, extra.AcceptedExtensions)
	if err != nil {
		timer.Stop("error")
		return protocol.AddMediaData{}, err
	}

	want, _ := extra.Context["fileName"].(string)
	for _, a := range assets {
		if want == "" || a.Path == want || path.Base(a.Path) == want {
			timer.Stop("success")
			return l.data(a), nil
		}
	}
	timer.Stop("miss")
	return protocol.AddMediaData{}, ErrNoMatch
}

func (l *Library) data(a Asset) protocol.AddMediaData {
	return protocol.AddMediaData{
		UID:       a.Path,
		FileName:  path.Base(a.Path),
		URL:       joinURL(l.cfg.BaseURL, a.Path),
		MediaType: a.MIME,
		Size:      a.Size,
	}
}

// Handler answers addMedia requests.
func (l *Library) Handler() dispatch.AddMediaHandler {
	return func(ctx context.Context, resolve func(protocol.AddMediaData), reject dispatch.Reject, extra protocol.AddMediaExtra) {
		data, err := l.Pick(ctx, extra)
		if err != nil {
			l.logger.Debug("Media request failed", zap.Error(err))
			reject(err.Error())
			return
		}
		resolve(data)
	}
}

func normalizeExtensions(exts []string) []string {
	out := make([]string, 0, len(exts))
	for _, e := range exts {
		e = strings.ToLower(strings.TrimSpace(e))
		if e == "" {
			continue
		}
		if !strings.HasPrefix(e, ".") {
			e = "." + e
		}
		out = append(out, e)
	}
	return out
}

func joinURL(base, rel string) string {
	if base == "" {
		return rel
	}
	u, err := url.Parse(base)
	if err != nil {
		return strings.TrimRight(base, "/") + "/" + rel
	}
	return u.JoinPath(rel).String()
}
