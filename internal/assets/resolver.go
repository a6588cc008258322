package assets

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	log "github.com/sirupsen/logrus"
	"resty.dev/v3"
)

// Resolver answers where an image reference lives: a file in the local assets
// directory, or a URL under an external base. The local directory is scanned
// once; the catalog is static, so the cache never invalidates.
type Resolver struct {
	useExternal bool
	baseURL     string
	dir         string
	cache       map[string]string // filename -> absolute path
	httpClient  *resty.Client
}

var imageExtensions = map[string]bool{
	".png":  true,
	".jpg":  true,
	".jpeg": true,
	".gif":  true,
	".webp": true,
}

func NewResolver(dir string, useExternal bool, baseURL string, timeout time.Duration) (*Resolver, error) {
	r := &Resolver{
		useExternal: useExternal,
		baseURL:     strings.TrimRight(baseURL, "/"),
		dir:         dir,
		cache:       make(map[string]string),
	}

	if useExternal {
		if r.baseURL == "" {
			return nil, fmt.Errorf("external assets enabled but no base URL configured")
		}
		r.httpClient = resty.New().
			SetTimeout(timeout).
			SetRetryCount(2).
			SetRetryWaitTime(1 * time.Second).
			SetHeader("User-Agent", "hll-contentbot asset check")
		log.Infof("🌐 Using external assets at %s", r.baseURL)
		return r, nil
	}

	if err := r.scan(); err != nil {
		return nil, err
	}
	log.Infof("🎨 Cached %d asset files from %s", len(r.cache), dir)
	return r, nil
}

func (r *Resolver) scan() error {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		if os.IsNotExist(err) {
			log.Warnf("⚠️ Assets directory not found: %s", r.dir)
			return nil
		}
		return fmt.Errorf("failed to read assets directory %s: %w", r.dir, err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !imageExtensions[strings.ToLower(filepath.Ext(entry.Name()))] {
			continue
		}
		r.cache[entry.Name()] = filepath.Join(r.dir, entry.Name())
	}
	return nil
}

// URL resolves a filename the way the rendering layer embeds it: an external
// URL, or the attachment scheme for locally uploaded files.
func (r *Resolver) URL(filename string) string {
	if r.useExternal {
		return r.baseURL + "/" + filename
	}
	return "attachment://" + filename
}

// LocalPath returns the on-disk path of a cached local asset.
func (r *Resolver) LocalPath(filename string) (string, bool) {
	path, ok := r.cache[filename]
	return path, ok
}

// Has reports whether the reference is servable. External references can only
// be verified over the network, so they count as present here; CheckExternal
// covers them at startup.
func (r *Resolver) Has(filename string) bool {
	if r.useExternal {
		return true
	}
	_, ok := r.cache[filename]
	return ok
}

// CheckExternal probes the given filenames under the external base URL and
// returns the ones that are unreachable. No-op in local mode.
func (r *Resolver) CheckExternal(ctx context.Context, filenames []string) []string {
	if !r.useExternal {
		return nil
	}

	var unreachable []string
	for _, name := range filenames {
		url := r.URL(name)
		resp, err := r.httpClient.R().SetContext(ctx).Head(url)
		if err != nil {
			log.Warnf("⚠️ Asset check failed for %s: %v", url, err)
			unreachable = append(unreachable, name)
			continue
		}
		if resp.IsError() {
			log.Warnf("⚠️ Asset %s returned %s", url, resp.Status())
			unreachable = append(unreachable, name)
		}
	}
	return unreachable
}
