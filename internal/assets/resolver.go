// Package assets locates the support files of the hand landmark inference runtime.
//
// A runtime consists of the inference service script and the landmark model.
// They are looked up under a primary base (usually a local directory shipped
// next to the binary) and, if that fails or stalls, under a secondary remote
// base whose files are downloaded into a cache directory.
package assets

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/ayusman/treegesture/internal/chain"
)

// Runtime file names, relative to a base.
const (
	ScriptFile = "mediapipe_service.py"
	ModelFile  = "models/hand_landmarker.task"
)

// ResolveTimeout bounds the resolution against a single base.
const ResolveTimeout = 12 * time.Second

// DefaultProbeTimeout bounds the best-effort probe of each base. The probe
// runs before the resolution attempts and does not use their budget.
const DefaultProbeTimeout = 3 * time.Second

// Runtime is the resolved location of the inference runtime.
type Runtime struct {
	Base       string
	ScriptPath string
	ModelPath  string
	// Remote is true when the files were fetched from an http(s) base.
	Remote bool
}

// AssetTimeoutError is returned when neither base produced a runtime.
type AssetTimeoutError struct {
	Primary   string
	Secondary string
	Err       error
}

func (e *AssetTimeoutError) Error() string {
	return fmt.Sprintf("runtime assets unreachable (primary %s, secondary %s): %v", e.Primary, e.Secondary, e.Err)
}

func (e *AssetTimeoutError) Unwrap() error { return e.Err }

// Status returns the user-facing description of the failure.
func (e *AssetTimeoutError) Status() string {
	return fmt.Sprintf("hand model load timed out (check that %s and %s are reachable)", e.Primary, e.Secondary)
}

// Resolver resolves the runtime against a primary base with one fallback.
type Resolver struct {
	Primary   string
	Secondary string
	Transport Transport
	// CacheDir receives files downloaded from remote bases.
	CacheDir string
	// Timeout bounds each base. Defaults to ResolveTimeout.
	Timeout time.Duration
	// Probe enables the best-effort file probe before the attempts.
	Probe bool
	// ProbeTimeout bounds the probe. Defaults to DefaultProbeTimeout.
	ProbeTimeout time.Duration
}

// NewResolver returns a Resolver using HTTP for remote bases.
func NewResolver(primary, secondary, cacheDir string) *Resolver {
	return &Resolver{
		Primary:   primary,
		Secondary: secondary,
		Transport: NewHTTPTransport(),
		CacheDir:  cacheDir,
		Timeout:   ResolveTimeout,
		Probe:     true,
	}
}

// Resolve returns the runtime from the first base that succeeds in time.
func (r *Resolver) Resolve(ctx context.Context) (Runtime, error) {
	timeout := r.Timeout
	if timeout <= 0 {
		timeout = ResolveTimeout
	}

	var bases []string
	for _, base := range []string{r.Primary, r.Secondary} {
		if base != "" {
			bases = append(bases, base)
		}
	}

	if r.Probe {
		r.probeAll(ctx, bases)
	}

	var attempts []chain.Attempt[Runtime]
	for _, base := range bases {
		attempts = append(attempts, chain.Attempt[Runtime]{
			Name:    "assets " + base,
			Timeout: timeout,
			Run: func(ctx context.Context) (Runtime, error) {
				return r.resolveBase(ctx, base)
			},
		})
	}

	if len(attempts) == 0 {
		return Runtime{}, &AssetTimeoutError{Err: errors.New("no asset base configured")}
	}

	res, err := chain.Run(ctx, attempts, nil)
	if err != nil {
		if ctx.Err() != nil {
			return Runtime{}, err
		}
		return Runtime{}, &AssetTimeoutError{Primary: r.Primary, Secondary: r.Secondary, Err: err}
	}
	if res.Fallback() {
		log.Printf("assets: primary base failed, using %s", res.Value.Base)
	}
	return res.Value, nil
}

// isRemote reports whether base is an http(s) URL.
func isRemote(base string) bool {
	return strings.HasPrefix(base, "http://") || strings.HasPrefix(base, "https://")
}

// JoinBase joins a base and a relative path with exactly one separator.
func JoinBase(base, name string) string {
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	return base + strings.TrimLeft(name, "/")
}

// probeAll probes every base concurrently under its own bound and logs what
// fails. It returns when all probes are done or ctx ends.
func (r *Resolver) probeAll(ctx context.Context, bases []string) {
	timeout := r.ProbeTimeout
	if timeout <= 0 {
		timeout = DefaultProbeTimeout
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	var wg sync.WaitGroup
	for _, base := range bases {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := r.probe(ctx, base); err != nil {
				log.Printf("assets: probe %s: %v (continuing)", base, err)
			}
		}()
	}
	wg.Wait()
}

// probe checks that both runtime files look present. A failure is only a hint:
// caches and proxies produce false negatives.
func (r *Resolver) probe(ctx context.Context, base string) error {
	if !isRemote(base) {
		for _, name := range []string{ScriptFile, ModelFile} {
			if _, err := os.Stat(filepath.Join(localPath(base), name)); err != nil {
				return errors.Wrapf(err, "stat %s", name)
			}
		}
		return nil
	}

	if r.Transport == nil {
		return errors.New("no transport for remote base")
	}
	scriptStatus, err := r.Transport.Head(ctx, JoinBase(base, ScriptFile))
	if err != nil {
		return errors.Wrapf(err, "HEAD %s", ScriptFile)
	}
	modelStatus, err := r.Transport.Head(ctx, JoinBase(base, ModelFile))
	if err != nil {
		return errors.Wrapf(err, "HEAD %s", ModelFile)
	}
	if scriptStatus != 200 || modelStatus != 200 {
		return errors.Errorf("asset probe failed (script:%d, model:%d)", scriptStatus, modelStatus)
	}
	return nil
}

func (r *Resolver) resolveBase(ctx context.Context, base string) (Runtime, error) {
	if !isRemote(base) {
		dir := localPath(base)
		rt := Runtime{
			Base:       base,
			ScriptPath: filepath.Join(dir, ScriptFile),
			ModelPath:  filepath.Join(dir, ModelFile),
		}
		for _, p := range []string{rt.ScriptPath, rt.ModelPath} {
			info, err := os.Stat(p)
			if err != nil {
				return Runtime{}, errors.Wrap(err, "resolve local runtime")
			}
			if info.IsDir() {
				return Runtime{}, errors.Errorf("resolve local runtime: %s is a directory", p)
			}
		}
		return rt, nil
	}

	if r.Transport == nil {
		return Runtime{}, errors.New("no transport for remote base")
	}

	dir := filepath.Join(r.CacheDir, cacheKey(base))
	rt := Runtime{
		Base:       base,
		ScriptPath: filepath.Join(dir, ScriptFile),
		ModelPath:  filepath.Join(dir, ModelFile),
		Remote:     true,
	}
	if err := r.download(ctx, JoinBase(base, ScriptFile), rt.ScriptPath); err != nil {
		return Runtime{}, err
	}
	if err := r.download(ctx, JoinBase(base, ModelFile), rt.ModelPath); err != nil {
		return Runtime{}, err
	}
	return rt, nil
}

// download writes src to dest atomically through a temp file in the same directory.
func (r *Resolver) download(ctx context.Context, src, dest string) error {
	body, err := r.Transport.Get(ctx, src)
	if err != nil {
		return errors.Wrapf(err, "fetch %s", src)
	}
	defer body.Close()

	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return errors.Wrap(err, "create cache dir")
	}

	tmp, err := os.CreateTemp(filepath.Dir(dest), ".download-*")
	if err != nil {
		return errors.Wrap(err, "create temp file")
	}
	defer os.Remove(tmp.Name())

	if _, err := io.Copy(tmp, body); err != nil {
		tmp.Close()
		return errors.Wrapf(err, "download %s", src)
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "close temp file")
	}
	return errors.Wrap(os.Rename(tmp.Name(), dest), "install downloaded file")
}

// localPath strips a file:// scheme.
func localPath(base string) string {
	if strings.HasPrefix(base, "file://") {
		if u, err := url.Parse(base); err == nil {
			return u.Path
		}
	}
	return base
}

func cacheKey(base string) string {
	sum := sha256.Sum256([]byte(base))
	return hex.EncodeToString(sum[:8])
}
