package extract

import (
	"context"
	"io"
	"io/ioutil"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/dustin/go-humanize"
	sha256 "github.com/minio/sha256-simd"
	"github.com/pkg/errors"
	"github.com/shadowatlas/shadow-atlas/atlas/resilience"
	"github.com/shadowatlas/shadow-atlas/shared/params"
	"go.opencensus.io/trace"
)

// maxRedirects follows the HTTP contract for portal fetches.
const maxRedirects = 5

// inMemoryLimit keeps small payloads off disk. Larger bundles (full-state
// shapefile zips) spill to a scoped temp file so the full-US build stays
// inside the memory budget.
const inMemoryLimit = 32 << 20 // 32 MiB

// Artifact is a scoped download product. Release is guaranteed on all exit
// paths by the extractor contract and is safe to call more than once.
type Artifact struct {
	SourceURL    string
	HTTPStatus   int
	LastModified string
	ContentHash  [32]byte
	Size         int64
	FetchedAt    time.Time

	data []byte // in-memory payload, nil when spilled to disk
	path string // temp file path, empty when in memory

	releaseOnce sync.Once
	releaseErr  error
}

// Bytes returns the artifact payload, reading the temp file if spilled.
func (a *Artifact) Bytes() ([]byte, error) {
	if a.data != nil {
		return a.data, nil
	}
	if a.path == "" {
		return nil, errors.New("artifact has been released")
	}
	return ioutil.ReadFile(a.path)
}

// Path returns the on-disk location, or empty for in-memory artifacts.
func (a *Artifact) Path() string {
	return a.path
}

// Release frees the artifact's disk and memory footprint. Idempotent.
func (a *Artifact) Release() error {
	a.releaseOnce.Do(func() {
		a.data = nil
		if a.path != "" {
			a.releaseErr = os.Remove(a.path)
			a.path = ""
		}
	})
	return a.releaseErr
}

// Stub converts the artifact into a provenance stub for emitted features.
func (a *Artifact) Stub(provider string) *ProvenanceStub {
	return &ProvenanceStub{
		SourceURL:    a.SourceURL,
		Provider:     provider,
		FetchedAt:    a.FetchedAt,
		ContentHash:  a.ContentHash,
		HTTPStatus:   a.HTTPStatus,
		LastModified: a.LastModified,
	}
}

// Downloader performs HTTP fetches with streaming content hashing.
type Downloader struct {
	client  *http.Client
	tempDir string
}

// NewDownloader builds a downloader honoring the configured request timeout.
func NewDownloader(cfg *params.AtlasConfig, tempDir string) *Downloader {
	return &Downloader{
		client: &http.Client{
			Timeout: cfg.RequestTimeout,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				if len(via) >= maxRedirects {
					return errors.Errorf("stopped after %d redirects", maxRedirects)
				}
				return nil
			},
		},
		tempDir: tempDir,
	}
}

// FetchOpts tune one fetch.
type FetchOpts struct {
	// ETag and LastModified enable conditional requests.
	ETag         string
	LastModified string
	// Accept overrides the Accept header.
	Accept string
	// Body, when non-empty, turns the request into a POST (Overpass).
	Body string
}

// Fetch downloads url into a scoped artifact. The SHA-256 content hash is
// computed while streaming; payloads beyond inMemoryLimit spill to disk.
// Non-2xx statuses (other than 304) surface as HTTPStatusError so the
// resilience harness can classify them.
func (d *Downloader) Fetch(ctx context.Context, url string, opts FetchOpts) (*Artifact, error) {
	ctx, span := trace.StartSpan(ctx, "extract.Fetch")
	defer span.End()
	span.AddAttributes(trace.StringAttribute("url", url))

	method := http.MethodGet
	var bodyReader io.Reader
	if opts.Body != "" {
		method = http.MethodPost
		bodyReader = strings.NewReader(opts.Body)
	}
	req, err := http.NewRequestWithContext(ctx, method, url, bodyReader)
	if err != nil {
		return nil, resilience.WithKind(resilience.KindPermanent, err)
	}
	if opts.ETag != "" {
		req.Header.Set("If-None-Match", opts.ETag)
	}
	if opts.LastModified != "" {
		req.Header.Set("If-Modified-Since", opts.LastModified)
	}
	if opts.Accept != "" {
		req.Header.Set("Accept", opts.Accept)
	}
	if opts.Body != "" {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := d.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			log.WithError(err).Debug("Failed to close response body")
		}
	}()

	if resp.StatusCode == http.StatusNotModified {
		return &Artifact{
			SourceURL:    url,
			HTTPStatus:   resp.StatusCode,
			LastModified: resp.Header.Get("Last-Modified"),
			FetchedAt:    time.Now().UTC(),
		}, nil
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		// Drain a bounded amount so the connection can be reused.
		_, _ = io.CopyN(ioutil.Discard, resp.Body, 1<<16)
		return nil, &resilience.HTTPStatusError{URL: url, StatusCode: resp.StatusCode}
	}

	artifact, err := d.buffer(url, resp)
	if err != nil {
		return nil, err
	}
	log.WithFields(map[string]interface{}{
		"url":  url,
		"size": humanize.Bytes(uint64(artifact.Size)),
	}).Debug("Downloaded artifact")
	return artifact, nil
}

// buffer streams the body into memory or a temp file, hashing along the way.
func (d *Downloader) buffer(url string, resp *http.Response) (*Artifact, error) {
	hasher := sha256.New()
	artifact := &Artifact{
		SourceURL:    url,
		HTTPStatus:   resp.StatusCode,
		LastModified: resp.Header.Get("Last-Modified"),
		FetchedAt:    time.Now().UTC(),
	}

	// Read up to the in-memory limit first.
	head := make([]byte, 0, 1<<20)
	buf := make([]byte, 1<<16)
	var total int64
	spilled := false
	var tmp *os.File
	for {
		n, err := resp.Body.Read(buf)
		if n > 0 {
			total += int64(n)
			if _, herr := hasher.Write(buf[:n]); herr != nil {
				return nil, herr
			}
			if !spilled {
				head = append(head, buf[:n]...)
				if total > inMemoryLimit {
					var terr error
					tmp, terr = ioutil.TempFile(d.tempDir, "atlas-artifact-*")
					if terr != nil {
						return nil, errors.Wrap(terr, "could not create temp artifact")
					}
					if _, terr = tmp.Write(head); terr != nil {
						cleanupTemp(tmp)
						return nil, terr
					}
					head = nil
					spilled = true
				}
			} else {
				if _, terr := tmp.Write(buf[:n]); terr != nil {
					cleanupTemp(tmp)
					return nil, terr
				}
			}
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			if spilled {
				cleanupTemp(tmp)
			}
			return nil, err
		}
	}

	copy(artifact.ContentHash[:], hasher.Sum(nil))
	artifact.Size = total
	if spilled {
		if err := tmp.Close(); err != nil {
			_ = os.Remove(tmp.Name())
			return nil, err
		}
		artifact.path = tmp.Name()
	} else {
		artifact.data = head
	}
	return artifact, nil
}

func cleanupTemp(f *os.File) {
	name := f.Name()
	_ = f.Close()
	_ = os.Remove(name)
}
