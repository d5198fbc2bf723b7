package extract

import (
	"context"
	"io"
	"io/ioutil"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/jlaffaye/ftp"
	sha256 "github.com/minio/sha256-simd"
	"github.com/pkg/errors"
	"github.com/shadowatlas/shadow-atlas/atlas/registry"
	"github.com/shadowatlas/shadow-atlas/atlas/resilience"
	"github.com/shadowatlas/shadow-atlas/shared/bytesutil"
)

// tigerFTPExtractor fetches TIGER/Line shapefile bundles from the Census FTP
// mirror, falling back to the HTTPS mirror when FTP is unreachable.
type tigerFTPExtractor struct {
	base
}

func newTigerFTP(src *registry.SourceDescriptor, d *Downloader, h *resilience.Harness) *tigerFTPExtractor {
	return &tigerFTPExtractor{base: base{src: src, dl: d, h: h}}
}

// Download retrieves the zip bundle. FTP transfers stream straight to a temp
// file with the content hash computed along the way; the artifact owns the
// file and removes it on Release.
func (e *tigerFTPExtractor) Download(ctx context.Context, p Params) (*Artifact, error) {
	endpoint := expandEndpoint(e.src.EndpointTemplate, e.src, p.StateFIPS)
	u, err := url.Parse(endpoint)
	if err != nil {
		return nil, resilience.WithKind(resilience.KindPermanent,
			errors.Wrapf(err, "bad endpoint %s", endpoint))
	}
	if u.Scheme != "ftp" {
		return e.fetch(ctx, endpoint, FetchOpts{})
	}

	var artifact *Artifact
	ferr := e.h.Do(ctx, u.Host, func(ctx context.Context) error {
		a, err := e.retrFTP(ctx, u)
		if err != nil {
			return err
		}
		artifact = a
		return nil
	})
	if ferr == nil {
		return artifact, nil
	}
	if resilience.Classify(ferr) == resilience.KindCancelled {
		return nil, ferr
	}
	// Census publishes the same tree over HTTPS; fail over before giving up.
	httpsURL := httpsMirror(endpoint)
	log.WithError(ferr).WithField("url", httpsURL).Debug("FTP failed, trying HTTPS mirror")
	return e.fetch(ctx, httpsURL, FetchOpts{})
}

func (e *tigerFTPExtractor) retrFTP(ctx context.Context, u *url.URL) (*Artifact, error) {
	addr := u.Host
	if u.Port() == "" {
		addr += ":21"
	}
	conn, err := ftp.Dial(addr, ftp.DialWithContext(ctx), ftp.DialWithTimeout(30*time.Second))
	if err != nil {
		return nil, err
	}
	defer func() { _ = conn.Quit() }()
	if err := conn.Login("anonymous", "anonymous"); err != nil {
		return nil, err
	}

	resp, err := conn.Retr(u.Path)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Close() }()

	tmp, err := ioutil.TempFile(e.dl.tempDir, "atlas-tiger-*.zip")
	if err != nil {
		return nil, errors.Wrap(err, "could not create temp artifact")
	}
	hasher := sha256.New()
	size, err := io.Copy(io.MultiWriter(tmp, hasher), resp)
	if err != nil {
		name := tmp.Name()
		_ = tmp.Close()
		_ = os.Remove(name)
		return nil, err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return nil, err
	}

	a := &Artifact{
		SourceURL:   u.String(),
		HTTPStatus:  200, // FTP fetches report success uniformly
		Size:        size,
		FetchedAt:   time.Now().UTC(),
		path:        tmp.Name(),
		ContentHash: bytesutil.ToBytes32(hasher.Sum(nil)),
	}
	return a, nil
}

// Transform opens the shapefile bundle as a lazy feature stream.
func (e *tigerFTPExtractor) Transform(a *Artifact) (FeatureIter, error) {
	return openShapefileZip(a, a.Stub("tiger"), e.dl.tempDir)
}

func httpsMirror(ftpURL string) string {
	out := strings.Replace(ftpURL, "ftp://ftp2.census.gov/", "https://www2.census.gov/", 1)
	return strings.Replace(out, "ftp://", "https://", 1)
}
