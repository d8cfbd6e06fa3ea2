// Package repoclient issues HTTP requests to the remote artifact repo:
// descriptor fetch, archive download, and free-text search against the
// index service. It is pure I/O and stateless between calls.
package repoclient

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/DuckyScr/jpkg/internal/coordinate"
)

// Client talks to a single configured remote artifact repo and search
// index over HTTP. It is safe for concurrent use: it holds no mutable
// state between calls.
type Client struct {
	httpClient *http.Client
	remoteBase string
	searchBase string
	userAgent  string
}

// New constructs a Client. timeout bounds every individual request issued
// through it.
func New(remoteBase, searchBase, userAgent string, timeout time.Duration) *Client {
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		remoteBase: strings.TrimRight(remoteBase, "/"),
		searchBase: searchBase,
		userAgent:  userAgent,
	}
}

// artifactURL builds the canonical remote URL for a coordinate's
// descriptor or archive: <base>/<group-path>/<artifact>/<version>/<artifact>-<version>.<ext>
func (c *Client) artifactURL(coord coordinate.Coordinate, ext string) string {
	return fmt.Sprintf("%s/%s/%s/%s/%s",
		c.remoteBase, coord.GroupPath(), coord.Artifact, coord.Version, coord.Filename(ext))
}

func (c *Client) newRequest(ctx context.Context, url string) (*http.Request, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("User-Agent", c.userAgent)
	return req, nil
}

// FetchDescriptor fetches and parses the project descriptor for coord.
func (c *Client) FetchDescriptor(ctx context.Context, coord coordinate.Coordinate, descriptorExt string) (*Descriptor, error) {
	url := c.artifactURL(coord, descriptorExt)

	req, err := c.newRequest(ctx, url)
	if err != nil {
		return nil, errors.Wrapf(err, "building descriptor request for %s", coord)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "fetching descriptor from %s", url)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, errors.Errorf("fetching descriptor from %s: HTTP %d", url, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, errors.Wrapf(err, "reading descriptor body from %s", url)
	}

	desc, err := parseDescriptor(coord, body)
	if err != nil {
		return nil, errors.Wrapf(err, "parsing descriptor for %s", coord)
	}
	return desc, nil
}

// DownloadArchive downloads coord's archive to destination. On success the
// file exists at destination. The destination's parent directory is
// created if missing.
func (c *Client) DownloadArchive(ctx context.Context, coord coordinate.Coordinate, archiveExt, destination string) error {
	return c.DownloadArchiveProgress(ctx, coord, archiveExt, destination, nil)
}

// DownloadArchiveProgress is DownloadArchive, additionally mirroring every
// byte written to progress (typically a progress bar's io.Writer) as it is
// copied. progress may be nil.
func (c *Client) DownloadArchiveProgress(ctx context.Context, coord coordinate.Coordinate, archiveExt, destination string, progress io.Writer) error {
	url := c.artifactURL(coord, archiveExt)

	req, err := c.newRequest(ctx, url)
	if err != nil {
		return errors.Wrapf(err, "building archive request for %s", coord)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return errors.Wrapf(err, "downloading archive from %s", url)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return errors.Errorf("downloading archive from %s: HTTP %d", url, resp.StatusCode)
	}

	if err := os.MkdirAll(filepath.Dir(destination), 0o755); err != nil {
		return errors.Wrapf(err, "creating directory for %s", destination)
	}

	tmp := destination + ".part"
	f, err := os.Create(tmp)
	if err != nil {
		return errors.Wrapf(err, "creating %s", tmp)
	}

	w := io.Writer(f)
	if progress != nil {
		w = io.MultiWriter(f, progress)
	}

	if _, err := io.Copy(w, resp.Body); err != nil {
		f.Close()
		os.Remove(tmp)
		return errors.Wrapf(err, "writing %s", tmp)
	}
	if err := f.Close(); err != nil {
		os.Remove(tmp)
		return errors.Wrapf(err, "closing %s", tmp)
	}

	if err := os.Rename(tmp, destination); err != nil {
		os.Remove(tmp)
		return errors.Wrapf(err, "renaming into place %s", destination)
	}
	return nil
}

// ContentLength issues a HEAD request for coord's archive and returns the
// server-reported size, or -1 if unknown.
func (c *Client) ContentLength(ctx context.Context, coord coordinate.Coordinate, archiveExt string) (int64, error) {
	url := c.artifactURL(coord, archiveExt)

	req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, nil)
	if err != nil {
		return -1, errors.Wrapf(err, "building HEAD request for %s", coord)
	}
	req.Header.Set("User-Agent", c.userAgent)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return -1, errors.Wrapf(err, "HEAD %s", url)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return -1, errors.Errorf("HEAD %s: HTTP %d", url, resp.StatusCode)
	}
	if resp.ContentLength < 0 {
		return -1, nil
	}
	return resp.ContentLength, nil
}

// SearchResult is one hit returned by Search.
type SearchResult struct {
	Group         string
	Artifact      string
	LatestVersion string
}

type searchResponse struct {
	Response struct {
		Docs []searchDoc `json:"docs"`
	} `json:"response"`
}

type searchDoc struct {
	G             string `json:"g"`
	A             string `json:"a"`
	LatestVersion string `json:"latestVersion"`
}

// Search issues a free-text query against the configured search index,
// returning up to 20 ordered results.
func (c *Client) Search(ctx context.Context, query string) ([]SearchResult, error) {
	searchURL := fmt.Sprintf("%s?q=%s&rows=20&wt=json", c.searchBase, url.QueryEscape(query))

	req, err := c.newRequest(ctx, searchURL)
	if err != nil {
		return nil, errors.Wrap(err, "building search request")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, errors.Wrapf(err, "searching %s", searchURL)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, errors.Errorf("searching %s: HTTP %d", searchURL, resp.StatusCode)
	}

	var parsed searchResponse
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, errors.Wrapf(err, "parsing search response from %s", searchURL)
	}

	results := make([]SearchResult, 0, len(parsed.Response.Docs))
	for _, d := range parsed.Response.Docs {
		results = append(results, SearchResult{Group: d.G, Artifact: d.A, LatestVersion: d.LatestVersion})
	}
	return results, nil
}
