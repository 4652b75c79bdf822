package service

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"

	"github.com/h2non/filetype"
	"github.com/maheshrc27/crosspost/internal/models"
)

type MediaFile struct {
	Body        io.ReadCloser
	ContentType string
	// Size is -1 when the source did not report a length.
	Size int64
	Kind models.MediaKind
}

// MediaFetcher opens a media URL for streaming and works out whether it is an
// image or a video.
type MediaFetcher interface {
	Fetch(ctx context.Context, rawURL string, declared models.MediaKind) (*MediaFile, error)
}

type mediaFetcher struct {
	client *http.Client
	r2     *R2Service
}

func NewMediaFetcher(client *http.Client, r2 *R2Service) MediaFetcher {
	if client == nil {
		client = http.DefaultClient
	}
	return &mediaFetcher{client: client, r2: r2}
}

func (f *mediaFetcher) Fetch(ctx context.Context, rawURL string, declared models.MediaKind) (*MediaFile, error) {
	u, err := url.Parse(rawURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("invalid media url %q", rawURL)
	}

	var file *MediaFile
	if f.r2.Owns(u) {
		file, err = f.r2.Open(ctx, u)
	} else {
		file, err = f.download(ctx, rawURL)
	}
	if err != nil {
		return nil, err
	}

	detectKind(file, declared)
	return file, nil
}

func (f *mediaFetcher) download(ctx context.Context, rawURL string) (*MediaFile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, fmt.Errorf("error creating request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("error downloading media: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		resp.Body.Close()
		return nil, fmt.Errorf("unexpected response status downloading media: %d", resp.StatusCode)
	}

	return &MediaFile{
		Body:        resp.Body,
		ContentType: resp.Header.Get("Content-Type"),
		Size:        resp.ContentLength,
	}, nil
}

type peekedBody struct {
	io.Reader
	io.Closer
}

// detectKind prefers the Content-Type header, then sniffs the first bytes,
// then trusts the declared kind.
func detectKind(file *MediaFile, declared models.MediaKind) {
	if kind := kindFromContentType(file.ContentType); kind != "" {
		file.Kind = kind
		return
	}

	br := bufio.NewReaderSize(file.Body, 512)
	head, _ := br.Peek(262)
	file.Body = &peekedBody{Reader: br, Closer: file.Body}

	if t, err := filetype.Match(head); err == nil && t != filetype.Unknown {
		switch {
		case filetype.IsImage(head):
			file.Kind = models.MediaKindImage
		case filetype.IsVideo(head):
			file.Kind = models.MediaKindVideo
		}
		if file.Kind != "" {
			file.ContentType = t.MIME.Value
			return
		}
	}
	file.Kind = declared
}

func kindFromContentType(contentType string) models.MediaKind {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return ""
	}
	switch {
	case strings.HasPrefix(mediaType, "image/"):
		return models.MediaKindImage
	case strings.HasPrefix(mediaType, "video/"):
		return models.MediaKindVideo
	}
	return ""
}

var errMediaTooLarge = errors.New("media exceeds size limit")

// readAllLimited buffers a media body for protocols that need the full
// length up front.
func readAllLimited(r io.Reader, limit int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > limit {
		return nil, errMediaTooLarge
	}
	return data, nil
}
