package services

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"time"
)

// maxPhotoBytes caps photo downloads; anything larger is not a phone
// photo and gets skipped by the pipeline's per-photo failure handling.
const maxPhotoBytes = 10 << 20

// HTTPBlobStore resolves photo references (URLs into the blob store) to
// bytes for hashing and quality classification.
type HTTPBlobStore struct {
	client *http.Client
}

func NewHTTPBlobStore() *HTTPBlobStore {
	return &HTTPBlobStore{client: &http.Client{Timeout: 10 * time.Second}}
}

func (s *HTTPBlobStore) Fetch(ctx context.Context, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, err
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("blob store returned status %d for %s", resp.StatusCode, url)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxPhotoBytes+1))
	if err != nil {
		return nil, err
	}
	if len(data) > maxPhotoBytes {
		return nil, fmt.Errorf("photo %s exceeds %d bytes", url, maxPhotoBytes)
	}
	return data, nil
}
