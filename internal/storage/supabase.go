package storage

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"

	"github.com/jaevor/go-nanoid"
)

const objectKeyLength = 21

// Supabase stores objects in a Supabase storage bucket through its REST API.
type Supabase struct {
	baseURL    string
	bucket     string
	serviceKey string
	httpClient *http.Client
	newKey     func() string
}

var _ ObjectStore = (*Supabase)(nil)

// NewSupabase returns a store for bucket at baseURL. A nil client means http.DefaultClient.
func NewSupabase(baseURL, bucket, serviceKey string, client *http.Client) (*Supabase, error) {
	if client == nil {
		client = http.DefaultClient
	}
	newKey, err := nanoid.Standard(objectKeyLength)
	if err != nil {
		return nil, fmt.Errorf("object key generator: %w", err)
	}
	return &Supabase{
		baseURL:    strings.TrimRight(baseURL, "/"),
		bucket:     bucket,
		serviceKey: serviceKey,
		httpClient: client,
		newKey:     newKey,
	}, nil
}

// Upload stores content under folder with a random key and returns its public URL.
func (s *Supabase) Upload(ctx context.Context, folder string, content []byte, contentType string) (string, error) {
	objectPath := path.Join(strings.Trim(folder, "/"), s.newKey()+extension(contentType))
	uploadURL := fmt.Sprintf("%s/storage/v1/object/%s/%s", s.baseURL, s.bucket, objectPath)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, uploadURL, bytes.NewReader(content))
	if err != nil {
		return "", fmt.Errorf("build upload request: %w", err)
	}
	s.authorize(req)
	if contentType == "" {
		contentType = http.DetectContentType(content)
	}
	req.Header.Set("Content-Type", contentType)

	if err := s.do(req, "upload file"); err != nil {
		return "", err
	}
	return fmt.Sprintf("%s/storage/v1/object/public/%s/%s", s.baseURL, s.bucket, objectPath), nil
}

// Delete removes the object behind fileURL. A missing object is not an error.
func (s *Supabase) Delete(ctx context.Context, fileURL string) error {
	objectPath, err := s.objectPathFromURL(fileURL)
	if err != nil {
		return err
	}

	deleteURL := fmt.Sprintf("%s/storage/v1/object/%s/%s", s.baseURL, s.bucket, objectPath)
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, deleteURL, nil)
	if err != nil {
		return fmt.Errorf("build delete request: %w", err)
	}
	s.authorize(req)

	return s.do(req, "delete file")
}

func (s *Supabase) authorize(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+s.serviceKey)
	req.Header.Set("apikey", s.serviceKey)
}

func (s *Supabase) do(req *http.Request, op string) error {
	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	if req.Method == http.MethodDelete && resp.StatusCode == http.StatusNotFound {
		return nil
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return fmt.Errorf("%s: status %d: %s", op, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}

func (s *Supabase) objectPathFromURL(fileURL string) (string, error) {
	parsed, err := url.Parse(fileURL)
	if err != nil {
		return "", fmt.Errorf("parse file url: %w", err)
	}

	publicPrefix := "/storage/v1/object/public/" + s.bucket + "/"
	objectPrefix := "/storage/v1/object/" + s.bucket + "/"

	switch {
	case strings.HasPrefix(parsed.Path, publicPrefix):
		return strings.TrimPrefix(parsed.Path, publicPrefix), nil
	case strings.HasPrefix(parsed.Path, objectPrefix):
		return strings.TrimPrefix(parsed.Path, objectPrefix), nil
	default:
		return "", fmt.Errorf("file url does not belong to configured bucket")
	}
}
