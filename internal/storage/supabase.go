package storage

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// SupabaseStore uploads files to a Supabase Storage bucket through its REST API.
type SupabaseStore struct {
	baseURL    string
	apiKey     string
	bucketName string
	httpClient *http.Client
}

// NewSupabaseStore takes the project URL, e.g. https://abc.supabase.co.
func NewSupabaseStore(projectURL, apiKey, bucketName string) *SupabaseStore {
	return &SupabaseStore{
		baseURL:    strings.TrimSuffix(projectURL, "/"),
		apiKey:     apiKey,
		bucketName: bucketName,
		httpClient: &http.Client{},
	}
}

func (s *SupabaseStore) objectURL(key string) string {
	return fmt.Sprintf("%s/storage/v1/object/%s/%s", s.baseURL, s.bucketName, key)
}

func (s *SupabaseStore) publicPrefix() string {
	return fmt.Sprintf("%s/storage/v1/object/public/%s/", s.baseURL, s.bucketName)
}

// Put uploads body, overwriting any object with the same key.
func (s *SupabaseStore) Put(ctx context.Context, key string, body []byte, contentType string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.objectURL(key), reader(body))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", s.apiKey))
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("x-upsert", "true")

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to upload file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusCreated {
		body, _ := io.ReadAll(resp.Body)
		return "", fmt.Errorf("upload failed with status %d: %s", resp.StatusCode, string(body))
	}

	return s.publicPrefix() + key, nil
}

func (s *SupabaseStore) Delete(ctx context.Context, key string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, s.objectURL(key), nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", s.apiKey))

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to delete file: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusNoContent && resp.StatusCode != http.StatusNotFound {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("delete failed with status %d: %s", resp.StatusCode, string(body))
	}

	return nil
}

func (s *SupabaseStore) KeyFromURL(url string) (string, bool) {
	if !strings.HasPrefix(url, s.publicPrefix()) {
		return "", false
	}
	return strings.TrimPrefix(url, s.publicPrefix()), true
}
