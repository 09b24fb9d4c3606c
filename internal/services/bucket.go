package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/desertthunder/compuse/internal/shared"
	"golang.org/x/oauth2"
)

// BucketService stores clip audio through a storage bucket HTTP API.
//
// Objects live at {baseURL}/object/{bucket}/{key}; that URL is the durable clip URI.
// Requests carry the API key as a bearer token through an [oauth2] static token source.
type BucketService struct {
	baseURL    string
	bucket     string
	httpClient *http.Client
}

// NewBucketService creates a bucket client. A non-nil client supplies the transport under the auth layer.
func NewBucketService(ctx context.Context, baseURL, bucket, apiKey string, client *http.Client) (*BucketService, error) {
	if baseURL == "" {
		return nil, fmt.Errorf("%w: bucket url", shared.ErrMissingArgument)
	}
	if bucket == "" {
		return nil, fmt.Errorf("%w: bucket name", shared.ErrMissingArgument)
	}
	if _, err := url.ParseRequestURI(baseURL); err != nil {
		return nil, fmt.Errorf("%w: bucket url %q", shared.ErrInvalidArgument, baseURL)
	}

	if client != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, client)
	}

	httpClient := http.DefaultClient
	if apiKey != "" {
		httpClient = oauth2.NewClient(ctx, oauth2.StaticTokenSource(&oauth2.Token{AccessToken: apiKey, TokenType: "Bearer"}))
	} else if client != nil {
		httpClient = client
	}

	return &BucketService{
		baseURL:    strings.TrimRight(baseURL, "/"),
		bucket:     bucket,
		httpClient: httpClient,
	}, nil
}

func (b *BucketService) Name() string { return "bucket" }

// ObjectURL returns the URI of key in the bucket.
func (b *BucketService) ObjectURL(key string) string {
	return b.baseURL + "/object/" + b.bucket + "/" + strings.TrimLeft(key, "/")
}

func (b *BucketService) Put(ctx context.Context, key string, data []byte, mimeType string) (string, error) {
	uri := b.ObjectURL(key)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, uri, bytes.NewReader(data))
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", mimeType)
	req.Header.Set("x-upsert", "true")

	if _, err := b.do(req); err != nil {
		return "", err
	}
	return uri, nil
}

func (b *BucketService) Get(ctx context.Context, uri string) ([]byte, string, error) {
	if err := b.owns(uri); err != nil {
		return nil, "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, uri, nil)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := b.do(req)
	if err != nil {
		return nil, "", err
	}
	return resp.body, resp.contentType, nil
}

func (b *BucketService) Delete(ctx context.Context, uri string) error {
	if err := b.owns(uri); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, uri, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	if _, err := b.do(req); err != nil && !errors.Is(err, shared.ErrObjectNotFound) {
		return err
	}
	return nil
}

type bucketResponse struct {
	body        []byte
	contentType string
}

func (b *BucketService) do(req *http.Request) (*bucketResponse, error) {
	resp, err := b.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", shared.ErrServiceUnavailable, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return nil, fmt.Errorf("%w: %s", shared.ErrObjectNotFound, req.URL)
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		return nil, fmt.Errorf("%w: %s %s: status %d", shared.ErrStorage, req.Method, req.URL.Path, resp.StatusCode)
	}

	return &bucketResponse{body: body, contentType: resp.Header.Get("Content-Type")}, nil
}

func (b *BucketService) owns(uri string) error {
	if !strings.HasPrefix(uri, b.baseURL+"/object/"+b.bucket+"/") {
		return fmt.Errorf("%w: not an object of bucket %s: %s", shared.ErrInvalidArgument, b.bucket, uri)
	}
	return nil
}
