package storage

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"net/url"
	"sort"
	"strings"
	"time"

	"cloud.google.com/go/storage"
)

const defaultSignedURLExpiry = 15 * time.Minute

var (
	errNoSigner           = errors.New("storage: signer is required")
	errInvalidOptions     = errors.New("storage: upload options must be provided")
	errInvalidBucket      = errors.New("storage: bucket name is required")
	errInvalidObject      = errors.New("storage: object name is required")
	errMethodNotAllowed   = errors.New("storage: HTTP method not allowed for uploads")
	errContentTypeMissing = errors.New("storage: content type is required for uploads")
	errContentTypeDenied  = errors.New("storage: content type not allowed")
	errMD5Required        = errors.New("storage: content MD5 is required for uploads")
	errMD5Invalid         = errors.New("storage: content MD5 must be base64 encoded")
)

// Client generates signed upload URLs backed by a Signer. Listing images are
// served publicly, so only the upload direction is ever signed.
type Client struct {
	signer Signer
	scheme storage.SigningScheme
	now    func() time.Time
}

// ClientOption customises client behaviour.
type ClientOption func(*Client)

// WithSigningScheme overrides the signing scheme (defaults to V4).
func WithSigningScheme(scheme storage.SigningScheme) ClientOption {
	return func(c *Client) {
		if scheme != 0 {
			c.scheme = scheme
		}
	}
}

// WithClock injects a custom clock (useful for tests).
func WithClock(clock func() time.Time) ClientOption {
	return func(c *Client) {
		if clock != nil {
			c.now = clock
		}
	}
}

// NewClient constructs a new storage signed URL client.
func NewClient(signer Signer, opts ...ClientOption) (*Client, error) {
	if signer == nil || strings.TrimSpace(signer.Email()) == "" {
		return nil, errNoSigner
	}

	client := &Client{
		signer: signer,
		scheme: storage.SigningSchemeV4,
		now:    time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(client)
		}
	}
	return client, nil
}

// SignedURLOptions capture configuration for an upload signed URL.
type SignedURLOptions struct {
	Upload *UploadOptions
	Query  map[string]string
}

// UploadOptions control upload-specific validation.
type UploadOptions struct {
	Method              string
	ContentType         string
	ContentMD5          string
	RequireMD5          bool
	AllowedMethods      []string
	AllowedContentTypes []string
	MaxSize             int64
	ExpiresIn           time.Duration
	AdditionalHeaders   map[string]string
}

// SignedURLResult describes the generated signed URL details.
type SignedURLResult struct {
	URL       string
	Method    string
	ExpiresAt time.Time
	Headers   map[string]string
}

// SignedURL creates a signed upload URL according to the provided options.
func (c *Client) SignedURL(ctx context.Context, bucket, object string, opts SignedURLOptions) (SignedURLResult, error) {
	if c == nil {
		return SignedURLResult{}, errNoSigner
	}
	if ctx == nil {
		return SignedURLResult{}, errors.New("storage: context is required")
	}
	bucket = strings.TrimSpace(bucket)
	if bucket == "" {
		return SignedURLResult{}, errInvalidBucket
	}
	object = strings.TrimSpace(object)
	if object == "" {
		return SignedURLResult{}, errInvalidObject
	}
	if opts.Upload == nil {
		return SignedURLResult{}, errInvalidOptions
	}

	googleAccessID := c.signer.Email()
	if googleAccessID == "" {
		return SignedURLResult{}, errNoSigner
	}

	method, err := normaliseUploadMethod(opts.Upload.Method)
	if err != nil {
		return SignedURLResult{}, err
	}

	contentType := strings.TrimSpace(opts.Upload.ContentType)
	if contentType == "" {
		return SignedURLResult{}, errContentTypeMissing
	}
	if len(opts.Upload.AllowedContentTypes) > 0 && !contentTypeAllowed(contentType, opts.Upload.AllowedContentTypes) {
		return SignedURLResult{}, errContentTypeDenied
	}

	expiry := opts.Upload.ExpiresIn
	if expiry <= 0 {
		expiry = defaultSignedURLExpiry
	}

	if opts.Upload.RequireMD5 && strings.TrimSpace(opts.Upload.ContentMD5) == "" {
		return SignedURLResult{}, errMD5Required
	}
	if strings.TrimSpace(opts.Upload.ContentMD5) != "" {
		if _, err := base64.StdEncoding.DecodeString(opts.Upload.ContentMD5); err != nil {
			return SignedURLResult{}, errMD5Invalid
		}
	}

	urlOpts := storage.SignedURLOptions{
		GoogleAccessID: googleAccessID,
		Scheme:         c.scheme,
		Method:         method,
		ContentType:    contentType,
		MD5:            strings.TrimSpace(opts.Upload.ContentMD5),
	}

	headers := map[string]string{"Content-Type": contentType}
	if urlOpts.MD5 != "" {
		headers["Content-MD5"] = urlOpts.MD5
	}

	var extHeader []string
	if opts.Upload.MaxSize > 0 {
		sizeHeader := fmt.Sprintf("0,%d", opts.Upload.MaxSize)
		headerLine := fmt.Sprintf("x-goog-content-length-range:%s", sizeHeader)
		extHeader = append(extHeader, headerLine)
		headers["x-goog-content-length-range"] = sizeHeader
	}

	if len(opts.Upload.AdditionalHeaders) > 0 {
		keys := make([]string, 0, len(opts.Upload.AdditionalHeaders))
		for k := range opts.Upload.AdditionalHeaders {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, key := range keys {
			value := strings.TrimSpace(opts.Upload.AdditionalHeaders[key])
			if value == "" {
				continue
			}
			canonical := strings.ToLower(strings.TrimSpace(key))
			extHeader = append(extHeader, fmt.Sprintf("%s:%s", canonical, value))
			headers[key] = value
		}
	}

	expiryTime := c.now().Add(expiry)
	urlOpts.Expires = expiryTime
	urlOpts.Headers = extHeader
	urlOpts.SignBytes = func(payload []byte) ([]byte, error) {
		return c.signer.SignBytes(ctx, payload)
	}
	if len(opts.Query) > 0 {
		urlOpts.QueryParameters = mapToURLValues(opts.Query)
	}

	signedURL, err := storage.SignedURL(bucket, object, &urlOpts)
	if err != nil {
		return SignedURLResult{}, fmt.Errorf("storage: sign upload url: %w", err)
	}

	return SignedURLResult{
		URL:       signedURL,
		Method:    method,
		ExpiresAt: expiryTime,
		Headers:   headers,
	}, nil
}

const (
	httpMethodPut  = "PUT"
	httpMethodPost = "POST"
)

func normaliseUploadMethod(method string) (string, error) {
	method = strings.ToUpper(strings.TrimSpace(method))
	if method == "" {
		method = httpMethodPut
	}
	switch method {
	case httpMethodPut, httpMethodPost:
		return method, nil
	default:
		return "", errMethodNotAllowed
	}
}

func contentTypeAllowed(contentType string, allowed []string) bool {
	normalized := strings.ToLower(strings.TrimSpace(contentType))
	for _, candidate := range allowed {
		candidate = strings.ToLower(strings.TrimSpace(candidate))
		if candidate == "" {
			continue
		}
		if candidate == "*" {
			return true
		}
		if strings.HasSuffix(candidate, "/*") {
			prefix := strings.TrimSuffix(candidate, "*")
			if strings.HasPrefix(normalized, strings.TrimSuffix(prefix, "/")) {
				return true
			}
			continue
		}
		if normalized == candidate {
			return true
		}
	}
	return false
}

func mapToURLValues(values map[string]string) url.Values {
	out := make(url.Values, len(values))
	keys := make([]string, 0, len(values))
	for k := range values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, key := range keys {
		value := values[key]
		out.Add(key, value)
	}
	return out
}
