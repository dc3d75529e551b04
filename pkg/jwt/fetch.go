package jwt

import (
	"context"
	"crypto/rsa"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

const publicKeyPath = "/user-service/access-token-public-key"

// FetchPublicKey downloads the access token public key from the user service.
// baseURL is the user service origin, e.g. http://user-service:9001.
func FetchPublicKey(ctx context.Context, client *http.Client, baseURL string) (*rsa.PublicKey, error) {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}

	url := strings.TrimRight(baseURL, "/") + publicKeyPath
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build public key request: %w", err)
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch public key: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("failed to fetch public key: unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, 64<<10))
	if err != nil {
		return nil, fmt.Errorf("failed to read public key: %w", err)
	}

	return ParsePublicKey(body)
}
