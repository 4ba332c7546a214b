package services

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/finwise-app/banklink-api/utils"
)

type accessTokenClient interface {
	GetAccessToken(ctx context.Context) (string, error)
}

// TokenCache caches the provider access token for just under its 24h
// lifetime. The cached token is held AES-GCM encrypted so it never sits in
// memory (or a heap dump) in the clear.
type TokenCache struct {
	client accessTokenClient

	mu        sync.Mutex
	encrypted string
	expiry    time.Time
}

func NewTokenCache(client accessTokenClient) *TokenCache {
	return &TokenCache{client: client}
}

// Token returns a valid access token, fetching a fresh one when the cached
// token is missing or expired.
func (c *TokenCache) Token(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.encrypted != "" && time.Now().Before(c.expiry) {
		plain, err := utils.Decrypt(c.encrypted)
		if err == nil {
			return string(plain), nil
		}
		log.Printf("⚠️ Failed to decrypt cached token, refreshing: %v", err)
	}

	token, err := c.client.GetAccessToken(ctx)
	if err != nil {
		return "", err
	}

	encrypted, err := utils.Encrypt([]byte(token))
	if err != nil {
		// Missing encryption key only disables caching, not the API.
		log.Printf("⚠️ Token cache disabled: %v", err)
		return token, nil
	}

	c.encrypted = encrypted
	c.expiry = time.Now().Add(23 * time.Hour)
	return token, nil
}
