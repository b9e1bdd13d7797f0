package github

import (
	"context"
	"crypto/rsa"
	"crypto/x509"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"io"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v4"
)

// AppAuth mints installation tokens for a GitHub App. Tokens are cached
// until shortly before they expire.
type AppAuth struct {
	appID          string
	installationID string
	key            *rsa.PrivateKey
	apiURL         string
	httpCli        *http.Client
	cache          tokenCache
}

// NewAppAuth loads the app's private key and prepares an installation token
// source.
func NewAppAuth(appID, installationID, privateKeyPath, apiURL string) (*AppAuth, error) {
	key, err := loadPrivateKey(privateKeyPath)
	if err != nil {
		return nil, err
	}
	if apiURL == "" {
		apiURL = defaultAPIURL
	}
	return &AppAuth{
		appID:          appID,
		installationID: installationID,
		key:            key,
		apiURL:         apiURL,
		httpCli:        &http.Client{Timeout: 15 * time.Second},
	}, nil
}

// Token returns a cached installation token, minting a fresh one when the
// cache is cold or expired.
func (a *AppAuth) Token(ctx context.Context) (string, error) {
	if t, ok := a.cache.Get(); ok {
		return t, nil
	}

	appJWT, err := a.createJWT()
	if err != nil {
		return "", err
	}

	url := fmt.Sprintf("%s/app/installations/%s/access_tokens", a.apiURL, a.installationID)
	req, err := http.NewRequestWithContext(ctx, "POST", url, nil)
	if err != nil {
		return "", fmt.Errorf("build token request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+appJWT)
	req.Header.Set("Accept", "application/vnd.github+json")

	res, err := a.httpCli.Do(req)
	if err != nil {
		return "", err
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(res.Body, 4096))
		return "", fmt.Errorf("github installation token status %d: %s", res.StatusCode, string(msg))
	}

	var r struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(res.Body).Decode(&r); err != nil {
		return "", fmt.Errorf("decode token response: %w", err)
	}
	if r.Token == "" {
		return "", fmt.Errorf("empty installation token")
	}

	// Installation tokens live 60 minutes; refresh before the edge.
	a.cache.Set(r.Token, 50*time.Minute)
	return r.Token, nil
}

func (a *AppAuth) createJWT() (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		IssuedAt:  jwt.NewNumericDate(now.Add(-1 * time.Minute)),
		ExpiresAt: jwt.NewNumericDate(now.Add(9 * time.Minute)),
		Issuer:    a.appID,
	}
	return jwt.NewWithClaims(jwt.SigningMethodRS256, claims).SignedString(a.key)
}

func loadPrivateKey(path string) (*rsa.PrivateKey, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read key: %w", err)
	}

	block, _ := pem.Decode(b)
	if block == nil {
		return nil, fmt.Errorf("invalid pem in %s", path)
	}

	key, err := x509.ParsePKCS1PrivateKey(block.Bytes)
	if err == nil {
		return key, nil
	}

	pkcs8, err := x509.ParsePKCS8PrivateKey(block.Bytes)
	if err != nil {
		return nil, err
	}
	privateKey, ok := pkcs8.(*rsa.PrivateKey)
	if !ok {
		return nil, fmt.Errorf("pkcs8 key is not RSA")
	}
	return privateKey, nil
}

type tokenCache struct {
	mu    sync.Mutex
	token string
	exp   time.Time
}

func (t *tokenCache) Get() (string, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if time.Now().Before(t.exp) {
		return t.token, true
	}
	return "", false
}

func (t *tokenCache) Set(token string, ttl time.Duration) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.token = token
	t.exp = time.Now().Add(ttl)
}
