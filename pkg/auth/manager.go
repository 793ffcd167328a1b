// Package auth obtém e mantém em cache tokens de acesso usados nas chamadas
// feitas pelo decoy a serviços reais.
package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"
)

// Config descreve o fluxo OAuth2 client credentials.
type Config struct {
	TokenURL     string
	ClientID     string
	ClientSecret string
	Scope        string
}

// tokenResponse mapeia a resposta padrão da RFC 6749 (OAuth2)
type tokenResponse struct {
	AccessToken string `json:"access_token"`
	ExpiresIn   int    `json:"expires_in"` // segundos
	TokenType   string `json:"token_type"`
}

// TokenFetcher busca um novo token e seu tempo de vida.
type TokenFetcher func(ctx context.Context) (string, time.Duration, error)

// Manager guarda o token e o renova sob demanda, quando 80% do tempo de
// vida tiver passado. Seguro para uso concorrente.
type Manager struct {
	mu      sync.Mutex
	fetcher TokenFetcher
	now     func() time.Time
	token   string
	renewAt time.Time
}

// NewManager cria um gerenciador genérico.
func NewManager(fetcher TokenFetcher) *Manager {
	return &Manager{fetcher: fetcher, now: time.Now}
}

// Token retorna o token em cache ou busca um novo.
func (m *Manager) Token(ctx context.Context) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.token != "" && m.now().Before(m.renewAt) {
		return m.token, nil
	}

	token, ttl, err := m.fetcher(ctx)
	if err != nil {
		return "", fmt.Errorf("falha ao obter token: %w", err)
	}
	m.token = token
	m.renewAt = m.now().Add(renewAfter(ttl))
	return token, nil
}

// Invalidate descarta o token em cache.
func (m *Manager) Invalidate() {
	m.mu.Lock()
	m.token = ""
	m.mu.Unlock()
}

func renewAfter(ttl time.Duration) time.Duration {
	if ttl <= 0 {
		return 5 * time.Minute // sem expires_in
	}
	return time.Duration(float64(ttl) * 0.8)
}

// NewOAuth2Manager cria o Manager para client credentials.
func NewOAuth2Manager(cfg Config, client *http.Client) *Manager {
	return NewManager(NewOAuth2Fetcher(cfg, client))
}

// NewOAuth2Fetcher cria a função de busca do fluxo client credentials.
func NewOAuth2Fetcher(cfg Config, client *http.Client) TokenFetcher {
	if client == nil {
		client = &http.Client{Timeout: 10 * time.Second}
	}

	return func(ctx context.Context) (string, time.Duration, error) {
		data := url.Values{}
		data.Set("grant_type", "client_credentials")
		data.Set("client_id", cfg.ClientID)
		data.Set("client_secret", cfg.ClientSecret)
		if cfg.Scope != "" {
			data.Set("scope", cfg.Scope)
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, cfg.TokenURL, strings.NewReader(data.Encode()))
		if err != nil {
			return "", 0, fmt.Errorf("erro ao criar request: %w", err)
		}
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		req.Header.Set("Accept", "application/json")

		resp, err := client.Do(req)
		if err != nil {
			return "", 0, fmt.Errorf("erro de conexão oauth: %w", err)
		}
		defer resp.Body.Close()

		if resp.StatusCode >= 400 {
			return "", 0, fmt.Errorf("oauth provider retornou erro: %d", resp.StatusCode)
		}

		var tokenResp tokenResponse
		if err := json.NewDecoder(resp.Body).Decode(&tokenResp); err != nil {
			return "", 0, fmt.Errorf("erro decode json token: %w", err)
		}
		if tokenResp.AccessToken == "" {
			return "", 0, fmt.Errorf("access_token veio vazio")
		}

		return tokenResp.AccessToken, time.Duration(tokenResp.ExpiresIn) * time.Second, nil
	}
}
