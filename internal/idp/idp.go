// Package idp talks to the external identity provider that owns credentials.
package idp

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2/clientcredentials"
)

// ErrUserNotFound is returned when the provider has no such user.
var ErrUserNotFound = errors.New("idp: user not found")

// Provider is the identity provider as seen by the user lifecycle.
type Provider interface {
	DeleteUser(ctx context.Context, externalID string) error
}

// Noop is used when no identity provider is configured.
type Noop struct{}

func (Noop) DeleteUser(context.Context, string) error { return nil }

// KeycloakConfig holds the admin API coordinates.
type KeycloakConfig struct {
	BaseURL      string
	Realm        string
	ClientID     string
	ClientSecret string
	Timeout      time.Duration
}

// KeycloakClient calls the Keycloak admin REST API with a token obtained
// through the client-credentials grant against the master realm. Tokens are
// cached and refreshed by the oauth2 transport.
type KeycloakClient struct {
	baseURL string
	realm   string
	http    *http.Client
}

var _ Provider = (*KeycloakClient)(nil)

func NewKeycloakClient(cfg KeycloakConfig) *KeycloakClient {
	base := strings.TrimRight(cfg.BaseURL, "/")
	cc := &clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     base + "/realms/master/protocol/openid-connect/token",
	}
	// The token source keeps the context for refreshes, so it must not be
	// request-scoped.
	client := cc.Client(context.Background())
	client.Timeout = cfg.Timeout
	return &KeycloakClient{baseURL: base, realm: cfg.Realm, http: client}
}

// DeleteUser removes a user by its Keycloak ID.
func (c *KeycloakClient) DeleteUser(ctx context.Context, externalID string) error {
	endpoint := fmt.Sprintf("%s/admin/realms/%s/users/%s",
		c.baseURL, url.PathEscape(c.realm), url.PathEscape(externalID))

	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, endpoint, nil)
	if err != nil {
		return fmt.Errorf("build delete user request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("delete keycloak user: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return ErrUserNotFound
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("delete keycloak user: status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return nil
}
