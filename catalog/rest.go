package catalog

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/icelift/icelift/spec"
)

// DefaultScope is the OAuth2 scope requested when none is configured.
// Polaris grants all roles assigned to the principal under this scope.
const DefaultScope = "PRINCIPAL_ROLE:ALL"

// RESTCatalog is a client for the Iceberg REST Catalog API as served by
// Apache Polaris. Resource paths are prefixed with the catalog name, and
// authentication uses the catalog's own OAuth2 token endpoint.
type RESTCatalog struct {
	uri     string
	prefix  string
	client  *http.Client
	realm   string
	scope   string
	tokenMu sync.Mutex
	token   string

	clientID     string
	clientSecret string
}

// RESTCatalogOption configures a REST catalog.
type RESTCatalogOption func(*RESTCatalog)

// WithCredential sets the OAuth2 client credentials used to fetch a bearer
// token on first use.
func WithCredential(clientID, clientSecret string) RESTCatalogOption {
	return func(c *RESTCatalog) {
		c.clientID = clientID
		c.clientSecret = clientSecret
	}
}

// WithRealm sets the Polaris realm sent with token requests.
func WithRealm(realm string) RESTCatalogOption {
	return func(c *RESTCatalog) {
		c.realm = realm
	}
}

// WithScope overrides the OAuth2 scope.
func WithScope(scope string) RESTCatalogOption {
	return func(c *RESTCatalog) {
		c.scope = scope
	}
}

// WithToken sets a pre-fetched bearer token, skipping the OAuth2 exchange.
func WithToken(token string) RESTCatalogOption {
	return func(c *RESTCatalog) {
		c.token = token
	}
}

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(client *http.Client) RESTCatalogOption {
	return func(c *RESTCatalog) {
		c.client = client
	}
}

// NewRESTCatalog creates a REST catalog client for the catalog named
// catalogName at uri. No request is made until the client is first used.
func NewRESTCatalog(uri, catalogName string, opts ...RESTCatalogOption) *RESTCatalog {
	c := &RESTCatalog{
		uri:    strings.TrimSuffix(uri, "/"),
		prefix: catalogName,
		client: &http.Client{Timeout: 30 * time.Second},
		scope:  DefaultScope,
	}

	for _, opt := range opts {
		opt(c)
	}

	return c
}

// Name returns the catalog name.
func (c *RESTCatalog) Name() string {
	return c.prefix
}

// ensureToken fetches a bearer token once, when credentials are configured
// and no token has been set.
func (c *RESTCatalog) ensureToken(ctx context.Context) error {
	c.tokenMu.Lock()
	defer c.tokenMu.Unlock()

	if c.token != "" || c.clientID == "" {
		return nil
	}

	form := url.Values{
		"grant_type":    {"client_credentials"},
		"client_id":     {c.clientID},
		"client_secret": {c.clientSecret},
		"scope":         {c.scope},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.uri+"/api/catalog/v1/oauth/tokens", strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to create token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	if c.realm != "" {
		req.Header.Set("Polaris-Realm", c.realm)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("token request failed: %w", err)
	}

	var token struct {
		AccessToken string `json:"access_token"`
		TokenType   string `json:"token_type"`
		ExpiresIn   int    `json:"expires_in"`
	}
	if err := parseResponse(resp, &token); err != nil {
		return fmt.Errorf("failed to fetch catalog token: %w", err)
	}
	if token.AccessToken == "" {
		return fmt.Errorf("token response missing access_token")
	}

	c.token = token.AccessToken
	return nil
}

// doRequest executes an HTTP request against a catalog resource path.
func (c *RESTCatalog) doRequest(ctx context.Context, method, path string) (*http.Response, error) {
	if err := c.ensureToken(ctx); err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, method, c.uri+"/api/catalog"+path, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}

	return resp, nil
}

// parseResponse parses an HTTP response.
func parseResponse[T any](resp *http.Response, v *T) error {
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response body: %w", err)
	}

	if resp.StatusCode >= 400 {
		var errResp struct {
			Error struct {
				Message string `json:"message"`
				Type    string `json:"type"`
				Code    int    `json:"code"`
			} `json:"error"`
		}
		if json.Unmarshal(body, &errResp) == nil && errResp.Error.Message != "" {
			return fmt.Errorf("catalog error: %s (code: %d, type: %s)",
				errResp.Error.Message, errResp.Error.Code, errResp.Error.Type)
		}
		return fmt.Errorf("catalog error: status %d: %s", resp.StatusCode, string(body))
	}

	if v != nil && len(body) > 0 {
		if err := json.Unmarshal(body, v); err != nil {
			return fmt.Errorf("failed to unmarshal response: %w", err)
		}
	}

	return nil
}

// namespacePath returns the API path for a namespace within the catalog.
func (c *RESTCatalog) namespacePath(ns Namespace) string {
	return "/v1/" + url.PathEscape(c.prefix) + "/namespaces/" + url.PathEscape(ns.String())
}

// ListNamespaces lists all namespaces in the catalog.
func (c *RESTCatalog) ListNamespaces(ctx context.Context) ([]Namespace, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, "/v1/"+url.PathEscape(c.prefix)+"/namespaces")
	if err != nil {
		return nil, err
	}

	var result struct {
		Namespaces [][]string `json:"namespaces"`
	}
	if err := parseResponse(resp, &result); err != nil {
		return nil, err
	}

	namespaces := make([]Namespace, len(result.Namespaces))
	for i, ns := range result.Namespaces {
		namespaces[i] = Namespace(ns)
	}

	return namespaces, nil
}

// ListTables lists all tables in a namespace.
func (c *RESTCatalog) ListTables(ctx context.Context, namespace Namespace) ([]TableIdentifier, error) {
	resp, err := c.doRequest(ctx, http.MethodGet, c.namespacePath(namespace)+"/tables")
	if err != nil {
		return nil, err
	}

	var result struct {
		Identifiers []struct {
			Namespace []string `json:"namespace"`
			Name      string   `json:"name"`
		} `json:"identifiers"`
	}
	if err := parseResponse(resp, &result); err != nil {
		return nil, err
	}

	tables := make([]TableIdentifier, len(result.Identifiers))
	for i, id := range result.Identifiers {
		tables[i] = TableIdentifier{
			Namespace: Namespace(id.Namespace),
			Name:      id.Name,
		}
	}

	return tables, nil
}

// LoadTable loads a table's current metadata.
func (c *RESTCatalog) LoadTable(ctx context.Context, identifier TableIdentifier) (*TableInfo, error) {
	path := c.namespacePath(identifier.Namespace) + "/tables/" + url.PathEscape(identifier.Name)
	resp, err := c.doRequest(ctx, http.MethodGet, path)
	if err != nil {
		return nil, err
	}

	var result struct {
		Metadata         *spec.TableMetadata `json:"metadata"`
		MetadataLocation string              `json:"metadata-location"`
	}
	if err := parseResponse(resp, &result); err != nil {
		return nil, err
	}
	if result.Metadata == nil {
		return nil, fmt.Errorf("table %s: response missing metadata", identifier)
	}

	return &TableInfo{
		Metadata:         result.Metadata,
		MetadataLocation: result.MetadataLocation,
	}, nil
}
