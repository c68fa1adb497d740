package rest

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	affiliationDatamodel "github.com/frahmantamala/santega-authz/internal/core/datamodel/affiliation"
	"github.com/frahmantamala/santega-authz/internal/directory"
)

// permissions is a computed field over affiliation_permissions, so it has to
// be named; "*" only covers real columns.
const affiliationSelect = "*,permissions,establishment:establishments(*)"

type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// Client reads the directory tables through the hosted backend's REST API.
type Client struct {
	baseURL string
	apiKey  string
	http    *http.Client
	logger  *slog.Logger
}

type tokenKey struct{}

// ContextWithToken makes requests on ctx run with the caller's own bearer
// token so row-level security applies to them.
func ContextWithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, tokenKey{}, token)
}

func NewClient(cfg Config, logger *slog.Logger) directory.RepositoryAPI {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = directory.DefaultTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
	}
}

func (c *Client) GetAffiliations(ctx context.Context, professionalID string) ([]*affiliationDatamodel.ProfessionalAffiliation, error) {
	var professionals []affiliationDatamodel.Professional
	q := url.Values{}
	q.Set("id", "eq."+professionalID)
	q.Set("select", "id")
	if err := c.get(ctx, "professionals", q, &professionals); err != nil {
		return nil, err
	}
	if len(professionals) == 0 {
		return nil, directory.ErrNotFound
	}

	var rows []*affiliationDatamodel.ProfessionalAffiliation
	q = url.Values{}
	q.Set("professional_id", "eq."+professionalID)
	q.Set("select", affiliationSelect)
	q.Set("order", "id.asc")
	if err := c.get(ctx, "professional_affiliations", q, &rows); err != nil {
		return nil, err
	}
	return rows, nil
}

func (c *Client) get(ctx context.Context, table string, query url.Values, out interface{}) error {
	endpoint := fmt.Sprintf("%s/rest/v1/%s?%s", c.baseURL, table, query.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}

	token := c.apiKey
	if t, ok := ctx.Value(tokenKey{}).(string); ok && t != "" {
		token = t
	}
	req.Header.Set("apikey", c.apiKey)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return directory.ErrUnavailable.WithCause(err)
	}
	defer resp.Body.Close()

	if err := statusError(resp.StatusCode); err != nil {
		c.logger.Warn("directory REST call rejected",
			"table", table,
			"status", resp.StatusCode)
		return err
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return directory.ErrUnavailable.WithCause(fmt.Errorf("failed to decode %s: %w", table, err))
	}
	return nil
}

func statusError(code int) error {
	switch {
	case code >= 200 && code < 300:
		return nil
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return directory.ErrUnauthorized
	case code == http.StatusNotFound:
		return directory.ErrNotFound
	case code == http.StatusRequestTimeout || code == http.StatusTooManyRequests || code >= 500:
		return directory.ErrUnavailable.WithCause(fmt.Errorf("status %d", code))
	default:
		return directory.ErrUnavailable.WithCause(fmt.Errorf("unexpected status %d", code))
	}
}
