package client

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"

	"github.com/bobby-s-dev/emotions-in-transit/internal/models"
	"go.uber.org/zap"
)

// TMBClient reads the list of operating lines for one transit mode from the
// Barcelona TMB open data API.
type TMBClient struct {
	*BaseClient
	appID   string
	appKey  string
	mode    string
	baseURL string
}

type TMBLinesResponse struct {
	Type     string `json:"type"`
	Features []struct {
		ID         string `json:"id"`
		Properties struct {
			CodiLinia int    `json:"CODI_LINIA"`
			NomLinia  string `json:"NOM_LINIA"`
		} `json:"properties"`
	} `json:"features"`
}

func NewTMBClient(appID, appKey, mode, baseURL string, config ClientConfig, logger *zap.Logger) *TMBClient {
	if mode == "" {
		mode = "metro"
	}
	return &TMBClient{
		BaseClient: NewBaseClient("tmb", config, logger),
		appID:      appID,
		appKey:     appKey,
		mode:       mode,
		baseURL:    baseURL,
	}
}

func (c *TMBClient) Name() string {
	return "tmb"
}

func (c *TMBClient) Fetch(ctx context.Context) (models.RawReading, error) {
	if c.appID == "" || c.appKey == "" {
		return models.RawReading{}, fmt.Errorf("tmb: %w", ErrNotConfigured)
	}

	values := url.Values{}
	values.Set("app_id", c.appID)
	values.Set("app_key", c.appKey)
	u := fmt.Sprintf("%s/transit/linies/%s?%s", c.baseURL, url.PathEscape(c.mode), values.Encode())

	data, err := c.Get(ctx, u, nil)
	if err != nil {
		return models.RawReading{}, fmt.Errorf("failed to fetch transit lines: %w", err)
	}

	var response TMBLinesResponse
	if err := json.Unmarshal(data, &response); err != nil {
		return models.RawReading{}, fmt.Errorf("failed to parse response: %w", err)
	}

	lines := len(response.Features)
	c.logger.Debug("TMB lines", zap.String("mode", c.mode), zap.Int("active_lines", lines))

	return models.RawReading{ActiveLines: models.Int(lines)}, nil
}
