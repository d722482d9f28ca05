// Copyright 2025 Kadir Pekel
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package provider

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/mkbabb/lexserve/pkg/httpclient"
	"github.com/mkbabb/lexserve/pkg/model"
)

// maxBodyBytes bounds how much of a provider's response body is read, so a
// misbehaving provider can't exhaust memory for one lookup.
const maxBodyBytes = 1 << 20

// RESTConfig describes one REST-style dictionary provider: a base URL the
// normalized word is appended to (optionally via a {word} placeholder),
// and the language it serves.
type RESTConfig struct {
	Name     string `yaml:"name"`
	BaseURL  string `yaml:"base_url"`
	Language string `yaml:"language"`
	Timeout  time.Duration `yaml:"timeout"`
}

// SetDefaults fills in reasonable values for unset fields.
func (c *RESTConfig) SetDefaults() {
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
	if c.Language == "" {
		c.Language = "en"
	}
}

// restClient is a Client for any provider that publishes word definitions
// as a single GET returning a JSON body, the shape the public
// dictionaryapi.dev-style services use: GET {base_url}/{word}.
type restClient struct {
	cfg  RESTConfig
	host string
	http *httpclient.Client
}

// NewRESTClient builds a Client for a REST-style dictionary provider. The
// underlying httpclient.Client is configured with zero retries: a failed
// fetch is classified and handed back to the Fetcher rather than retried
// inside the client, since the Fetcher already owns backoff via the rate
// limiter's NotifyRateLimited.
func NewRESTClient(cfg RESTConfig) (Client, error) {
	cfg.SetDefaults()

	parsed, err := url.Parse(cfg.BaseURL)
	if err != nil {
		return nil, fmt.Errorf("provider %s: invalid base_url %q: %w", cfg.Name, cfg.BaseURL, err)
	}

	return &restClient{
		cfg:  cfg,
		host: parsed.Host,
		http: httpclient.New(
			httpclient.WithHTTPClient(&http.Client{Timeout: cfg.Timeout}),
			httpclient.WithMaxRetries(0),
		),
	}, nil
}

func (c *restClient) Name() string { return c.cfg.Name }
func (c *restClient) Host() string { return c.host }

func (c *restClient) Fetch(ctx context.Context, word model.Word) (model.ProviderData, error) {
	endpoint := c.requestURL(word)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return model.ProviderData{}, fmt.Errorf("provider %s: build request: %w", c.cfg.Name, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return model.ProviderData{}, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return model.ProviderData{}, fmt.Errorf("provider %s: read body: %w", c.cfg.Name, err)
	}

	data := model.ProviderData{
		Provider:   c.cfg.Name,
		Word:       word.Normalized,
		RawContent: body,
		FetchedAt:  time.Now(),
		StatusCode: resp.StatusCode,
	}

	if resp.StatusCode == http.StatusNotFound {
		data.Err = "word not found"
		data.Status = model.ProviderStatusError
		return data, nil
	}
	if resp.StatusCode >= 400 {
		data.Err = fmt.Sprintf("provider returned HTTP %d", resp.StatusCode)
		data.Status = model.ProviderStatusError
		return data, nil
	}

	defs, pronunciation, etymology := parseDictionaryAPIBody(c.cfg.Name, body)
	data.RawDefinitions = defs
	data.Pronunciation = pronunciation
	data.Etymology = etymology

	switch {
	case len(defs) == 0:
		data.Status = model.ProviderStatusPartial
	default:
		data.Status = model.ProviderStatusOK
	}

	return data, nil
}

// requestURL joins base_url and the normalized word, substituting a
// {word} placeholder when the template carries one, and otherwise
// appending the URL-escaped word as a path segment (dictionaryapi.dev's
// own convention: GET https://api.dictionaryapi.dev/api/v2/entries/en/{word}).
func (c *restClient) requestURL(word model.Word) string {
	escaped := url.PathEscape(word.Normalized)
	if strings.Contains(c.cfg.BaseURL, "{word}") {
		return strings.ReplaceAll(c.cfg.BaseURL, "{word}", escaped)
	}
	return strings.TrimRight(c.cfg.BaseURL, "/") + "/" + escaped
}
