package apify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"leadscraper/internal/config"
	"leadscraper/internal/core/lead"
	"leadscraper/internal/core/scrape"
	"leadscraper/internal/logger"
)

// Client talks to the Apify platform API and adapts actor runs to the
// scrape.Provider contract.
type Client struct {
	baseURL string
	token   string
	actorID string
	http    *http.Client
	log     *logger.Logger
}

func New(cfg config.Config) *Client {
	return &Client{
		baseURL: strings.TrimRight(cfg.ApifyBaseURL, "/"),
		token:   cfg.ApifyToken,
		actorID: cfg.ApifyActorID,
		http:    &http.Client{Timeout: 60 * time.Second},
		log:     logger.New("ApifyClient"),
	}
}

// Configured reports whether the client has credentials to start runs.
func (c *Client) Configured() bool {
	return c.token != "" && c.actorID != ""
}

type runInput struct {
	URL          string   `json:"url"`
	TotalRecords int      `json:"totalRecords"`
	Fields       []string `json:"fields,omitempty"`
}

type runData struct {
	ID               string `json:"id"`
	Status           string `json:"status"`
	DefaultDatasetID string `json:"defaultDatasetId"`
	StatusMessage    string `json:"statusMessage"`
}

type runEnvelope struct {
	Data runData `json:"data"`
}

// Start launches one actor run scoped to a single search URL.
func (c *Client) Start(ctx context.Context, source string, quota int, fields []string) (scrape.ProviderRun, error) {
	body, err := json.Marshal(runInput{URL: source, TotalRecords: quota, Fields: fields})
	if err != nil {
		return nil, err
	}

	endpoint := fmt.Sprintf("%s/v2/acts/%s/runs?token=%s", c.baseURL, url.PathEscape(c.actorID), url.QueryEscape(c.token))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	var env runEnvelope
	if err := c.do(req, &env); err != nil {
		return nil, fmt.Errorf("start actor run: %w", err)
	}
	c.log.LogInfof("started run %s for %s (quota %d)", env.Data.ID, source, quota)
	return &run{client: c, id: env.Data.ID}, nil
}

func (c *Client) do(req *http.Request, out interface{}) error {
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("apify %s: status %d: %s", req.URL.Path, resp.StatusCode, strings.TrimSpace(string(snippet)))
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

// run is one in-flight actor run.
type run struct {
	client *Client
	id     string
}

const statusPollInterval = 3 * time.Second

// Wait polls the run until it leaves the platform's non-terminal
// states, then fetches the default dataset on success.
func (r *run) Wait(ctx context.Context) (*scrape.RunResult, error) {
	for {
		data, err := r.status(ctx)
		if err != nil {
			return nil, err
		}
		switch data.Status {
		case "SUCCEEDED":
			items, err := r.client.datasetItems(ctx, data.DefaultDatasetID)
			if err != nil {
				return nil, err
			}
			return &scrape.RunResult{Status: "success", Data: items}, nil
		case "FAILED", "ABORTED", "TIMED-OUT":
			msg := data.StatusMessage
			if msg == "" {
				msg = fmt.Sprintf("actor run %s", strings.ToLower(data.Status))
			}
			return &scrape.RunResult{Status: "error", Message: msg}, nil
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(statusPollInterval):
		}
	}
}

// Log returns the run log text past offset. The platform serves the
// whole log each time, so the unread tail is sliced off here.
func (r *run) Log(ctx context.Context, offset int) (string, int, error) {
	endpoint := fmt.Sprintf("%s/v2/actor-runs/%s/log?token=%s", r.client.baseURL, r.id, url.QueryEscape(r.client.token))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return "", offset, err
	}
	resp, err := r.client.http.Do(req)
	if err != nil {
		return "", offset, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", offset, fmt.Errorf("run log: status %d", resp.StatusCode)
	}
	full, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", offset, err
	}
	if offset > len(full) {
		offset = 0
	}
	return string(full[offset:]), len(full), nil
}

func (r *run) status(ctx context.Context) (*runData, error) {
	endpoint := fmt.Sprintf("%s/v2/actor-runs/%s?token=%s", r.client.baseURL, r.id, url.QueryEscape(r.client.token))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	var env runEnvelope
	if err := r.client.do(req, &env); err != nil {
		return nil, fmt.Errorf("run status: %w", err)
	}
	return &env.Data, nil
}

func (c *Client) datasetItems(ctx context.Context, datasetID string) ([]lead.RawRecord, error) {
	endpoint := fmt.Sprintf("%s/v2/datasets/%s/items?format=json&clean=true&token=%s", c.baseURL, datasetID, url.QueryEscape(c.token))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint, nil)
	if err != nil {
		return nil, err
	}
	var items []lead.RawRecord
	if err := c.do(req, &items); err != nil {
		return nil, fmt.Errorf("dataset items: %w", err)
	}
	return items, nil
}
