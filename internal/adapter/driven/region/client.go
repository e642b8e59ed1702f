// Package region implements the blue/yellow check-region ports over their
// HTTP result stores.
package region

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/gregjones/httpcache"

	"github.com/gateboard/gateboard/internal/domain/model"
	"github.com/gateboard/gateboard/internal/domain/port/driven"
)

// Compile-time interface satisfaction checks.
var (
	_ driven.BlueRegionClient   = (*BlueClient)(nil)
	_ driven.YellowRegionClient = (*YellowClient)(nil)
)

const requestTimeout = 15 * time.Second

// newHTTPClient builds the shared transport stack: an in-memory httpcache
// layer so repeated lookups of the same uuid during a sync window hit the
// region services at most once per cache lifetime.
func newHTTPClient() *http.Client {
	return &http.Client{
		Transport: httpcache.NewMemoryCacheTransport(),
		Timeout:   requestTimeout,
	}
}

// BlueClient fetches per-PR verdicts from the blue region result store.
type BlueClient struct {
	http    *http.Client
	baseURL string
}

// NewBlueClient creates a blue-region client for the given base URL.
func NewBlueClient(baseURL string) *BlueClient {
	return &BlueClient{http: newHTTPClient(), baseURL: baseURL}
}

// NewBlueClientWithHTTPClient creates a BlueClient with a custom http.Client.
// This constructor is intended for testing, allowing injection of an
// httptest server.
func NewBlueClientWithHTTPClient(httpClient *http.Client, baseURL string) *BlueClient {
	return &BlueClient{http: httpClient, baseURL: baseURL}
}

type blueResultDTO struct {
	PRURL  string `json:"prUrl"`
	Result string `json:"result"`
}

// FetchResults returns the blue-region result set for the event uuid. An
// unknown uuid yields an empty set, which resolution treats as inconclusive.
func (c *BlueClient) FetchResults(ctx context.Context, uuid string) ([]model.BlueResult, error) {
	url := fmt.Sprintf("%s/api/v1/events/%s/results", c.baseURL, uuid)
	body, found, err := get(ctx, c.http, url)
	if err != nil {
		return nil, fmt.Errorf("fetching blue results for %s: %w", uuid, err)
	}
	if !found {
		return nil, nil
	}

	var dtos []blueResultDTO
	if err := json.Unmarshal(body, &dtos); err != nil {
		return nil, fmt.Errorf("decoding blue results for %s: %w", uuid, err)
	}
	results := make([]model.BlueResult, len(dtos))
	for i, dto := range dtos {
		results[i] = model.BlueResult{PRURL: dto.PRURL, Result: dto.Result}
	}
	return results, nil
}

// YellowClient fetches check records from the yellow region result store.
type YellowClient struct {
	http    *http.Client
	baseURL string
}

// NewYellowClient creates a yellow-region client for the given base URL.
func NewYellowClient(baseURL string) *YellowClient {
	return &YellowClient{http: newHTTPClient(), baseURL: baseURL}
}

// NewYellowClientWithHTTPClient creates a YellowClient with a custom
// http.Client. This constructor is intended for testing.
func NewYellowClientWithHTTPClient(httpClient *http.Client, baseURL string) *YellowClient {
	return &YellowClient{http: httpClient, baseURL: baseURL}
}

type subCheckItemDTO struct {
	Name       string `json:"name"`
	Result     string `json:"result"`
	Detail     string `json:"detail"`
	Report     string `json:"report"`
	JSONReport string `json:"jsonReport"`
}

type yellowCheckDTO struct {
	CurrentStatus string                       `json:"currentStatus"`
	TotalResult   *string                      `json:"totalResult"`
	StartTime     string                       `json:"startTime"`
	BuildDuration float64                      `json:"buildDuration"`
	SubCheckList  map[string][]subCheckItemDTO `json:"subCodeCheckList"`
}

// FetchCheck returns the yellow-region check for the event uuid, or
// (nil, nil) when the region never saw the event.
func (c *YellowClient) FetchCheck(ctx context.Context, uuid string) (*model.DevCloudCheck, error) {
	url := fmt.Sprintf("%s/api/v1/checks/%s", c.baseURL, uuid)
	body, found, err := get(ctx, c.http, url)
	if err != nil {
		return nil, fmt.Errorf("fetching yellow check for %s: %w", uuid, err)
	}
	if !found {
		return nil, nil
	}

	var dto yellowCheckDTO
	if err := json.Unmarshal(body, &dto); err != nil {
		return nil, fmt.Errorf("decoding yellow check for %s: %w", uuid, err)
	}

	check := &model.DevCloudCheck{
		CurrentStatus: dto.CurrentStatus,
		TotalResult:   dto.TotalResult,
		StartedAt:     dto.StartTime,
		BuildDuration: dto.BuildDuration,
	}
	if dto.SubCheckList != nil {
		check.SubChecks = make(map[string][]model.SubCheckItem, len(dto.SubCheckList))
		for key, items := range dto.SubCheckList {
			converted := make([]model.SubCheckItem, len(items))
			for i, item := range items {
				converted[i] = model.SubCheckItem{
					Name:       item.Name,
					Result:     item.Result,
					Detail:     item.Detail,
					Report:     item.Report,
					JSONReport: item.JSONReport,
				}
			}
			check.SubChecks[key] = converted
		}
	}
	return check, nil
}

// get performs a GET and returns (body, true) on 200 or (nil, false) on 404.
// Any other status is an error.
func get(ctx context.Context, client *http.Client, url string) ([]byte, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, false, fmt.Errorf("building request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, false, err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound:
		return nil, false, nil
	default:
		return nil, false, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, false, fmt.Errorf("reading response: %w", err)
	}
	return body, true, nil
}
