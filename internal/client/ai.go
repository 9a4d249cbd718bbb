package client

import (
	"context"
	"net/http"

	"github.com/bl4ck0w1/secdash/internal/apierrors"
	"github.com/bl4ck0w1/secdash/pkg/models"
)

func (c *Client) AnalyzeScan(ctx context.Context, req models.AnalyzeRequest) (*models.AIAnalysis, error) {
	if err := requireID("analyze", req.ScanID); err != nil {
		return nil, err
	}
	if req.Provider == "" {
		req.Provider = models.AIProviderOllama
	}
	var analysis models.AIAnalysis
	_, err := c.do(ctx, request{
		op:     "analyze",
		method: http.MethodPost,
		route:  "/api/v1/ai/analyze",
		path:   "/api/v1/ai/analyze",
		body:   req,
	}, &analysis)
	if err != nil {
		return nil, err
	}
	return &analysis, nil
}

// GetAnalysis returns (nil, nil) when the scan has not been analysed yet.
func (c *Client) GetAnalysis(ctx context.Context, scanID string) (*models.AIAnalysis, error) {
	if err := requireID("get_analysis", scanID); err != nil {
		return nil, err
	}
	var analysis models.AIAnalysis
	_, err := c.do(ctx, request{
		op:     "get_analysis",
		method: http.MethodGet,
		route:  "/api/v1/ai/analysis/{id}",
		path:   "/api/v1/ai/analysis/" + pathID(scanID),
	}, &analysis)
	if apierrors.IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &analysis, nil
}

type analyzeFindingRequest struct {
	FindingID string `json:"finding_id"`
	Provider  string `json:"provider"`
}

// AnalyzeFinding asks for remediation advice on a single finding.
func (c *Client) AnalyzeFinding(ctx context.Context, findingID, provider string) (*models.AIAnalysis, error) {
	if err := requireID("analyze_finding", findingID); err != nil {
		return nil, err
	}
	if provider == "" {
		provider = models.AIProviderOllama
	}
	var analysis models.AIAnalysis
	_, err := c.do(ctx, request{
		op:     "analyze_finding",
		method: http.MethodPost,
		route:  "/api/v1/ai/analyze/finding",
		path:   "/api/v1/ai/analyze/finding",
		body:   analyzeFindingRequest{FindingID: findingID, Provider: provider},
	}, &analysis)
	if err != nil {
		return nil, err
	}
	return &analysis, nil
}

func (c *Client) ListProviders(ctx context.Context) ([]models.AIProvider, error) {
	var providers []models.AIProvider
	_, err := c.do(ctx, request{
		op:     "list_providers",
		method: http.MethodGet,
		route:  "/api/v1/ai/providers",
		path:   "/api/v1/ai/providers",
	}, &providers)
	if err != nil {
		return nil, err
	}
	if providers == nil {
		providers = []models.AIProvider{}
	}
	return providers, nil
}

// ListModels returns the models each provider offers, keyed by provider name.
func (c *Client) ListModels(ctx context.Context) (map[string][]string, error) {
	byProvider := map[string][]string{}
	_, err := c.do(ctx, request{
		op:     "list_models",
		method: http.MethodGet,
		route:  "/api/v1/ai/models",
		path:   "/api/v1/ai/models",
	}, &byProvider)
	if err != nil {
		return nil, err
	}
	return byProvider, nil
}
