package client

import (
	"context"
	"mime"
	"net/http"
	"net/url"
	"strings"

	"github.com/bl4ck0w1/secdash/pkg/models"
)

func (c *Client) ListScans(ctx context.Context) ([]models.Scan, error) {
	var scans []models.Scan
	_, err := c.do(ctx, request{
		op:     "list_scans",
		method: http.MethodGet,
		route:  "/api/v1/scans/",
		path:   "/api/v1/scans/",
	}, &scans)
	if err != nil {
		return nil, err
	}
	if scans == nil {
		scans = []models.Scan{}
	}
	return scans, nil
}

func (c *Client) GetScan(ctx context.Context, id string) (*models.Scan, error) {
	if err := requireID("get_scan", id); err != nil {
		return nil, err
	}
	var scan models.Scan
	_, err := c.do(ctx, request{
		op:     "get_scan",
		method: http.MethodGet,
		route:  "/api/v1/scans/{id}",
		path:   "/api/v1/scans/" + pathID(id),
	}, &scan)
	if err != nil {
		return nil, err
	}
	return &scan, nil
}

func (c *Client) CreateScan(ctx context.Context, req models.CreateScanRequest) (*models.Scan, error) {
	var scan models.Scan
	_, err := c.do(ctx, request{
		op:     "create_scan",
		method: http.MethodPost,
		route:  "/api/v1/scans/",
		path:   "/api/v1/scans/",
		body:   req,
	}, &scan)
	if err != nil {
		return nil, err
	}
	return &scan, nil
}

func (c *Client) DeleteScan(ctx context.Context, id string) error {
	if err := requireID("delete_scan", id); err != nil {
		return err
	}
	_, err := c.do(ctx, request{
		op:     "delete_scan",
		method: http.MethodDelete,
		route:  "/api/v1/scans/{id}",
		path:   "/api/v1/scans/" + pathID(id),
	}, nil)
	return err
}

func (c *Client) StopScan(ctx context.Context, id string) error {
	if err := requireID("stop_scan", id); err != nil {
		return err
	}
	_, err := c.do(ctx, request{
		op:     "stop_scan",
		method: http.MethodPost,
		route:  "/api/v1/scans/{id}/stop",
		path:   "/api/v1/scans/" + pathID(id) + "/stop",
	}, nil)
	return err
}

func (c *Client) GetScanFindings(ctx context.Context, id string) ([]models.Finding, error) {
	if err := requireID("get_scan_findings", id); err != nil {
		return nil, err
	}
	var findings []models.Finding
	_, err := c.do(ctx, request{
		op:     "get_scan_findings",
		method: http.MethodGet,
		route:  "/api/v1/scans/{id}/findings",
		path:   "/api/v1/scans/" + pathID(id) + "/findings",
	}, &findings)
	if err != nil {
		return nil, err
	}
	if findings == nil {
		findings = []models.Finding{}
	}
	return findings, nil
}

// Export is a server-rendered report as returned by the export endpoint.
type Export struct {
	Data        []byte
	ContentType string
	Filename    string
}

func (c *Client) ExportReport(ctx context.Context, id, format string) (*Export, error) {
	if err := requireID("export_report", id); err != nil {
		return nil, err
	}
	format = strings.ToLower(strings.TrimSpace(format))
	if format == "" {
		format = "json"
	}
	resp, err := c.do(ctx, request{
		op:     "export_report",
		method: http.MethodGet,
		route:  "/api/v1/scans/{id}/export",
		path:   "/api/v1/scans/" + pathID(id) + "/export",
		query:  url.Values{"format": {format}},
	}, nil)
	if err != nil {
		return nil, err
	}

	exp := &Export{
		Data:        resp.body,
		ContentType: resp.header.Get("Content-Type"),
		Filename:    "scan-" + id + "." + format,
	}
	if cd := resp.header.Get("Content-Disposition"); cd != "" {
		if _, params, err := mime.ParseMediaType(cd); err == nil && params["filename"] != "" {
			exp.Filename = params["filename"]
		}
	}
	return exp, nil
}
