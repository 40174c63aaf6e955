package functions

import (
	"context"
	"time"

	"go.uber.org/zap"

	"resumeboost/internal/config"
	"resumeboost/internal/model"
)

// ExtractRequest asks the extractor to parse the PDF stored at Key.
type ExtractRequest struct {
	Bucket string `json:"s3_bucket"`
	Key    string `json:"s3_key"`
}

// ExtractResponse points at the stored plain text.
type ExtractResponse struct {
	Key string `json:"s3_key"`
}

// ScrapeRequest asks the scraper for the visible text of URL.
// When Key is set the scraper also stores the text there.
type ScrapeRequest struct {
	URL string `json:"url"`
	Key string `json:"s3_key,omitempty"`
}

type ScrapeResponse struct {
	Content string `json:"content"`
	Key     string `json:"s3_key,omitempty"`
}

// AnalyzeResponse carries the analyzer payload. Analysis is nil when the field is
// missing or null.
type AnalyzeResponse struct {
	Analysis *model.AnalysisResult `json:"analysis"`
}

// Extractor turns a stored PDF into stored plain text.
type Extractor interface {
	Extract(ctx context.Context, req ExtractRequest) (*ExtractResponse, error)
}

// Scraper fetches the visible text of a web page.
type Scraper interface {
	Scrape(ctx context.Context, req ScrapeRequest) (*ScrapeResponse, error)
}

// Analyzer scores resume text against a job description.
type Analyzer interface {
	Analyze(ctx context.Context, req model.AnalysisRequest) (*AnalyzeResponse, error)
}

// ExtractorClient calls the PDF parser function.
type ExtractorClient struct{ c *client }

func NewExtractorClient(url string, timeout time.Duration, maxBytes int64, logger *zap.Logger) *ExtractorClient {
	return &ExtractorClient{c: newClient("pdf_parser", url, timeout, maxBytes, logger)}
}

func (e *ExtractorClient) Extract(ctx context.Context, req ExtractRequest) (*ExtractResponse, error) {
	var out ExtractResponse
	if err := e.c.post(ctx, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// ScraperClient calls the web scraper function.
type ScraperClient struct{ c *client }

func NewScraperClient(url string, timeout time.Duration, maxBytes int64, logger *zap.Logger) *ScraperClient {
	return &ScraperClient{c: newClient("web_scraper", url, timeout, maxBytes, logger)}
}

func (s *ScraperClient) Scrape(ctx context.Context, req ScrapeRequest) (*ScrapeResponse, error) {
	var out ScrapeResponse
	if err := s.c.post(ctx, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AnalyzerClient calls the resume analysis function.
type AnalyzerClient struct{ c *client }

func NewAnalyzerClient(url string, timeout time.Duration, maxBytes int64, logger *zap.Logger) *AnalyzerClient {
	return &AnalyzerClient{c: newClient("resume_analysis", url, timeout, maxBytes, logger)}
}

func (a *AnalyzerClient) Analyze(ctx context.Context, req model.AnalysisRequest) (*AnalyzeResponse, error) {
	var out AnalyzeResponse
	if err := a.c.post(ctx, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Clients bundles the three function clients built from one configuration section.
type Clients struct {
	Extractor *ExtractorClient
	Scraper   *ScraperClient
	Analyzer  *AnalyzerClient
}

// NewClients validates cfg and builds all three clients.
func NewClients(cfg config.FunctionsConfig, logger *zap.Logger) (*Clients, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Clients{
		Extractor: NewExtractorClient(cfg.PDFParserURL, cfg.ExtractTimeout, cfg.MaxResponseBytes, logger),
		Scraper:   NewScraperClient(cfg.WebScraperURL, cfg.ScrapeTimeout, cfg.MaxResponseBytes, logger),
		Analyzer:  NewAnalyzerClient(cfg.AnalysisURL, cfg.AnalyzeTimeout, cfg.MaxResponseBytes, logger),
	}, nil
}

var (
	_ Extractor = (*ExtractorClient)(nil)
	_ Scraper   = (*ScraperClient)(nil)
	_ Analyzer  = (*AnalyzerClient)(nil)
)
