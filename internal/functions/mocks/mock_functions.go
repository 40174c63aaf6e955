package mocks

import (
	"context"

	"resumeboost/internal/functions"
	"resumeboost/internal/model"

	"github.com/stretchr/testify/mock"
)

type MockExtractor struct {
	mock.Mock
}

func (m *MockExtractor) Extract(ctx context.Context, req functions.ExtractRequest) (*functions.ExtractResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*functions.ExtractResponse), args.Error(1)
}

type MockScraper struct {
	mock.Mock
}

func (m *MockScraper) Scrape(ctx context.Context, req functions.ScrapeRequest) (*functions.ScrapeResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*functions.ScrapeResponse), args.Error(1)
}

type MockAnalyzer struct {
	mock.Mock
}

func (m *MockAnalyzer) Analyze(ctx context.Context, req model.AnalysisRequest) (*functions.AnalyzeResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*functions.AnalyzeResponse), args.Error(1)
}
