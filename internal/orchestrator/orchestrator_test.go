package orchestrator_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"resumeboost/internal/functions"
	fnmocks "resumeboost/internal/functions/mocks"
	"resumeboost/internal/model"
	"resumeboost/internal/orchestrator"
	"resumeboost/internal/storage"
	storemocks "resumeboost/internal/storage/mocks"
)

const (
	bucket     = "resumes-bucket"
	jobURL     = "https://jobs.example.com/senior-engineer"
	resumeText = "Experience: ..."
	jobText    = "Job: Senior Engineer..."
)

type fixture struct {
	store     *storemocks.MockStorage
	extractor *fnmocks.MockExtractor
	scraper   *fnmocks.MockScraper
	analyzer  *fnmocks.MockAnalyzer
	metrics   *orchestrator.Metrics
	orch      *orchestrator.Orchestrator
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWithPool(t, 2)
}

func newFixtureWithPool(t *testing.T, poolSize int) *fixture {
	t.Helper()
	metrics, err := orchestrator.NewMetrics(prometheus.NewRegistry())
	require.NoError(t, err)

	f := &fixture{
		store:     new(storemocks.MockStorage),
		extractor: new(fnmocks.MockExtractor),
		scraper:   new(fnmocks.MockScraper),
		analyzer:  new(fnmocks.MockAnalyzer),
		metrics:   metrics,
	}
	f.store.On("Bucket").Return(bucket).Maybe()
	f.orch = orchestrator.New(f.store, f.extractor, f.scraper, f.analyzer,
		orchestrator.Options{PoolSize: poolSize, MaxResumeBytes: 1 << 20, MaxResumeText: 1 << 20, StorageTimeout: time.Second},
		metrics, nil)
	return f
}

func (f *fixture) expectUpload(err error) {
	f.store.On("Put", mock.Anything, mock.MatchedBy(func(key string) bool {
		return strings.HasPrefix(key, storage.ResumePrefix) && strings.HasSuffix(key, "_cv.pdf")
	}), mock.Anything, mock.MatchedBy(func(opt storage.PutObjectOptions) bool {
		return opt.ContentType == "application/pdf" && opt.Size == int64(len("%PDF-1.4"))
	})).Return(storage.ObjectInfo{}, err)
}

func (f *fixture) expectParsedText(key, text string) *mock.Call {
	return f.store.On("Get", mock.Anything, key).
		Return(io.NopCloser(strings.NewReader(text)), storage.ObjectInfo{Key: key, Size: int64(len(text))}, nil)
}

func input() orchestrator.Input {
	return orchestrator.Input{
		RunID:    "run-1",
		Resume:   []byte("%PDF-1.4"),
		Filename: "cv.pdf",
		JobURL:   jobURL,
		Mode:     model.ModeDetailedAnalysis,
	}
}

func analysis(text string) *functions.AnalyzeResponse {
	r := model.NewTextResult(text)
	return &functions.AnalyzeResponse{Analysis: &r}
}

func TestAnalyzeResume_Success(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	f.expectUpload(nil)
	f.extractor.On("Extract", mock.Anything, functions.ExtractRequest{Bucket: bucket, Key: "resumes/run-1_cv.pdf"}).
		Return(&functions.ExtractResponse{Key: "parsed_resumes/r.txt"}, nil).Once()
	f.expectParsedText("parsed_resumes/r.txt", resumeText)
	f.scraper.On("Scrape", mock.Anything, mock.MatchedBy(func(req functions.ScrapeRequest) bool {
		return req.URL == "https:%2F%2Fjobs.example.com%2Fsenior-engineer" &&
			strings.HasPrefix(req.Key, storage.ScrapedContentPrefix+"run-1/")
	})).Return(&functions.ScrapeResponse{Content: jobText, Key: "scraped_content/run-1/job"}, nil).Once()
	f.analyzer.On("Analyze", mock.Anything, model.AnalysisRequest{
		ResumeText:         resumeText,
		JobDescriptionText: jobText,
		AnalysisMode:       model.ModeDetailedAnalysis,
	}).Return(analysis("Score: 85"), nil).Once()

	out, err := f.orch.AnalyzeResume(ctx, input())
	require.NoError(t, err)

	assert.Equal(t, "Score: 85", out.Analysis.String())
	assert.Equal(t, "run-1", out.RunID)
	assert.Equal(t, model.StorageReference("resumes/run-1_cv.pdf"), out.ResumeKey)
	assert.Equal(t, model.StorageReference("parsed_resumes/r.txt"), out.ParsedKey)
	assert.Equal(t, model.StorageReference("scraped_content/run-1/job"), out.JobKey)

	f.extractor.AssertNumberOfCalls(t, "Extract", 1)
	f.scraper.AssertNumberOfCalls(t, "Scrape", 1)
	f.analyzer.AssertNumberOfCalls(t, "Analyze", 1)
	f.store.AssertExpectations(t)
	assert.Equal(t, float64(1), testutil.ToFloat64(f.metricsRuns("success")))
}

func (f *fixture) metricsRuns(outcome string) prometheus.Collector {
	return orchestrator.RunsCounter(f.metrics, outcome)
}

func TestAnalyzeResume_BranchFailures(t *testing.T) {
	tests := []struct {
		name     string
		setup    func(f *fixture)
		wantKind orchestrator.Kind
		wantIs   error
		wantMsg  string
	}{
		{
			name: "extract fails",
			setup: func(f *fixture) {
				f.extractor.On("Extract", mock.Anything, mock.Anything).
					Return(nil, &functions.RemoteError{Function: "pdf_parser", Status: 500, Message: "Error parsing PDF: bad xref"})
				f.scraper.On("Scrape", mock.Anything, mock.Anything).Return(&functions.ScrapeResponse{Content: jobText}, nil)
			},
			wantKind: orchestrator.KindExtraction,
			wantIs:   orchestrator.ErrExtraction,
			wantMsg:  "Error parsing resume: Error parsing PDF: bad xref",
		},
		{
			name: "extract returns no key",
			setup: func(f *fixture) {
				f.extractor.On("Extract", mock.Anything, mock.Anything).Return(&functions.ExtractResponse{}, nil)
				f.scraper.On("Scrape", mock.Anything, mock.Anything).Return(&functions.ScrapeResponse{Content: jobText}, nil)
			},
			wantKind: orchestrator.KindExtraction,
			wantIs:   orchestrator.ErrExtraction,
			wantMsg:  "Parsed resume text key not returned.",
		},
		{
			name: "parsed text missing from store",
			setup: func(f *fixture) {
				f.extractor.On("Extract", mock.Anything, mock.Anything).Return(&functions.ExtractResponse{Key: "parsed_resumes/r.txt"}, nil)
				f.store.On("Get", mock.Anything, "parsed_resumes/r.txt").Return(nil, storage.ObjectInfo{}, errors.New("no such key"))
				f.scraper.On("Scrape", mock.Anything, mock.Anything).Return(&functions.ScrapeResponse{Content: jobText}, nil)
			},
			wantKind: orchestrator.KindExtraction,
			wantIs:   orchestrator.ErrExtraction,
			wantMsg:  "Could not retrieve parsed resume text: no such key",
		},
		{
			name: "parsed text blank",
			setup: func(f *fixture) {
				f.extractor.On("Extract", mock.Anything, mock.Anything).Return(&functions.ExtractResponse{Key: "parsed_resumes/r.txt"}, nil)
				f.expectParsedText("parsed_resumes/r.txt", "  \n ")
				f.scraper.On("Scrape", mock.Anything, mock.Anything).Return(&functions.ScrapeResponse{Content: jobText}, nil)
			},
			wantKind: orchestrator.KindExtraction,
			wantIs:   orchestrator.ErrExtraction,
			wantMsg:  "Could not retrieve parsed resume text.",
		},
		{
			name: "scrape fails",
			setup: func(f *fixture) {
				f.extractor.On("Extract", mock.Anything, mock.Anything).Return(&functions.ExtractResponse{Key: "parsed_resumes/r.txt"}, nil)
				f.expectParsedText("parsed_resumes/r.txt", resumeText)
				f.scraper.On("Scrape", mock.Anything, mock.Anything).
					Return(nil, &functions.RemoteError{Function: "web_scraper", Status: 502, Message: "Request failed: 404 Not Found"})
			},
			wantKind: orchestrator.KindScraping,
			wantIs:   orchestrator.ErrScraping,
			wantMsg:  "Error scraping job description: Request failed: 404 Not Found",
		},
		{
			name: "scrape returns empty content",
			setup: func(f *fixture) {
				f.extractor.On("Extract", mock.Anything, mock.Anything).Return(&functions.ExtractResponse{Key: "parsed_resumes/r.txt"}, nil)
				f.expectParsedText("parsed_resumes/r.txt", resumeText)
				f.scraper.On("Scrape", mock.Anything, mock.Anything).Return(&functions.ScrapeResponse{Content: ""}, nil)
			},
			wantKind: orchestrator.KindScraping,
			wantIs:   orchestrator.ErrScraping,
			wantMsg:  "Web scraper did not return any job description content.",
		},
		{
			name: "both fail, resume error wins",
			setup: func(f *fixture) {
				f.extractor.On("Extract", mock.Anything, mock.Anything).Return(nil, errors.New("timeout"))
				f.scraper.On("Scrape", mock.Anything, mock.Anything).Return(nil, errors.New("refused"))
			},
			wantKind: orchestrator.KindExtraction,
			wantIs:   orchestrator.ErrExtraction,
			wantMsg:  "Error parsing resume: timeout",
		},
		{
			name: "branch panics",
			setup: func(f *fixture) {
				f.extractor.On("Extract", mock.Anything, mock.Anything).Return(&functions.ExtractResponse{Key: "parsed_resumes/r.txt"}, nil)
				f.expectParsedText("parsed_resumes/r.txt", resumeText)
				f.scraper.On("Scrape", mock.Anything, mock.Anything).Panic("boom")
			},
			wantKind: orchestrator.KindUnexpected,
			wantIs:   orchestrator.ErrUnexpected,
			wantMsg:  "Unexpected error: boom",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.expectUpload(nil)
			tt.setup(f)

			out, err := f.orch.AnalyzeResume(context.Background(), input())
			require.Error(t, err)
			assert.Nil(t, out)

			var oe *orchestrator.Error
			require.True(t, errors.As(err, &oe))
			assert.Equal(t, tt.wantKind, oe.Kind)
			assert.ErrorIs(t, err, tt.wantIs)
			assert.Equal(t, tt.wantMsg, err.Error())

			f.extractor.AssertNumberOfCalls(t, "Extract", 1)
			f.scraper.AssertNumberOfCalls(t, "Scrape", 1)
			f.analyzer.AssertNotCalled(t, "Analyze", mock.Anything, mock.Anything)
			assert.Equal(t, float64(1), testutil.ToFloat64(f.metricsRuns(string(tt.wantKind))))
		})
	}
}

func TestAnalyzeResume_AnalysisFailures(t *testing.T) {
	null := model.AnalysisResult{Raw: []byte("null")}

	tests := []struct {
		name    string
		resp    *functions.AnalyzeResponse
		err     error
		wantMsg string
	}{
		{name: "remote error", err: &functions.RemoteError{Status: 500, Message: "model overloaded"}, wantMsg: "Error analyzing resume: model overloaded"},
		{name: "missing field", resp: &functions.AnalyzeResponse{}, wantMsg: "Error: Analysis result could not be retrieved."},
		{name: "null field", resp: &functions.AnalyzeResponse{Analysis: &null}, wantMsg: "Error: Analysis result could not be retrieved."},
		{name: "empty string", resp: analysis(""), wantMsg: "Error: Analysis result could not be retrieved."},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			f.expectUpload(nil)
			f.extractor.On("Extract", mock.Anything, mock.Anything).Return(&functions.ExtractResponse{Key: "parsed_resumes/r.txt"}, nil)
			f.expectParsedText("parsed_resumes/r.txt", resumeText)
			f.scraper.On("Scrape", mock.Anything, mock.Anything).Return(&functions.ScrapeResponse{Content: jobText}, nil)
			if tt.err != nil {
				f.analyzer.On("Analyze", mock.Anything, mock.Anything).Return(nil, tt.err).Once()
			} else {
				f.analyzer.On("Analyze", mock.Anything, mock.Anything).Return(tt.resp, nil).Once()
			}

			_, err := f.orch.AnalyzeResume(context.Background(), input())
			assert.ErrorIs(t, err, orchestrator.ErrAnalysis)
			assert.Equal(t, tt.wantMsg, err.Error())
			f.analyzer.AssertNumberOfCalls(t, "Analyze", 1)
		})
	}
}

func TestAnalyzeResume_Validation(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(in *orchestrator.Input)
	}{
		{name: "empty resume", mutate: func(in *orchestrator.Input) { in.Resume = nil }},
		{name: "missing filename", mutate: func(in *orchestrator.Input) { in.Filename = "" }},
		{name: "not a pdf", mutate: func(in *orchestrator.Input) { in.Filename = "cv.docx" }},
		{name: "resume too large", mutate: func(in *orchestrator.Input) { in.Resume = make([]byte, 2<<20) }},
		{name: "ftp url", mutate: func(in *orchestrator.Input) { in.JobURL = "ftp://jobs.example.com/1" }},
		{name: "no scheme", mutate: func(in *orchestrator.Input) { in.JobURL = "jobs.example.com/1" }},
		{name: "empty url", mutate: func(in *orchestrator.Input) { in.JobURL = "" }},
		{name: "scheme only", mutate: func(in *orchestrator.Input) { in.JobURL = "https://" }},
		{name: "bad escape", mutate: func(in *orchestrator.Input) { in.JobURL = "https://jobs.example.com/%zz" }},
		{name: "invalid mode", mutate: func(in *orchestrator.Input) { in.Mode = "Deep Dive" }},
		{name: "traversal filename", mutate: func(in *orchestrator.Input) { in.Filename = "../cv.pdf" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t)
			in := input()
			tt.mutate(&in)

			_, err := f.orch.AnalyzeResume(context.Background(), in)
			assert.ErrorIs(t, err, orchestrator.ErrValidation)
			assert.Equal(t, orchestrator.KindValidation, orchestrator.KindOf(err))

			f.store.AssertNotCalled(t, "Put", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
			f.extractor.AssertNotCalled(t, "Extract", mock.Anything, mock.Anything)
			f.scraper.AssertNotCalled(t, "Scrape", mock.Anything, mock.Anything)
			f.analyzer.AssertNotCalled(t, "Analyze", mock.Anything, mock.Anything)
		})
	}
}

func TestValidateJobURL(t *testing.T) {
	got, err := orchestrator.ValidateJobURL("https%3A%2F%2Fjobs.example.com%2Fa%3Fb%3Dc")
	require.NoError(t, err)
	assert.Equal(t, "https%3A%2F%2Fjobs.example.com%2Fa%3Fb%3Dc", got)

	got, err = orchestrator.ValidateJobURL("https://jobs.example.com/search?title=R%26D&k=C%2B%2B")
	require.NoError(t, err)
	assert.Equal(t, "https://jobs.example.com/search?title=R%26D&k=C%2B%2B", got)

	got, err = orchestrator.ValidateJobURL("  http://jobs.example.com  ")
	require.NoError(t, err)
	assert.Equal(t, "http://jobs.example.com", got)

	_, err = orchestrator.ValidateJobURL("mailto:hr@example.com")
	assert.ErrorIs(t, err, orchestrator.ErrValidation)
}

func TestAnalyzeResume_EscapedQueryReachesScraperOnce(t *testing.T) {
	const escapedURL = "https://jobs.example.com/search?title=R%26D&k=C%2B%2B&q=senior%20go"

	f := newFixture(t)
	f.expectUpload(nil)
	f.extractor.On("Extract", mock.Anything, mock.Anything).Return(&functions.ExtractResponse{Key: "parsed_resumes/r.txt"}, nil)
	f.expectParsedText("parsed_resumes/r.txt", resumeText)

	var got functions.ScrapeRequest
	f.scraper.On("Scrape", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		got = args.Get(1).(functions.ScrapeRequest)
	}).Return(&functions.ScrapeResponse{Content: jobText}, nil)
	f.analyzer.On("Analyze", mock.Anything, mock.Anything).Return(analysis("ok"), nil)

	in := input()
	in.JobURL = "  " + escapedURL + " "
	out, err := f.orch.AnalyzeResume(context.Background(), in)
	require.NoError(t, err)

	// The scraper decodes exactly once.
	decoded, err := url.PathUnescape(got.URL)
	require.NoError(t, err)
	assert.Equal(t, escapedURL, decoded)

	parsed, err := url.Parse(decoded)
	require.NoError(t, err)
	assert.Equal(t, "R&D", parsed.Query().Get("title"))
	assert.Equal(t, "C++", parsed.Query().Get("k"))
	assert.Equal(t, "senior go", parsed.Query().Get("q"))

	assert.Equal(t, storage.ScrapedContentKey("run-1", escapedURL), got.Key)
	assert.Equal(t, model.StorageReference(got.Key), out.JobKey)
}

func TestAnalyzeResume_UploadFailure(t *testing.T) {
	f := newFixture(t)
	f.expectUpload(errors.New("access denied"))

	_, err := f.orch.AnalyzeResume(context.Background(), input())
	assert.ErrorIs(t, err, orchestrator.ErrUpload)
	assert.Equal(t, "Error uploading to S3: access denied", err.Error())

	f.extractor.AssertNotCalled(t, "Extract", mock.Anything, mock.Anything)
	f.scraper.AssertNotCalled(t, "Scrape", mock.Anything, mock.Anything)
	f.analyzer.AssertNotCalled(t, "Analyze", mock.Anything, mock.Anything)
}

func TestAnalyzeResume_IndependentRuns(t *testing.T) {
	f := newFixture(t)

	var mu sync.Mutex
	var keys []string
	f.store.On("Put", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Run(func(args mock.Arguments) {
			mu.Lock()
			keys = append(keys, args.String(1))
			mu.Unlock()
		}).Return(storage.ObjectInfo{}, nil)
	f.extractor.On("Extract", mock.Anything, mock.Anything).Return(&functions.ExtractResponse{Key: "parsed_resumes/r.txt"}, nil)
	f.expectParsedText("parsed_resumes/r.txt", resumeText).Once()
	f.expectParsedText("parsed_resumes/r.txt", resumeText).Once()
	f.scraper.On("Scrape", mock.Anything, mock.Anything).Return(&functions.ScrapeResponse{Content: jobText}, nil)
	f.analyzer.On("Analyze", mock.Anything, mock.Anything).Return(analysis("Score: 85"), nil)

	in := input()
	in.RunID = ""
	first, err := f.orch.AnalyzeResume(context.Background(), in)
	require.NoError(t, err)
	second, err := f.orch.AnalyzeResume(context.Background(), in)
	require.NoError(t, err)

	require.Len(t, keys, 2)
	assert.NotEqual(t, keys[0], keys[1])
	assert.NotEqual(t, first.RunID, second.RunID)
	assert.NotEqual(t, first.ResumeKey, second.ResumeKey)
	f.extractor.AssertNumberOfCalls(t, "Extract", 2)
	f.scraper.AssertNumberOfCalls(t, "Scrape", 2)
}

func TestAnalyzeResume_BranchesRunConcurrently(t *testing.T) {
	// Pool sizes below two are raised so both branches of a run still overlap.
	for _, poolSize := range []int{0, 1, 2, 4} {
		t.Run(fmt.Sprintf("pool %d", poolSize), func(t *testing.T) {
			f := newFixtureWithPool(t, poolSize)
			f.expectUpload(nil)

			var inFlight, peak int32
			track := func(mock.Arguments) {
				n := atomic.AddInt32(&inFlight, 1)
				for {
					p := atomic.LoadInt32(&peak)
					if n <= p || atomic.CompareAndSwapInt32(&peak, p, n) {
						break
					}
				}
				time.Sleep(50 * time.Millisecond)
				atomic.AddInt32(&inFlight, -1)
			}
			f.extractor.On("Extract", mock.Anything, mock.Anything).Run(track).Return(&functions.ExtractResponse{Key: "parsed_resumes/r.txt"}, nil)
			f.expectParsedText("parsed_resumes/r.txt", resumeText)
			f.scraper.On("Scrape", mock.Anything, mock.Anything).Run(track).Return(&functions.ScrapeResponse{Content: jobText}, nil)
			f.analyzer.On("Analyze", mock.Anything, mock.Anything).Run(func(mock.Arguments) {
				assert.Equal(t, int32(0), atomic.LoadInt32(&inFlight))
			}).Return(analysis("ok"), nil)

			_, err := f.orch.AnalyzeResume(context.Background(), input())
			require.NoError(t, err)
			assert.Equal(t, int32(2), atomic.LoadInt32(&peak))
		})
	}
}

func TestAnalyzeResume_CallerCancellationDoesNotAbortBranches(t *testing.T) {
	f := newFixture(t)
	f.expectUpload(nil)

	ctx, cancel := context.WithCancel(context.Background())
	f.extractor.On("Extract", mock.Anything, mock.Anything).Run(func(args mock.Arguments) {
		cancel()
		assert.NoError(t, args.Get(0).(context.Context).Err())
	}).Return(&functions.ExtractResponse{Key: "parsed_resumes/r.txt"}, nil)
	f.expectParsedText("parsed_resumes/r.txt", resumeText)
	f.scraper.On("Scrape", mock.Anything, mock.Anything).Return(&functions.ScrapeResponse{Content: jobText}, nil)
	f.analyzer.On("Analyze", mock.Anything, mock.Anything).Return(analysis("ok"), nil)

	_, err := f.orch.AnalyzeResume(ctx, input())
	require.NoError(t, err)
}
