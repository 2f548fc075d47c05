package scraper

import (
	"bytes"
	"compress/gzip"
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/jarcoal/httpmock"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/aluiziolira/go-scrape-atcoder/config"
	"github.com/aluiziolira/go-scrape-atcoder/models"
	"github.com/aluiziolira/go-scrape-atcoder/parser"
	"github.com/aluiziolira/go-scrape-atcoder/pipeline"
)

const testBaseURL = "http://example.test"

func TestClassifyError(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		statusCode int
		expected   string
	}{
		{name: "nil", err: nil, statusCode: 0, expected: "unknown"},
		{name: "context timeout", err: context.DeadlineExceeded, statusCode: 0, expected: "timeout"},
		{name: "net timeout", err: &net.DNSError{IsTimeout: true}, statusCode: 0, expected: "timeout"},
		{name: "connection", err: &net.OpError{Op: "dial", Net: "tcp", Err: errors.New("connection refused")}, statusCode: 0, expected: "connection"},
		{name: "forbidden", err: nil, statusCode: http.StatusForbidden, expected: "forbidden"},
		{name: "not found", err: nil, statusCode: http.StatusNotFound, expected: "not_found"},
		{name: "rate limited", err: nil, statusCode: http.StatusTooManyRequests, expected: "rate_limited"},
		{name: "server error", err: errors.New("Internal Server Error"), statusCode: http.StatusInternalServerError, expected: "status"},
		{name: "other", err: errors.New("some other error"), statusCode: 0, expected: "other"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := errorTypeLabel(classifyError("http://example.test/x", tt.err, tt.statusCode)); got != tt.expected {
				t.Fatalf("classifyError(%v, %d) = %q, want %q", tt.err, tt.statusCode, got, tt.expected)
			}
		})
	}
}

func TestErrorTypeLabelParse(t *testing.T) {
	err := fmt.Errorf("scrape: %w", &parser.StructureError{Selector: "tbody"})
	if got := errorTypeLabel(err); got != "parse" {
		t.Fatalf("label = %q, want parse", got)
	}
}

func newTestClient(t *testing.T, cfg *config.Config) (*Client, *httpmock.MockTransport) {
	t.Helper()
	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	cfg.BaseURL = testBaseURL + "/"

	client, err := NewClient(cfg)
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	transport := httpmock.NewMockTransport()
	client.fetcher.collector.WithTransport(transport)
	return client, transport
}

func htmlResponder(body string) httpmock.Responder {
	resp := httpmock.NewStringResponse(200, body)
	resp.Header.Set("Content-Type", "text/html")
	return httpmock.ResponderFromResponse(resp)
}

func submissionRow(id int, second int) string {
	return fmt.Sprintf(`<tr>
<td class="no-break"><time class='fixtime fixtime-second'>2018-08-25 21:00:%02d+0900</time></td>
<td><a href="/contests/abc107/tasks/abc107_b">B - Grid Compression</a></td>
<td><a href="/users/user%d">user%d</a> <a href='/contests/abc107/submissions?f.User=user%d'><span class='glyphicon glyphicon-search'></span></a></td>
<td>Python3 (3.4.3)</td>
<td class="text-right submission-score" data-id="%d">200</td>
<td class="text-right">512 Byte</td>
<td class='text-center'><span class='label label-success' title="Accepted">AC</span></td>
<td class='text-right'>17 ms</td>
<td class='text-right'>3060 KB</td>
<td class="text-center"><a href='/contests/abc107/submissions/%d'>Detail</a></td>
</tr>`, second%60, id, id, id, id, id)
}

// buildSubmissionsPage renders rows for page with ids unique across pages.
func buildSubmissionsPage(page, rows, maxPage int) string {
	var builder strings.Builder
	builder.WriteString("<html><body><div class=\"table-responsive\"><table><thead><tr><th>Submission Time</th></tr></thead><tbody>")
	for i := 0; i < rows; i++ {
		builder.WriteString(submissionRow(3000000+page*100+i, i))
	}
	builder.WriteString("</tbody></table></div>")
	if maxPage > 0 {
		builder.WriteString("<ul class=\"pagination\">")
		for _, p := range []int{1, page, maxPage} {
			fmt.Fprintf(&builder, "<li><a href='/contests/abc107/submissions?page=%d'>%d</a></li>", p, p)
		}
		builder.WriteString("</ul>")
	}
	builder.WriteString("</body></html>")
	return builder.String()
}

func buildArchivePage(n int) string {
	var builder strings.Builder
	builder.WriteString("<html><body><table class=\"table\"><thead><tr><th>Start Time</th></tr></thead><tbody>")
	for i := 1; i <= n; i++ {
		fmt.Fprintf(&builder, `<tr>
<td class="text-center"><a href='http://www.timeanddate.com/worldclock/fixedtime.html?iso=20190720T2100&p1=248' target='blank'><time class='fixtime fixtime-full'>2019-07-20 21:00:00+0900</time></a></td>
<td><span aria-hidden='true' title="Algorithm">&#9398;</span> <a href="/contests/agc%03d">AtCoder Grand Contest %03d</a></td>
<td class="text-center">02:30</td>
<td class="text-center">1200 - </td>
</tr>`, i, i)
	}
	builder.WriteString("</tbody></table></body></html>")
	return builder.String()
}

func buildTasksPage(contestID string, positions ...string) string {
	var builder strings.Builder
	builder.WriteString("<html><body><table><thead><tr><th></th></tr></thead><tbody>")
	for _, pos := range positions {
		lower := strings.ToLower(pos)
		fmt.Fprintf(&builder, `<tr><td class="text-center no-break"><a href="/contests/%[1]s/tasks/%[1]s_%[2]s">%[3]s</a></td><td><a href="/contests/%[1]s/tasks/%[1]s_%[2]s">Task %[3]s</a></td><td>2 sec</td><td>1024 MB</td></tr>`, contestID, lower, pos)
	}
	builder.WriteString("</tbody></table></body></html>")
	return builder.String()
}

func buildCodePage(code string) string {
	escaped := strings.NewReplacer("&", "&amp;", "<", "&lt;", ">", "&gt;").Replace(code)
	return "<html><body><pre id=\"submission-code\" class=\"prettyprint linenums\">" + escaped + "</pre></body></html>"
}

func TestFetchContestList(t *testing.T) {
	client, transport := newTestClient(t, nil)
	transport.RegisterResponder("GET", testBaseURL+"/contests/archive?lang=ja&page=1", htmlResponder(buildArchivePage(50)))

	resp, err := client.FetchContestList(models.ContestListRequest{Page: 1})
	if err != nil {
		t.Fatalf("fetch contests: %v", err)
	}
	if len(resp.Contests) != 50 {
		t.Fatalf("contests=%d, want 50", len(resp.Contests))
	}
	want := models.Contest{
		ID:               "agc001",
		StartEpochSecond: 1563624000,
		DurationSecond:   9000,
		Title:            "AtCoder Grand Contest 001",
		RateChange:       "1200 -",
	}
	if diff := cmp.Diff(want, resp.Contests[0]); diff != "" {
		t.Fatalf("contest mismatch (-want +got):\n%s", diff)
	}
	if got := testutil.ToFloat64(client.Metrics.RecordsTotal.WithLabelValues("contest")); got != 50 {
		t.Fatalf("contest records metric = %v, want 50", got)
	}
}

func TestFetchContestListZeroPageIsFirstPage(t *testing.T) {
	client, transport := newTestClient(t, nil)
	transport.RegisterResponder("GET", testBaseURL+"/contests/archive?lang=ja&page=1", htmlResponder(buildArchivePage(3)))

	resp, err := client.FetchContestList(models.ContestListRequest{})
	if err != nil {
		t.Fatalf("fetch contests: %v", err)
	}
	if len(resp.Contests) != 3 {
		t.Fatalf("contests=%d, want 3", len(resp.Contests))
	}
}

func TestFetchProblemList(t *testing.T) {
	client, transport := newTestClient(t, nil)
	transport.RegisterResponder("GET", testBaseURL+"/contests/abc131/tasks", htmlResponder(buildTasksPage("abc131", "A", "B", "C", "D")))

	resp, err := client.FetchProblemList(models.ProblemListRequest{ContestID: "abc131"})
	if err != nil {
		t.Fatalf("fetch problems: %v", err)
	}
	if len(resp.Problems) != 4 {
		t.Fatalf("problems=%d, want 4", len(resp.Problems))
	}
	want := models.Problem{ID: "abc131_c", ContestID: "abc131", Position: "C", Title: "C. Task C"}
	if diff := cmp.Diff(want, resp.Problems[2]); diff != "" {
		t.Fatalf("problem mismatch (-want +got):\n%s", diff)
	}
}

func TestFetchSubmissionList(t *testing.T) {
	client, transport := newTestClient(t, nil)
	transport.RegisterResponder("GET", testBaseURL+"/contests/abc107/submissions?page=1", htmlResponder(buildSubmissionsPage(1, 20, 818)))
	transport.RegisterResponder("GET", testBaseURL+"/contests/abc107/submissions?page=818", htmlResponder(buildSubmissionsPage(818, 7, 818)))

	resp, err := client.FetchSubmissionList(models.SubmissionListRequest{ContestID: "abc107"})
	if err != nil {
		t.Fatalf("fetch submissions: %v", err)
	}
	if len(resp.Submissions) != 20 {
		t.Fatalf("submissions=%d, want 20", len(resp.Submissions))
	}
	if resp.MaxPage != 818 {
		t.Fatalf("max page = %d, want 818", resp.MaxPage)
	}

	last, err := client.FetchSubmissionList(models.SubmissionListRequest{ContestID: "abc107", Page: resp.MaxPage})
	if err != nil {
		t.Fatalf("fetch last page: %v", err)
	}
	if len(last.Submissions) == 0 {
		t.Fatalf("last page should not be empty")
	}
	if got := testutil.ToFloat64(client.Metrics.RequestsTotal.WithLabelValues("completed")); got != 2 {
		t.Fatalf("completed requests = %v, want 2", got)
	}
}

func TestFetchSubmissionListPastLastPage(t *testing.T) {
	client, transport := newTestClient(t, nil)
	transport.RegisterResponder("GET", testBaseURL+"/contests/abc107/submissions?page=819",
		htmlResponder("<html><body><p>No submissions</p></body></html>"))
	transport.RegisterResponder("GET", testBaseURL+"/contests/abc107/submissions?page=820",
		httpmock.NewStringResponder(http.StatusNotFound, "not found"))

	if _, err := client.FetchSubmissionList(models.SubmissionListRequest{ContestID: "abc107", Page: 819}); !errors.Is(err, parser.ErrHTMLParse) {
		t.Fatalf("page without table: expected parse error, got %v", err)
	}

	_, err := client.FetchSubmissionList(models.SubmissionListRequest{ContestID: "abc107", Page: 820})
	var notFound ErrNotFound
	if !errors.As(err, &notFound) {
		t.Fatalf("page 820: expected ErrNotFound, got %v", err)
	}
	if notFound.URL != testBaseURL+"/contests/abc107/submissions?page=820" {
		t.Fatalf("not found url = %q", notFound.URL)
	}
	if got := testutil.ToFloat64(client.Metrics.ErrorsTotal.WithLabelValues("not_found")); got != 1 {
		t.Fatalf("not_found errors = %v, want 1", got)
	}
	if got := testutil.ToFloat64(client.Metrics.ErrorsTotal.WithLabelValues("parse")); got != 1 {
		t.Fatalf("parse errors = %v, want 1", got)
	}
}

func TestFetchSubmissionListWithoutPageLinks(t *testing.T) {
	client, transport := newTestClient(t, nil)
	transport.RegisterResponder("GET", testBaseURL+"/contests/abc107/submissions?page=1", htmlResponder(buildSubmissionsPage(1, 3, 0)))

	_, err := client.FetchSubmissionList(models.SubmissionListRequest{ContestID: "abc107", Page: 1})
	if !errors.Is(err, parser.ErrNoPageLinks) {
		t.Fatalf("expected ErrNoPageLinks, got %v", err)
	}
	if !errors.Is(err, parser.ErrHTMLParse) {
		t.Fatalf("expected parse error, got %v", err)
	}
}

func TestFetchSubmissionCode(t *testing.T) {
	codes := map[uint64]string{
		14924462: "#include <bits/stdc++.h>\nint main() { puts(\"Yes\"); }\n",
		14924496: "n = int(input())\nprint(n * (n + 1) // 2)\n",
		14924507: "fn main() {\n    println!(\"{}\", 1 < 2 && 3 > 2);\n}\n",
	}

	client, transport := newTestClient(t, nil)
	for id, code := range codes {
		url := fmt.Sprintf("%s/contests/abc172/submissions/%d", testBaseURL, id)
		transport.RegisterResponder("GET", url, htmlResponder(buildCodePage(code)))
	}

	for id, want := range codes {
		got, err := client.FetchSubmissionCode("abc172", id)
		if err != nil {
			t.Fatalf("fetch code %d: %v", id, err)
		}
		if got != want {
			t.Fatalf("code %d = %q, want %q", id, got, want)
		}
	}
	if got := testutil.ToFloat64(client.Metrics.RecordsTotal.WithLabelValues("code")); got != 3 {
		t.Fatalf("code records metric = %v, want 3", got)
	}
}

func TestFetcherSendsHeaders(t *testing.T) {
	client, transport := newTestClient(t, nil)

	var accept, encoding string
	transport.RegisterResponder("GET", testBaseURL+"/contests/abc131/tasks", func(req *http.Request) (*http.Response, error) {
		accept = req.Header.Get("Accept")
		encoding = req.Header.Get("Accept-Encoding")
		return htmlResponder(buildTasksPage("abc131", "A"))(req)
	})

	if _, err := client.FetchProblemList(models.ProblemListRequest{ContestID: "abc131"}); err != nil {
		t.Fatalf("fetch problems: %v", err)
	}
	if accept != "text/html" {
		t.Fatalf("Accept = %q, want text/html", accept)
	}
	if encoding != "gzip" {
		t.Fatalf("Accept-Encoding = %q, want gzip", encoding)
	}
}

func TestFetcherInflatesGzip(t *testing.T) {
	client, transport := newTestClient(t, nil)

	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	if _, err := zw.Write([]byte(buildTasksPage("abc131", "A", "B"))); err != nil {
		t.Fatalf("gzip write: %v", err)
	}
	if err := zw.Close(); err != nil {
		t.Fatalf("gzip close: %v", err)
	}
	compressed := buf.Bytes()

	transport.RegisterResponder("GET", testBaseURL+"/contests/abc131/tasks", func(req *http.Request) (*http.Response, error) {
		resp := httpmock.NewBytesResponse(200, compressed)
		resp.Header.Set("Content-Type", "text/html")
		resp.Header.Set("Content-Encoding", "gzip")
		return resp, nil
	})

	resp, err := client.FetchProblemList(models.ProblemListRequest{ContestID: "abc131"})
	if err != nil {
		t.Fatalf("fetch problems: %v", err)
	}
	if len(resp.Problems) != 2 {
		t.Fatalf("problems=%d, want 2", len(resp.Problems))
	}
}

func TestFetcherHTTPStatusClassification(t *testing.T) {
	tests := []struct {
		status   int
		expected string
	}{
		{status: http.StatusTooManyRequests, expected: "rate_limited"},
		{status: http.StatusForbidden, expected: "forbidden"},
		{status: http.StatusNotFound, expected: "not_found"},
		{status: http.StatusBadGateway, expected: "status"},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("status_%d", tt.status), func(t *testing.T) {
			client, transport := newTestClient(t, nil)
			transport.RegisterResponder("GET", testBaseURL+"/contests/abc131/tasks", httpmock.NewStringResponder(tt.status, ""))

			_, err := client.FetchProblemList(models.ProblemListRequest{ContestID: "abc131"})
			if err == nil {
				t.Fatalf("expected error for status %d", tt.status)
			}
			if got := errorTypeLabel(err); got != tt.expected {
				t.Fatalf("label = %q, want %q", got, tt.expected)
			}
			if got := testutil.ToFloat64(client.Metrics.ErrorsTotal.WithLabelValues(tt.expected)); got != 1 {
				t.Fatalf("errors metric = %v, want 1", got)
			}
			if got := testutil.ToFloat64(client.Metrics.RequestsTotal.WithLabelValues("failed")); got != 1 {
				t.Fatalf("failed requests = %v, want 1", got)
			}
		})
	}
}

func TestNewClientRejectsHostlessURL(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.BaseURL = "/relative"
	if _, err := NewClient(cfg); err == nil {
		t.Fatalf("expected error for base url without host")
	}
}

type collectingWriter struct {
	mu          sync.Mutex
	submissions []*models.Submission
}

func (cw *collectingWriter) Write(submissions []*models.Submission) error {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	cw.submissions = append(cw.submissions, submissions...)
	return nil
}

func (cw *collectingWriter) Close() error {
	return nil
}

func (cw *collectingWriter) Validate() error {
	return nil
}

func (cw *collectingWriter) Count() int {
	cw.mu.Lock()
	defer cw.mu.Unlock()
	return len(cw.submissions)
}

func crawlFixture(t *testing.T, cfg *config.Config, register func(*httpmock.MockTransport)) (*models.CrawlResult, *collectingWriter, error) {
	t.Helper()
	client, transport := newTestClient(t, cfg)
	register(transport)

	writer := &collectingWriter{}
	p := pipeline.NewPipeline(context.Background(), writer, cfg)
	p.Start(2)

	result, err := NewCrawler(client, cfg).Run(context.Background(), "abc107", p)
	if closeErr := p.Close(); closeErr != nil {
		t.Fatalf("close pipeline: %v", closeErr)
	}
	return result, writer, err
}

func listingURL(page int) string {
	return fmt.Sprintf("%s/contests/abc107/submissions?page=%d", testBaseURL, page)
}

func TestCrawlerRunAllPages(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Parallelism = 4

	result, writer, err := crawlFixture(t, cfg, func(tr *httpmock.MockTransport) {
		tr.RegisterResponder("GET", listingURL(1), htmlResponder(buildSubmissionsPage(1, 20, 3)))
		tr.RegisterResponder("GET", listingURL(2), htmlResponder(buildSubmissionsPage(2, 20, 3)))
		tr.RegisterResponder("GET", listingURL(3), htmlResponder(buildSubmissionsPage(3, 20, 3)))
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if got := writer.Count(); got != 60 {
		t.Fatalf("submissions=%d, want 60 (failed=%v)", got, result.FailedURLs)
	}
	if result.MaxPage != 3 || result.PageCount != 3 || result.RequestCount != 3 {
		t.Fatalf("result pages=%d/%d requests=%d, want 3/3/3", result.MaxPage, result.PageCount, result.RequestCount)
	}
	if result.ScrapedCount != 60 {
		t.Fatalf("scraped=%d, want 60", result.ScrapedCount)
	}
	if result.ErrorCount != 0 || len(result.FailedURLs) != 0 {
		t.Fatalf("unexpected failures: %v", result.FailedURLs)
	}
}

func TestCrawlerRunSinglePageWithoutLinks(t *testing.T) {
	cfg := config.DefaultConfig()

	result, writer, err := crawlFixture(t, cfg, func(tr *httpmock.MockTransport) {
		tr.RegisterResponder("GET", listingURL(1), htmlResponder(buildSubmissionsPage(1, 5, 0)))
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if got := writer.Count(); got != 5 {
		t.Fatalf("submissions=%d, want 5", got)
	}
	if result.MaxPage != 1 || result.RequestCount != 1 {
		t.Fatalf("max page=%d requests=%d, want 1/1", result.MaxPage, result.RequestCount)
	}
}

func TestCrawlerRecordsFailedPages(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Parallelism = 2

	result, writer, err := crawlFixture(t, cfg, func(tr *httpmock.MockTransport) {
		tr.RegisterResponder("GET", listingURL(1), htmlResponder(buildSubmissionsPage(1, 20, 3)))
		tr.RegisterResponder("GET", listingURL(2), httpmock.NewStringResponder(http.StatusNotFound, ""))
		tr.RegisterResponder("GET", listingURL(3), htmlResponder(buildSubmissionsPage(3, 20, 3)))
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}

	if got := writer.Count(); got != 40 {
		t.Fatalf("submissions=%d, want 40", got)
	}
	if diff := cmp.Diff([]string{listingURL(2)}, result.FailedURLs); diff != "" {
		t.Fatalf("failed urls mismatch (-want +got):\n%s", diff)
	}
	if result.ErrorsByType["not_found"] != 1 || result.ErrorCount != 1 {
		t.Fatalf("errors=%v count=%d, want one not_found", result.ErrorsByType, result.ErrorCount)
	}
}

func TestCrawlerRespectsMaxPages(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.MaxPages = 2

	result, writer, err := crawlFixture(t, cfg, func(tr *httpmock.MockTransport) {
		tr.RegisterResponder("GET", listingURL(1), htmlResponder(buildSubmissionsPage(1, 10, 818)))
		tr.RegisterResponder("GET", listingURL(2), htmlResponder(buildSubmissionsPage(2, 10, 818)))
	})
	if err != nil {
		t.Fatalf("run: %v", err)
	}
	if result.MaxPage != 818 {
		t.Fatalf("max page=%d, want 818", result.MaxPage)
	}
	if result.RequestCount != 2 {
		t.Fatalf("requests=%d, want 2", result.RequestCount)
	}
	if got := writer.Count(); got != 20 {
		t.Fatalf("submissions=%d, want 20", got)
	}
}

func TestCrawlerFirstPageFailureAborts(t *testing.T) {
	cfg := config.DefaultConfig()

	_, _, err := crawlFixture(t, cfg, func(tr *httpmock.MockTransport) {
		tr.RegisterResponder("GET", listingURL(1), httpmock.NewStringResponder(http.StatusForbidden, ""))
	})
	var forbidden ErrForbidden
	if !errors.As(err, &forbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
}
