package output

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	nethttp "net/http"
	"os"
	"slices"
	"time"

	"github.com/abdul-hamid-achik/hitbox/packages/http"
	"github.com/fatih/color"
)

// formatValue truncates long values for single-line display
func formatValue(v string, maxLen int) string {
	if len(v) > maxLen {
		return v[:maxLen] + "..."
	}
	return v
}

type ConsoleFormatter struct {
	writer  io.Writer
	verbose bool
	noColor bool
}

type ConsoleOption func(*ConsoleFormatter)

func NewConsoleFormatter(opts ...ConsoleOption) *ConsoleFormatter {
	f := &ConsoleFormatter{
		writer: os.Stdout,
	}
	for _, opt := range opts {
		opt(f)
	}
	if f.noColor {
		color.NoColor = true
	}
	return f
}

func WithWriter(w io.Writer) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.writer = w
	}
}

func WithVerbose(v bool) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.verbose = v
	}
}

func WithNoColor(nc bool) ConsoleOption {
	return func(f *ConsoleFormatter) {
		f.noColor = nc
	}
}

func statusColor(status int) *color.Color {
	switch {
	case status >= 500:
		return color.New(color.FgRed, color.Bold)
	case status >= 400:
		return color.New(color.FgRed)
	case status >= 300:
		return color.New(color.FgYellow)
	default:
		return color.New(color.FgGreen)
	}
}

func (f *ConsoleFormatter) FormatExchange(exchange *http.Exchange) {
	bold := color.New(color.Bold).SprintFunc()
	cyan := color.New(color.FgCyan).SprintFunc()
	req, resp := exchange.Request, exchange.Response

	fmt.Fprintf(f.writer, "%s %s\n", bold(req.Method), req.URL)
	if f.verbose {
		f.writeHeaders("> ", req.Headers)
		if len(req.Body) > 0 {
			fmt.Fprintf(f.writer, "%s\n", req.Body)
		}
		fmt.Fprintln(f.writer)
	}

	status := statusColor(resp.StatusCode).Sprintf("%d %s", resp.StatusCode, statusText(resp.StatusCode))
	fmt.Fprintf(f.writer, "%s %s\n", status, cyan(fmt.Sprintf("(%dms)", exchange.Duration().Milliseconds())))
	if f.verbose {
		f.writeHeaders("< ", resp.Headers)
	}

	if len(resp.Body) > 0 {
		fmt.Fprintln(f.writer)
		fmt.Fprintln(f.writer, prettyBody(resp))
	}
}

func (f *ConsoleFormatter) writeHeaders(prefix string, headers map[string][]string) {
	dim := color.New(color.Faint).SprintFunc()
	names := make([]string, 0, len(headers))
	for name := range headers {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		for _, v := range headers[name] {
			fmt.Fprintf(f.writer, "%s%s: %s\n", dim(prefix), name, v)
		}
	}
}

func prettyBody(resp *http.ResponseRecord) string {
	if resp.IsJSON() {
		var buf bytes.Buffer
		if err := json.Indent(&buf, resp.Body, "", "  "); err == nil {
			return buf.String()
		}
	}
	return resp.BodyString()
}

func statusText(code int) string {
	if text := nethttp.StatusText(code); text != "" {
		return text
	}
	return "Unknown"
}

// FormatError prints build and send failures with their context.
func (f *ConsoleFormatter) FormatError(err error) {
	red := color.New(color.FgRed).SprintFunc()
	bold := color.New(color.Bold).SprintFunc()

	var buildErr *http.BuildError
	var reqErr *http.RequestError
	switch {
	case errors.As(err, &buildErr):
		fmt.Fprintf(f.writer, "%s\n", red("request could not be built"))
		fmt.Fprintf(f.writer, "  %v\n", buildErr)
	case errors.As(err, &reqErr):
		fmt.Fprintf(f.writer, "%s\n", red("request failed"))
		fmt.Fprintf(f.writer, "  %s %s\n", bold(reqErr.Request.Method), reqErr.Request.URL)
		fmt.Fprintf(f.writer, "  %v\n", reqErr.Err)
		fmt.Fprintf(f.writer, "  after %dms\n", reqErr.EndTime.Sub(reqErr.StartTime).Milliseconds())
		if f.verbose {
			f.writeHeaders("  > ", reqErr.Request.Headers)
		}
	default:
		fmt.Fprintf(f.writer, "%s %v\n", red("Error:"), err)
	}
}

func (f *ConsoleFormatter) FormatHistory(exchanges []*http.Exchange) {
	if len(exchanges) == 0 {
		fmt.Fprintln(f.writer, "No requests recorded")
		return
	}
	cyan := color.New(color.FgCyan).SprintFunc()
	dim := color.New(color.Faint).SprintFunc()
	for _, e := range exchanges {
		profile := string(e.Request.ProfileID)
		if profile == "" {
			profile = "-"
		}
		fmt.Fprintf(f.writer, "%s  %-20s %-10s %s %s %s %s\n",
			dim(e.StartTime.Local().Format(time.DateTime)),
			e.Request.RecipeID,
			profile,
			statusColor(e.Response.StatusCode).Sprint(e.Response.StatusCode),
			e.Request.Method,
			formatValue(e.Request.URL.String(), 60),
			cyan(fmt.Sprintf("(%dms)", e.Duration().Milliseconds())),
		)
		if f.verbose {
			fmt.Fprintf(f.writer, "  %s\n", dim(e.ID.String()))
		}
	}
}

func (f *ConsoleFormatter) FormatStats(stats *Stats) {
	bold := color.New(color.Bold).SprintFunc()
	if stats.Count == 0 {
		fmt.Fprintln(f.writer, "No requests recorded")
		return
	}
	fmt.Fprintf(f.writer, "%s\n", bold("Latency"))
	fmt.Fprintf(f.writer, "  requests: %d\n", stats.Count)
	fmt.Fprintf(f.writer, "  min:  %s\n", stats.Min)
	fmt.Fprintf(f.writer, "  mean: %s\n", stats.Mean)
	fmt.Fprintf(f.writer, "  p50:  %s\n", stats.P50)
	fmt.Fprintf(f.writer, "  p95:  %s\n", stats.P95)
	fmt.Fprintf(f.writer, "  p99:  %s\n", stats.P99)
	fmt.Fprintf(f.writer, "  max:  %s\n", stats.Max)

	codes := make([]int, 0, len(stats.StatusCodes))
	for code := range stats.StatusCodes {
		codes = append(codes, code)
	}
	slices.Sort(codes)
	fmt.Fprintf(f.writer, "%s\n", bold("Status codes"))
	for _, code := range codes {
		fmt.Fprintf(f.writer, "  %s: %d\n", statusColor(code).Sprint(code), stats.StatusCodes[code])
	}
}

func (f *ConsoleFormatter) FormatHeader(version string) {
	bold := color.New(color.Bold).SprintFunc()
	fmt.Fprintf(f.writer, "%s %s\n", bold("hitbox"), version)
}
