// Command leakgate-mcp exposes a running Leakgate API server as MCP
// tools, so agent clients can probe pages and read stored run reports
// over stdio.
package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// probeRequest mirrors the Leakgate API request model.
type probeRequest struct {
	URL            string `json:"url"`
	UserAgent      string `json:"user_agent,omitempty"`
	TimeoutMs      int64  `json:"timeout_ms,omitempty"`
	DisableArchive bool   `json:"disable_archive,omitempty"`
}

// probeResponse mirrors the Leakgate API response model. Severity is
// read from the severity_text label; the numeric severity field is an
// enum ordinal.
type probeResponse struct {
	Success bool `json:"success"`
	Report  *struct {
		RunID     string `json:"run_id"`
		TargetURL string `json:"target_url"`
		Baseline  struct {
			Words int `json:"words"`
			Bytes int `json:"bytes"`
		} `json:"baseline"`
		Findings []struct {
			ID          string `json:"id"`
			Channel     string `json:"channel"`
			Severity    string `json:"severity_text"`
			Fingerprint string `json:"fingerprint"`
			Evidence    struct {
				Note   string `json:"note,omitempty"`
				Signal struct {
					WordCount int `json:"word_count"`
				} `json:"signal"`
			} `json:"evidence"`
		} `json:"findings"`
		Channels []struct {
			Channel string `json:"channel"`
			Status  string `json:"status"`
			Reason  string `json:"reason,omitempty"`
		} `json:"channels"`
		TimedOut bool `json:"timed_out,omitempty"`
	} `json:"report"`
	Error *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
	CacheStatus string `json:"cache_status,omitempty"`
}

// compareResponse mirrors the Leakgate run-diff API response.
type compareResponse struct {
	Added      []string `json:"added"`
	Resolved   []string `json:"resolved"`
	Persisting []string `json:"persisting"`
}

func main() {
	apiURL := os.Getenv("LEAKGATE_API_URL")
	if apiURL == "" {
		apiURL = "http://127.0.0.1:8080"
	}
	apiKey := os.Getenv("LEAKGATE_API_KEY")
	if apiKey == "" {
		fmt.Fprintln(os.Stderr, "LEAKGATE_API_KEY is required")
		os.Exit(1)
	}

	s := server.NewMCPServer(
		"leakgate",
		"1.0.0",
		server.WithToolCapabilities(false),
	)

	probeURLTool := mcp.NewTool("probe_url",
		mcp.WithDescription("Probe a paywalled page for content exposure across all channels (rendered DOM, hydration payloads, JSON endpoints, alternate views, network interception, crawler user agents, web archives). Returns the findings with severity and evidence fingerprints."),
		mcp.WithString("url",
			mcp.Required(),
			mcp.Description("The URL of the article page to probe"),
		),
		mcp.WithBoolean("disable_archive",
			mcp.Description("Skip the web-archive channel (avoids third-party requests)"),
		),
		mcp.WithNumber("timeout_ms",
			mcp.Description("Run deadline in milliseconds (default: server-configured, 3 minutes)"),
		),
	)
	s.AddTool(probeURLTool, handleProbeURL(apiURL, apiKey))

	getReportTool := mcp.NewTool("get_report",
		mcp.WithDescription("Fetch a stored probe run report by its run ID. Returns the same finding summary as probe_url."),
		mcp.WithString("run_id",
			mcp.Required(),
			mcp.Description("Run ID returned by a previous probe_url call"),
		),
	)
	s.AddTool(getReportTool, handleGetReport(apiURL, apiKey))

	compareRunsTool := mcp.NewTool("compare_runs",
		mcp.WithDescription("Diff the findings of two stored runs of the same target. Reports which exposures appeared, which were fixed, and which persist."),
		mcp.WithString("old_run_id",
			mcp.Required(),
			mcp.Description("Run ID of the earlier run"),
		),
		mcp.WithString("new_run_id",
			mcp.Required(),
			mcp.Description("Run ID of the later run"),
		),
	)
	s.AddTool(compareRunsTool, handleCompareRuns(apiURL, apiKey))

	if err := server.ServeStdio(s); err != nil {
		fmt.Fprintf(os.Stderr, "server error: %v\n", err)
		os.Exit(1)
	}
}

// apiPost sends a POST request to the Leakgate API and returns the response body.
func apiPost(ctx context.Context, client *http.Client, apiURL, apiKey, path string, payload interface{}) ([]byte, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, apiURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("X-API-Key", apiKey)

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	return io.ReadAll(resp.Body)
}

// apiGet sends a GET request to the Leakgate API and returns the response body.
func apiGet(ctx context.Context, client *http.Client, apiURL, apiKey, path string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, apiURL+path, nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("X-API-Key", apiKey)

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("API request failed: %w", err)
	}
	defer resp.Body.Close()

	return io.ReadAll(resp.Body)
}

func handleProbeURL(apiURL, apiKey string) server.ToolHandlerFunc {
	// Probe runs render pages and poll archives, so the client timeout
	// has to cover the server-side run deadline.
	client := &http.Client{Timeout: 5 * time.Minute}

	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		url, err := request.RequireString("url")
		if err != nil {
			return mcp.NewToolResultError("url is required"), nil
		}

		reqBody := probeRequest{
			URL:            url,
			DisableArchive: request.GetBool("disable_archive", false),
			TimeoutMs:      int64(request.GetFloat("timeout_ms", 0)),
		}

		respBody, err := apiPost(ctx, client, apiURL, apiKey, "/api/v1/probe", reqBody)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return renderProbeResponse(respBody)
	}
}

func handleGetReport(apiURL, apiKey string) server.ToolHandlerFunc {
	client := &http.Client{Timeout: 30 * time.Second}

	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		runID, err := request.RequireString("run_id")
		if err != nil {
			return mcp.NewToolResultError("run_id is required"), nil
		}

		respBody, err := apiGet(ctx, client, apiURL, apiKey, "/api/v1/runs/"+runID)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}
		return renderProbeResponse(respBody)
	}
}

func handleCompareRuns(apiURL, apiKey string) server.ToolHandlerFunc {
	client := &http.Client{Timeout: 30 * time.Second}

	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		oldID, err := request.RequireString("old_run_id")
		if err != nil {
			return mcp.NewToolResultError("old_run_id is required"), nil
		}
		newID, err := request.RequireString("new_run_id")
		if err != nil {
			return mcp.NewToolResultError("new_run_id is required"), nil
		}

		respBody, err := apiGet(ctx, client, apiURL, apiKey,
			"/api/v1/runs/"+oldID+"/compare/"+newID)
		if err != nil {
			return mcp.NewToolResultError(err.Error()), nil
		}

		var diff compareResponse
		if err := json.Unmarshal(respBody, &diff); err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to parse response: %v", err)), nil
		}

		var sb strings.Builder
		fmt.Fprintf(&sb, "Added (%d): %s\n", len(diff.Added), joinOrNone(diff.Added))
		fmt.Fprintf(&sb, "Resolved (%d): %s\n", len(diff.Resolved), joinOrNone(diff.Resolved))
		fmt.Fprintf(&sb, "Persisting (%d): %s\n", len(diff.Persisting), joinOrNone(diff.Persisting))
		return mcp.NewToolResultText(sb.String()), nil
	}
}

// renderProbeResponse turns an API probe/report response into a
// compact text summary for the model.
func renderProbeResponse(respBody []byte) (*mcp.CallToolResult, error) {
	var probeResp probeResponse
	if err := json.Unmarshal(respBody, &probeResp); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to parse response: %v", err)), nil
	}

	if !probeResp.Success || probeResp.Report == nil {
		errMsg := "probe failed"
		if probeResp.Error != nil {
			errMsg = fmt.Sprintf("[%s] %s", probeResp.Error.Code, probeResp.Error.Message)
		}
		return mcp.NewToolResultError(errMsg), nil
	}

	r := probeResp.Report
	var sb strings.Builder
	fmt.Fprintf(&sb, "Run: %s\nTarget: %s\n", r.RunID, r.TargetURL)
	fmt.Fprintf(&sb, "Baseline teaser: %d words, %d bytes\n", r.Baseline.Words, r.Baseline.Bytes)
	if r.TimedOut {
		sb.WriteString("Run deadline expired before all channels completed.\n")
	}

	if len(r.Findings) == 0 {
		sb.WriteString("\nNo content exposure found.\n")
	} else {
		fmt.Fprintf(&sb, "\nExposure findings (%d):\n", len(r.Findings))
		for _, f := range r.Findings {
			fmt.Fprintf(&sb, "- [%s] %s: %d words recovered (evidence %s)",
				f.Severity, f.Channel, f.Evidence.Signal.WordCount, f.Fingerprint)
			if f.Evidence.Note != "" {
				fmt.Fprintf(&sb, " (%s)", f.Evidence.Note)
			}
			sb.WriteString("\n")
		}
	}

	sb.WriteString("\nChannel outcomes:\n")
	for _, ch := range r.Channels {
		fmt.Fprintf(&sb, "- %s: %s", ch.Channel, ch.Status)
		if ch.Reason != "" {
			fmt.Fprintf(&sb, " (%s)", ch.Reason)
		}
		sb.WriteString("\n")
	}

	return mcp.NewToolResultText(sb.String()), nil
}

func joinOrNone(ids []string) string {
	if len(ids) == 0 {
		return "none"
	}
	return strings.Join(ids, ", ")
}
