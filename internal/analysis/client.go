// Package analysis asks an external chess-analysis service to review a game.
package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"chess-puzzle-bot/internal/config"
	apperrors "chess-puzzle-bot/internal/errors"
)

// DefaultTimeout bounds a single analysis request.
const DefaultTimeout = 45 * time.Second

// Errors returned by Analyze, all of kind ErrExternal.
var (
	ErrTimeout    = errors.New("analysis timed out")
	ErrIncomplete = errors.New("analysis report is incomplete")
	ErrDisabled   = errors.New("analysis is not configured")
)

// SideReport is the review of one side's moves.
type SideReport struct {
	Accuracy        float64        `json:"accuracy"`
	Classifications map[string]int `json:"classifications"`
}

// Report is the service's review of a game.
type Report struct {
	Status string      `json:"status"`
	White  *SideReport `json:"white"`
	Black  *SideReport `json:"black"`
	Moves  int         `json:"-"`
	Result string      `json:"-"`
}

// Client calls the analysis service.
type Client struct {
	baseURL    string
	httpClient *http.Client
	timeout    time.Duration
}

// NewClient creates a Client from configuration.
func NewClient(cfg config.AnalysisConfig) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.URL, "/"),
		httpClient: &http.Client{},
		timeout:    timeout,
	}
}

// Enabled reports whether a service URL is configured.
func (c *Client) Enabled() bool {
	return c.baseURL != ""
}

// Analyze validates the PGN locally and then asks the service for a report.
// Invalid input is a validation error; every service failure is external.
func (c *Client) Analyze(ctx context.Context, pgn string) (*Report, error) {
	game, err := ParsePGN(pgn)
	if err != nil {
		return nil, err
	}
	if !c.Enabled() {
		return nil, apperrors.External(ErrDisabled, "game analysis is not available")
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	body, err := json.Marshal(map[string]string{"pgn": pgn})
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/analyze", bytes.NewReader(body))
	if err != nil {
		return nil, apperrors.Internal(fmt.Errorf("failed to create request: %w", err))
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, apperrors.External(ErrTimeout, fmt.Sprintf("the analysis took longer than %s, try again later", c.timeout))
		}
		return nil, apperrors.External(fmt.Errorf("failed to reach analysis service: %w", err), "the analysis service is unreachable")
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return nil, apperrors.External(ErrTimeout, fmt.Sprintf("the analysis took longer than %s, try again later", c.timeout))
		}
		return nil, apperrors.External(fmt.Errorf("failed to read response: %w", err), "the analysis service sent a broken reply")
	}

	log.Debug().
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Int("moves", len(game.Moves)).
		Msg("Analysis response")

	if resp.StatusCode != http.StatusOK {
		return nil, apperrors.External(
			fmt.Errorf("analysis service returned status %d: %s", resp.StatusCode, truncate(string(raw), 200)),
			fmt.Sprintf("the analysis service failed (HTTP %d)", resp.StatusCode),
		)
	}

	var report Report
	if err := json.Unmarshal(raw, &report); err != nil {
		return nil, apperrors.External(fmt.Errorf("failed to parse response: %w", err), "the analysis service sent a broken reply")
	}
	if !strings.EqualFold(report.Status, "complete") || report.White == nil || report.Black == nil {
		return nil, apperrors.External(ErrIncomplete, "the analysis is not ready yet, try again in a minute")
	}

	report.Moves = len(game.Moves)
	report.Result = game.Result
	return &report, nil
}

// Format renders a report for chat.
func Format(r *Report) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("📊 Game analysis (%d moves, %s)\n", r.Moves, r.Result))
	writeSide(&sb, "⚪ White", r.White)
	writeSide(&sb, "⚫ Black", r.Black)
	return strings.TrimRight(sb.String(), "\n")
}

func writeSide(sb *strings.Builder, label string, side *SideReport) {
	sb.WriteString(fmt.Sprintf("\n%s: %.1f%% accuracy\n", label, side.Accuracy))
	kinds := make([]string, 0, len(side.Classifications))
	for kind := range side.Classifications {
		kinds = append(kinds, kind)
	}
	sort.Slice(kinds, func(i, j int) bool {
		ci, cj := side.Classifications[kinds[i]], side.Classifications[kinds[j]]
		if ci != cj {
			return ci > cj
		}
		return kinds[i] < kinds[j]
	})
	for _, kind := range kinds {
		sb.WriteString(fmt.Sprintf("  %s: %d\n", kind, side.Classifications[kind]))
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
