package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/TimPHC/Prediction-Market-Data-Check/internal/app/dto"
	"nhooyr.io/websocket"
	"nhooyr.io/websocket/wsjson"
)

var errStale = errors.New("report is stale")

// Checks a running report server: /health must answer ok and the latest
// report must be younger than -max-age.
func main() {
	baseURL := flag.String("url", "http://localhost:8080", "report server base URL")
	maxAge := flag.Duration("max-age", 26*time.Hour, "maximum age of the latest report")
	timeout := flag.Duration("timeout", 10*time.Second, "request timeout")
	checkWS := flag.Bool("ws", true, "also check the /ws push endpoint")
	flag.Parse()

	fmt.Println("Volume Report Health Check Utility")
	fmt.Println("----------------------------------")

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	report, err := checkServiceHealth(ctx, http.DefaultClient, *baseURL, *maxAge, time.Now())
	if err != nil {
		log.Fatalf("Health check failed: %v", err)
	}

	fmt.Printf("Service is healthy! source=%s last_updated=%s partial=%t\n", report.Source, report.LastUpdated, report.Partial)

	if *checkWS {
		pushed, err := checkWebSocket(ctx, *baseURL, 2*time.Second)
		if err != nil {
			log.Fatalf("WebSocket check failed: %v", err)
		}
		if pushed == nil {
			fmt.Println("WebSocket endpoint is up, no report pushed yet")
			return
		}
		fmt.Printf("WebSocket endpoint is up, last pushed run_id=%s\n", pushed.RunID)
	}
}

func checkServiceHealth(ctx context.Context, client *http.Client, baseURL string, maxAge time.Duration, now time.Time) (*dto.ReportDTO, error) {
	baseURL = strings.TrimRight(baseURL, "/")

	var health map[string]string
	if err := getJSON(ctx, client, baseURL+"/health", &health); err != nil {
		return nil, err
	}
	if health["status"] != "ok" {
		return nil, fmt.Errorf("unexpected health status %q", health["status"])
	}

	var report dto.ReportDTO
	if err := getJSON(ctx, client, baseURL+"/report", &report); err != nil {
		return nil, err
	}

	updated, err := time.Parse(dto.LastUpdatedLayout, report.LastUpdated)
	if err != nil {
		return nil, fmt.Errorf("invalid last_updated %q: %w", report.LastUpdated, err)
	}
	if age := now.Sub(updated); age > maxAge {
		return &report, fmt.Errorf("%w: last updated %s ago", errStale, age.Round(time.Minute))
	}

	return &report, nil
}

func getJSON(ctx context.Context, client *http.Client, url string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to reach %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s returned status %d", url, resp.StatusCode)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode %s: %w", url, err)
	}
	return nil
}

// checkWebSocket connects to /ws and waits up to wait for the replayed latest
// report. A quiet connection is not an error: nothing may have been pushed yet.
func checkWebSocket(ctx context.Context, baseURL string, wait time.Duration) (*dto.ReportDTO, error) {
	wsURL := "ws" + strings.TrimPrefix(strings.TrimRight(baseURL, "/"), "http") + "/ws"

	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to dial %s: %w", wsURL, err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "health check done")

	readCtx, cancel := context.WithTimeout(ctx, wait)
	defer cancel()

	var report dto.ReportDTO
	if err := wsjson.Read(readCtx, conn, &report); err != nil {
		if errors.Is(readCtx.Err(), context.DeadlineExceeded) && ctx.Err() == nil {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read from %s: %w", wsURL, err)
	}
	return &report, nil
}
