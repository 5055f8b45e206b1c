// Load and consistency tool for a running Heron server.
//
// Usage:
//
//	heron-bench --csv applications.csv --url http://localhost:8080
//
// This tool:
//  1. Reads loan applications from CSV (optionally labelled with an expected risk level)
//  2. Sends each application to POST /risk/assess from a pool of workers
//  3. Compares Heron's risk level with the expected label
//  4. Reports the level distribution, agreement matrix, latency and throughput
package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/spf13/cobra"
)

var opts struct {
	csvPath  string
	baseURL  string
	tenantID string
	limit    int
	workers  int
	verbose  bool
}

var rootCmd = &cobra.Command{
	Use:          "heron-bench",
	Short:        "Replay loan applications against a running Heron server",
	SilenceUsage: true,
	RunE:         run,
}

func init() {
	f := rootCmd.Flags()
	f.StringVar(&opts.csvPath, "csv", "", "path to applications CSV")
	f.StringVar(&opts.baseURL, "url", "http://localhost:8080", "Heron base URL")
	f.StringVar(&opts.tenantID, "tenant", "benchmark-test", "tenant ID for requests")
	f.IntVar(&opts.limit, "limit", 10000, "maximum applications to send (0 = all)")
	f.IntVar(&opts.workers, "workers", 10, "number of concurrent workers")
	f.BoolVar(&opts.verbose, "verbose", false, "print each result")
	rootCmd.MarkFlagRequired("csv")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func run(cmd *cobra.Command, args []string) error {
	fmt.Println("╔═══════════════════════════════════════════════════════════════╗")
	fmt.Println("║             HERON BENCHMARK - Loan Risk Scoring               ║")
	fmt.Println("╚═══════════════════════════════════════════════════════════════╝")
	fmt.Printf("\nCSV File:    %s\n", opts.csvPath)
	fmt.Printf("Heron URL:   %s\n", opts.baseURL)
	fmt.Printf("Tenant ID:   %s\n", opts.tenantID)
	fmt.Printf("Workers:     %d\n", opts.workers)
	fmt.Printf("Limit:       %d\n", opts.limit)
	fmt.Println()

	if err := checkHealth(opts.baseURL); err != nil {
		return fmt.Errorf("heron not reachable at %s: %w", opts.baseURL, err)
	}
	fmt.Println("✓ Heron is healthy")

	file, err := os.Open(opts.csvPath)
	if err != nil {
		return err
	}
	defer file.Close()

	apps, err := readApplications(file, opts.limit)
	if err != nil {
		return fmt.Errorf("failed to read CSV: %w", err)
	}
	fmt.Printf("✓ Loaded %d applications\n", len(apps))

	fmt.Printf("\nRunning benchmark with %d workers...\n", opts.workers)
	start := time.Now()
	report := runBenchmark(apps, opts.baseURL, opts.tenantID, opts.workers, opts.verbose)
	report.Duration = time.Since(start)

	report.Print(os.Stdout)
	return nil
}

func checkHealth(baseURL string) error {
	resp, err := http.Get(baseURL + "/health")
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode)
	}
	return nil
}

// assessResponse is the subset of the POST /risk/assess response the tool reads.
type assessResponse struct {
	ID         string   `json:"id"`
	TotalScore int      `json:"totalScore"`
	RiskLevel  string   `json:"riskLevel"`
	Reasons    []string `json:"reasons"`
}

func runBenchmark(apps []Application, baseURL, tenantID string, numWorkers int, verbose bool) *Report {
	report := NewReport()

	work := make(chan Application, 100)
	var wg sync.WaitGroup

	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			client := &http.Client{Timeout: 10 * time.Second}

			for app := range work {
				start := time.Now()
				result, err := assess(client, baseURL, tenantID, app)
				elapsed := time.Since(start)

				report.Record(app.Expected, result, err, elapsed)

				if !verbose {
					continue
				}
				if err != nil {
					fmt.Printf("ERROR: %s -> %v\n", app.CompanyName, err)
					continue
				}
				status := "✓"
				if app.Expected != "" && app.Expected != result.RiskLevel {
					status = "✗"
				}
				fmt.Printf("%s %-24s | Score: %3d | Level: %-7s | Expected: %-7s | Advisories: %d\n",
					status, truncate(app.CompanyName, 24), result.TotalScore, result.RiskLevel, app.Expected, len(result.Reasons))
			}
		}()
	}

	for _, app := range apps {
		work <- app
	}
	close(work)

	wg.Wait()
	return report
}

func assess(client *http.Client, baseURL, tenantID string, app Application) (*assessResponse, error) {
	body, err := json.Marshal(app.Request())
	if err != nil {
		return nil, err
	}

	httpReq, err := http.NewRequest(http.MethodPost, baseURL+"/risk/assess", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("X-Tenant-ID", tenantID)

	resp, err := client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("status %d", resp.StatusCode)
	}

	var result assessResponse
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, err
	}
	return &result, nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
