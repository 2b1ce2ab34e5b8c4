package obscheck

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/connectivity"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/reconhub/auth-service/internal/tools/common"
	"github.com/reconhub/auth-service/internal/tools/loadgen"
	"github.com/reconhub/auth-service/internal/tools/ui"
)

type options struct {
	otlpEndpoint string
	baseURL      string
	dialTimeout  time.Duration
	ci           bool
}

func NewRootCommand() *cobra.Command {
	opts := &options{}
	cmd := &cobra.Command{Use: "obscheck", Short: "Verify the observability export path is reachable"}
	cmd.PersistentFlags().StringVar(&opts.otlpEndpoint, "otlp-endpoint", "localhost:4317", "OTLP gRPC collector endpoint")
	cmd.PersistentFlags().StringVar(&opts.baseURL, "base-url", "http://localhost:8080", "API base URL for traffic")
	cmd.PersistentFlags().DurationVar(&opts.dialTimeout, "dial-timeout", 10*time.Second, "collector dial timeout")
	cmd.PersistentFlags().BoolVar(&opts.ci, "ci", false, "non-interactive machine-readable output")
	cmd.AddCommand(newRunCommand(opts))
	return cmd
}

func newRunCommand(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Probe the collector, the health endpoints and the request path",
		RunE: func(cmd *cobra.Command, args []string) error {
			details, err := run(opts, "obscheck run", func(ctx context.Context) ([]string, error) {
				var details []string

				if err := dialCollector(ctx, *opts); err != nil {
					return details, err
				}
				details = append(details, "otlp collector reachable at "+opts.otlpEndpoint)

				for _, path := range []string{"/health/live", "/health/ready"} {
					if err := probeHTTP(ctx, opts.baseURL, path); err != nil {
						return details, err
					}
					details = append(details, path+": ok")
				}

				lgRes, err := loadgen.Run(ctx, loadgen.Config{
					BaseURL:     opts.baseURL,
					Profile:     "policy",
					Duration:    5 * time.Second,
					RPS:         10,
					Concurrency: 4,
					Seed:        42,
				})
				if err != nil {
					return details, err
				}
				if lgRes.Failures > 0 {
					return details, fmt.Errorf("traffic probe hit %d transport failures", lgRes.Failures)
				}
				details = append(details, fmt.Sprintf("traffic generated total=%d status5xx=%d", lgRes.TotalRequests, lgRes.Status5xx))
				return details, nil
			})
			if opts.ci {
				common.PrintCIResult(err == nil, "obscheck run", details, err)
			}
			if err != nil {
				os.Exit(4)
			}
			return nil
		},
	}
}

func run(opts *options, title string, fn func(context.Context) ([]string, error)) ([]string, error) {
	if opts.ci {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()
		return fn(ctx)
	}
	return ui.Run(title, fn)
}

// dialCollector performs a real transport handshake rather than a bare
// TCP connect, so a port held open by something that is not a gRPC
// server still fails the check.
func dialCollector(ctx context.Context, opts options) error {
	endpoint := strings.TrimPrefix(strings.TrimPrefix(opts.otlpEndpoint, "http://"), "grpc://")
	conn, err := grpc.NewClient(endpoint, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return fmt.Errorf("dial collector: %w", err)
	}
	defer conn.Close()

	dialCtx, cancel := context.WithTimeout(ctx, opts.dialTimeout)
	defer cancel()
	conn.Connect()
	for state := conn.GetState(); state != connectivity.Ready; state = conn.GetState() {
		if !conn.WaitForStateChange(dialCtx, state) {
			return fmt.Errorf("collector not ready at %s: %w", endpoint, dialCtx.Err())
		}
	}
	return nil
}

func probeHTTP(ctx context.Context, baseURL, path string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, strings.TrimRight(baseURL, "/")+path, nil)
	if err != nil {
		return err
	}
	resp, err := (&http.Client{Timeout: 10 * time.Second}).Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s returned %s", path, resp.Status)
	}
	return nil
}
