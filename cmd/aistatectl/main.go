package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"aistate/pkg/config"
	"aistate/pkg/models"
)

const (
	defaultServerURL   = "http://127.0.0.1:8081"
	// A set can take an upstream write, the full probe window and a compensating write.
	defaultHTTPTimeout = 5 * time.Minute
	statePath          = "/api/ai-state"
)

var errUsage = errors.New("usage")

// gatewayClient talks to the AI state gateway.
type gatewayClient struct {
	baseURL    string
	httpClient *http.Client
}

func newGatewayClient(baseURL string, timeout time.Duration) *gatewayClient {
	return &gatewayClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: timeout},
	}
}

// doJSON sends body (if any) as JSON and decodes the response into result.
func (c *gatewayClient) doJSON(ctx context.Context, method string, body any, result any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+statePath, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("read response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("request returned %s: %s", resp.Status, strings.TrimSpace(string(respBody)))
	}

	if err := json.Unmarshal(respBody, result); err != nil {
		return fmt.Errorf("parse response: %w", err)
	}
	return nil
}

func (c *gatewayClient) getState(ctx context.Context) (models.AvailabilityState, error) {
	var payload models.StatePayload
	if err := c.doJSON(ctx, http.MethodGet, nil, &payload); err != nil {
		return "", err
	}
	return payload.State, nil
}

func (c *gatewayClient) setState(ctx context.Context, state models.AvailabilityState) (bool, error) {
	var result models.ForwardResult
	if err := c.doJSON(ctx, http.MethodPost, models.StatePayload{State: state}, &result); err != nil {
		return false, err
	}
	return result.OK, nil
}

func usage(flags *flag.FlagSet) func() {
	return func() {
		out := flags.Output()
		fmt.Fprintf(out, "Usage: aistatectl [flags] <command>\n")
		fmt.Fprintf(out, "\nCommands:\n")
		fmt.Fprintf(out, "  get            Print the current availability state\n")
		fmt.Fprintf(out, "  set <state>    Request a state change (down, changing, up)\n")
		fmt.Fprintf(out, "\nFlags:\n")
		flags.PrintDefaults()
	}
}

// run executes one command and returns the process exit code.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) int {
	flags := flag.NewFlagSet("aistatectl", flag.ContinueOnError)
	flags.SetOutput(stderr)
	flags.Usage = usage(flags)

	server := flags.String("server", config.GetEnv("AISTATECTL_SERVER", defaultServerURL), "Gateway base URL")
	timeout := flags.Duration("http-timeout", defaultHTTPTimeout, "HTTP client timeout")
	if err := flags.Parse(args); err != nil {
		return 2
	}

	client := newGatewayClient(*server, *timeout)
	if err := execute(ctx, client, flags.Args(), stdout); err != nil {
		if errors.Is(err, errUsage) {
			fmt.Fprintf(stderr, "%v\n\n", err)
			flags.Usage()
			return 2
		}
		fmt.Fprintf(stderr, "aistatectl: %v\n", err)
		return 1
	}
	return 0
}

func execute(ctx context.Context, client *gatewayClient, args []string, stdout io.Writer) error {
	if len(args) == 0 {
		return fmt.Errorf("%w: missing command", errUsage)
	}

	switch args[0] {
	case "get":
		state, err := client.getState(ctx)
		if err != nil {
			return err
		}
		fmt.Fprintln(stdout, state)
		return nil

	case "set":
		if len(args) != 2 {
			return fmt.Errorf("%w: set takes exactly one state", errUsage)
		}
		state, err := models.ParseState(args[1])
		if err != nil {
			return fmt.Errorf("%w: %w", errUsage, err)
		}
		ok, err := client.setState(ctx, state)
		if err != nil {
			return err
		}
		if !ok {
			fmt.Fprintln(stdout, "failed")
			return fmt.Errorf("gateway could not verify state %s, store was reset to down", state)
		}
		fmt.Fprintln(stdout, "ok")
		return nil

	default:
		return fmt.Errorf("%w: unknown command %q", errUsage, args[0])
	}
}

func main() {
	config.LoadEnv()
	os.Exit(run(context.Background(), os.Args[1:], os.Stdout, os.Stderr))
}
