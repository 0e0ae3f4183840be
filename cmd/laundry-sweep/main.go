package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"laundry-backend/internal/config"
	"laundry-backend/internal/env"
	"laundry-backend/internal/logging"
	"laundry-backend/internal/usecase"
)

type sweepResponse struct {
	Success bool                  `json:"success"`
	Checked int                   `json:"checked"`
	Updated int                   `json:"updated"`
	Errors  int                   `json:"errors"`
	Message string                `json:"message"`
	Results []usecase.SweepResult `json:"results"`
}

func main() {
	if err := env.Load(".env", ".env.local"); err != nil {
		fmt.Fprintln(os.Stderr, "env:", err)
	}
	cfg := config.EnvDefaults()

	backend := flag.String("backend", cfg.BackendURL, "backend base URL")
	interval := flag.Duration("interval", cfg.SweepInterval, "repeat every interval; 0 runs once")
	timeout := flag.Duration("timeout", 10*time.Minute, "per-sweep request timeout")
	flag.Parse()

	log := logging.New(cfg, "laundry-sweep", os.Stdout)
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	c := &client{
		base: strings.TrimRight(*backend, "/"),
		auth: &usecase.AuthService{JWTSecret: cfg.JWTSecret},
		http: &http.Client{Timeout: *timeout},
		log:  log,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := c.sweep(ctx); err != nil {
			if *interval <= 0 {
				return err
			}
			log.Error("sweep failed", "err", err)
		}
		if *interval <= 0 {
			return nil
		}
		t := time.NewTicker(*interval)
		defer t.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-t.C:
				if err := c.sweep(ctx); err != nil {
					log.Error("sweep failed", "err", err)
				}
			}
		}
	})
	if err := g.Wait(); err != nil {
		log.Error("sweep client stopped", "err", err)
		os.Exit(1)
	}
}

type client struct {
	base string
	auth *usecase.AuthService
	http *http.Client
	log  *slog.Logger
}

func (c *client) sweep(ctx context.Context) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/payment/auto-check-all", nil)
	if err != nil {
		return err
	}
	if c.auth.Enabled() {
		tok, err := c.auth.IssueOperatorToken("laundry-sweep", 15*time.Minute)
		if err != nil {
			return err
		}
		req.Header.Set("Authorization", "Bearer "+tok)
	}
	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("auto-check-all: %d %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	var out sweepResponse
	if err := json.Unmarshal(body, &out); err != nil {
		return fmt.Errorf("auto-check-all decode: %w", err)
	}
	for _, r := range out.Results {
		if r.Status == usecase.OutcomeError {
			c.log.Warn("order check failed", "order_id", r.OrderID, "order_number", r.OrderNumber, "message", r.Message)
		}
	}
	c.log.Info("sweep finished",
		"checked", out.Checked,
		"updated", out.Updated,
		"errors", out.Errors,
		"duration_ms", time.Since(start).Milliseconds())
	if !out.Success {
		return errors.New("sweep incomplete: " + out.Message)
	}
	return nil
}
