package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/heartcare-ai/heartcare/internal/domain"
)

// scoreClient calls a running HeartCare server.
type scoreClient struct {
	rest *resty.Client
}

func newScoreClient(baseURL string) *scoreClient {
	client := resty.New().
		SetBaseURL(baseURL).
		SetTimeout(10*time.Second).
		SetRetryCount(2).
		SetRetryWaitTime(200*time.Millisecond).
		SetHeader("Content-Type", "application/json").
		SetHeader("Accept", "application/json")

	return &scoreClient{rest: client}
}

func (c *scoreClient) checkHealth(ctx context.Context) error {
	resp, err := c.rest.R().SetContext(ctx).Get("/health")
	if err != nil {
		return err
	}
	if resp.StatusCode() != http.StatusOK {
		return fmt.Errorf("unhealthy: status %d", resp.StatusCode())
	}
	return nil
}

type apiError struct {
	Error string `json:"error"`
}

func (c *scoreClient) score(ctx context.Context, p domain.HealthParameters) (domain.RiskResult, error) {
	var (
		result domain.RiskResult
		failed apiError
	)

	resp, err := c.rest.R().
		SetContext(ctx).
		SetBody(p).
		SetResult(&result).
		SetError(&failed).
		Post("/score")
	if err != nil {
		return result, fmt.Errorf("failed to call /score: %w", err)
	}
	if resp.IsError() {
		return result, fmt.Errorf("status %d: %s", resp.StatusCode(), failed.Error)
	}
	return result, nil
}
