package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"time"

	"github.com/sethvargo/go-retry"

	"github.com/AB-octo/Updated-Real-Estate-App/internal/config"
)

// ErrScorerRejected is returned when the scoring service refuses the image
// itself (corrupt bytes, unsupported format); it is never retried.
var ErrScorerRejected = errors.New("scoring service rejected image")

// ClipClient calls a zero-shot vision-language scoring service over HTTP
type ClipClient struct {
	baseURL    string
	maxRetries int
	backoff    time.Duration
	httpClient *http.Client
	logger     *slog.Logger
}

// ScoreResponse represents the scoring service response
type ScoreResponse struct {
	Probabilities []float64 `json:"probabilities"`
	Model         string    `json:"model,omitempty"`
}

// NewClipClient creates a scoring client from the classifier config
func NewClipClient(cfg *config.ClassifierConfig, logger *slog.Logger) *ClipClient {
	if logger == nil {
		logger = slog.Default()
	}
	return &ClipClient{
		baseURL:    cfg.URL,
		maxRetries: cfg.MaxRetries,
		backoff:    200 * time.Millisecond,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
		logger: logger,
	}
}

// Ensure ClipClient implements Scorer
var _ Scorer = (*ClipClient)(nil)

// Score posts the image and the catalog prompts to {base}/score
func (c *ClipClient) Score(ctx context.Context, image []byte, catalog *Catalog) (ImageScore, error) {
	if len(image) == 0 {
		return nil, fmt.Errorf("%w: empty image", ErrScorerRejected)
	}

	body, contentType, err := encodeScoreRequest(image, catalog)
	if err != nil {
		return nil, err
	}

	var result ScoreResponse
	attempt := 0
	b := retry.WithMaxRetries(uint64(c.maxRetries), retry.NewExponential(c.backoff))
	err = retry.Do(ctx, b, func(ctx context.Context) error {
		attempt++
		res, err := c.post(ctx, body, contentType)
		if err != nil {
			if errors.Is(err, ErrScorerRejected) {
				return err
			}
			c.logger.Debug("scoring request failed", "attempt", attempt, "error", err)
			return retry.RetryableError(err)
		}
		result = *res
		return nil
	})
	if err != nil {
		return nil, err
	}

	if len(result.Probabilities) != catalog.Len() {
		return nil, fmt.Errorf("scoring service returned %d probabilities for %d prompts", len(result.Probabilities), catalog.Len())
	}
	return ImageScore(result.Probabilities), nil
}

func (c *ClipClient) post(ctx context.Context, body []byte, contentType string) (*ScoreResponse, error) {
	url := fmt.Sprintf("%s/score", c.baseURL)
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", contentType)
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	switch {
	case resp.StatusCode >= 500:
		return nil, fmt.Errorf("scoring request failed with status %d: %s", resp.StatusCode, string(respBody))
	case resp.StatusCode != http.StatusOK:
		return nil, fmt.Errorf("%w: status %d: %s", ErrScorerRejected, resp.StatusCode, string(respBody))
	}

	var result ScoreResponse
	if err := json.Unmarshal(respBody, &result); err != nil {
		return nil, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	return &result, nil
}

func encodeScoreRequest(image []byte, catalog *Catalog) ([]byte, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	part, err := w.CreateFormFile("image", "image")
	if err != nil {
		return nil, "", fmt.Errorf("create image part: %w", err)
	}
	if _, err := part.Write(image); err != nil {
		return nil, "", fmt.Errorf("write image part: %w", err)
	}
	for _, prompt := range catalog.Prompts() {
		if err := w.WriteField("label", prompt); err != nil {
			return nil, "", fmt.Errorf("write label field: %w", err)
		}
	}
	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("close multipart body: %w", err)
	}
	return buf.Bytes(), w.FormDataContentType(), nil
}
