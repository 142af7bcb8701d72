// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

// Package evalclient talks to the remote OKR evaluation service. It validates
// input locally, sends exactly one request per evaluation, classifies every
// failure as an *EvalError, and normalizes partial responses so callers never
// see nil suggestions or zero-filled criteria.
package evalclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	lru "github.com/hashicorp/golang-lru/v2"
	"go.uber.org/zap"

	"github.com/pdiddy/okr-evaluator/internal/httputil"
	"github.com/pdiddy/okr-evaluator/pkg/types"
)

// API paths relative to the configured base URL.
const (
	objectivesPath        = "/api/v1/okrs"
	evaluateObjectivePath = "/api/v1/okrs/evaluate"
	evaluateKeyResultPath = "/api/v1/okrs/kr/evaluate"
)

// MinTextLength and MaxTextLength bound an objective or KR definition, in
// characters, after trimming.
const (
	MinTextLength = 5
	MaxTextLength = 2000
)

const (
	defaultCacheSize = 64
	maxResponseBody  = 1 << 20
)

// Client is the evaluation service client. It is safe for concurrent use.
type Client struct {
	baseURL    string
	userAgent  string
	maxRetries int
	http       *http.Client
	cache      *lru.Cache[string, types.Objective]
	log        *zap.Logger
}

// Option customizes a Client.
type Option func(*Client)

// WithHTTPClient replaces the HTTP client. Its Timeout is left as given.
func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.http = h }
}

// WithLogger sets the logger used for request tracing.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.log = l }
}

// New returns a Client for cfg. A zero Timeout uses types.DefaultTimeout.
func New(cfg types.ClientConfig, opts ...Option) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = types.DefaultTimeout
	}
	size := cfg.CacheSize
	if size <= 0 {
		size = defaultCacheSize
	}
	// lru.New only errors on a non-positive size, guarded above.
	cache, _ := lru.New[string, types.Objective](size)

	c := &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		userAgent:  cfg.UserAgent,
		maxRetries: cfg.MaxRetries,
		http:       &http.Client{Timeout: timeout},
		cache:      cache,
		log:        zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// EvaluateObjective submits objective text for evaluation.
func (c *Client) EvaluateObjective(ctx context.Context, text string) (types.EvaluationResult, error) {
	text = strings.TrimSpace(text)
	if err := validateText("objective", text); err != nil {
		return types.EvaluationResult{}, err
	}

	body := map[string]string{"objective": text}
	result, err := c.evaluate(ctx, evaluateObjectivePath, body)
	if err != nil {
		return types.EvaluationResult{}, err
	}
	c.cache.Purge()
	return result, nil
}

// EvaluateKeyResult submits a key result of an existing objective for evaluation.
func (c *Client) EvaluateKeyResult(ctx context.Context, draft types.KeyResultDraft) (types.EvaluationResult, error) {
	draft = draft.Trimmed()
	if err := ValidateKeyResult(draft); err != nil {
		return types.EvaluationResult{}, err
	}

	result, err := c.evaluate(ctx, evaluateKeyResultPath, draft)
	if err != nil {
		return types.EvaluationResult{}, err
	}
	c.cache.Purge()
	return result, nil
}

// ValidateKeyResult checks a draft the same way EvaluateKeyResult does,
// without sending anything.
func ValidateKeyResult(draft types.KeyResultDraft) error {
	draft = draft.Trimmed()
	if draft.ObjectiveID == "" {
		return validationError("a key result needs a parent objective")
	}
	if err := validateText("key result definition", draft.Definition); err != nil {
		return err
	}
	if draft.TargetValue == "" {
		return validationError("target value must not be empty")
	}
	if _, err := time.Parse(types.DateLayout, draft.TargetDate); err != nil {
		return validationError(fmt.Sprintf("target date %q is not a valid YYYY-MM-DD date", draft.TargetDate))
	}
	return nil
}

func validateText(field, text string) *EvalError {
	if text == "" {
		return validationError(field + " must not be empty")
	}
	if utf8.RuneCountInString(text) < MinTextLength {
		return validationError(fmt.Sprintf("%s must be at least %d characters", field, MinTextLength))
	}
	if utf8.RuneCountInString(text) > MaxTextLength {
		return validationError(fmt.Sprintf("%s must be at most %d characters", field, MaxTextLength))
	}
	return nil
}

// evaluate sends one POST and decodes the evaluation body. It never retries.
func (c *Client) evaluate(ctx context.Context, path string, payload any) (types.EvaluationResult, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return types.EvaluationResult{}, &EvalError{Kind: KindValidation, Message: "could not encode request", Err: err}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(data))
	if err != nil {
		return types.EvaluationResult{}, &EvalError{Kind: KindNetwork, Err: fmt.Errorf("creating request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	c.setHeaders(req)
	reqID := httputil.NewRequestID()
	req.Header.Set(httputil.RequestIDHeader, reqID)

	log := c.log.With(zap.String("path", path), zap.String("request_id", reqID))
	start := time.Now()

	resp, err := c.http.Do(req)
	if err != nil {
		log.Warn("evaluation request failed", zap.Error(err))
		return types.EvaluationResult{}, &EvalError{Kind: KindNetwork, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := httputil.ErrorMessage(resp)
		log.Warn("evaluation rejected", zap.Int("status", resp.StatusCode), zap.String("message", msg))
		return types.EvaluationResult{}, &EvalError{Kind: KindServerRejected, Status: resp.StatusCode, Message: msg}
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		log.Warn("reading evaluation response", zap.Error(err))
		return types.EvaluationResult{}, &EvalError{Kind: KindNetwork, Err: fmt.Errorf("reading response: %w", err)}
	}

	result, err := decodeEvaluation(raw)
	if err != nil {
		log.Warn("malformed evaluation response", zap.Error(err))
		return types.EvaluationResult{}, &EvalError{Kind: KindMalformedResponse, Status: resp.StatusCode, Err: err}
	}

	log.Debug("evaluation received",
		zap.Float64("score", result.Score),
		zap.Bool("criteria", result.CriteriaAvailable()),
		zap.Int("suggestions", len(result.Suggestions)),
		zap.Duration("elapsed", time.Since(start)))
	return result, nil
}

// ListObjectives fetches the objective collection. Non-empty fields of spec
// are sent as the q, status, from_date and to_date query parameters; the
// caller still filters locally. Rate-limited responses are retried.
func (c *Client) ListObjectives(ctx context.Context, spec types.FilterSpec) ([]types.Objective, error) {
	params := url.Values{}
	if q := strings.TrimSpace(spec.Query); q != "" {
		params.Set("q", q)
	}
	if spec.Status != "" {
		params.Set("status", string(spec.Status))
	}
	if !spec.FromDate.IsZero() {
		params.Set("from_date", spec.FromDate.Format(types.DateLayout))
	}
	if !spec.ToDate.IsZero() {
		params.Set("to_date", spec.ToDate.Format(types.DateLayout))
	}

	reqURL := c.baseURL + objectivesPath
	if len(params) > 0 {
		reqURL += "?" + params.Encode()
	}

	var objectives []types.Objective
	if err := c.getJSON(ctx, reqURL, &objectives); err != nil {
		return nil, err
	}
	if objectives == nil {
		objectives = []types.Objective{}
	}
	c.log.Debug("objectives fetched", zap.Int("count", len(objectives)))
	return objectives, nil
}

// FetchObjective returns one objective by ID. Results are cached until the
// next successful evaluation.
func (c *Client) FetchObjective(ctx context.Context, id string) (types.Objective, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return types.Objective{}, validationError("objective id must not be empty")
	}
	if o, ok := c.cache.Get(id); ok {
		return o, nil
	}

	var o types.Objective
	if err := c.getJSON(ctx, c.baseURL+objectivesPath+"/"+url.PathEscape(id), &o); err != nil {
		return types.Objective{}, err
	}
	if o.ID == "" {
		o.ID = id
	}
	c.cache.Add(id, o)
	return o, nil
}

func (c *Client) getJSON(ctx context.Context, reqURL string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return &EvalError{Kind: KindNetwork, Err: fmt.Errorf("creating request: %w", err)}
	}
	req.Header.Set("Accept", "application/json")
	c.setHeaders(req)

	resp, err := httputil.DoWithRetry(ctx, c.http, req, c.maxRetries)
	if err != nil {
		return &EvalError{Kind: KindNetwork, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return &EvalError{Kind: KindServerRejected, Status: resp.StatusCode, Message: httputil.ErrorMessage(resp)}
	}

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBody))
	if err != nil {
		return &EvalError{Kind: KindNetwork, Err: fmt.Errorf("reading response: %w", err)}
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return &EvalError{Kind: KindMalformedResponse, Status: resp.StatusCode, Err: fmt.Errorf("parsing response: %w", err)}
	}
	return nil
}

func (c *Client) setHeaders(req *http.Request) {
	if c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
}

// errMissingScore is reported when a 2xx body has no numeric score.
var errMissingScore = errors.New("response has no numeric score")
