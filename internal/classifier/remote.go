package classifier

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"soundwatch/internal/logger"
	"soundwatch/internal/models"
)

// DefaultLabels is the class order of the first generation of models
var DefaultLabels = []string{"AMBIENT", "NORMAL", "FAULT"}

// RemoteParams describe the model served behind the inference endpoint
type RemoteParams struct {
	Model      string   `yaml:"model"`
	Labels     []string `yaml:"labels"`
	SampleRate int      `yaml:"sample_rate"`
}

// predictRequest is the body posted to the inference endpoint
type predictRequest struct {
	Model      string    `json:"model,omitempty"`
	SampleRate int       `json:"sample_rate"`
	Samples    []float32 `json:"samples"`
}

// predictResponse accepts either a resolved label or a probability vector
type predictResponse struct {
	Label         string    `json:"label,omitempty"`
	Confidence    float64   `json:"confidence,omitempty"`
	Probabilities []float64 `json:"probabilities,omitempty"`
}

// Remote classifies windows by calling an HTTP inference server
type Remote struct {
	client     *http.Client
	sampleRate int

	mu       sync.RWMutex
	endpoint string
	params   RemoteParams
	labels   []models.Label
}

// NewRemote creates an unloaded remote classifier. sampleRate is sent with
// every request unless the params file overrides it.
func NewRemote(sampleRate int, timeout time.Duration) *Remote {
	if timeout <= 0 {
		timeout = 2 * time.Second
	}
	return &Remote{
		client:     &http.Client{Timeout: timeout},
		sampleRate: sampleRate,
	}
}

// Load sets the inference endpoint (modelRef) and reads the class order
// from the YAML params file (paramsRef). An empty paramsRef uses DefaultLabels.
func (r *Remote) Load(modelRef, paramsRef string) error {
	u, err := url.Parse(modelRef)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%w: model ref %q is not an http(s) endpoint", ErrInvalidParam, modelRef)
	}

	params := RemoteParams{Labels: DefaultLabels, SampleRate: r.sampleRate}
	if paramsRef != "" {
		data, err := os.ReadFile(paramsRef)
		if err != nil {
			return fmt.Errorf("read remote params: %w", err)
		}
		if err := yaml.Unmarshal(data, &params); err != nil {
			return fmt.Errorf("parse remote params: %w", err)
		}
	}
	if len(params.Labels) == 0 {
		return fmt.Errorf("%w: labels cannot be empty", ErrInvalidParam)
	}

	labels := make([]models.Label, len(params.Labels))
	for i, raw := range params.Labels {
		labels[i] = models.ParseLabel(raw)
	}

	r.mu.Lock()
	r.endpoint = u.String()
	r.params = params
	r.labels = labels
	r.mu.Unlock()

	log := logger.WithComponent("classifier")
	log.Info().
		Str("endpoint", u.String()).
		Strs("labels", params.Labels).
		Msg("remote classifier loaded")
	return nil
}

// Predict posts the window and decodes the answer. Any failure is logged and
// reported as an ERROR classification.
func (r *Remote) Predict(ctx context.Context, window []float32) models.Classification {
	r.mu.RLock()
	endpoint, params, labels := r.endpoint, r.params, r.labels
	r.mu.RUnlock()

	if endpoint == "" || !validWindow(window) {
		return models.ErrorClassification()
	}

	res, err := r.call(ctx, endpoint, predictRequest{
		Model:      params.Model,
		SampleRate: params.SampleRate,
		Samples:    window,
	}, labels)
	if err != nil {
		log := logger.WithComponent("classifier")
		log.Warn().
			Err(err).
			Str("endpoint", endpoint).
			Msg("remote prediction failed")
		return models.ErrorClassification()
	}
	return res
}

func (r *Remote) call(ctx context.Context, endpoint string, body predictRequest, labels []models.Label) (models.Classification, error) {
	payload, err := json.Marshal(body)
	if err != nil {
		return models.Classification{}, fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(payload))
	if err != nil {
		return models.Classification{}, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := r.client.Do(req)
	if err != nil {
		return models.Classification{}, fmt.Errorf("post window: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 256))
		return models.Classification{}, fmt.Errorf("inference server returned %d: %s", resp.StatusCode, snippet)
	}

	var out predictResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return models.Classification{}, fmt.Errorf("decode response: %w", err)
	}

	return resolve(out, labels)
}

// resolve turns a response into a classification. A probability vector is
// reduced by argmax over the configured class order.
func resolve(out predictResponse, labels []models.Label) (models.Classification, error) {
	if len(out.Probabilities) == 0 {
		if out.Label == "" {
			return models.Classification{}, errors.New("response carries neither label nor probabilities")
		}
		return models.NewClassification(models.ParseLabel(out.Label), out.Confidence), nil
	}

	idx := 0
	for i, p := range out.Probabilities {
		if p > out.Probabilities[idx] {
			idx = i
		}
	}
	if idx >= len(labels) {
		return models.Classification{}, fmt.Errorf("class index %d outside %d known labels", idx, len(labels))
	}
	return models.NewClassification(labels[idx], out.Probabilities[idx]), nil
}
