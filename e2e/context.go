// Package e2e drives the registry's HTTP API through Gherkin scenarios.
// Each scenario gets a fresh in-process server unless E2E_BASE_URL points
// at a running instance.
package e2e

import (
	"bytes"
	"crypto/ecdsa"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"

	"github.com/ethereum/go-ethereum/crypto"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"idverifier/internal/asset"
	"idverifier/internal/authz"
	"idverifier/internal/ledger"
	"idverifier/internal/ledger/memory"
	"idverifier/internal/platform/config"
	"idverifier/internal/platform/metrics"
	"idverifier/internal/verifier/handler"
	"idverifier/internal/verifier/models"
	"idverifier/internal/verifier/service"
)

// TestContext holds the per-scenario server, signing keys and last response.
type TestContext struct {
	baseURL string
	server  *httptest.Server
	client  *http.Client
	keys    map[string]*ecdsa.PrivateKey

	lastStatus int
	lastBody   []byte
}

func NewTestContext() *TestContext {
	return &TestContext{client: &http.Client{}, keys: make(map[string]*ecdsa.PrivateKey)}
}

// Start serves a fresh registry with the given payment policy.
func (tc *TestContext) Start(policy string) error {
	tc.Stop()
	tc.keys = make(map[string]*ecdsa.PrivateKey)
	tc.lastStatus, tc.lastBody = 0, nil

	if url := os.Getenv("E2E_BASE_URL"); url != "" {
		tc.baseURL = strings.TrimRight(url, "/")
		return nil
	}

	token := asset.NewToken(config.DefaultAsset)
	gate, err := service.NewPaymentGate(models.PaymentMode(policy), token,
		asset.Units(30), ledger.DefaultRetention)
	if err != nil {
		return err
	}
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	svc := service.New(memory.New(), token, authz.NewSignatureAuthorizer(),
		service.WithLogger(logger),
		service.WithPaymentGate(gate),
	)
	router := chi.NewRouter()
	handler.New(svc, logger,
		handler.WithMetrics(metrics.New(prometheus.NewRegistry())),
		handler.WithDevRoutes(true),
	).Register(router)

	tc.server = httptest.NewServer(router)
	tc.baseURL = tc.server.URL
	return nil
}

func (tc *TestContext) Stop() {
	if tc.server != nil {
		tc.server.Close()
		tc.server = nil
	}
}

// Key returns the signing key for a named actor, creating it on first use.
func (tc *TestContext) Key(name string) (*ecdsa.PrivateKey, error) {
	if k, ok := tc.keys[name]; ok {
		return k, nil
	}
	k, err := crypto.GenerateKey()
	if err != nil {
		return nil, err
	}
	tc.keys[name] = k
	return k, nil
}

func (tc *TestContext) POST(path string, body any) error {
	raw, err := json.Marshal(body)
	if err != nil {
		return err
	}
	req, err := http.NewRequest(http.MethodPost, tc.baseURL+path, bytes.NewReader(raw))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return tc.do(req)
}

func (tc *TestContext) GET(path string) error {
	req, err := http.NewRequest(http.MethodGet, tc.baseURL+path, nil)
	if err != nil {
		return err
	}
	return tc.do(req)
}

func (tc *TestContext) do(req *http.Request) error {
	resp, err := tc.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	tc.lastStatus = resp.StatusCode
	tc.lastBody, err = io.ReadAll(resp.Body)
	return err
}

func (tc *TestContext) Status() int { return tc.lastStatus }

// Field returns a top-level field of the last JSON response.
func (tc *TestContext) Field(name string) (any, error) {
	var body map[string]any
	if err := json.Unmarshal(tc.lastBody, &body); err != nil {
		return nil, fmt.Errorf("response is not a JSON object: %s", tc.lastBody)
	}
	v, ok := body[name]
	if !ok {
		return nil, fmt.Errorf("response has no field %q: %s", name, tc.lastBody)
	}
	return v, nil
}

// Decode unmarshals the last response into v.
func (tc *TestContext) Decode(v any) error {
	return json.Unmarshal(tc.lastBody, v)
}
