package syncengine

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/formulahunter/recordsync-go/internal/codec"
	"github.com/formulahunter/recordsync-go/internal/recordstore"
	"github.com/formulahunter/recordsync-go/internal/recordtype"
)

const userAgent = "recordsync-go/0.1"

// RemoteClient is the client-side view of the six wire queries of spec.md
// §6. Defined at the consumer (syncengine) per "accept interfaces, return
// structs" — an HTTPTransport is the only production implementation, but
// tests supply fakes.
type RemoteClient interface {
	Hash(ctx context.Context) (string, error)
	Add(ctx context.Context, typeName string, rec *recordstore.Record) (string, error)
	Edit(ctx context.Context, typeName string, rec *recordstore.Record) (string, error)
	Delete(ctx context.Context, typeName string, rec *recordstore.Record) (string, error)
	Reconcile(ctx context.Context, lastSync recordstore.Timestamp, delta recordstore.TypeIndex) (hash string, data recordstore.TypeIndex, err error)
	Resolve(ctx context.Context, chosen recordstore.TypeIndex) (hash string, data recordstore.TypeIndex, err error)
}

// HTTPTransport is the production RemoteClient, POSTing every query to a
// single /query endpoint (and GET /hash as the one documented exception)
// against a cmd/recordsyncd instance.
type HTTPTransport struct {
	baseURL    string
	httpClient *http.Client
	registry   *recordtype.Registry
	logger     *slog.Logger
}

// NewHTTPTransport builds a transport talking to baseURL (no trailing
// slash required). A nil httpClient falls back to http.DefaultClient; a nil
// logger falls back to slog.Default, matching the teacher's graph.Client
// construction idiom.
func NewHTTPTransport(baseURL string, httpClient *http.Client, registry *recordtype.Registry, logger *slog.Logger) *HTTPTransport {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &HTTPTransport{baseURL: baseURL, httpClient: httpClient, registry: registry, logger: logger}
}

func (t *HTTPTransport) Hash(ctx context.Context) (string, error) {
	resp, err := t.do(ctx, http.MethodGet, "/hash", nil)
	if err != nil {
		return "", err
	}

	value, err := t.parseBody(resp)
	if err != nil {
		return "", err
	}

	hash, ok := value.(string)
	if !ok {
		return "", &ReconcileError{Msg: "hash response is not a string"}
	}

	return hash, nil
}

func (t *HTTPTransport) Add(ctx context.Context, typeName string, rec *recordstore.Record) (string, error) {
	return t.mutate(ctx, "add", typeName, rec)
}

func (t *HTTPTransport) Edit(ctx context.Context, typeName string, rec *recordstore.Record) (string, error) {
	return t.mutate(ctx, "edit", typeName, rec)
}

func (t *HTTPTransport) Delete(ctx context.Context, typeName string, rec *recordstore.Record) (string, error) {
	return t.mutate(ctx, "delete", typeName, rec)
}

func (t *HTTPTransport) mutate(ctx context.Context, query, typeName string, rec *recordstore.Record) (string, error) {
	instance, err := recordstore.RecordToCanonical(rec)
	if err != nil {
		return "", err
	}

	body := codec.NewOrderedMap().
		Set("query", query).
		Set("type", typeName).
		Set("instance", instance)

	resp, err := t.postQuery(ctx, body)
	if err != nil {
		return "", err
	}

	value, err := t.parseBody(resp)
	if err != nil {
		return "", err
	}

	hash, ok := value.(string)
	if !ok {
		return "", &ReconcileError{Msg: fmt.Sprintf("%s response is not a string", query)}
	}

	return hash, nil
}

func (t *HTTPTransport) Reconcile(ctx context.Context, lastSync recordstore.Timestamp, delta recordstore.TypeIndex) (string, recordstore.TypeIndex, error) {
	instances, err := EncodeTypeIndex(delta)
	if err != nil {
		return "", nil, err
	}

	data := codec.NewOrderedMap().
		Set("sync", int64(lastSync)).
		Set("instances", instances)

	body := codec.NewOrderedMap().
		Set("query", "reconcile").
		Set("data", data)

	return t.reconcileLike(ctx, body)
}

func (t *HTTPTransport) Resolve(ctx context.Context, chosen recordstore.TypeIndex) (string, recordstore.TypeIndex, error) {
	data, err := EncodeTypeIndex(chosen)
	if err != nil {
		return "", nil, err
	}

	body := codec.NewOrderedMap().
		Set("query", "resolve").
		Set("data", data)

	return t.reconcileLike(ctx, body)
}

func (t *HTTPTransport) reconcileLike(ctx context.Context, body *codec.OrderedMap) (string, recordstore.TypeIndex, error) {
	resp, err := t.postQuery(ctx, body)
	if err != nil {
		return "", nil, err
	}

	value, err := t.parseBody(resp)
	if err != nil {
		return "", nil, err
	}

	obj, ok := value.(*codec.OrderedMap)
	if !ok {
		return "", nil, &ReconcileError{Msg: "reconciliation response is not an object"}
	}

	hashRaw, ok := obj.Get("hash")
	if !ok {
		return "", nil, &ReconcileError{Msg: "reconciliation response missing hash"}
	}

	hash, ok := hashRaw.(string)
	if !ok {
		return "", nil, &ReconcileError{Msg: "reconciliation response hash is not a string"}
	}

	dataRaw, ok := obj.Get("data")
	if !ok {
		return hash, recordstore.TypeIndex{}, nil
	}

	dataObj, ok := dataRaw.(*codec.OrderedMap)
	if !ok {
		return "", nil, &ReconcileError{Msg: "reconciliation response data is not an object"}
	}

	ti, err := DecodeTypeIndex(dataObj, t.registry)
	if err != nil {
		return "", nil, err
	}

	return hash, ti, nil
}

func (t *HTTPTransport) postQuery(ctx context.Context, body *codec.OrderedMap) (*http.Response, error) {
	data, err := codec.Serialize(body)
	if err != nil {
		return nil, err
	}

	return t.do(ctx, http.MethodPost, "/query", bytes.NewReader(data))
}

// do executes a single request (no retry — remote reconciliation is not
// idempotent enough to retry blindly; callers decide whether to re-run a
// failed sync pass) and classifies a non-2xx response into a TransportError.
func (t *HTTPTransport) do(ctx context.Context, method, path string, body io.Reader) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, method, t.baseURL+path, body)
	if err != nil {
		return nil, &TransportError{Op: method + " " + path, Err: err}
	}

	req.Header.Set("User-Agent", userAgent)

	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	t.logger.Debug("remote request", "method", method, "path", path)

	resp, err := t.httpClient.Do(req)
	if err != nil {
		return nil, &TransportError{Op: method + " " + path, Err: err}
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		defer resp.Body.Close()

		errBody, _ := io.ReadAll(resp.Body)

		t.logger.Warn("remote request failed", "method", method, "path", path, "status", resp.StatusCode)

		return nil, &TransportError{
			Op:         method + " " + path,
			StatusCode: resp.StatusCode,
			Err:        errors.New(string(errBody)),
		}
	}

	return resp, nil
}

func (t *HTTPTransport) parseBody(resp *http.Response) (any, error) {
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, &TransportError{Op: "read response body", Err: err}
	}

	value, err := codec.Parse(raw)
	if err != nil {
		return nil, &ReconcileError{Msg: "malformed response body", Err: err}
	}

	return value, nil
}
