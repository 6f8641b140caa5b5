package writer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	cbigquery "cloud.google.com/go/bigquery"
	"google.golang.org/api/googleapi"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/resqlink/resqlink-backend/internal/analytics/types"
	pkgbigquery "github.com/resqlink/resqlink-backend/pkg/bigquery"
)

// The worker acks a Pub/Sub event only after its row lands, so the default
// batch size stays at 1; larger batches trade ack latency for insert volume.
const (
	defaultBatchSize      = 1
	defaultMaxAttempts    = 3
	defaultInitialBackoff = 250 * time.Millisecond
	defaultMaximumBackoff = 2 * time.Second
)

// Config controls where response event rows land and how stubbornly the
// writer pushes them there.
type Config struct {
	ResponseEventsTable string
	BatchSize           int
	RetryPolicy         RetryPolicy
}

// RetryPolicy bounds the insert retry loop. Backoff doubles per attempt up to
// the maximum.
type RetryPolicy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaximumBackoff time.Duration
}

func (p RetryPolicy) withDefaults() RetryPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = defaultMaxAttempts
	}
	if p.InitialBackoff <= 0 {
		p.InitialBackoff = defaultInitialBackoff
	}
	if p.MaximumBackoff <= 0 {
		p.MaximumBackoff = defaultMaximumBackoff
	}
	if p.MaximumBackoff < p.InitialBackoff {
		p.MaximumBackoff = p.InitialBackoff
	}
	return p
}

type tableInserter interface {
	InsertRows(ctx context.Context, table string, rows []any) error
}

// BigQueryWriter buffers panic response event rows and streams them to the
// warehouse, retrying transient insert failures.
type BigQueryWriter struct {
	client        tableInserter
	responseTable string
	batchSize     int
	retry         RetryPolicy

	responseBuffer []types.ResponseEventRow
}

// New builds a writer on top of the shared BigQuery client.
func New(client *pkgbigquery.Client, cfg Config) (*BigQueryWriter, error) {
	if client == nil {
		return nil, errors.New("bigquery client required")
	}
	table := strings.TrimSpace(cfg.ResponseEventsTable)
	if table == "" {
		return nil, errors.New("response events table is required")
	}

	batchSize := cfg.BatchSize
	if batchSize <= 0 {
		batchSize = defaultBatchSize
	}

	return &BigQueryWriter{
		client:        client,
		responseTable: table,
		batchSize:     batchSize,
		retry:         cfg.RetryPolicy.withDefaults(),
	}, nil
}

// InsertResponseEvent buffers one row and flushes once the batch fills.
func (w *BigQueryWriter) InsertResponseEvent(ctx context.Context, row types.ResponseEventRow) error {
	w.responseBuffer = append(w.responseBuffer, row)
	if len(w.responseBuffer) >= w.batchSize {
		return w.Flush(ctx)
	}
	return nil
}

// Flush writes buffered rows now. The buffer survives a failed flush so the
// caller can retry after nacking the event.
func (w *BigQueryWriter) Flush(ctx context.Context) error {
	if len(w.responseBuffer) == 0 {
		return nil
	}
	rows := make([]any, len(w.responseBuffer))
	for i := range w.responseBuffer {
		rows[i] = &w.responseBuffer[i]
	}
	if err := w.insertWithRetry(ctx, w.responseTable, rows); err != nil {
		return err
	}
	w.responseBuffer = w.responseBuffer[:0]
	return nil
}

func (w *BigQueryWriter) insertWithRetry(ctx context.Context, table string, rows []any) error {
	if len(rows) == 0 {
		return nil
	}

	backoff := w.retry.InitialBackoff
	for attempt := 1; ; attempt++ {
		if ctx != nil {
			if err := ctx.Err(); err != nil {
				return err
			}
		}

		err := w.client.InsertRows(ctx, table, rows)
		if err == nil {
			return nil
		}
		if attempt >= w.retry.MaxAttempts || !retryableInsertError(err) {
			return fmt.Errorf("insert %s rows: %w", table, err)
		}

		if err := sleep(ctx, backoff); err != nil {
			return err
		}
		backoff = min(backoff*2, w.retry.MaximumBackoff)
	}
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

// retryableInsertError reports whether every failure inside err is transient.
// A single permanent row error poisons the whole batch, since streaming
// inserts are all-or-nothing from the retry loop's perspective.
func retryableInsertError(err error) bool {
	if err == nil {
		return false
	}

	if nested, ok := unwrapBatchErrors(err); ok {
		if len(nested) == 0 {
			return false
		}
		for _, inner := range nested {
			if !retryableInsertError(inner) {
				return false
			}
		}
		return true
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return retryableHTTPCode(apiErr.Code)
	}

	var grpcErr interface{ GRPCStatus() *status.Status }
	if errors.As(err, &grpcErr) {
		if st := grpcErr.GRPCStatus(); st != nil {
			return retryableGRPCCode(st.Code())
		}
	}

	return false
}

// unwrapBatchErrors flattens one level of BigQuery's aggregate error types.
func unwrapBatchErrors(err error) ([]error, bool) {
	var multi *cbigquery.MultiError
	if errors.As(err, &multi) {
		if multi == nil {
			return nil, true
		}
		nested := make([]error, 0, len(*multi))
		for _, inner := range *multi {
			nested = append(nested, inner)
		}
		return nested, true
	}

	var putMulti *cbigquery.PutMultiError
	if errors.As(err, &putMulti) {
		if putMulti == nil {
			return nil, true
		}
		nested := make([]error, 0, len(*putMulti))
		for _, rowErr := range *putMulti {
			nested = append(nested, rowErr.Errors)
		}
		return nested, true
	}

	var rowErr *cbigquery.RowInsertionError
	if errors.As(err, &rowErr) {
		if rowErr == nil {
			return nil, true
		}
		nested := make([]error, 0, len(rowErr.Errors))
		for _, inner := range rowErr.Errors {
			nested = append(nested, inner)
		}
		return nested, true
	}

	return nil, false
}

func retryableHTTPCode(code int) bool {
	switch code {
	case http.StatusTooManyRequests,
		http.StatusRequestTimeout,
		http.StatusInternalServerError,
		http.StatusBadGateway,
		http.StatusServiceUnavailable,
		http.StatusGatewayTimeout:
		return true
	}
	return false
}

func retryableGRPCCode(code codes.Code) bool {
	switch code {
	case codes.Aborted,
		codes.DeadlineExceeded,
		codes.Internal,
		codes.ResourceExhausted,
		codes.Unavailable:
		return true
	}
	return false
}

// EncodeJSON prepares an event payload for a BigQuery JSON column. Empty and
// nil payloads become SQL NULL rather than an empty string.
func EncodeJSON(payload any) (cbigquery.NullJSON, error) {
	switch value := payload.(type) {
	case nil:
		return cbigquery.NullJSON{}, nil
	case cbigquery.NullJSON:
		return value, nil
	case json.RawMessage:
		return rawJSON(value), nil
	case []byte:
		return rawJSON(value), nil
	}

	marshaled, err := json.Marshal(payload)
	if err != nil {
		return cbigquery.NullJSON{}, fmt.Errorf("marshal json: %w", err)
	}
	return rawJSON(marshaled), nil
}

func rawJSON(value []byte) cbigquery.NullJSON {
	if len(value) == 0 {
		return cbigquery.NullJSON{}
	}
	return cbigquery.NullJSON{Valid: true, JSONVal: string(value)}
}
