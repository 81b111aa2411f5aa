package sink

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/opensearch-project/opensearch-go/v2"
	"github.com/opensearch-project/opensearch-go/v2/opensearchutil"

	"github.com/rawkode-academy/telemetry-sink/internal/telemetry"
)

// ArchiveConfig holds OpenSearch connection settings for the archive sink.
type ArchiveConfig struct {
	URL         string
	Username    string
	Password    string
	Insecure    bool
	IndexPrefix string
}

// Archive bulk-indexes flushed records into OpenSearch daily indices, giving
// operators a searchable local copy independent of the external backends.
// Raw log batches are excluded: their bodies are opaque.
type Archive struct {
	client      *opensearch.Client
	indexPrefix string
}

// NewArchive connects to OpenSearch and verifies the connection.
func NewArchive(cfg ArchiveConfig) (*Archive, error) {
	osCfg := opensearch.Config{
		Addresses: []string{cfg.URL},
		Username:  cfg.Username,
		Password:  cfg.Password,
		Transport: &http.Transport{
			TLSClientConfig: &tls.Config{InsecureSkipVerify: cfg.Insecure},
		},
	}

	client, err := opensearch.NewClient(osCfg)
	if err != nil {
		return nil, fmt.Errorf("create opensearch client: %w", err)
	}

	info, err := client.Info()
	if err != nil {
		return nil, fmt.Errorf("ping opensearch: %w", err)
	}
	defer info.Body.Close()

	if info.IsError() {
		return nil, fmt.Errorf("opensearch returned error: %s", info.Status())
	}

	prefix := cfg.IndexPrefix
	if prefix == "" {
		prefix = "telemetry"
	}
	return &Archive{client: client, indexPrefix: prefix}, nil
}

func (a *Archive) Name() string {
	return "archive"
}

func (a *Archive) Dispatch(ctx context.Context, batch *telemetry.Batch) error {
	docs := a.documents(batch)
	if len(docs) == 0 {
		return nil
	}

	bi, err := opensearchutil.NewBulkIndexer(opensearchutil.BulkIndexerConfig{
		Client: a.client,
		Index:  fmt.Sprintf("%s-%s", a.indexPrefix, time.Now().UTC().Format("2006.01.02")),
	})
	if err != nil {
		return fmt.Errorf("create bulk indexer: %w", err)
	}

	var failed atomic.Int64
	for _, doc := range docs {
		data, err := json.Marshal(doc)
		if err != nil {
			failed.Add(1)
			continue
		}
		err = bi.Add(ctx, opensearchutil.BulkIndexerItem{
			Action: "index",
			Body:   bytes.NewReader(data),
			OnFailure: func(ctx context.Context, item opensearchutil.BulkIndexerItem, res opensearchutil.BulkIndexerResponseItem, err error) {
				failed.Add(1)
			},
		})
		if err != nil {
			failed.Add(1)
		}
	}

	if err := bi.Close(ctx); err != nil {
		return fmt.Errorf("close bulk indexer: %w", err)
	}
	if n := failed.Load(); n > 0 {
		return fmt.Errorf("failed to index %d of %d documents", n, len(docs))
	}
	return nil
}

func (a *Archive) documents(batch *telemetry.Batch) []map[string]any {
	docs := make([]map[string]any, 0, len(batch.Events)+len(batch.Metrics)+len(batch.Exceptions)+len(batch.Traces))
	for _, e := range batch.Events {
		docs = append(docs, map[string]any{
			"kind":      "event",
			"timestamp": e.Timestamp().UTC(),
			"record":    e,
		})
	}
	for _, m := range batch.Metrics {
		docs = append(docs, map[string]any{
			"kind":      "metric",
			"timestamp": m.Timestamp.UTC(),
			"record":    m,
		})
	}
	for _, r := range batch.Exceptions {
		docs = append(docs, map[string]any{
			"kind":      "exception",
			"timestamp": r.Timestamp.UTC(),
			"record":    r,
		})
	}
	for _, tr := range batch.Traces {
		docs = append(docs, map[string]any{
			"kind":      "trace",
			"timestamp": time.UnixMilli(tr.EventTimestamp).UTC(),
			"record":    tr,
		})
	}
	return docs
}
