// Package vectorindex stores and searches chunk embeddings in Elasticsearch.
package vectorindex

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"math"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"

	"regrag/pkg/models"
)

// bulkBatchSize is how many entries go into one Bulk API request.
const bulkBatchSize = 100

// defaultListPageSize is how many ids one ListIDs page requests.
const defaultListPageSize = 1000

// Config holds Elasticsearch client configuration.
type Config struct {
	Addresses  []string
	Index      string
	Username   string
	Password   string
	Dimensions int // embedding vector size, must match the model
}

// Client wraps the Elasticsearch client with vector index operations.
type Client struct {
	es           *elasticsearch.Client
	index        string
	dimensions   int
	listPageSize int
}

// New creates a new vector index client.
func New(config Config) (*Client, error) {
	cfg := elasticsearch.Config{
		Addresses: config.Addresses,
		Username:  config.Username,
		Password:  config.Password,
	}

	es, err := elasticsearch.NewClient(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create ES client: %w", err)
	}

	return &Client{
		es:           es,
		index:        config.Index,
		dimensions:   config.Dimensions,
		listPageSize: defaultListPageSize,
	}, nil
}

// Ping checks if Elasticsearch is available.
func (c *Client) Ping(ctx context.Context) bool {
	res, err := c.es.Ping(c.es.Ping.WithContext(ctx))
	if err != nil {
		return false
	}
	defer res.Body.Close()
	return !res.IsError()
}

// mapping returns the index mapping for chunk entries.
func (c *Client) mapping() string {
	return fmt.Sprintf(`{
		"mappings": {
			"properties": {
				"embedding": {
					"type": "dense_vector",
					"dims": %d,
					"index": true,
					"similarity": "cosine"
				},
				"text": { "type": "text" },
				"source": { "type": "keyword" },
				"page": { "type": "integer" },
				"type": { "type": "keyword" }
			}
		}
	}`, c.dimensions)
}

// EnsureIndex creates the index with its mapping if it doesn't exist yet.
func (c *Client) EnsureIndex(ctx context.Context) error {
	res, err := c.es.Indices.Exists([]string{c.index}, c.es.Indices.Exists.WithContext(ctx))
	if err != nil {
		return fmt.Errorf("failed to check index: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode == 200 {
		return nil
	}

	res, err = c.es.Indices.Create(
		c.index,
		c.es.Indices.Create.WithContext(ctx),
		c.es.Indices.Create.WithBody(strings.NewReader(c.mapping())),
	)
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("error creating index: %s", res.String())
	}
	return nil
}

// DeleteIndex removes the index (for testing/cleanup).
func (c *Client) DeleteIndex(ctx context.Context) error {
	res, err := c.es.Indices.Delete([]string{c.index}, c.es.Indices.Delete.WithContext(ctx))
	if err != nil {
		return err
	}
	defer res.Body.Close()
	return nil
}

// Refresh forces an index refresh (useful for testing).
func (c *Client) Refresh(ctx context.Context) error {
	res, err := c.es.Indices.Refresh(
		c.es.Indices.Refresh.WithContext(ctx),
		c.es.Indices.Refresh.WithIndex(c.index),
	)
	if err != nil {
		return err
	}
	defer res.Body.Close()
	return nil
}

// Upsert writes entries via the Bulk API in batches. Indexing by _id makes
// re-ingestion overwrite rather than duplicate.
func (c *Client) Upsert(ctx context.Context, entries []models.IndexEntry) error {
	for start := 0; start < len(entries); start += bulkBatchSize {
		end := start + bulkBatchSize
		if end > len(entries) {
			end = len(entries)
		}
		if err := c.bulkIndex(ctx, entries[start:end]); err != nil {
			return err
		}
	}
	return nil
}

func (c *Client) bulkIndex(ctx context.Context, entries []models.IndexEntry) error {
	var buf bytes.Buffer
	for _, entry := range entries {
		action, err := json.Marshal(map[string]any{
			"index": map[string]any{"_index": c.index, "_id": entry.ID},
		})
		if err != nil {
			return fmt.Errorf("failed to marshal bulk action: %w", err)
		}
		doc, err := json.Marshal(entry)
		if err != nil {
			return fmt.Errorf("failed to marshal entry: %w", err)
		}
		buf.Write(action)
		buf.WriteByte('\n')
		buf.Write(doc)
		buf.WriteByte('\n')
	}

	res, err := c.es.Bulk(
		bytes.NewReader(buf.Bytes()),
		c.es.Bulk.WithContext(ctx),
		c.es.Bulk.WithIndex(c.index),
	)
	if err != nil {
		return fmt.Errorf("bulk index failed: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("bulk index error: %s", res.String())
	}

	var bulkResp struct {
		Errors bool `json:"errors"`
		Items  []map[string]struct {
			Error *struct {
				Reason string `json:"reason"`
			} `json:"error"`
		} `json:"items"`
	}
	if err := json.NewDecoder(res.Body).Decode(&bulkResp); err != nil {
		return fmt.Errorf("failed to decode bulk response: %w", err)
	}
	if bulkResp.Errors {
		for _, item := range bulkResp.Items {
			for _, op := range item {
				if op.Error != nil {
					return fmt.Errorf("bulk item error: %s", op.Error.Reason)
				}
			}
		}
		return fmt.Errorf("bulk index reported errors")
	}
	return nil
}

// Count returns the number of indexed chunks, or 0 when the index is
// missing or unreachable.
func (c *Client) Count(ctx context.Context) int {
	res, err := c.es.Count(
		c.es.Count.WithContext(ctx),
		c.es.Count.WithIndex(c.index),
	)
	if err != nil {
		return 0
	}
	defer res.Body.Close()

	if res.IsError() {
		return 0
	}

	var cr struct {
		Count int `json:"count"`
	}
	if err := json.NewDecoder(res.Body).Decode(&cr); err != nil {
		return 0
	}
	return cr.Count
}

// ListIDs returns the set of all chunk ids in the index, paging through it
// without fetching document bodies. Pages advance with search_after on the
// _doc sort key; from/size pagination would hit max_result_window once the
// index passes 10k chunks.
func (c *Client) ListIDs(ctx context.Context) (map[string]bool, error) {
	ids := map[string]bool{}
	var searchAfter []any

	for {
		query := map[string]any{
			"query":   map[string]any{"match_all": map[string]any{}},
			"_source": false,
			"size":    c.listPageSize,
			"sort":    []any{map[string]any{"_doc": "asc"}},
		}
		if searchAfter != nil {
			query["search_after"] = searchAfter
		}
		data, err := json.Marshal(query)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal query: %w", err)
		}

		res, err := c.es.Search(
			c.es.Search.WithContext(ctx),
			c.es.Search.WithIndex(c.index),
			c.es.Search.WithBody(bytes.NewReader(data)),
		)
		if err != nil {
			return nil, fmt.Errorf("listing ids failed: %w", err)
		}

		if res.IsError() {
			res.Body.Close()
			if res.StatusCode == 404 {
				// No index yet means nothing ingested.
				return ids, nil
			}
			return nil, fmt.Errorf("listing ids error: %s", res.String())
		}

		var sr struct {
			Hits struct {
				Hits []struct {
					ID   string `json:"_id"`
					Sort []any  `json:"sort"`
				} `json:"hits"`
			} `json:"hits"`
		}
		err = json.NewDecoder(res.Body).Decode(&sr)
		res.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("failed to decode response: %w", err)
		}

		for _, hit := range sr.Hits.Hits {
			ids[hit.ID] = true
		}
		if len(sr.Hits.Hits) < c.listPageSize {
			return ids, nil
		}
		searchAfter = sr.Hits.Hits[len(sr.Hits.Hits)-1].Sort
	}
}

// Query runs a cosine-similarity search against the query embedding and
// returns the top-k passages, best first. Scores are cosine similarity
// rounded to 4 decimals. A missing or unreachable index yields an empty
// result, not an error.
func (c *Client) Query(ctx context.Context, embedding []float32, k int) ([]models.Passage, error) {
	// ES script scores must be non-negative, so the script adds 1.0 to the
	// similarity; it is subtracted back out below.
	searchQuery := map[string]any{
		"size": k,
		"query": map[string]any{
			"script_score": map[string]any{
				"query": map[string]any{"match_all": map[string]any{}},
				"script": map[string]any{
					"source": "cosineSimilarity(params.query_vector, 'embedding') + 1.0",
					"params": map[string]any{"query_vector": embedding},
				},
			},
		},
		"_source": []string{"text", "source", "page"},
	}

	data, err := json.Marshal(searchQuery)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal query: %w", err)
	}

	res, err := c.es.Search(
		c.es.Search.WithContext(ctx),
		c.es.Search.WithIndex(c.index),
		c.es.Search.WithBody(bytes.NewReader(data)),
	)
	if err != nil {
		return nil, nil
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, nil
	}

	var sr struct {
		Hits struct {
			Hits []struct {
				Score  float64 `json:"_score"`
				Source struct {
					Text   string `json:"text"`
					Source string `json:"source"`
					Page   int    `json:"page"`
				} `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&sr); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	passages := make([]models.Passage, 0, len(sr.Hits.Hits))
	for _, hit := range sr.Hits.Hits {
		passages = append(passages, models.Passage{
			Text:   hit.Source.Text,
			Source: hit.Source.Source,
			Page:   hit.Source.Page,
			Score:  round4(hit.Score - 1.0),
		})
	}
	return passages, nil
}

func round4(f float64) float64 {
	return math.Round(f*10000) / 10000
}
