package answer

import (
	"context"
	"fmt"
	"strings"

	"regrag/pkg/models"
)

// EmptyIndexAnswer is returned without calling the LLM when retrieval
// found nothing to ground an answer on.
const EmptyIndexAnswer = "The knowledge base has no matching documents yet. " +
	"Run an update to crawl and ingest the latest regulatory documents."

const systemPrompt = "You are an assistant answering questions about insurance " +
	"regulatory documents. Answer using only the provided context passages. " +
	"When the context does not contain the answer, say so plainly instead of " +
	"guessing. Mention the source document and page when citing specifics."

// Response is a composed answer with its supporting citations.
type Response struct {
	Answer    string            `json:"answer"`
	Citations []models.Citation `json:"citations"`
}

// Generator composes answers from retrieved passages.
type Generator struct {
	client *Client
}

// NewGenerator creates a Generator.
func NewGenerator(client *Client) *Generator {
	return &Generator{client: client}
}

// Answer builds the context block from the passages and asks the LLM. No
// passages means no LLM call; the fixed empty-index answer comes back with
// no citations.
func (g *Generator) Answer(ctx context.Context, question string, passages []models.Passage) (*Response, error) {
	if len(passages) == 0 {
		return &Response{Answer: EmptyIndexAnswer, Citations: []models.Citation{}}, nil
	}

	var sb strings.Builder
	sb.WriteString("Context passages:\n\n")
	for _, p := range passages {
		fmt.Fprintf(&sb, "[%s | Page %d]\n%s\n\n", p.Source, p.Page, p.Text)
	}
	sb.WriteString("Question: ")
	sb.WriteString(question)

	text, err := g.client.Complete(ctx, systemPrompt, sb.String())
	if err != nil {
		return nil, fmt.Errorf("generating answer: %w", err)
	}

	return &Response{Answer: text, Citations: citations(passages)}, nil
}

// citations dedupes passages to one citation per (source, page), keeping
// the best score and the retrieval order of first appearance.
func citations(passages []models.Passage) []models.Citation {
	seen := map[string]int{}
	out := make([]models.Citation, 0, len(passages))
	for _, p := range passages {
		key := fmt.Sprintf("%s#%d", p.Source, p.Page)
		if idx, ok := seen[key]; ok {
			if p.Score > out[idx].Score {
				out[idx].Score = p.Score
			}
			continue
		}
		seen[key] = len(out)
		out = append(out, models.Citation{Source: p.Source, Page: p.Page, Score: p.Score})
	}
	return out
}
