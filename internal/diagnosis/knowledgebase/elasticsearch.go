// internal/diagnosis/knowledgebase/elasticsearch.go
package knowledgebase

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/elastic/go-elasticsearch/v8"
	"github.com/elastic/go-elasticsearch/v8/esapi"

	apperrors "diagnosis-workers/internal/common/errors"
)

// ElasticsearchSource reads conditions and keyword entries from two indices.
// A condition document's _id is used when its body has no id field.
type ElasticsearchSource struct {
	Client         *elasticsearch.Client
	ConditionIndex string
	KeywordIndex   string
	MaxConditions  int
}

type searchResponse struct {
	Hits struct {
		Hits []struct {
			ID     string          `json:"_id"`
			Source json.RawMessage `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

func (s ElasticsearchSource) Load(ctx context.Context) (*KnowledgeBase, error) {
	size := s.MaxConditions
	if size <= 0 {
		size = 1000
	}

	condHits, err := s.search(ctx, s.ConditionIndex, size)
	if err != nil {
		return nil, err
	}
	conditions := make([]Condition, 0, len(condHits.Hits.Hits))
	for _, hit := range condHits.Hits.Hits {
		var c Condition
		if err := json.Unmarshal(hit.Source, &c); err != nil {
			return nil, apperrors.NewKnowledgeBaseInvalidError(fmt.Sprintf("condition %s: %v", hit.ID, err))
		}
		if c.ID == "" {
			c.ID = hit.ID
		}
		conditions = append(conditions, c)
	}

	keywords := map[string][]string{}
	if s.KeywordIndex != "" {
		kwHits, err := s.search(ctx, s.KeywordIndex, 10000)
		if err != nil {
			return nil, err
		}
		for _, hit := range kwHits.Hits.Hits {
			var entry SymptomKeywords
			if err := json.Unmarshal(hit.Source, &entry); err != nil {
				return nil, apperrors.NewKnowledgeBaseInvalidError(fmt.Sprintf("keyword entry %s: %v", hit.ID, err))
			}
			if entry.Symptom == "" {
				entry.Symptom = hit.ID
			}
			keywords[entry.Symptom] = append(keywords[entry.Symptom], entry.Keywords...)
		}
	}

	return New(conditions, keywords)
}

func (s ElasticsearchSource) search(ctx context.Context, index string, size int) (*searchResponse, error) {
	body, _ := json.Marshal(map[string]interface{}{
		"query": map[string]interface{}{"match_all": map[string]interface{}{}},
		"size":  size,
		"sort":  []interface{}{"_doc"},
	})

	req := esapi.SearchRequest{
		Index: []string{index},
		Body:  strings.NewReader(string(body)),
	}
	res, err := req.Do(ctx, s.Client)
	if err != nil {
		return nil, apperrors.NewSearchError(index, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, apperrors.NewSearchError(index, fmt.Errorf("search failed: %s", res.String()))
	}

	var out searchResponse
	if err := json.NewDecoder(res.Body).Decode(&out); err != nil {
		return nil, apperrors.NewSearchError(index, err)
	}
	return &out, nil
}
