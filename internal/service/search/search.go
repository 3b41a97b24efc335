package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/elastic/go-elasticsearch/v9"

	"github.com/mkravch/buyrate/internal/models"
)

// SearchAds runs a fuzzy multi-match over ad titles and descriptions, title
// weighted double.
func SearchAds(ctx context.Context, es *elasticsearch.Client, index, query string, from, size int) (int64, []models.Ad, error) {
	body := map[string]interface{}{
		"query": map[string]interface{}{
			"multi_match": map[string]interface{}{
				"query":     query,
				"fields":    []string{"title^2", "description"},
				"fuzziness": "AUTO",
			},
		},
		"from": from,
		"size": size,
	}

	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(body); err != nil {
		return 0, nil, fmt.Errorf("search: encode query: %w", err)
	}

	res, err := es.Search(
		es.Search.WithContext(ctx),
		es.Search.WithIndex(index),
		es.Search.WithBody(&buf),
	)
	if err != nil {
		return 0, nil, fmt.Errorf("search: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return 0, nil, fmt.Errorf("search: %s", res.Status())
	}

	var r struct {
		Hits struct {
			Total struct {
				Value int64 `json:"value"`
			} `json:"total"`
			Hits []struct {
				Source models.Ad `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if err := json.NewDecoder(res.Body).Decode(&r); err != nil {
		return 0, nil, fmt.Errorf("search: decode response: %w", err)
	}

	ads := make([]models.Ad, len(r.Hits.Hits))
	for i, hit := range r.Hits.Hits {
		ads[i] = hit.Source
	}
	return r.Hits.Total.Value, ads, nil
}

// IndexAd upserts the ad document using the database id as document id.
func IndexAd(ctx context.Context, es *elasticsearch.Client, index string, ad models.Ad) error {
	data, err := json.Marshal(ad)
	if err != nil {
		return fmt.Errorf("index ad: %w", err)
	}

	res, err := es.Index(
		index,
		bytes.NewReader(data),
		es.Index.WithContext(ctx),
		es.Index.WithDocumentID(strconv.FormatUint(uint64(ad.ID), 10)),
	)
	if err != nil {
		return fmt.Errorf("index ad %d: %w", ad.ID, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("index ad %d: %s", ad.ID, res.Status())
	}
	return nil
}

// DeleteAd removes the ad document; a missing document is not an error.
func DeleteAd(ctx context.Context, es *elasticsearch.Client, index string, id uint) error {
	res, err := es.Delete(
		index,
		strconv.FormatUint(uint64(id), 10),
		es.Delete.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("deindex ad %d: %w", id, err)
	}
	defer res.Body.Close()

	if res.IsError() && res.StatusCode != 404 {
		return fmt.Errorf("deindex ad %d: %s", id, res.Status())
	}
	return nil
}
