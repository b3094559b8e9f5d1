package api

import (
	"encoding/json"
	"fmt"
	"time"

	"serp-go/pkg/serp"
)

const (
	statusOK = 20000

	// datetimeLayout is the format of result.datetime, e.g. "2024-03-01 10:11:12 +00:00"
	datetimeLayout = "2006-01-02 15:04:05 -07:00"

	organicItemType = "organic"
)

// envelope is the wrapper shared by every DataForSEO v3 response
type envelope[R any] struct {
	StatusCode    int    `json:"status_code"`
	StatusMessage string `json:"status_message"`
	Tasks         []struct {
		ID            string `json:"id"`
		StatusCode    int    `json:"status_code"`
		StatusMessage string `json:"status_message"`
		Result        []R    `json:"result"`
	} `json:"tasks"`
}

type serpResult struct {
	Keyword  string     `json:"keyword"`
	Datetime string     `json:"datetime"`
	Items    []serpItem `json:"items"`
}

type serpItem struct {
	Type         string `json:"type"`
	RankGroup    int    `json:"rank_group"`
	RankAbsolute int    `json:"rank_absolute"`
	Domain       string `json:"domain"`
	Title        string `json:"title"`
	URL          string `json:"url"`
}

type volumeResult struct {
	Keyword      string   `json:"keyword"`
	SearchVolume *int     `json:"search_volume"`
	Competition  string   `json:"competition"`
	CPC          *float64 `json:"cpc"`
}

// Parser turns DataForSEO response bodies into domain types
type Parser struct {
	now func() time.Time
}

func NewParser() *Parser {
	return &Parser{now: time.Now}
}

// ParseSERP extracts the organic results of the first task into a snapshot.
// Non-organic items (ads, featured snippets, people also ask, ...) are
// dropped but their rank_absolute slots are kept on the organic items.
func (p *Parser) ParseSERP(body []byte) (*serp.Snapshot, error) {
	var resp envelope[serpResult]
	if err := decodeBody(body, &resp); err != nil {
		return nil, err
	}

	result, err := firstResult(resp)
	if err != nil {
		return nil, err
	}

	snapshot := &serp.Snapshot{
		Keyword:    result.Keyword,
		CapturedAt: p.parseDatetime(result.Datetime),
		Items:      make([]serp.SnapshotItem, 0, len(result.Items)),
	}

	for _, item := range result.Items {
		if item.Type != organicItemType || item.RankAbsolute < 1 {
			continue
		}

		domain := serp.ExtractDomain(item.URL)
		if domain == "" {
			domain = serp.ExtractDomain(item.Domain)
		}
		if domain == "" {
			continue
		}

		snapshot.Items = append(snapshot.Items, serp.SnapshotItem{
			Domain:       domain,
			RankAbsolute: item.RankAbsolute,
			Title:        item.Title,
			URL:          item.URL,
		})
	}

	return snapshot, nil
}

// ParseSearchVolume converts a search_volume/live response. Keywords the
// provider has no data for keep None volume and CPC.
func (p *Parser) ParseSearchVolume(body []byte) ([]KeywordVolume, error) {
	var resp envelope[volumeResult]
	if err := decodeBody(body, &resp); err != nil {
		return nil, err
	}

	if err := checkStatus(resp); err != nil {
		return nil, err
	}

	volumes := make([]KeywordVolume, 0)
	for _, task := range resp.Tasks {
		for _, result := range task.Result {
			if result.Keyword == "" {
				continue
			}
			volumes = append(volumes, KeywordVolume{
				Keyword:      result.Keyword,
				SearchVolume: serp.FromPtr(result.SearchVolume),
				Competition:  result.Competition,
				CPC:          serp.FromPtr(result.CPC),
			})
		}
	}
	return volumes, nil
}

func (p *Parser) parseDatetime(value string) time.Time {
	if value != "" {
		if ts, err := time.Parse(datetimeLayout, value); err == nil {
			return ts.UTC()
		}
	}
	return p.now().UTC()
}

func decodeBody(body []byte, dest interface{}) error {
	if len(body) == 0 {
		return &DecodeError{Err: fmt.Errorf("empty response body")}
	}
	if err := json.Unmarshal(body, dest); err != nil {
		return &DecodeError{Err: err, Snippet: string(body[:min(len(body), 200)])}
	}
	return nil
}

func checkStatus[R any](resp envelope[R]) error {
	if resp.StatusCode != statusOK {
		return &APIError{Code: resp.StatusCode, Message: resp.StatusMessage}
	}
	for _, task := range resp.Tasks {
		if task.StatusCode != statusOK {
			return &APIError{Code: task.StatusCode, Message: task.StatusMessage}
		}
	}
	return nil
}

func firstResult[R any](resp envelope[R]) (R, error) {
	var zero R
	if err := checkStatus(resp); err != nil {
		return zero, err
	}
	if len(resp.Tasks) == 0 || len(resp.Tasks[0].Result) == 0 {
		return zero, ErrNoResult
	}
	return resp.Tasks[0].Result[0], nil
}
