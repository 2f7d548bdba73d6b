package repository

import (
	"context"
	"fmt"
	"time"

	"StockWatch/internal/domain/models"
	drepo "StockWatch/internal/domain/repository"
	xhttp "StockWatch/pkg/http"
	"StockWatch/pkg/logger"
	"StockWatch/pkg/util"
)

// Property names in the watchlist database.
const (
	propName        = "Stock"
	propTicker      = "Ticker"
	propRegion      = "Region"
	propCondition   = "condition"
	propDeadline    = "Deadline_Date"
	propNotify      = "Notify"
	propAchieved    = "Achieved"
	propLastPrice   = "Last_Price"
	propLastChecked = "Last_Checked"

	propDividendYield = "Dividend_Yield"
	propPER           = "PER"
	propMarketCap     = "Market_Cap"
	propDividendDate  = "Dividend_Date"
	propEarningsDate  = "Earnings_Date"
)

// NotionStore implements RecordStore on the Notion database API.
type NotionStore struct {
	baseURL    string
	token      string
	databaseID string
	version    string
	http       *xhttp.Client
	log        *logger.Logger
}

func NewNotionStore(baseURL, token, databaseID, version string, timeout time.Duration, log *logger.Logger) drepo.RecordStore {
	return &NotionStore{
		baseURL:    baseURL,
		token:      token,
		databaseID: databaseID,
		version:    version,
		http:       xhttp.NewClient(xhttp.WithTimeout(timeout)),
		log:        log,
	}
}

func (s *NotionStore) headers() map[string]string {
	return map[string]string{
		"Authorization":  "Bearer " + s.token,
		"Notion-Version": s.version,
		"Content-Type":   "application/json",
	}
}

type notionRichText struct {
	PlainText string `json:"plain_text,omitempty"`
	Text      *struct {
		Content string `json:"content"`
	} `json:"text,omitempty"`
}

type notionSelect struct {
	Name string `json:"name"`
}

type notionDate struct {
	Start string `json:"start"`
}

type notionProperty struct {
	Title    []notionRichText `json:"title,omitempty"`
	RichText []notionRichText `json:"rich_text,omitempty"`
	Select   *notionSelect    `json:"select,omitempty"`
	Date     *notionDate      `json:"date,omitempty"`
	Checkbox *bool            `json:"checkbox,omitempty"`
	Number   *float64         `json:"number,omitempty"`
}

type notionPage struct {
	ID         string                    `json:"id"`
	Properties map[string]notionProperty `json:"properties"`
}

type queryResponse struct {
	Results    []notionPage `json:"results"`
	HasMore    bool         `json:"has_more"`
	NextCursor string       `json:"next_cursor"`
}

// ListRecords pages through the full database. Records with parse issues in
// a single property degrade to zero values rather than failing the listing.
func (s *NotionStore) ListRecords(ctx context.Context) ([]*models.WatchlistRecord, error) {
	var out []*models.WatchlistRecord
	cursor := ""

	for {
		body := map[string]interface{}{"page_size": 100}
		if cursor != "" {
			body["start_cursor"] = cursor
		}

		var resp queryResponse
		err := s.http.SendAndParse(ctx, &xhttp.RequestOptions{
			Method:  xhttp.MethodPost,
			URL:     fmt.Sprintf("%s/v1/databases/%s/query", s.baseURL, s.databaseID),
			Headers: s.headers(),
			Body:    body,
		}, &resp)
		if err != nil {
			return nil, fmt.Errorf("query database: %w", err)
		}

		for _, page := range resp.Results {
			out = append(out, s.toRecord(page))
		}

		if !resp.HasMore || resp.NextCursor == "" {
			break
		}
		cursor = resp.NextCursor
	}

	s.log.Debug("listed watchlist records", logger.Int("count", len(out)))
	return out, nil
}

func (s *NotionStore) toRecord(page notionPage) *models.WatchlistRecord {
	rec := &models.WatchlistRecord{ID: page.ID}

	if p, ok := page.Properties[propName]; ok {
		rec.DisplayName = plainText(p.Title)
	}
	if p, ok := page.Properties[propTicker]; ok {
		rec.RawTicker = plainText(p.RichText)
	}
	if p, ok := page.Properties[propRegion]; ok && p.Select != nil {
		rec.Region = models.NormalizeRegion(p.Select.Name)
	}
	if p, ok := page.Properties[propCondition]; ok {
		if p.Select != nil {
			rec.Condition = p.Select.Name
		} else {
			rec.Condition = plainText(p.RichText)
		}
	}
	if p, ok := page.Properties[propDeadline]; ok && p.Date != nil {
		if t, parsed := util.ParseTime(p.Date.Start); parsed {
			rec.Deadline = &t
		}
	}
	if p, ok := page.Properties[propNotify]; ok && p.Checkbox != nil {
		rec.NotifyEnabled = *p.Checkbox
	}
	if p, ok := page.Properties[propAchieved]; ok && p.Checkbox != nil {
		rec.Achieved = *p.Checkbox
	}
	if p, ok := page.Properties[propLastPrice]; ok && p.Number != nil {
		v := *p.Number
		rec.LastPrice = &v
	}
	if p, ok := page.Properties[propLastChecked]; ok && p.Date != nil {
		if t, parsed := util.ParseTime(p.Date.Start); parsed {
			rec.LastCheckedAt = &t
		}
	}
	return rec
}

func plainText(rt []notionRichText) string {
	if len(rt) == 0 {
		return ""
	}
	return rt[0].PlainText
}

// PatchRecord updates only the fields set in patch. An empty patch is a no-op.
func (s *NotionStore) PatchRecord(ctx context.Context, id string, patch *models.RecordPatch) error {
	if patch == nil || patch.Empty() {
		return nil
	}

	props := map[string]interface{}{}
	if patch.DisplayName != nil {
		props[propName] = map[string]interface{}{
			"title": []map[string]interface{}{
				{"text": map[string]string{"content": *patch.DisplayName}},
			},
		}
	}
	if patch.LastPrice != nil {
		props[propLastPrice] = map[string]interface{}{"number": *patch.LastPrice}
	}
	if patch.LastCheckedAt != nil {
		props[propLastChecked] = map[string]interface{}{
			"date": map[string]string{"start": patch.LastCheckedAt.UTC().Format(time.RFC3339)},
		}
	}
	if patch.Achieved != nil {
		props[propAchieved] = map[string]interface{}{"checkbox": *patch.Achieved}
	}
	if patch.DividendYield != nil {
		props[propDividendYield] = map[string]interface{}{"number": *patch.DividendYield}
	}
	if patch.PriceEarnings != nil {
		props[propPER] = map[string]interface{}{"number": *patch.PriceEarnings}
	}
	if patch.MarketCap != nil {
		props[propMarketCap] = map[string]interface{}{"number": *patch.MarketCap}
	}
	if patch.DividendDate != nil {
		props[propDividendDate] = map[string]interface{}{
			"date": map[string]string{"start": util.FormatDate(*patch.DividendDate)},
		}
	}
	if patch.EarningsDate != nil {
		props[propEarningsDate] = map[string]interface{}{
			"date": map[string]string{"start": util.FormatDate(*patch.EarningsDate)},
		}
	}

	err := s.http.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:  xhttp.MethodPatch,
		URL:     fmt.Sprintf("%s/v1/pages/%s", s.baseURL, id),
		Headers: s.headers(),
		Body:    map[string]interface{}{"properties": props},
	}, nil)
	if err != nil {
		return fmt.Errorf("patch page %s: %w", id, err)
	}
	return nil
}

// InsertRecord creates a new page in the watchlist database.
func (s *NotionStore) InsertRecord(ctx context.Context, rec *models.WatchlistRecord) (string, error) {
	props := map[string]interface{}{
		propName: map[string]interface{}{
			"title": []map[string]interface{}{
				{"text": map[string]string{"content": rec.DisplayName}},
			},
		},
		propTicker: map[string]interface{}{
			"rich_text": []map[string]interface{}{
				{"text": map[string]string{"content": rec.RawTicker}},
			},
		},
		propCondition: map[string]interface{}{
			"select": map[string]string{"name": rec.Condition},
		},
		propNotify:   map[string]interface{}{"checkbox": rec.NotifyEnabled},
		propAchieved: map[string]interface{}{"checkbox": rec.Achieved},
	}
	if rec.Region != models.RegionUnspecified {
		props[propRegion] = map[string]interface{}{
			"select": map[string]string{"name": string(rec.Region)},
		}
	}
	if rec.Deadline != nil {
		props[propDeadline] = map[string]interface{}{
			"date": map[string]string{"start": util.FormatDate(*rec.Deadline)},
		}
	}

	var created struct {
		ID string `json:"id"`
	}
	err := s.http.SendAndParse(ctx, &xhttp.RequestOptions{
		Method:  xhttp.MethodPost,
		URL:     fmt.Sprintf("%s/v1/pages", s.baseURL),
		Headers: s.headers(),
		Body: map[string]interface{}{
			"parent":     map[string]string{"database_id": s.databaseID},
			"properties": props,
		},
	}, &created)
	if err != nil {
		return "", fmt.Errorf("create page: %w", err)
	}

	s.log.Info("inserted watchlist record",
		logger.String("id", created.ID),
		logger.String("ticker", rec.RawTicker))
	return created.ID, nil
}
