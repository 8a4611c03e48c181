// Package news fetches recent articles for a symbol from the Alpaca news
// API and filters them down to the ones that actually mention it.
package news

import (
	"context"
	"strings"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
)

// Article is a single news article.
type Article struct {
	Time     time.Time `json:"time"`
	Headline string    `json:"headline"`
	Summary  string    `json:"summary"`
}

// Source fetches recent articles for a symbol.
type Source interface {
	Recent(ctx context.Context, symbol string, days, limit int) ([]Article, error)
}

var _ Source = (*AlpacaSource)(nil)

// AlpacaSource fetches news from the Alpaca marketdata API.
type AlpacaSource struct {
	client *marketdata.Client
}

// NewAlpacaSource creates an AlpacaSource with the given credentials.
func NewAlpacaSource(apiKey, apiSecret, dataURL string) *AlpacaSource {
	opts := marketdata.ClientOpts{
		APIKey:    apiKey,
		APISecret: apiSecret,
	}
	if dataURL != "" {
		opts.BaseURL = dataURL
	}
	return &AlpacaSource{client: marketdata.NewClient(opts)}
}

// Recent fetches up to limit articles from the last days days, newest first.
func (s *AlpacaSource) Recent(ctx context.Context, symbol string, days, limit int) ([]Article, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	symbol = strings.ToUpper(symbol)
	end := time.Now().UTC()
	start := end.AddDate(0, 0, -days)

	alpacaNews, err := s.client.GetNews(marketdata.GetNewsRequest{
		Symbols:    []string{symbol},
		Start:      start,
		End:        end,
		TotalLimit: limit,
		Sort:       marketdata.SortDesc,
	})
	if err != nil {
		return nil, err
	}

	articles := make([]Article, 0, len(alpacaNews))
	for _, a := range alpacaNews {
		articles = append(articles, Article{
			Time:     a.CreatedAt,
			Headline: a.Headline,
			Summary:  a.Summary,
		})
	}
	return articles, nil
}

// FilterRelevant keeps articles whose headline or summary mentions the
// symbol, up to max articles. Order is preserved.
func FilterRelevant(articles []Article, symbol string, max int) []Article {
	needle := strings.ToUpper(symbol)
	var out []Article
	for _, a := range articles {
		if len(out) >= max {
			break
		}
		text := strings.ToUpper(a.Headline + " " + a.Summary)
		if strings.Contains(text, needle) {
			out = append(out, a)
		}
	}
	return out
}
