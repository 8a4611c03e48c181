package sentiment

import (
	"context"
	"log/slog"
	"strings"

	"stocksense/internal/domain"
	"stocksense/internal/news"
)

// placeholderHeadline is recorded when there is no relevant coverage, so an
// empty news window is distinguishable from a failed fetch.
const placeholderHeadline = "No relevant news found"

// Summary is the aggregated sentiment for one symbol's recent coverage.
type Summary struct {
	Symbol       string                   `json:"symbol"`
	Records      []domain.SentimentRecord `json:"records"`
	AverageScore float64                  `json:"average_score"`
}

// Scorer fetches recent news for a symbol and scores it headline by
// headline.
type Scorer struct {
	source      news.Source
	classifier  Classifier
	newsDays    int
	maxArticles int
	maxClassify int
	log         *slog.Logger
}

// NewScorer creates a Scorer over the given news source and classifier.
func NewScorer(source news.Source, classifier Classifier, newsDays, maxArticles, maxClassify int) *Scorer {
	return &Scorer{
		source:      source,
		classifier:  classifier,
		newsDays:    newsDays,
		maxArticles: maxArticles,
		maxClassify: maxClassify,
		log:         slog.Default().With("component", "sentiment"),
	}
}

// Score fetches the symbol's recent news, filters for relevance, and
// classifies up to the configured number of headlines. A headline whose
// classification fails gets an ERROR record with zero score; the rest still
// count. No relevant coverage, including a failed news fetch, yields a
// single neutral placeholder record.
func (s *Scorer) Score(ctx context.Context, symbol string) (*Summary, error) {
	symbol = strings.ToUpper(symbol)

	articles, err := s.source.Recent(ctx, symbol, s.newsDays, 50)
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		s.log.Warn("news fetch failed", "symbol", symbol, "error", err)
		articles = nil
	}
	relevant := news.FilterRelevant(articles, symbol, s.maxArticles)

	if len(relevant) == 0 {
		return &Summary{
			Symbol: symbol,
			Records: []domain.SentimentRecord{{
				Headline: placeholderHeadline,
				Label:    domain.SentimentNeutral,
			}},
		}, nil
	}

	if len(relevant) > s.maxClassify {
		relevant = relevant[:s.maxClassify]
	}

	summary := &Summary{Symbol: symbol}
	var total, scored int
	for _, a := range relevant {
		label, confidence, err := s.classifier.Classify(ctx, a.Headline)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			s.log.Warn("classification failed", "symbol", symbol, "headline", a.Headline, "error", err)
			summary.Records = append(summary.Records, domain.SentimentRecord{
				Headline: a.Headline,
				Label:    domain.SentimentError,
			})
			continue
		}

		rec := domain.SentimentRecord{
			Headline:   a.Headline,
			Label:      normalizeLabel(label),
			Score:      labelScoreValue(label),
			Confidence: confidence,
		}
		summary.Records = append(summary.Records, rec)
		total += rec.Score
		scored++
	}

	if scored > 0 {
		summary.AverageScore = float64(total) / float64(scored)
	}
	return summary, nil
}

// normalizeLabel maps classifier label spellings onto the canonical set.
// Unknown labels count as neutral.
func normalizeLabel(label string) string {
	switch strings.ToUpper(label) {
	case "POSITIVE", "LABEL_2":
		return domain.SentimentPositive
	case "NEGATIVE", "LABEL_0":
		return domain.SentimentNegative
	default:
		return domain.SentimentNeutral
	}
}

func labelScoreValue(label string) int {
	switch normalizeLabel(label) {
	case domain.SentimentPositive:
		return 1
	case domain.SentimentNegative:
		return -1
	default:
		return 0
	}
}
