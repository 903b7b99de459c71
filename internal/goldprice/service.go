package goldprice

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/safar/gold-ledger/internal/apperr"
	"github.com/safar/gold-ledger/internal/config"
	"github.com/safar/gold-ledger/internal/logging"
	"github.com/safar/gold-ledger/internal/models"
	"github.com/safar/gold-ledger/internal/store"
)

const (
	defaultHistoryLimit = 30
	maxHistoryLimit     = 100
)

var karatPure = decimal.NewFromInt(24)

type Service struct {
	db         *sql.DB
	provider   Provider
	normalizer *Normalizer
	cache      QuoteCache
	cacheTTL   time.Duration
	timeout    time.Duration
	precision  int32
	logger     *logrus.Logger
	now        func() time.Time
}

// NewService wires the pipeline. A nil cache keeps the latest quote in memory.
func NewService(db *sql.DB, provider Provider, cache QuoteCache, cfg config.GoldConfig, logger *logrus.Logger) *Service {
	logger = logging.OrDiscard(logger)
	if cache == nil {
		cache = NewMemoryCache()
	}
	return &Service{
		db:         db,
		provider:   provider,
		normalizer: NewNormalizer(cfg.TargetUnit, cfg.TargetCurrency, cfg.ExchangeRates, cfg.Precision, logger),
		cache:      cache,
		cacheTTL:   cfg.CacheTTL,
		timeout:    cfg.FetchTimeout,
		precision:  cfg.Precision,
		logger:     logger,
		now:        time.Now,
	}
}

// FetchAndPersist asks the provider for a quote and stores it. A provider
// failure is logged and yields (nil, nil) so the previous quote stays the
// latest; storage failures are returned.
func (s *Service) FetchAndPersist(ctx context.Context) (*models.GoldQuote, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	raw, err := s.provider.Fetch(fetchCtx)
	if err != nil {
		logging.LogError(s.logger, "goldprice", "FetchAndPersist", "provider fetch failed",
			map[string]any{"provider": s.provider.Kind()}, err)
		return nil, nil
	}

	norm := s.normalizer.Normalize(raw)
	quote, err := store.InsertQuote(ctx, s.db, &models.GoldQuote{
		Provider:  string(norm.Provider),
		Bid:       norm.Bid,
		Ask:       norm.Ask,
		Unit:      norm.Unit,
		Currency:  norm.Currency,
		FetchedAt: s.now(),
	})
	if err != nil {
		return nil, err
	}

	if err := s.cache.Set(ctx, quote, s.cacheTTL); err != nil {
		s.logger.WithField("module", "goldprice").WithError(err).Warn("cache set failed")
	}

	s.logger.WithFields(logrus.Fields{
		"module":   "goldprice",
		"provider": quote.Provider,
		"bid":      quote.Bid.String(),
		"ask":      quote.Ask.String(),
		"unit":     quote.Unit,
		"currency": quote.Currency,
	}).Info("gold quote stored")
	return quote, nil
}

// GetLatest never calls the provider. It returns database.ErrQuoteNotFound
// when nothing was ever fetched.
func (s *Service) GetLatest(ctx context.Context) (*models.GoldQuote, error) {
	cached, err := s.cache.Get(ctx)
	if err != nil {
		s.logger.WithField("module", "goldprice").WithError(err).Warn("cache get failed; reading database")
	}
	if cached != nil {
		return cached, nil
	}

	quote, err := store.LatestQuote(ctx, s.db)
	if err != nil {
		return nil, err
	}
	if err := s.cache.Set(ctx, quote, s.cacheTTL); err != nil {
		s.logger.WithField("module", "goldprice").WithError(err).Warn("cache set failed")
	}
	return quote, nil
}

type ConnectionResult struct {
	OK       bool      `json:"ok"`
	Provider string    `json:"provider"`
	Message  string    `json:"message"`
	Quote    *RawQuote `json:"quote,omitempty"`
}

// TestConnection calls the provider without storing anything.
func (s *Service) TestConnection(ctx context.Context) ConnectionResult {
	fetchCtx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	result := ConnectionResult{Provider: string(s.provider.Kind())}
	raw, err := s.provider.Fetch(fetchCtx)
	if err != nil {
		result.Message = err.Error()
		return result
	}

	norm := s.normalizer.Normalize(raw)
	result.OK = true
	result.Message = "connection ok"
	result.Quote = &norm
	return result
}

func (s *Service) History(ctx context.Context, limit int) ([]models.GoldQuote, error) {
	if limit < 1 {
		limit = defaultHistoryLimit
	}
	if limit > maxHistoryLimit {
		limit = maxHistoryLimit
	}
	return store.ListQuotes(ctx, s.db, limit)
}

type Valuation struct {
	WeightGrams  decimal.Decimal `json:"weight_grams"`
	Karat        int             `json:"karat"`
	PricePerGram decimal.Decimal `json:"price_per_gram"`
	TotalValue   decimal.Decimal `json:"total_value"`
	Currency     string          `json:"currency"`
	QuotedAt     time.Time       `json:"quoted_at"`
}

// Valuate prices a weight of gold at the latest bid, scaled by karat/24.
func (s *Service) Valuate(ctx context.Context, weightGrams decimal.Decimal, karat int) (*Valuation, error) {
	if !weightGrams.IsPositive() {
		return nil, apperr.Invalid("weight_grams", "must be greater than 0")
	}
	if karat < 1 || karat > 24 {
		return nil, apperr.Invalid("karat", "must be between 1 and 24")
	}

	quote, err := s.GetLatest(ctx)
	if err != nil {
		return nil, err
	}
	if quote.Unit != models.UnitGram {
		return nil, fmt.Errorf("valuate: latest quote is per %s, not per gram", quote.Unit)
	}

	perGram := quote.Bid.Mul(decimal.NewFromInt(int64(karat))).Div(karatPure).Round(s.precision)
	return &Valuation{
		WeightGrams:  weightGrams,
		Karat:        karat,
		PricePerGram: perGram,
		TotalValue:   weightGrams.Mul(perGram).Round(2),
		Currency:     quote.Currency,
		QuotedAt:     quote.FetchedAt,
	}, nil
}
