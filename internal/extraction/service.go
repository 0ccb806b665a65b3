package extraction

import (
	"context"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"
	"golang.org/x/sync/singleflight"

	"github.com/hetulpatel/surveillance/internal/logging"
	"github.com/hetulpatel/surveillance/internal/proposition"
)

// Outcome reports how one record was resolved.
type Outcome struct {
	Record RulesRecord
	Key    string
	Result Result
	// CacheHit is set when Result came from the cache.
	CacheHit bool
	// CacheCorrupt is set when a cached entry existed but failed to decode.
	CacheCorrupt bool
	// Err is the recovered extraction failure, if any. Result is then an
	// error record with zero confidence.
	Err error
}

// Proposition converts the outcome into a proposition for the store.
func (o Outcome) Proposition() proposition.Proposition {
	return o.Result.ToProposition(o.Record)
}

// Service puts a cache in front of an Extractor. Concurrent calls for the
// same key share one extraction.
type Service struct {
	extractor Extractor
	cache     Cache
	useCache  bool
	group     singleflight.Group
	log       *logrus.Entry
}

// NewService wires extractor and cache. With useCache false lookups are
// skipped but results, error records included, are still stored so a later
// cached run picks them up. A nil cache disables both.
func NewService(extractor Extractor, cache Cache, useCache bool) (*Service, error) {
	if extractor == nil {
		return nil, fmt.Errorf("extraction: extractor is required")
	}
	return &Service{
		extractor: extractor,
		cache:     cache,
		useCache:  useCache && cache != nil,
		log:       logging.WithComponent("extraction"),
	}, nil
}

type flightResult struct {
	result  Result
	hit     bool
	corrupt bool
	err     error
}

// Extract resolves rec through the cache or the extractor. It never returns
// an error: failures come back as an Outcome carrying an error record.
func (s *Service) Extract(ctx context.Context, rec RulesRecord) Outcome {
	key := rec.Key()
	v, _, _ := s.group.Do(key, func() (any, error) {
		return s.resolve(ctx, key, rec), nil
	})
	fr := v.(flightResult)
	return Outcome{
		Record:       rec,
		Key:          key,
		Result:       fr.result,
		CacheHit:     fr.hit,
		CacheCorrupt: fr.corrupt,
		Err:          fr.err,
	}
}

func (s *Service) resolve(ctx context.Context, key string, rec RulesRecord) flightResult {
	var corrupt bool
	if s.useCache {
		res, err := s.cache.Lookup(ctx, key)
		switch {
		case err == nil:
			fr := flightResult{result: res, hit: true}
			if res.Failed() {
				fr.err = errors.New(res.Error)
			}
			return fr
		case errors.Is(err, ErrCacheCorrupt):
			corrupt = true
			s.log.WithField("key", key).Warnf("discarding corrupt cache entry: %v", err)
		case !errors.Is(err, ErrCacheMiss):
			s.log.WithField("key", key).Warnf("cache lookup failed: %v", err)
		}
	}

	res, err := s.extractor.Extract(ctx, rec.Title, rec.RulesText)
	if err != nil {
		s.log.WithFields(logrus.Fields{"market_id": rec.MarketID, "key": key}).Warnf("extraction failed: %v", err)
		fr := flightResult{result: FailedResult(err), corrupt: corrupt, err: err}
		// A cancelled run is not a verdict on the rules text.
		if ctx.Err() == nil {
			s.store(ctx, key, fr.result)
		}
		return fr
	}
	res.Confidence = proposition.ClampConfidence(res.Confidence)
	s.store(ctx, key, res)
	return flightResult{result: res, corrupt: corrupt}
}

func (s *Service) store(ctx context.Context, key string, res Result) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Store(ctx, key, res); err != nil {
		s.log.WithField("key", key).Warnf("cache store failed: %v", err)
	}
}
