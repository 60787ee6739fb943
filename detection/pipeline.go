package detection

import (
	"context"
	"log/slog"
	"math"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"urbanfix-be/models"
)

// Config holds the tuning knobs for duplicate and quality detection.
// Thresholds are deployment-specific tradeoffs, never hardcoded at call
// sites.
type Config struct {
	TextThreshold    float64       // 0-100, text duplicate cutoff
	ImageThreshold   float64       // 0-100, image duplicate cutoff
	QualityThreshold float64       // 0-1, quality flag cutoff
	RadiusMeters     float64       // candidate pool radius
	Window           time.Duration // candidate pool recency window
	MaxCandidates    int64         // candidate pool size bound
	Timeout          time.Duration // whole-pipeline budget
}

// DefaultConfig mirrors the recommended production tuning.
func DefaultConfig() Config {
	return Config{
		TextThreshold:    80,
		ImageThreshold:   85,
		QualityThreshold: 0.6,
		RadiusMeters:     500,
		Window:           30 * 24 * time.Hour,
		MaxCandidates:    100,
		Timeout:          3 * time.Second,
	}
}

// Draft is a submission before it becomes an issue.
type Draft struct {
	Title       string
	Description string
	Category    models.IssueCategory
	Latitude    float64
	Longitude   float64
	Photos      []string
}

// GeoBox bounds the candidate pool query.
type GeoBox struct {
	MinLat, MaxLat float64
	MinLng, MaxLng float64
}

// BoundingBox converts a radius in meters around a point to a lat/lng box.
func BoundingBox(lat, lng, radiusMeters float64) GeoBox {
	dLat := radiusMeters / 111320
	cos := math.Cos(lat * math.Pi / 180)
	if cos < 0.01 {
		cos = 0.01
	}
	dLng := radiusMeters / (111320 * cos)
	return GeoBox{
		MinLat: lat - dLat, MaxLat: lat + dLat,
		MinLng: lng - dLng, MaxLng: lng + dLng,
	}
}

// CandidateSource yields the bounded pool of existing issues a draft is
// compared against.
type CandidateSource interface {
	FindCandidates(ctx context.Context, category models.IssueCategory, box GeoBox, since time.Time, limit int64) ([]models.Issue, error)
}

// BlobFetcher resolves a photo reference to its bytes.
type BlobFetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Pipeline runs the three detection signals against a candidate pool and
// assembles a verdict. It is a pure function of (draft, pool): it holds
// no mutable state and persists nothing.
type Pipeline struct {
	cfg        Config
	candidates CandidateSource
	blobs      BlobFetcher
}

func NewPipeline(cfg Config, candidates CandidateSource, blobs BlobFetcher) *Pipeline {
	return &Pipeline{cfg: cfg, candidates: candidates, blobs: blobs}
}

// Result is the verdict plus the draft photos annotated with their
// computed hashes, so the caller can persist them without rehashing.
type Result struct {
	Verdict models.DuplicateVerdict
	Photos  []models.Photo
}

type photoScan struct {
	url   string
	hash  uint64
	ok    bool
	flags []models.QualityFlag
}

// Check produces the verdict for one draft. Per-photo failures degrade
// the verdict (that photo is skipped) rather than failing the check; only
// an unreachable candidate pool returns an error.
func (p *Pipeline) Check(ctx context.Context, draft Draft) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	box := BoundingBox(draft.Latitude, draft.Longitude, p.cfg.RadiusMeters)
	since := time.Now().Add(-p.cfg.Window)

	pool, err := p.candidates.FindCandidates(ctx, draft.Category, box, since, p.cfg.MaxCandidates)
	if err != nil {
		return nil, err
	}

	scans := make([]photoScan, len(draft.Photos))
	g, gctx := errgroup.WithContext(ctx)
	for i, url := range draft.Photos {
		i, url := i, url
		g.Go(func() error {
			scans[i] = p.scanPhoto(gctx, url)
			return nil
		})
	}

	// Text scoring is cheap; run it alongside the photo fan-out.
	var textDups []models.TextDuplicate
	g.Go(func() error {
		textDups = p.scoreText(draft, pool)
		return nil
	})
	_ = g.Wait()

	result := &Result{
		Verdict: models.DuplicateVerdict{TextDuplicates: textDups},
		Photos:  make([]models.Photo, 0, len(scans)),
	}
	for _, scan := range scans {
		result.Photos = append(result.Photos, models.Photo{URL: scan.url, PHash: scan.hash})
		if !scan.ok {
			continue
		}
		result.Verdict.QualityFlags = append(result.Verdict.QualityFlags, scan.flags...)
		result.Verdict.ImageDuplicates = append(result.Verdict.ImageDuplicates, p.matchPhoto(scan, pool)...)
	}

	sort.Slice(result.Verdict.ImageDuplicates, func(i, j int) bool {
		return result.Verdict.ImageDuplicates[i].Score > result.Verdict.ImageDuplicates[j].Score
	})
	return result, nil
}

// scanPhoto fetches, decodes, hashes and quality-scores one draft photo.
// Any failure excludes the photo from scoring; the submission check as a
// whole must survive a single bad photo.
func (p *Pipeline) scanPhoto(ctx context.Context, url string) photoScan {
	data, err := p.blobs.Fetch(ctx, url)
	if err != nil {
		slog.Warn("detection: photo fetch failed, skipping", "photo", url, "error", err)
		return photoScan{url: url}
	}
	img, err := DecodeImage(data)
	if err != nil {
		slog.Warn("detection: photo decode failed, skipping", "photo", url, "error", err)
		return photoScan{url: url}
	}
	return photoScan{
		url:   url,
		hash:  HashImage(img),
		ok:    true,
		flags: ClassifyImage(img, url, p.cfg.QualityThreshold),
	}
}

// scoreText ranks candidates by title+description similarity, keeping
// only those at or above the threshold, most similar first.
func (p *Pipeline) scoreText(draft Draft, pool []models.Issue) []models.TextDuplicate {
	draftText := draft.Title + " " + draft.Description
	var dups []models.TextDuplicate
	for _, cand := range pool {
		score := TextSimilarity(draftText, cand.Title+" "+cand.Description)
		if score >= p.cfg.TextThreshold {
			dups = append(dups, models.TextDuplicate{Issue: cand.ID, Title: cand.Title, Score: score})
		}
	}
	sort.Slice(dups, func(i, j int) bool { return dups[i].Score > dups[j].Score })
	return dups
}

// matchPhoto compares one hashed draft photo against every stored
// candidate photo hash. Candidate photos without a stored hash are
// skipped; they were unhashable at their own submission time.
func (p *Pipeline) matchPhoto(scan photoScan, pool []models.Issue) []models.ImageDuplicate {
	var dups []models.ImageDuplicate
	for _, cand := range pool {
		for _, photo := range cand.Photos {
			if photo.PHash == 0 {
				continue
			}
			score := HashSimilarity(scan.hash, photo.PHash)
			if score >= p.cfg.ImageThreshold {
				dups = append(dups, models.ImageDuplicate{
					Issue:        cand.ID,
					Photo:        scan.url,
					MatchedPhoto: photo.URL,
					Score:        score,
				})
			}
		}
	}
	return dups
}
