package classifier

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"

	"golang.org/x/sync/errgroup"

	"github.com/AB-octo/Updated-Real-Estate-App/internal/model"
)

// AcceptThreshold is the minimum real-estate probability mass an image needs
const AcceptThreshold = 0.65

// Messages returned with a submission verdict
const (
	MessageAllValid = "All images are valid real estate photos."
	MessageNoImages = "No valid images found."
)

// scoreTolerance absorbs float32 rounding in scorer output
const scoreTolerance = 1e-6

// ImageScore holds one probability per catalog category, index-aligned
type ImageScore []float64

// Scorer scores an image against every prompt of a catalog. Implementations
// must be deterministic for fixed image bytes.
type Scorer interface {
	Score(ctx context.Context, image []byte, catalog *Catalog) (ImageScore, error)
}

// Image is a named image payload
type Image struct {
	Filename string
	Data     []byte
}

// ImageResult is the outcome of screening a single image. Err is set when the
// scorer could not process the bytes; such an image counts as rejected.
type ImageResult struct {
	Filename string
	Score    ImageScore
	Verdict  model.ImageVerdict
	Err      error
}

// Accepted reports whether the image passed the gate
func (r ImageResult) Accepted() bool {
	return r.Err == nil && r.Verdict.Accepted
}

// Evaluation bundles the per-image results with the folded verdict
type Evaluation struct {
	Verdict model.SubmissionVerdict
	Images  []ImageResult
}

// Summarize derives an ImageVerdict from a score vector
func Summarize(catalog *Catalog, score ImageScore) (model.ImageVerdict, error) {
	if len(score) != catalog.Len() {
		return model.ImageVerdict{}, fmt.Errorf("score vector has %d entries, catalog has %d", len(score), catalog.Len())
	}

	best := 0
	for i, p := range score {
		if math.IsNaN(p) || p < -scoreTolerance || p > 1+scoreTolerance {
			return model.ImageVerdict{}, fmt.Errorf("score %d out of range: %v", i, p)
		}
		if p > score[best] {
			best = i
		}
	}

	var realEstate, junk float64
	for _, i := range catalog.valid {
		realEstate += score[i]
	}
	for _, i := range catalog.rejectable {
		junk += score[i]
	}

	return model.ImageVerdict{
		RealEstateScore: realEstate,
		JunkScore:       junk,
		TopLabel:        catalog.At(best).Prompt,
		Accepted:        realEstate > AcceptThreshold,
	}, nil
}

// Fold aggregates per-image results into a listing-level verdict.
// Any rejected image rejects the whole submission; an empty submission is
// rejected as well.
func Fold(results []ImageResult) model.SubmissionVerdict {
	var valid, rejected []string
	for _, r := range results {
		if r.Accepted() {
			valid = append(valid, r.Filename)
		} else {
			rejected = append(rejected, r.Filename)
		}
	}

	if len(rejected) > 0 {
		return model.SubmissionVerdict{
			Status:            model.SubmissionRejected,
			Message:           fmt.Sprintf("Detected %d invalid images: %s.", len(rejected), strings.Join(rejected, ", ")),
			RejectedFilenames: rejected,
		}
	}
	if len(valid) == 0 {
		return model.SubmissionVerdict{
			Status:  model.SubmissionRejected,
			Message: MessageNoImages,
		}
	}
	return model.SubmissionVerdict{
		Status:      model.SubmissionApproved,
		Message:     MessageAllValid,
		ValidImages: valid,
	}
}

// Gate screens submissions against a catalog with a scorer
type Gate struct {
	catalog     *Catalog
	scorer      Scorer
	concurrency int
	logger      *slog.Logger
}

// NewGate creates a gate; concurrency bounds in-flight scorer calls per submission
func NewGate(catalog *Catalog, scorer Scorer, concurrency int, logger *slog.Logger) *Gate {
	if concurrency <= 0 {
		concurrency = 1
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{
		catalog:     catalog,
		scorer:      scorer,
		concurrency: concurrency,
		logger:      logger,
	}
}

// Catalog returns the catalog the gate scores against
func (g *Gate) Catalog() *Catalog {
	return g.catalog
}

// ClassifyImage scores one image
func (g *Gate) ClassifyImage(ctx context.Context, image []byte) (ImageScore, error) {
	score, err := g.scorer.Score(ctx, image, g.catalog)
	if err != nil {
		return nil, err
	}
	return score, nil
}

// EvaluateSubmission scores every image concurrently and folds the results.
// A failing image is recorded as rejected and never aborts its siblings.
func (g *Gate) EvaluateSubmission(ctx context.Context, images []Image) Evaluation {
	results := make([]ImageResult, len(images))

	var eg errgroup.Group
	eg.SetLimit(g.concurrency)
	for i, img := range images {
		eg.Go(func() error {
			results[i] = g.screen(ctx, img)
			return nil
		})
	}
	_ = eg.Wait()

	verdict := Fold(results)
	g.logger.Info("submission screened",
		"images", len(images),
		"status", verdict.Status,
		"rejected", len(verdict.RejectedFilenames),
	)
	return Evaluation{Verdict: verdict, Images: results}
}

func (g *Gate) screen(ctx context.Context, img Image) ImageResult {
	result := ImageResult{Filename: img.Filename}

	score, err := g.ClassifyImage(ctx, img.Data)
	if err != nil {
		g.logger.Warn("image scoring failed", "filename", img.Filename, "error", err)
		result.Err = fmt.Errorf("score %s: %w", img.Filename, err)
		return result
	}
	verdict, err := Summarize(g.catalog, score)
	if err != nil {
		g.logger.Warn("image score unusable", "filename", img.Filename, "error", err)
		result.Err = fmt.Errorf("summarize %s: %w", img.Filename, err)
		return result
	}

	result.Score = score
	result.Verdict = verdict
	g.logger.Debug("image screened",
		"filename", img.Filename,
		"score", verdict.RealEstateScore,
		"top_label", verdict.TopLabel,
		"accepted", verdict.Accepted,
	)
	return result
}
