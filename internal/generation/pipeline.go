package generation

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"time"

	"tti-balder/internal/prompt"
	"tti-balder/internal/upstream"
)

type Refiner interface {
	Refine(ctx context.Context, raw string) (string, error)
}

type ImageGenerator interface {
	GenerateImage(ctx context.Context, prompt string) (string, error)
}

type Options struct {
	Refiner Refiner
	Images  ImageGenerator
	Timeout time.Duration
	Logger  *slog.Logger
}

type Pipeline struct {
	refiner Refiner
	images  ImageGenerator
	timeout time.Duration
	logger  *slog.Logger
}

type Result struct {
	ImageURL string
	Prompt   string
	// Refined is false when refinement failed and the scrubbed raw prompt
	// was used instead.
	Refined bool
}

func New(opts Options) *Pipeline {
	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Pipeline{
		refiner: opts.Refiner,
		images:  opts.Images,
		timeout: timeout,
		logger:  logger,
	}
}

// Run refines raw and then renders the image. Refinement failures degrade to
// the scrubbed raw prompt; image failures abort the run.
func (p *Pipeline) Run(ctx context.Context, tracker *Tracker, raw string) (Result, error) {
	if err := tracker.Begin(); err != nil {
		return Result{}, err
	}

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	res, err := p.run(ctx, tracker, raw)
	if err != nil && ctx.Err() != nil && !errors.Is(err, upstream.ErrNetwork) {
		err = upstream.Network("generation", ctx.Err())
	}
	tracker.finish(err)
	return res, err
}

func (p *Pipeline) run(ctx context.Context, tracker *Tracker, raw string) (Result, error) {
	res := Result{Prompt: prompt.Scrub(raw)}

	refined, err := p.refiner.Refine(ctx, raw)
	switch {
	case err != nil:
		p.logger.Warn("prompt refinement failed, using scrubbed prompt", "err", err)
	case prompt.ContainsDenied(refined):
		res.Prompt = prompt.Scrub(refined)
		res.Refined = true
	default:
		res.Prompt = refined
		res.Refined = true
	}

	tracker.advance(StateGenerating)

	url, err := p.images.GenerateImage(ctx, res.Prompt)
	if err != nil {
		p.logger.Error("image generation failed", "err", err)
		return Result{}, err
	}

	res.ImageURL = url
	return res, nil
}
