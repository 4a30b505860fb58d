package render

import (
	"context"
	"fmt"
	"math"
	"strings"

	"github.com/usewebget/webget/schema"
	"github.com/usewebget/webget/ssim"
)

// classify persists the capture and decides created / updated / matched.
// The fresh capture always lands under a unique scratch key and its path
// is returned whatever the classification; only created and updated also
// touch the baseline. When a baseline exists it is always compared — the
// diff flag only controls whether a visual diff image is written.
func (p *Pipeline) classify(ctx context.Context, asset *schema.Asset, img []byte) Outcome {
	scratch := p.scratchKey(asset.ImageType())
	if err := p.cfg.Store.Put(ctx, scratch, img); err != nil {
		return errorOutcome(err)
	}
	path := p.publicPath(scratch)

	// Nested inputs carry no baseline; their capture is the product.
	if asset.Output == "" {
		return Outcome{Status: StatusCreated, Path: path}
	}

	exists, err := p.cfg.Store.Exists(ctx, asset.Output)
	if err != nil {
		return errorOutcome(err)
	}
	if !exists {
		if err := p.cfg.Store.Put(ctx, asset.Output, img); err != nil {
			return errorOutcome(err)
		}
		return Outcome{Status: StatusCreated, Path: path}
	}

	baseline, err := p.cfg.Store.Get(ctx, asset.Output)
	if err != nil {
		return errorOutcome(err)
	}

	result, err := p.compare(ctx, asset, baseline, img)
	if err != nil {
		return errorOutcome(err)
	}

	if result.SSIM > MatchThreshold {
		return Outcome{Status: StatusMatched, Path: path, SSIM: result.SSIM}
	}

	if err := p.cfg.Store.Put(ctx, asset.Output, img); err != nil {
		return errorOutcome(err)
	}
	return Outcome{
		Status: StatusUpdated,
		Path:   path,
		SSIM:   result.SSIM,
		Error:  fmt.Sprintf("similarity %d%%", int(math.Round(result.SSIM*100))),
	}
}

// compare decodes both captures and scores them. With the default kernel
// and the diff flag set, a visual diff lands next to the baseline at
// <name>.diff.<ext>.
func (p *Pipeline) compare(ctx context.Context, asset *schema.Asset, baseline, img []byte) (ssim.Result, error) {
	a, err := ssim.DecodeBytes(baseline)
	if err != nil {
		return ssim.Result{}, fmt.Errorf("render: decode baseline %s: %w", asset.Output, err)
	}
	b, err := ssim.DecodeBytes(img)
	if err != nil {
		return ssim.Result{}, fmt.Errorf("render: decode capture: %w", err)
	}

	if !asset.Diff {
		return p.cfg.Compare(a, b), nil
	}

	result, diff := ssim.CompareWithDiff(a, b, nil)
	if diff != nil && result.SSIM <= MatchThreshold {
		encoded, err := ssim.EncodePNG(diff)
		if err != nil {
			p.cfg.Logger.Warn("render: encode diff failed", "output", asset.Output, "error", err)
		} else if err := p.cfg.Store.Put(ctx, DiffPath(asset.Output), encoded); err != nil {
			p.cfg.Logger.Warn("render: write diff failed", "output", asset.Output, "error", err)
		}
	}
	return result, nil
}

// DiffPath names the visual diff written next to a baseline:
// shots/home.png becomes shots/home.diff.png.
func DiffPath(output string) string {
	i := strings.LastIndex(output, ".")
	if i < 0 {
		return output + ".diff"
	}
	return output[:i] + ".diff" + output[i:]
}
