package render

import (
	"context"
	"fmt"
	"time"

	"github.com/usewebget/webget/browser"
	"github.com/usewebget/webget/geom"
	"github.com/usewebget/webget/schema"
)

// executor replays one asset's action sequence against a session,
// accumulating the crop state the capture step reads back. Actions run
// strictly in declared order; the first failure aborts the rest.
type executor struct {
	sess browser.Session

	crop     *geom.Rect
	fullPage bool
}

// Execute dispatches one action. The variant set is closed: schema
// rejects unknown tags at parse time, so the default arm only guards
// against a variant added without a matching case here.
func (e *executor) Execute(ctx context.Context, action schema.Action) error {
	switch a := action.(type) {
	case *schema.GotoAction:
		return e.sess.Goto(ctx, a.URL)

	case *schema.ClickAction:
		return e.sess.Click(ctx, browser.ClickOpts{
			Selector:      a.Selector,
			FrameSelector: a.FrameSelector,
			ClickCount:    a.ClickCount,
			Button:        a.Button,
			Position:      a.Position,
		})

	case *schema.HoverAction:
		return e.sess.Hover(ctx, a.Selector, a.Frame)

	case *schema.FillAction:
		return e.sess.Fill(ctx, a.Selector, a.Frame, a.Text)

	case *schema.ScrollAction:
		return e.sess.Scroll(ctx, a.Selector, a.Offset)

	case *schema.CropAction:
		return e.execCrop(ctx, a)

	case *schema.WaitAction:
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(time.Duration(a.Milliseconds) * time.Millisecond):
			return nil
		}

	default:
		return fmt.Errorf("render: unhandled action %q", action.Kind())
	}
}

// execCrop resolves the capture region. For fullPage crops the viewport
// first grows to the target's maximum scrollable extent so the bounding
// box includes content below the fold.
func (e *executor) execCrop(ctx context.Context, a *schema.CropAction) error {
	selector := a.Selector
	if selector == "" {
		selector = "body"
	}

	if a.FullPage {
		extent, err := e.sess.MaxScrollExtent(ctx, selector)
		if err != nil {
			return err
		}
		if extent > 0 {
			w, h := e.sess.Viewport()
			if err := e.sess.SetViewport(ctx, w, h+int(extent)); err != nil {
				return err
			}
		}
	}

	box, err := e.sess.BoundingBox(ctx, selector)
	if err != nil {
		return err
	}

	rect := geom.ResolveCrop(box, a.Spec())
	e.crop = &rect
	e.fullPage = a.FullPage
	return nil
}
