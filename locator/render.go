package locator

import (
	"image"

	"github.com/fogleman/gg"
	"github.com/pkg/errors"

	"github.com/stormsight/stormsight/refmap"
	"github.com/stormsight/stormsight/transform"
)

// RenderMatch draws a localization result over its reference map: the
// projected outline of the captured patch, the inlier correspondences and
// the position estimate. Debug tooling only, never part of the query path.
func RenderMatch(ref *refmap.ReferenceMap, res *transform.MatchResult) (image.Image, error) {
	if ref == nil || res == nil {
		return nil, errors.New("nothing to render")
	}
	dc := gg.NewContextForImage(ref.Gray)

	dc.SetRGBA(1, 0, 0, 0.85)
	for _, pair := range res.Inliers {
		dc.DrawCircle(pair.Ref.X, pair.Ref.Y, 2)
		dc.Fill()
	}

	dc.SetRGBA(0, 1, 0, 1)
	dc.SetLineWidth(2)
	for i := range res.Corners {
		a := res.Corners[i]
		b := res.Corners[(i+1)%len(res.Corners)]
		dc.DrawLine(a.X, a.Y, b.X, b.Y)
	}
	dc.Stroke()

	center := transform.QuadCentroid(res.Corners)
	dc.SetRGBA(0.1, 0.4, 1, 1)
	dc.DrawCircle(center.X, center.Y, 5)
	dc.Fill()

	return dc.Image(), nil
}
