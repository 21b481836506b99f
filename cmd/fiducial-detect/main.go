// fiducial-detect finds square fiducial markers in an image and reports
// their identities, corners and poses.
package main

import (
	"fmt"
	"os"

	"github.com/disintegration/imaging"
	"github.com/edaniels/golog"
	"github.com/fogleman/gg"
	"github.com/urfave/cli/v2"

	"github.com/markervision/fiducial/fiducial"
	"github.com/markervision/fiducial/rimage"
	"github.com/markervision/fiducial/rimage/transform"
)

func main() {
	logger := golog.NewLogger("fiducial-detect")

	app := &cli.App{
		Name:  "fiducial-detect",
		Usage: "detect square fiducial markers in an image",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "image", Usage: "input image to search", Required: true},
			&cli.StringFlag{Name: "intrinsics", Usage: "JSON file with pinhole camera intrinsics", Required: true},
			&cli.Float64SliceFlag{Name: "distortion", Usage: "Brown-Conrady parameters k1,k2,k3,p1,p2"},
			&cli.StringSliceFlag{Name: "pattern", Usage: "marker pattern image (repeatable)", Required: true},
			&cli.Float64Flag{Name: "side-length", Usage: "marker side length in world units", Value: 1.0},
			&cli.IntFlag{Name: "patch-size", Usage: "rectified patch width in pixels", Value: 64},
			&cli.IntFlag{Name: "grid-size", Usage: "pattern grid cells per side", Value: 8},
			&cli.IntFlag{Name: "min-area", Usage: "minimum candidate area in pixels", Value: 400},
			&cli.BoolFlag{Name: "cache-maps", Usage: "memoize per-pixel distortion maps"},
			&cli.StringFlag{Name: "out", Usage: "write an overlay image with detected corners"},
		},
		Action: func(c *cli.Context) error {
			return run(c, logger)
		},
	}
	if err := app.Run(os.Args); err != nil {
		logger.Fatal(err)
	}
}

func run(c *cli.Context, logger golog.Logger) error {
	intrinsics, err := transform.NewPinholeCameraIntrinsicsFromJSONFile(c.String("intrinsics"))
	if err != nil {
		return err
	}
	model := &transform.PinholeCameraModel{PinholeCameraIntrinsics: intrinsics}
	if params := c.Float64Slice("distortion"); len(params) > 0 {
		distortion, err := transform.NewBrownConrady(params)
		if err != nil {
			return err
		}
		model.Distortion = distortion
	}

	decoder, err := fiducial.NewImagePatternDecoder(c.Int("grid-size"), 0.2)
	if err != nil {
		return err
	}
	for _, path := range c.StringSlice("pattern") {
		img, err := imaging.Open(path)
		if err != nil {
			return err
		}
		gray := rimage.GrayFromImage(img)
		idx, err := decoder.AddPatternImage(gray, gray.Mean(), c.Float64("side-length"))
		if err != nil {
			return err
		}
		logger.Debugf("registered pattern %d from %s", idx, path)
	}

	detector, err := fiducial.NewDetector(
		fiducial.MeanBinarizer{},
		fiducial.NewBlobQuadDetector(c.Int("min-area")),
		decoder,
		c.Int("patch-size"),
		logger,
	)
	if err != nil {
		return err
	}
	if err := detector.Configure(model, c.Bool("cache-maps")); err != nil {
		return err
	}

	img, err := imaging.Open(c.String("image"))
	if err != nil {
		return err
	}
	gray := rimage.GrayFromImage(img)
	if err := detector.Process(gray); err != nil {
		return err
	}

	found := detector.Found()
	logger.Infof("found %d fiducials", len(found))
	for _, f := range found {
		fmt.Printf("pattern %d side %.3f corners %v translation (%.3f, %.3f, %.3f)\n",
			f.Index, f.SideLength, f.Location.Corners(),
			f.TargetToCamera.Translation.X, f.TargetToCamera.Translation.Y, f.TargetToCamera.Translation.Z)
	}

	if out := c.String("out"); out != "" {
		return drawOverlay(gray, found, out)
	}
	return nil
}

// drawOverlay writes the input image with detected quads traced in red and
// corner 0 marked with a circle.
func drawOverlay(gray *rimage.Gray, found []fiducial.FoundFiducial, path string) error {
	dc := gg.NewContextForImage(gray.ToImage())
	dc.SetRGB(1, 0, 0)
	dc.SetLineWidth(2)
	for _, f := range found {
		corners := f.Location.Corners()
		for i := range corners {
			next := corners[(i+1)%4]
			dc.DrawLine(corners[i].X, corners[i].Y, next.X, next.Y)
			dc.Stroke()
		}
		dc.DrawCircle(corners[0].X, corners[0].Y, 4)
		dc.Stroke()
	}
	return dc.SavePNG(path)
}
