package fiducial

import "github.com/markervision/fiducial/rimage"

// MeanBinarizer thresholds at the global mean intensity of the input
// image. Good enough for markers with strong contrast against the
// background.
type MeanBinarizer struct{}

// Binarize marks pixels darker than the image mean as 1.
func (MeanBinarizer) Binarize(src, dst *rimage.Gray) error {
	return rimage.Threshold(src, dst, src.Mean())
}

// FixedBinarizer thresholds at a fixed intensity value.
type FixedBinarizer struct {
	Value float64
}

// Binarize marks pixels darker than the configured value as 1.
func (f FixedBinarizer) Binarize(src, dst *rimage.Gray) error {
	return rimage.Threshold(src, dst, f.Value)
}
