package pricing

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCalculateJobCost_ScalesByQuantity(t *testing.T) {
	assert.Equal(t, 10, CalculateJobCost(10, Options{OutputType: "i2i", Quality: "standard"}))
	assert.Equal(t, 20, CalculateJobCost(10, Options{OutputType: "i2i", Quality: "high"}))
	assert.Equal(t, 25, CalculateJobCost(5, Options{OutputType: "i2v", DurationSec: 5}))
	assert.Equal(t, 50, CalculateJobCost(5, Options{OutputType: "i2v", DurationSec: 10}))
}

func TestCalculateJobCost_UnknownOutputTypeFallsBackToOne(t *testing.T) {
	assert.Equal(t, 3, CalculateJobCost(3, Options{OutputType: "something_new"}))
}

func TestCalculateJobCost_CarouselSlidesThreshold(t *testing.T) {
	assert.Equal(t, 3, CalculateJobCost(1, Options{OutputType: "carousel"}))
	assert.Equal(t, 3, CalculateJobCost(1, Options{OutputType: "carousel", Slides: 5}))
	assert.Equal(t, 5, CalculateJobCost(1, Options{OutputType: "carousel", Slides: 6}))
	assert.Equal(t, 5, CalculateJobCost(1, Options{OutputType: "carousel", Slides: 10}))
}

func TestCalculateJobCost_NSFWTakesPrecedenceOverHighQuality(t *testing.T) {
	assert.Equal(t, 1, CalculateJobCost(1, Options{OutputType: "i2i", Quality: "high", NSFW: true}))
	assert.Equal(t, 1, CalculateJobCost(1, Options{OutputType: "i2i", Quality: "nsfw"}))
	assert.Equal(t, 2, CalculateJobCost(1, Options{OutputType: "i2i", Quality: "high"}))
}

func TestEstimatePipeline_PropagatesOutputCount(t *testing.T) {
	est := EstimatePipeline([]Step{
		{Name: "generate", Model: "wan", Quality: "720p", DurationSec: 5, OutputCount: 4, UnitPriceCents: 50},
		{Name: "upscale", UnitPriceCents: 10},
	})
	assert.Equal(t, 4*50+4*10, est.TotalCents)
	assert.Len(t, est.Steps, 2)
	assert.Equal(t, 4, est.Steps[1].OutputCnt)
}
