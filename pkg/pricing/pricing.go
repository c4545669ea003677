// Package pricing holds the flat per-unit credit price list and the
// per-pipeline-step cost estimation tree. Grounded on credits.py's
// PRICING/calculate_job_cost and, for the estimation tree, on
// cost_calculator.py's CostCalculator.
package pricing

import (
	"fmt"
	"strings"
)

// Table mirrors credits.py's PRICING dict exactly.
var Table = map[string]int{
	"i2i_standard": 1,
	"i2i_high":     2,
	"i2i_nsfw":     1,
	"i2v_5s":       5,
	"i2v_10s":      10,
	"pipeline_full": 15,
	"carousel_5":   3,
	"carousel_10":  5,
	"voice_clone":  5,
	"face_swap":    2,
}

const defaultCostPerItem = 1

// defaultCarouselSlides mirrors credits.py's calculate_job_cost default
// of slides=5 when the option is omitted, and the slides>5 threshold for
// the carousel_10 price tier.
const defaultCarouselSlides = 5

// Options mirrors calculate_job_cost's options dict: output_type,
// quality, duration_sec, slides all feed into the lookup key.
type Options struct {
	OutputType  string
	Quality     string
	NSFW        bool
	DurationSec int
	Slides      int
}

// CalculateJobCost mirrors calculate_job_cost(output_type, quantity, options).
func CalculateJobCost(quantity int, opts Options) int {
	key := pricingKey(opts)
	base, ok := Table[key]
	if !ok {
		base = defaultCostPerItem
	}
	return base * quantity
}

func pricingKey(opts Options) string {
	switch opts.OutputType {
	case "i2i":
		if opts.NSFW || opts.Quality == "nsfw" {
			return "i2i_nsfw"
		}
		if opts.Quality == "high" {
			return "i2i_high"
		}
		return "i2i_standard"
	case "i2v":
		if opts.DurationSec >= 10 {
			return "i2v_10s"
		}
		return "i2v_5s"
	case "pipeline":
		return "pipeline_full"
	case "carousel":
		slides := opts.Slides
		if slides == 0 {
			slides = defaultCarouselSlides
		}
		if slides > defaultCarouselSlides {
			return "carousel_10"
		}
		return "carousel_5"
	case "voice_clone":
		return "voice_clone"
	case "face_swap":
		return "face_swap"
	default:
		return ""
	}
}

// Step is one node of a pipeline cost-estimation tree, grounded on
// cost_calculator.py's estimate_pipeline_cost/format_cost_tree. This is
// informational detail only for output_type=pipeline jobs — the ledger
// always charges the flat pipeline_full integer price; the tree exists
// so operators can see where a pipeline's cost comes from.
type Step struct {
	Name           string
	Model          string
	Quality        string
	DurationSec    int
	OutputCount    int
	UnitPriceCents int
	Children       []Step
}

// Estimate is the result of walking a pipeline's steps.
type Estimate struct {
	TotalCents int
	Steps      []StepCost
}

type StepCost struct {
	Name       string
	Cents      int
	OutputCnt  int
}

// i2vBaseDurationSec mirrors cost_calculator.py's I2V_BASE_DURATION.
const i2vBaseDurationSec = 5

// i2vResolutionPriceCents mirrors cost_calculator.py's I2V_PRICING,
// converted from Decimal dollars to integer cents to avoid
// floating-point drift through repeated multiplication.
var i2vResolutionPriceCents = map[string]map[string]int{
	"wan":    {"480p": 25, "720p": 50, "1080p": 75},
	"veo2":   {"720p": 250},
	"sora-2": {"720p": 40},
}

func i2vUnitPriceCents(model, resolution string, durationSec int) int {
	perRes, ok := i2vResolutionPriceCents[model]
	if !ok {
		return 0
	}
	base, ok := perRes[resolution]
	if !ok {
		return 0
	}
	if durationSec <= 0 {
		durationSec = i2vBaseDurationSec
	}
	return base * durationSec / i2vBaseDurationSec
}

// EstimatePipeline mirrors estimate_pipeline_cost's running-output-count
// propagation across steps: each step's output count scales the next
// step's unit cost (e.g. an upscale step run once per generated frame).
func EstimatePipeline(steps []Step) Estimate {
	est := Estimate{}
	runningOutputCount := 1
	for _, s := range steps {
		unit := s.UnitPriceCents
		if unit == 0 && s.Model != "" {
			unit = i2vUnitPriceCents(s.Model, s.Quality, s.DurationSec)
		}
		outputCount := s.OutputCount
		if outputCount == 0 {
			outputCount = runningOutputCount
		}
		cost := unit * outputCount
		est.TotalCents += cost
		est.Steps = append(est.Steps, StepCost{Name: s.Name, Cents: cost, OutputCnt: outputCount})
		runningOutputCount = outputCount
	}
	return est
}

// FormatTree renders an Estimate as an indented breakdown, mirroring
// format_cost_tree.
func FormatTree(est Estimate) string {
	var b strings.Builder
	for _, s := range est.Steps {
		fmt.Fprintf(&b, "  %-20s $%.2f  (x%d)\n", s.Name, float64(s.Cents)/100, s.OutputCnt)
	}
	fmt.Fprintf(&b, "  %-20s $%.2f\n", "TOTAL", float64(est.TotalCents)/100)
	return b.String()
}
