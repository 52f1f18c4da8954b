// Package checklist computes the required-media completeness report for
// a car submission. Both the HTTP validate endpoint and the upload
// client derive their answers from Evaluate, so the two can never
// disagree on thresholds or the completion denominator.
package checklist

import (
	"fmt"
	"math"
	"strings"

	"github.com/motorscan/carhealth/internal/types/media"
)

// slots is the completion denominator: six photo angles plus one video.
// Fixed regardless of how the gates below evolve.
const slots = 6 + 1

var photoLabels = map[media.PhotoType]string{
	media.PhotoFront:     "Front View",
	media.PhotoRear:      "Rear View",
	media.PhotoLeft:      "Left Side",
	media.PhotoRight:     "Right Side",
	media.PhotoInterior:  "Interior",
	media.PhotoEngineBay: "Engine Bay",
}

// Result is a stateless derivation over the currently known media set.
type Result struct {
	IsValid              bool
	MissingPhotos        []media.PhotoType
	HasVideo             bool
	Warnings             []string
	CompletionPercentage int
	CanSubmit            bool
}

// Evaluate reports which required shots are still missing among the
// uploaded assets. Duplicate angles collapse: only presence counts.
//
// Two gates come out of this on purpose: CanSubmit is the loose
// save-draft gate (any one photo), IsValid is the hard
// submit-for-analysis gate (all six angles and a video).
func Evaluate(assets []media.Media) Result {
	present := make(map[media.PhotoType]bool)
	hasVideo := false

	for _, m := range assets {
		if !m.IsUploaded {
			continue
		}
		switch m.Type {
		case media.TypePhoto:
			if m.PhotoType != "" {
				present[m.PhotoType] = true
			}
		case media.TypeVideo:
			hasVideo = true
		}
	}

	missing := make([]media.PhotoType, 0, len(media.RequiredPhotoTypes))
	for _, pt := range media.RequiredPhotoTypes {
		if !present[pt] {
			missing = append(missing, pt)
		}
	}

	completed := len(present)
	if hasVideo {
		completed++
	}
	percentage := int(math.Round(float64(completed) / slots * 100))

	var warnings []string
	if len(missing) > 0 {
		labels := make([]string, len(missing))
		for i, pt := range missing {
			labels[i] = photoLabels[pt]
		}
		warnings = append(warnings, fmt.Sprintf("Missing required photos: %s", strings.Join(labels, ", ")))
	}
	if !hasVideo {
		warnings = append(warnings, "Engine sound video is required for a complete health report")
	}
	if len(present) == 0 {
		warnings = append(warnings, "At least one photo is required to proceed")
	}

	return Result{
		IsValid:              len(missing) == 0 && hasVideo,
		MissingPhotos:        missing,
		HasVideo:             hasVideo,
		Warnings:             warnings,
		CompletionPercentage: percentage,
		CanSubmit:            len(present) >= 1,
	}
}

// ToValidationResult converts a Result into the wire DTO.
func (r Result) ToValidationResult() media.ValidationResult {
	return media.ValidationResult{
		IsValid:              r.IsValid,
		MissingPhotos:        r.MissingPhotos,
		HasVideo:             r.HasVideo,
		Warnings:             r.Warnings,
		CompletionPercentage: r.CompletionPercentage,
		CanSubmit:            r.CanSubmit,
	}
}

// Label returns the display name for a required photo angle.
func Label(pt media.PhotoType) string {
	return photoLabels[pt]
}
