package domain

import (
	apperrors "github.com/spec-kit/repair-desk/pkg/util/errorutil"
)

// Validate checks caller-side preconditions before a create is attempted.
func (d TicketDraft) Validate(maxPhotos int) error {
	problems := map[string]any{}
	if !d.ServiceType.Valid() {
		problems["service_type"] = "unknown service type"
	}
	if !d.Urgency.Valid() {
		problems["urgency"] = "unknown urgency"
	}
	checkRating(problems, d.FeedbackRating)
	checkCharges(problems, &d.ServiceCharge, &d.PartsCharge, &d.Commission)
	checkPhotos(problems, len(d.Photos), maxPhotos)
	return validationResult(problems)
}

// Validate checks caller-side preconditions before an update is attempted.
func (p TicketPatch) Validate(maxPhotos int) error {
	problems := map[string]any{}
	if p.IsEmpty() {
		problems["patch"] = "no fields to update"
	}
	if p.ServiceType != nil && !p.ServiceType.Valid() {
		problems["service_type"] = "unknown service type"
	}
	if p.Urgency != nil && !p.Urgency.Valid() {
		problems["urgency"] = "unknown urgency"
	}
	if p.Status != nil && !p.Status.Valid() {
		problems["status"] = "unknown status"
	}
	checkRating(problems, p.FeedbackRating)
	checkCharges(problems, p.ServiceCharge, p.PartsCharge, p.Commission)
	if p.Photos != nil {
		checkPhotos(problems, len(*p.Photos), maxPhotos)
	}
	return validationResult(problems)
}

func checkRating(problems map[string]any, rating *int) {
	if rating != nil && (*rating < 1 || *rating > 5) {
		problems["feedback_rating"] = "must be between 1 and 5"
	}
}

func checkCharges(problems map[string]any, service, parts, commission *float64) {
	for name, v := range map[string]*float64{
		"service_charge": service,
		"parts_charge":   parts,
		"commission":     commission,
	} {
		if v != nil && *v < 0 {
			problems[name] = "must not be negative"
		}
	}
}

func checkPhotos(problems map[string]any, n, maxPhotos int) {
	if maxPhotos <= 0 {
		maxPhotos = DefaultMaxPhotos
	}
	if n > maxPhotos {
		problems["photos"] = "too many photos"
	}
}

func validationResult(problems map[string]any) error {
	if len(problems) == 0 {
		return nil
	}
	return apperrors.NewValidationError("invalid ticket fields", problems)
}
