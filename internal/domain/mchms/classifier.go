package mchms

import (
	"fmt"
	"time"
)

// postDeliveryGraceDays is how long after the end of the delivery day a test
// still counts towards the delivery encounter.
const postDeliveryGraceDays = 3

// preDeliveryBufferDays separates the antenatal window from the delivery window.
const preDeliveryBufferDays = 2

// Classify reports whether a test taken at test falls in the requested
// pregnancy stage, given the program enrollment date and the (already
// normalized) delivery date. All window edges are exclusive.
//
// enrollment and test are required. delivery may be nil when no delivery has
// been recorded, and must not precede enrollment.
func Classify(stage PregnancyStage, enrollment, test, delivery *time.Time) (bool, error) {
	if enrollment == nil {
		return false, &MissingDateError{Field: "enrollment date", Stage: stage}
	}
	if test == nil {
		return false, &MissingDateError{Field: "test date", Stage: stage}
	}
	if !validStages[stage] {
		return false, fmt.Errorf("%w: %s", ErrUnknownStage, stage)
	}

	var delivStart, delivEnd time.Time
	known := delivery != nil
	if known {
		delivStart = FloorToDay(*delivery)
		delivEnd = AddDays(delivStart, 1)
	}

	switch stage {
	case StageAny:
		if !known {
			return true, nil
		}
		return test.Before(AddDays(delivEnd, postDeliveryGraceDays)), nil

	case StageBeforeEnrollment:
		return test.Before(*enrollment), nil

	case StageAfterEnrollment:
		if !known {
			return test.After(*enrollment), nil
		}
		return test.After(*enrollment) && test.Before(AddDays(delivEnd, postDeliveryGraceDays)), nil
	}

	// Antenatal, delivery and postnatal windows are anchored on delivery.
	if !known {
		return stage == StageAntenatal, nil
	}

	var lower, upper time.Time
	switch stage {
	case StageAntenatal:
		lower = FloorToDay(*enrollment)
		upper = AddDays(delivStart, -preDeliveryBufferDays)
	case StageDelivery:
		lower = AddDays(delivStart, -preDeliveryBufferDays)
		upper = delivEnd
	case StagePostnatal:
		lower = delivEnd
		upper = AddDays(delivEnd, postDeliveryGraceDays)
	}
	return test.After(lower) && test.Before(upper), nil
}
