// Package status governs the review lifecycle of an application.
//
// pending is the creation state and is never re-entered. The review states
// (reviewed, shortlisted, rejected, hired) may move freely between each other
// so employers can correct a decision.
package status

import (
	"strings"

	"github.com/moverq1337/hireboard/internal/apperrors"
	"github.com/moverq1337/hireboard/internal/models"
)

var reviewStates = map[models.Status]bool{
	models.StatusReviewed:    true,
	models.StatusShortlisted: true,
	models.StatusRejected:    true,
	models.StatusHired:       true,
}

// Initial is the only status an application can be created with.
func Initial() models.Status {
	return models.StatusPending
}

// Parse normalizes raw and checks it against the closed status set.
func Parse(raw string) (models.Status, error) {
	s := models.Status(strings.ToLower(strings.TrimSpace(raw)))
	if s == models.StatusPending || reviewStates[s] {
		return s, nil
	}
	return "", apperrors.Validation("status", "must be one of pending, reviewed, shortlisted, rejected, hired")
}

// Transition validates moving from the current status to the requested one
// and returns the normalized target.
func Transition(from models.Status, to string) (models.Status, error) {
	target, err := Parse(to)
	if err != nil {
		return "", err
	}
	if target == models.StatusPending {
		if from == models.StatusPending {
			return target, nil
		}
		return "", apperrors.Validation("status", "an application cannot return to pending")
	}
	if from != models.StatusPending && !reviewStates[from] {
		return "", apperrors.Validation("status", "current status "+string(from)+" is unknown")
	}
	return target, nil
}
