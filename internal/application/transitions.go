package application

import (
	"fmt"

	"github.com/beesaferoot/rentals/internal/apperr"
	"github.com/beesaferoot/rentals/internal/models"
)

// transitions lists the states reachable from each non-terminal state.
var transitions = map[models.ApplicationStatus][]models.ApplicationStatus{
	models.StatusViewing:  {models.StatusPending, models.StatusCancelled},
	models.StatusPending:  {models.StatusApproved, models.StatusRejected, models.StatusCancelled},
	models.StatusApproved: {models.StatusTerminated, models.StatusCancelled},
}

// openStatuses are the states an application can still leave.
var openStatuses = []models.ApplicationStatus{
	models.StatusViewing,
	models.StatusPending,
	models.StatusApproved,
}

// CanTransition reports whether an application may move from one state to
// another.
func CanTransition(from, to models.ApplicationStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func checkTransition(app *models.Application, to models.ApplicationStatus) error {
	if CanTransition(app.Status, to) {
		return nil
	}
	return apperr.WithMetadata(apperr.CodeInvalidTransition,
		fmt.Sprintf("application cannot move from %s to %s", app.Status, to),
		map[string]string{"from": string(app.Status), "to": string(to)})
}
