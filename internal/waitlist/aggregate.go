package waitlist

import (
	"sort"

	"github.com/iliyamo/waitlist-display/internal/model"
)

// ComputeWaitingSummary counts the waiting parties and the people in them.
func ComputeWaitingSummary(reservations []model.Reservation) model.WaitingSummary {
	var sum model.WaitingSummary
	for _, r := range reservations {
		if r.Status != model.StatusWaiting {
			continue
		}
		sum.Groups++
		sum.People += r.People
	}
	return sum
}

// ComputeTvStatus builds the TV payload: numbers of called parties in call
// order, and every reservation in day and number order.  Seated, missed and
// cancelled reservations stay in the full list.
func ComputeTvStatus(reservations []model.Reservation) model.TvStatus {
	called := make([]model.Reservation, 0)
	all := make([]model.Reservation, len(reservations))
	copy(all, reservations)
	for _, r := range reservations {
		if r.Status == model.StatusCalled {
			called = append(called, r)
		}
	}

	sort.SliceStable(called, func(i, j int) bool {
		a, b := calledAt(called[i]), calledAt(called[j])
		if a.Equal(b) {
			return queueOrder(called[i], called[j])
		}
		return a.Before(b)
	})
	sort.SliceStable(all, func(i, j int) bool { return queueOrder(all[i], all[j]) })

	out := model.TvStatus{
		CurrentCalled: make([]int, 0, len(called)),
		Reservations:  make([]model.TvReservation, 0, len(all)),
	}
	for _, r := range called {
		out.CurrentCalled = append(out.CurrentCalled, r.Number)
	}
	for _, r := range all {
		out.Reservations = append(out.Reservations, model.TvReservation{
			ID:     r.ID,
			Number: r.Number,
			Name:   r.Name,
			People: r.People,
			Status: r.Status,
		})
	}
	return out
}
