package availability

import (
	"sort"

	"github.com/md-rashed-zaman/slotbook/services/scheduling-service/internal/model"
)

// FreeSlots expands each active template into candidate start times in
// [OpenTime, CloseTime) stepping by the template's slot duration, drops the
// booked start times and returns the union sorted ascending without repeats.
//
// A booking blocks only its own nominal start time; a longer service that
// runs into the next candidate does not remove that candidate.
func FreeSlots(templates []model.AvailabilityTemplate, booked []model.ClockTime) []model.ClockTime {
	taken := make(map[model.ClockTime]struct{}, len(booked))
	for _, b := range booked {
		taken[b] = struct{}{}
	}

	seen := make(map[model.ClockTime]struct{})
	var out []model.ClockTime
	for _, tpl := range templates {
		for _, start := range candidates(tpl) {
			if _, ok := taken[start]; ok {
				continue
			}
			if _, ok := seen[start]; ok {
				continue
			}
			seen[start] = struct{}{}
			out = append(out, start)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}

// Offered reports whether any active template generates start as a candidate.
func Offered(templates []model.AvailabilityTemplate, start model.ClockTime) bool {
	for _, tpl := range templates {
		if !usable(tpl) || start < tpl.OpenTime || start >= tpl.CloseTime {
			continue
		}
		if int(start-tpl.OpenTime)%tpl.SlotDurationMinutes == 0 {
			return true
		}
	}
	return false
}

// BookedStarts collects the start times of appointments that still hold their slot.
func BookedStarts(appts []model.Appointment) []model.ClockTime {
	out := make([]model.ClockTime, 0, len(appts))
	for _, a := range appts {
		if a.Status.IsActive() {
			out = append(out, a.StartTime)
		}
	}
	return out
}

func candidates(tpl model.AvailabilityTemplate) []model.ClockTime {
	if !usable(tpl) {
		return nil
	}
	var out []model.ClockTime
	for t := tpl.OpenTime; t < tpl.CloseTime; t = t.Add(tpl.SlotDurationMinutes) {
		out = append(out, t)
	}
	return out
}

func usable(tpl model.AvailabilityTemplate) bool {
	return tpl.Active && tpl.SlotDurationMinutes > 0 && tpl.OpenTime < tpl.CloseTime
}

// Contains reports whether t is in the sorted slot list.
func Contains(slots []model.ClockTime, t model.ClockTime) bool {
	i := sort.Search(len(slots), func(i int) bool { return slots[i] >= t })
	return i < len(slots) && slots[i] == t
}
