package services

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"skillswap-backend/internal/models"
)

const (
	slotDateLayout = "2006-01-02"
	slotTimeLayout = "15:04"
)

// SlotWindow combines the slot date with its HH:MM start and end times in
// loc. Slot times carry no zone of their own, so loc decides which wall
// clock they refer to.
func SlotWindow(slot models.TimeSlot, loc *time.Location) (start, end time.Time, err error) {
	date, err := time.ParseInLocation(slotDateLayout, slot.Date, loc)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid slot date %q: %w", slot.Date, err)
	}
	startClock, err := time.Parse(slotTimeLayout, slot.StartTime)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid start time %q: %w", slot.StartTime, err)
	}
	endClock, err := time.Parse(slotTimeLayout, slot.EndTime)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("invalid end time %q: %w", slot.EndTime, err)
	}

	start = time.Date(date.Year(), date.Month(), date.Day(), startClock.Hour(), startClock.Minute(), 0, 0, loc)
	end = time.Date(date.Year(), date.Month(), date.Day(), endClock.Hour(), endClock.Minute(), 0, 0, loc)
	return start, end, nil
}

// checkJoinWindow allows start <= now <= end.
func checkJoinWindow(slot models.TimeSlot, loc *time.Location, now time.Time) error {
	start, end, err := SlotWindow(slot, loc)
	if err != nil {
		return err
	}
	if now.Before(start) {
		return &OutsideScheduleWindowError{Message: fmt.Sprintf("Session has not started yet. You can join from %s", start.Format("2006-01-02 15:04"))}
	}
	if now.After(end) {
		return &OutsideScheduleWindowError{Message: "Session time has passed"}
	}
	return nil
}

// validateSlot checks formats and that the slot ends after it starts. It
// returns the duration in minutes.
func validateSlot(slot models.SlotInput, loc *time.Location) (int, map[string]string) {
	fields := map[string]string{}
	start, end, err := SlotWindow(models.TimeSlot{Date: slot.Date, StartTime: slot.StartTime, EndTime: slot.EndTime}, loc)
	if err != nil {
		fields["slots"] = "Each slot needs a date (YYYY-MM-DD) and start/end times (HH:MM)"
		return 0, fields
	}
	if !end.After(start) {
		fields["slots"] = "Slot end time must be after its start time"
		return 0, fields
	}
	return int(end.Sub(start) / time.Minute), nil
}

// RoomID names the media room for a session. It is only ever assigned once
// per session; later calls produce a different value that the store
// discards.
func RoomID(sessionID uuid.UUID, at time.Time) string {
	return fmt.Sprintf("skillswap-%s-%d", sessionID, at.UnixMilli())
}
