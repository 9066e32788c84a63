package application

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jae1jeong/meeting-resv-sub001/internal/calendar"
	"github.com/jae1jeong/meeting-resv-sub001/internal/recurrence"
	"github.com/jae1jeong/meeting-resv-sub001/internal/scheduler"
)

var weekdayNames = map[string]time.Weekday{
	"sun": time.Sunday, "sunday": time.Sunday,
	"mon": time.Monday, "monday": time.Monday,
	"tue": time.Tuesday, "tuesday": time.Tuesday,
	"wed": time.Wednesday, "wednesday": time.Wednesday,
	"thu": time.Thursday, "thursday": time.Thursday,
	"fri": time.Friday, "friday": time.Friday,
	"sat": time.Saturday, "saturday": time.Saturday,
}

// parseWeekday accepts English day names, their three letter forms, or
// 0 (Sunday) through 6.
func parseWeekday(value string) (time.Weekday, error) {
	v := strings.ToLower(strings.TrimSpace(value))
	if day, ok := weekdayNames[v]; ok {
		return day, nil
	}
	if n, err := strconv.Atoi(v); err == nil && n >= 0 && n <= 6 {
		return time.Weekday(n), nil
	}
	return 0, fmt.Errorf("unknown weekday %q", value)
}

func parseDateField(v *ValidationError, field, value string) calendar.Anchor {
	if strings.TrimSpace(value) == "" {
		v.add(field, "is required")
		return 0
	}
	day, err := calendar.ParseDate(value)
	if err != nil {
		v.add(field, "must be a YYYY-MM-DD date")
		return 0
	}
	return day
}

func parseOptionalDate(v *ValidationError, field, value string) *calendar.Anchor {
	if strings.TrimSpace(value) == "" {
		return nil
	}
	day, err := calendar.ParseDate(value)
	if err != nil {
		v.add(field, "must be a YYYY-MM-DD date")
		return nil
	}
	return &day
}

// parseIntervalFields attributes endpoint errors to the field that caused them.
func parseIntervalFields(v *ValidationError, prefix, start, end string) calendar.Interval {
	s, sErr := calendar.ParseClock(start)
	if sErr != nil {
		v.add(prefix+"start", intervalMessage(sErr))
	}
	e, eErr := calendar.ParseClock(end)
	if eErr != nil {
		v.add(prefix+"end", intervalMessage(eErr))
	}
	if sErr != nil || eErr != nil {
		return calendar.Interval{}
	}
	iv, err := calendar.NewInterval(s, e)
	if err != nil {
		v.add(prefix+"end", intervalMessage(err))
		return calendar.Interval{}
	}
	return iv
}

type bookingFields struct {
	roomID   string
	date     calendar.Anchor
	interval calendar.Interval
}

func parseBookInput(input BookInput) (bookingFields, *ValidationError) {
	v := &ValidationError{}
	out := bookingFields{roomID: strings.TrimSpace(input.RoomID)}
	if out.roomID == "" {
		v.add("room_id", "is required")
	}
	out.date = parseDateField(v, "date", input.Date)
	out.interval = parseIntervalFields(v, "", input.Start, input.End)
	return out, v
}

func parseExceptionInput(v *ValidationError, prefix string, input ExceptionInput) recurrence.Exception {
	day := parseDateField(v, prefix+"date", input.Date)
	action, err := recurrence.ParseAction(strings.ToLower(strings.TrimSpace(input.Action)))
	if err != nil {
		v.add(prefix+"action", "must be skip or modify")
		return recurrence.Exception{}
	}
	if action == recurrence.Skip {
		return recurrence.SkipOn(day)
	}
	return recurrence.ModifyOn(day, parseIntervalFields(v, prefix, input.Start, input.End))
}

type seriesFields struct {
	roomID     string
	spec       recurrence.PatternSpec
	until      *calendar.Anchor
	exceptions []recurrence.Exception
	policy     *scheduler.CommitPolicy
}

func parseSeriesInput(input SeriesInput) (seriesFields, *ValidationError) {
	v := &ValidationError{}
	out := seriesFields{roomID: strings.TrimSpace(input.RoomID)}
	if out.roomID == "" {
		v.add("room_id", "is required")
	}

	out.spec.StartsOn = parseDateField(v, "starts_on", input.StartsOn)
	out.spec.EndsOn = parseOptionalDate(v, "ends_on", input.EndsOn)
	if input.Limit != nil {
		limit := *input.Limit
		out.spec.Limit = &limit
	}
	out.spec.IntervalWeeks = input.IntervalWeeks
	if out.spec.IntervalWeeks == 0 {
		out.spec.IntervalWeeks = 1
	}
	for _, raw := range input.Weekdays {
		day, err := parseWeekday(raw)
		if err != nil {
			v.add("weekdays", err.Error())
			continue
		}
		out.spec.Weekdays = append(out.spec.Weekdays, day)
	}
	out.spec.Interval = parseIntervalFields(v, "", input.Start, input.End)
	out.until = parseOptionalDate(v, "until", input.Until)

	for i, raw := range input.Exceptions {
		ex := parseExceptionInput(v, fmt.Sprintf("exceptions[%d].", i), raw)
		out.exceptions = append(out.exceptions, ex)
	}

	if strings.TrimSpace(input.Policy) != "" {
		policy, err := scheduler.ParseCommitPolicy(input.Policy)
		if err != nil {
			v.add("policy", "must be all_or_nothing or partial")
		} else {
			out.policy = &policy
		}
	}
	return out, v
}
