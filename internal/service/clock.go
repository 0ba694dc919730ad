package service

import "time"

// Clock supplies the current instant. Time-sensitive services take a Clock
// so tests can pin the calendar.
type Clock func() time.Time

func systemClock() time.Time { return time.Now().UTC() }
