package orchestration

import (
	"time"

	"github.com/Omkar-Kubal/voice-cbt/core/conversations"
)

const defaultWelcomeBack = "Welcome back. How have you been feeling since we last talked?"

// GreetingPolicy decides when a returning user should be re-greeted. The
// boundary between "same visit" and "returning" is a policy choice: the
// calendar-day heuristic re-greets once per day, the rolling-window variant
// re-greets after a fixed quiet period.
type GreetingPolicy struct {
	// Message is the system greeting shown to a returning user.
	Message string
	// SameVisit reports whether a message at messageTime belongs to the
	// current visit relative to now.
	SameVisit func(messageTime, now time.Time) bool
}

// CalendarDayGreeting re-greets when no message carries today's date.
func CalendarDayGreeting() GreetingPolicy {
	return GreetingPolicy{
		Message: defaultWelcomeBack,
		SameVisit: func(messageTime, now time.Time) bool {
			messageYear, messageMonth, messageDay := messageTime.Date()
			year, month, day := now.Date()
			return messageYear == year && messageMonth == month && messageDay == day
		},
	}
}

// RollingWindowGreeting re-greets after the given quiet period.
func RollingWindowGreeting(window time.Duration) GreetingPolicy {
	return GreetingPolicy{
		Message: defaultWelcomeBack,
		SameVisit: func(messageTime, now time.Time) bool {
			return now.Sub(messageTime) < window
		},
	}
}

// apply prepends a welcome-back system message when the log holds no message
// from the current visit. The greeting is display-only state; it is not
// persisted, so the next load starts from the stored log again.
func (p GreetingPolicy) apply(log []conversations.Message, now time.Time) []conversations.Message {
	if p.SameVisit == nil || p.Message == "" {
		return log
	}

	for _, message := range log {
		if p.SameVisit(message.Timestamp, now) {
			return log
		}
	}

	greeting := conversations.NewSystemMessage(p.Message, "")
	greeting.Timestamp = now
	return append([]conversations.Message{greeting}, log...)
}
