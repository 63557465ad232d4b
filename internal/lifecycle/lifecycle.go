package lifecycle

import (
	"fmt"
	"sort"
	"strings"

	"hotelier/internal/models"
)

// События жизненного цикла бронирования.
const (
	EventPaymentReceived = "PAYMENT_RECEIVED"
	EventPaymentFailed   = "PAYMENT_FAILED"
	EventPaymentTimeout  = "PAYMENT_TIMEOUT"
	EventCancel          = "CANCEL"
	EventCheckIn         = "CHECK_IN"
	EventCheckOut        = "CHECK_OUT"
	EventMarkNoShow      = "MARK_NO_SHOW"
	EventExpire          = "EXPIRE"
)

// transitions — полная таблица переходов. Состояния, отсутствующие в карте,
// терминальные: из них не выходит ни одно событие.
var transitions = map[string]map[string]string{
	models.StatusPending: {
		EventPaymentReceived: models.StatusConfirmed,
		EventPaymentFailed:   models.StatusCancelled,
		EventPaymentTimeout:  models.StatusExpired,
		EventCancel:          models.StatusCancelled,
		EventExpire:          models.StatusExpired,
	},
	models.StatusConfirmed: {
		EventCancel:     models.StatusCancelled,
		EventCheckIn:    models.StatusCheckedIn,
		EventMarkNoShow: models.StatusNoShow,
	},
	models.StatusCheckedIn: {
		EventCheckOut: models.StatusCheckedOut,
	},
}

var terminalStates = map[string]bool{
	models.StatusCheckedOut: true,
	models.StatusCancelled:  true,
	models.StatusNoShow:     true,
	models.StatusExpired:    true,
}

// InvalidTransitionError возвращается при недопустимом событии. Сообщение
// называет текущее состояние и множество допустимых событий.
type InvalidTransitionError struct {
	State       string
	Event       string
	ValidEvents []string
}

func (e *InvalidTransitionError) Error() string {
	if len(e.ValidEvents) == 0 {
		return fmt.Sprintf("event %s is not valid in terminal state %s", e.Event, e.State)
	}
	return fmt.Sprintf("event %s is not valid in state %s; valid events: %s",
		e.Event, e.State, strings.Join(e.ValidEvents, ", "))
}

// Next — чистая функция перехода (состояние, событие) -> новое состояние.
// Ничего не знает о датах, ценах и инвентаре.
func Next(state, event string) (string, error) {
	if next, ok := transitions[state][event]; ok {
		return next, nil
	}
	return "", &InvalidTransitionError{
		State:       state,
		Event:       event,
		ValidEvents: ValidEvents(state),
	}
}

// ValidEvents returns the sorted set of events legal from the given state.
// Empty for terminal or unknown states.
func ValidEvents(state string) []string {
	row, ok := transitions[state]
	if !ok {
		return nil
	}
	events := make([]string, 0, len(row))
	for event := range row {
		events = append(events, event)
	}
	sort.Strings(events)
	return events
}

// IsTerminal reports whether no event may ever leave the state.
func IsTerminal(state string) bool {
	return terminalStates[state]
}

// States returns every known state, for validation and tests.
func States() []string {
	states := make([]string, 0, len(transitions)+len(terminalStates))
	for s := range transitions {
		states = append(states, s)
	}
	for s := range terminalStates {
		states = append(states, s)
	}
	sort.Strings(states)
	return states
}

// Events returns every known event.
func Events() []string {
	return []string{
		EventPaymentReceived,
		EventPaymentFailed,
		EventPaymentTimeout,
		EventCancel,
		EventCheckIn,
		EventCheckOut,
		EventMarkNoShow,
		EventExpire,
	}
}

// RequiresReason reports whether the event must carry a caller-supplied
// reason string.
func RequiresReason(event string) bool {
	return event == EventCancel || event == EventPaymentFailed
}

// RequiresPaymentReference reports whether the event must carry payment
// reference metadata.
func RequiresPaymentReference(event string) bool {
	return event == EventPaymentReceived
}
