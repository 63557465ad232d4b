package pricing

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"hotelier/internal/models"

	"github.com/rs/zerolog"
)

// Catalog — срез хранилища, нужный движку цен.
type Catalog interface {
	GetRoomType(ctx context.Context, id int64) (*models.RoomType, error)
	ListActiveRatePlans(ctx context.Context, roomTypeID int64) ([]*models.RatePlan, error)
}

var (
	ErrInvalidDateRange = errors.New("check-out date must be after check-in date")
	ErrRoomTypeNotFound = errors.New("room type not found")
)

// PriceMismatchError возвращается, когда присланная клиентом сумма расходится
// с пересчитанной на сервере сильнее допуска.
type PriceMismatchError struct {
	ExpectedCents   int64
	CalculatedCents int64
	ToleranceCents  int64
}

func (e *PriceMismatchError) Error() string {
	return fmt.Sprintf("submitted total %d differs from calculated total %d beyond tolerance %d",
		e.ExpectedCents, e.CalculatedCents, e.ToleranceCents)
}

// Строки детализации.
const (
	LineBase           = "base"
	LineRatePlanAdjust = "rate_plan_adjustment"
	LineTax            = "tax"
)

type BreakdownLine struct {
	Kind        string `json:"kind"`
	Label       string `json:"label"`
	AmountCents int64  `json:"amount_cents"`
}

// Quote — результат расчета стоимости проживания. Все суммы в минорных
// единицах валюты.
type Quote struct {
	RoomTypeID        int64           `json:"room_type_id"`
	CheckIn           time.Time       `json:"check_in"`
	CheckOut          time.Time       `json:"check_out"`
	Nights            int             `json:"nights"`
	Currency          string          `json:"currency"`
	NightlyRateCents  int64           `json:"nightly_rate_cents"`
	SubtotalCents     int64           `json:"subtotal_cents"`
	TaxCents          int64           `json:"tax_cents"`
	FeesCents         int64           `json:"fees_cents"`
	TotalCents        int64           `json:"total_cents"`
	AppliedRatePlanID *int64          `json:"applied_rate_plan_id,omitempty"`
	Breakdown         []BreakdownLine `json:"breakdown"`
}

// Validation — результат серверной перепроверки суммы перед оплатой.
type Validation struct {
	IsValid         bool   `json:"is_valid"`
	CalculatedCents int64  `json:"calculated_cents"`
	ExpectedCents   int64  `json:"expected_cents"`
	ToleranceCents  int64  `json:"tolerance_cents"`
	Quote           *Quote `json:"quote"`
}

// Engine считает стоимость проживания по базовой цене типа номера и
// подходящему тарифному плану. Ставка налога внедряется извне.
type Engine struct {
	store              Catalog
	taxRateBasisPoints int64
	now                func() time.Time
	logger             *zerolog.Logger
}

func NewEngine(store Catalog, taxRateBasisPoints int64, logger *zerolog.Logger) *Engine {
	if taxRateBasisPoints < 0 {
		taxRateBasisPoints = models.DefaultTaxRateBasisPoints
	}
	return &Engine{
		store:              store,
		taxRateBasisPoints: taxRateBasisPoints,
		now:                time.Now,
		logger:             logger,
	}
}

// WithClock подменяет источник текущего времени. Используется в тестах и для
// детерминированной проверки ограничений по заблаговременности.
func (e *Engine) WithClock(now func() time.Time) *Engine {
	e.now = now
	return e
}

// CalculateStayPrice рассчитывает стоимость проживания: ночей, тариф, налог
// и детализацию.
func (e *Engine) CalculateStayPrice(ctx context.Context, roomTypeID int64, checkIn, checkOut time.Time) (*Quote, error) {
	checkIn = models.DateOnly(checkIn)
	checkOut = models.DateOnly(checkOut)
	if !checkOut.After(checkIn) {
		return nil, ErrInvalidDateRange
	}

	roomType, err := e.store.GetRoomType(ctx, roomTypeID)
	if err != nil {
		return nil, fmt.Errorf("failed to load room type %d: %w", roomTypeID, err)
	}
	if roomType == nil || !roomType.IsActive {
		return nil, ErrRoomTypeNotFound
	}

	nights := models.NightsBetween(checkIn, checkOut)

	plans, err := e.store.ListActiveRatePlans(ctx, roomTypeID)
	if err != nil {
		return nil, fmt.Errorf("failed to load rate plans for room type %d: %w", roomTypeID, err)
	}

	plan := e.SelectRatePlan(plans, checkIn, checkOut, nights)

	nightly := roomType.BasePriceCents
	var appliedPlanID *int64
	if plan != nil {
		nightly = plan.PriceCents
		id := plan.ID
		appliedPlanID = &id
	}

	subtotal := nightly * int64(nights)
	tax := roundHalfUp(subtotal*e.taxRateBasisPoints, 10000)
	var fees int64 // платформа пока не берет сборов
	total := subtotal + tax + fees

	quote := &Quote{
		RoomTypeID:        roomTypeID,
		CheckIn:           checkIn,
		CheckOut:          checkOut,
		Nights:            nights,
		Currency:          roomType.Currency,
		NightlyRateCents:  nightly,
		SubtotalCents:     subtotal,
		TaxCents:          tax,
		FeesCents:         fees,
		TotalCents:        total,
		AppliedRatePlanID: appliedPlanID,
	}

	quote.Breakdown = append(quote.Breakdown, BreakdownLine{
		Kind:        LineBase,
		Label:       fmt.Sprintf("%s × %d nights", roomType.Name, nights),
		AmountCents: roomType.BasePriceCents * int64(nights),
	})
	if plan != nil && plan.PriceCents != roomType.BasePriceCents {
		quote.Breakdown = append(quote.Breakdown, BreakdownLine{
			Kind:        LineRatePlanAdjust,
			Label:       plan.Name,
			AmountCents: (plan.PriceCents - roomType.BasePriceCents) * int64(nights),
		})
	}
	quote.Breakdown = append(quote.Breakdown, BreakdownLine{
		Kind:        LineTax,
		Label:       fmt.Sprintf("Tax (%.2f%%)", float64(e.taxRateBasisPoints)/100),
		AmountCents: tax,
	})

	if e.logger != nil {
		e.logger.Debug().
			Int64("room_type_id", roomTypeID).
			Int("nights", nights).
			Int64("total_cents", total).
			Msg("stay price calculated")
	}

	return quote, nil
}

// SelectRatePlan выбирает первый полностью подходящий план в порядке убывания
// приоритета. Равные приоритеты сохраняют исходный порядок объявления.
func (e *Engine) SelectRatePlan(plans []*models.RatePlan, checkIn, checkOut time.Time, nights int) *models.RatePlan {
	if len(plans) == 0 {
		return nil
	}

	ordered := make([]*models.RatePlan, len(plans))
	copy(ordered, plans)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Priority > ordered[j].Priority
	})

	today := models.DateOnly(e.now())
	advanceDays := int(checkIn.Sub(today).Hours() / 24)

	for _, plan := range ordered {
		if !plan.IsActive {
			continue
		}
		if checkIn.Before(models.DateOnly(plan.ValidFrom)) || checkOut.After(models.DateOnly(plan.ValidTo)) {
			continue
		}
		if nights < plan.MinStayNights {
			continue
		}
		if plan.MaxStayNights != nil && nights > *plan.MaxStayNights {
			continue
		}
		if advanceDays < plan.MinAdvanceBookingDays {
			continue
		}
		if plan.MaxAdvanceBookingDays != nil && advanceDays > *plan.MaxAdvanceBookingDays {
			continue
		}
		if !plan.AllowsWeekday(checkIn.Weekday()) {
			continue
		}
		return plan
	}
	return nil
}

// ValidateBookingPrice пересчитывает стоимость на сервере и сравнивает с
// суммой клиента. Допуск — 1 минорная единица за ночь (накопление округления).
// Обязательно вызывается до захвата платежа.
func (e *Engine) ValidateBookingPrice(ctx context.Context, roomTypeID int64, checkIn, checkOut time.Time, expectedTotalCents int64) (*Validation, error) {
	quote, err := e.CalculateStayPrice(ctx, roomTypeID, checkIn, checkOut)
	if err != nil {
		return nil, err
	}

	tolerance := int64(quote.Nights)
	diff := expectedTotalCents - quote.TotalCents
	if diff < 0 {
		diff = -diff
	}

	return &Validation{
		IsValid:         diff <= tolerance,
		CalculatedCents: quote.TotalCents,
		ExpectedCents:   expectedTotalCents,
		ToleranceCents:  tolerance,
		Quote:           quote,
	}, nil
}

// FormatBreakdown renders human-readable breakdown lines. The amounts of the
// rendered lines always sum to the quote total.
func FormatBreakdown(quote *Quote) []string {
	lines := make([]string, 0, len(quote.Breakdown)+1)
	for _, line := range quote.Breakdown {
		lines = append(lines, fmt.Sprintf("%s: %s", line.Label, FormatAmount(line.AmountCents, quote.Currency)))
	}
	lines = append(lines, fmt.Sprintf("Total: %s", FormatAmount(quote.TotalCents, quote.Currency)))
	return lines
}

// FormatAmount renders minor units as a decimal amount with currency code.
func FormatAmount(cents int64, currency string) string {
	sign := ""
	if cents < 0 {
		sign = "-"
		cents = -cents
	}
	return fmt.Sprintf("%s%d.%02d %s", sign, cents/100, cents%100, currency)
}

// roundHalfUp делит num на den с округлением к ближайшему целому.
func roundHalfUp(num, den int64) int64 {
	return (num + den/2) / den
}
