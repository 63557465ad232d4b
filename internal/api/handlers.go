package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"hotelier/internal/availability"
	"hotelier/internal/database"
	"hotelier/internal/lifecycle"
	"hotelier/internal/models"
	"hotelier/internal/pricing"
	"hotelier/internal/service"
)

const dateLayout = "2006-01-02"

type createBookingRequest struct {
	HotelID           int64  `json:"hotel_id"`
	RoomTypeID        int64  `json:"room_type_id"`
	GuestID           *int64 `json:"guest_id,omitempty"`
	CheckIn           string `json:"check_in"`
	CheckOut          string `json:"check_out"`
	NumAdults         int    `json:"num_adults"`
	NumChildren       int    `json:"num_children"`
	TotalPriceCents   int64  `json:"total_price_cents"`
	TaxCents          int64  `json:"tax_cents"`
	AppliedRatePlanID *int64 `json:"applied_rate_plan_id,omitempty"`
	HoldMinutes       int    `json:"hold_minutes,omitempty"`
}

func (req *createBookingRequest) toServiceRequest() (service.CreateBookingRequest, error) {
	checkIn, err := time.Parse(dateLayout, strings.TrimSpace(req.CheckIn))
	if err != nil {
		return service.CreateBookingRequest{}, errors.New("invalid check_in; expected YYYY-MM-DD")
	}
	checkOut, err := time.Parse(dateLayout, strings.TrimSpace(req.CheckOut))
	if err != nil {
		return service.CreateBookingRequest{}, errors.New("invalid check_out; expected YYYY-MM-DD")
	}
	return service.CreateBookingRequest{
		HotelID:           req.HotelID,
		RoomTypeID:        req.RoomTypeID,
		GuestID:           req.GuestID,
		CheckIn:           checkIn,
		CheckOut:          checkOut,
		NumAdults:         req.NumAdults,
		NumChildren:       req.NumChildren,
		TotalPriceCents:   req.TotalPriceCents,
		TaxCents:          req.TaxCents,
		AppliedRatePlanID: req.AppliedRatePlanID,
		HoldMinutes:       req.HoldMinutes,
	}, nil
}

func decodeJSON(r *http.Request, dst any) error {
	decoder := json.NewDecoder(r.Body)
	decoder.DisallowUnknownFields()
	return decoder.Decode(dst)
}

func pathID(r *http.Request) (int64, error) {
	return strconv.ParseInt(r.PathValue("id"), 10, 64)
}

// writeServiceError переводит доменные ошибки в HTTP-статусы.
func writeServiceError(w http.ResponseWriter, err error) {
	var invalid *lifecycle.InvalidTransitionError
	if errors.As(err, &invalid) {
		writeJSON(w, http.StatusConflict, map[string]any{
			"error":        invalid.Error(),
			"state":        invalid.State,
			"event":        invalid.Event,
			"valid_events": invalid.ValidEvents,
		})
		return
	}

	var mismatch *pricing.PriceMismatchError
	if errors.As(err, &mismatch) {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error":            mismatch.Error(),
			"expected_cents":   mismatch.ExpectedCents,
			"calculated_cents": mismatch.CalculatedCents,
		})
		return
	}

	switch {
	case errors.Is(err, database.ErrNotFound),
		errors.Is(err, availability.ErrNoRoomsFound),
		errors.Is(err, pricing.ErrRoomTypeNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, database.ErrNoAvailability):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, database.ErrVersionConflict),
		errors.Is(err, service.ErrHoldNotPending),
		errors.Is(err, service.ErrNotAHold):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, service.ErrHoldExpired):
		writeError(w, http.StatusGone, err.Error())
	case errors.Is(err, availability.ErrInvalidDateRange),
		errors.Is(err, pricing.ErrInvalidDateRange),
		errors.Is(err, service.ErrInvalidGuests),
		errors.Is(err, service.ErrOccupancyExceeded),
		errors.Is(err, service.ErrInvalidHoldWindow),
		errors.Is(err, service.ErrInvalidPrice),
		errors.Is(err, service.ErrReasonRequired),
		errors.Is(err, service.ErrPaymentReferenceRequired):
		writeError(w, http.StatusBadRequest, err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func (s *HTTPServer) handleCreateBooking(w http.ResponseWriter, r *http.Request) {
	var body createBookingRequest
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	req, err := body.toServiceRequest()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.checkSubmittedPrice(r, &req); err != nil {
		writeServiceError(w, err)
		return
	}

	booking, err := s.bookings.CreateBooking(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, booking)
}

// checkSubmittedPrice перепроверяет присланную клиентом сумму на сервере и
// подставляет рассчитанные налог и тарифный план.
func (s *HTTPServer) checkSubmittedPrice(r *http.Request, req *service.CreateBookingRequest) error {
	validation, err := s.pricer.ValidateBookingPrice(r.Context(), req.RoomTypeID, req.CheckIn, req.CheckOut, req.TotalPriceCents)
	if err != nil {
		return err
	}
	if !validation.IsValid {
		return &pricing.PriceMismatchError{
			ExpectedCents:   validation.ExpectedCents,
			CalculatedCents: validation.CalculatedCents,
			ToleranceCents:  validation.ToleranceCents,
		}
	}
	req.TaxCents = validation.Quote.TaxCents
	if req.AppliedRatePlanID == nil {
		req.AppliedRatePlanID = validation.Quote.AppliedRatePlanID
	}
	return nil
}

func (s *HTTPServer) handleGetBooking(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid booking id")
		return
	}

	booking, err := s.bookings.GetBooking(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, booking)
}

func (s *HTTPServer) handleGetBookingByCode(w http.ResponseWriter, r *http.Request) {
	code := strings.TrimSpace(r.PathValue("code"))
	if code == "" {
		writeError(w, http.StatusBadRequest, "confirmation code is required")
		return
	}

	hotelID, err := strconv.ParseInt(r.URL.Query().Get("hotel_id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "hotel_id is required")
		return
	}

	booking, err := s.bookings.GetBookingByConfirmationCode(r.Context(), hotelID, code)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, booking)
}

func (s *HTTPServer) handleBookingHistory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid booking id")
		return
	}

	entries, err := s.bookings.GetStateLog(r.Context(), id)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"history": entries})
}

type bookingEventRequest struct {
	Event            string `json:"event"`
	Reason           string `json:"reason,omitempty"`
	PaymentReference string `json:"payment_reference,omitempty"`
}

func (s *HTTPServer) handleBookingEvent(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid booking id")
		return
	}

	var body bookingEventRequest
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if strings.TrimSpace(body.Event) == "" {
		writeError(w, http.StatusBadRequest, "event is required")
		return
	}

	booking, err := s.bookings.UpdateBookingStatus(r.Context(), id, strings.ToUpper(strings.TrimSpace(body.Event)), service.TransitionOptions{
		Reason:           body.Reason,
		PaymentReference: body.PaymentReference,
	})
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, booking)
}

func (s *HTTPServer) handleCreateHold(w http.ResponseWriter, r *http.Request) {
	var body createBookingRequest
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	req, err := body.toServiceRequest()
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if err := s.checkSubmittedPrice(r, &req); err != nil {
		writeServiceError(w, err)
		return
	}

	booking, err := s.bookings.CreateSoftHold(r.Context(), req)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, booking)
}

type extendHoldRequest struct {
	Minutes int `json:"minutes"`
}

func (s *HTTPServer) handleExtendHold(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid booking id")
		return
	}

	var body extendHoldRequest
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	booking, err := s.bookings.ExtendSoftHold(r.Context(), id, body.Minutes)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, booking)
}

func (s *HTTPServer) handleReleaseHold(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid booking id")
		return
	}

	if err := s.bookings.ReleaseSoftHold(r.Context(), id); err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "released"})
}

func parseAvailabilityQuery(r *http.Request) (roomTypeID int64, checkIn, checkOut time.Time, err error) {
	roomTypeID, err = strconv.ParseInt(r.URL.Query().Get("room_type_id"), 10, 64)
	if err != nil {
		return 0, time.Time{}, time.Time{}, errors.New("room_type_id is required")
	}
	checkIn, err = time.Parse(dateLayout, r.URL.Query().Get("check_in"))
	if err != nil {
		return 0, time.Time{}, time.Time{}, errors.New("invalid check_in; expected YYYY-MM-DD")
	}
	checkOut, err = time.Parse(dateLayout, r.URL.Query().Get("check_out"))
	if err != nil {
		return 0, time.Time{}, time.Time{}, errors.New("invalid check_out; expected YYYY-MM-DD")
	}
	return roomTypeID, checkIn, checkOut, nil
}

func (s *HTTPServer) handleAvailability(w http.ResponseWriter, r *http.Request) {
	roomTypeID, checkIn, checkOut, err := parseAvailabilityQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	if s.cache != nil {
		if snap, err := s.cache.Get(r.Context(), roomTypeID, checkIn, checkOut); err == nil && snap != nil {
			writeJSON(w, http.StatusOK, availability.Result{
				IsAvailable:    snap.Available > 0,
				AvailableCount: snap.Available,
				TotalRooms:     snap.TotalRooms,
				BookedRooms:    snap.Booked,
			})
			return
		}
	}

	result, err := s.calc.CheckAvailability(r.Context(), roomTypeID, checkIn, checkOut)
	if err != nil {
		writeServiceError(w, err)
		return
	}

	if s.cache != nil {
		_ = s.cache.Set(r.Context(), roomTypeID, checkIn, checkOut, &models.Availability{
			Date:       models.DateOnly(checkIn),
			RoomTypeID: roomTypeID,
			Booked:     result.BookedRooms,
			Available:  result.AvailableCount,
			TotalRooms: result.TotalRooms,
		})
	}

	writeJSON(w, http.StatusOK, result)
}

func (s *HTTPServer) handleAvailabilityCalendar(w http.ResponseWriter, r *http.Request) {
	roomTypeID, from, to, err := parseAvailabilityQuery(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	days, err := s.calc.Calendar(r.Context(), roomTypeID, from, to)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"days": days})
}

type quoteRequest struct {
	RoomTypeID int64  `json:"room_type_id"`
	CheckIn    string `json:"check_in"`
	CheckOut   string `json:"check_out"`
}

func (s *HTTPServer) handlePricingQuote(w http.ResponseWriter, r *http.Request) {
	var body quoteRequest
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	checkIn, err := time.Parse(dateLayout, body.CheckIn)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid check_in; expected YYYY-MM-DD")
		return
	}
	checkOut, err := time.Parse(dateLayout, body.CheckOut)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid check_out; expected YYYY-MM-DD")
		return
	}

	quote, err := s.pricer.CalculateStayPrice(r.Context(), body.RoomTypeID, checkIn, checkOut)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, quote)
}

type validatePriceRequest struct {
	RoomTypeID         int64  `json:"room_type_id"`
	CheckIn            string `json:"check_in"`
	CheckOut           string `json:"check_out"`
	ExpectedTotalCents int64  `json:"expected_total_cents"`
}

func (s *HTTPServer) handlePricingValidate(w http.ResponseWriter, r *http.Request) {
	var body validatePriceRequest
	if err := decodeJSON(r, &body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}

	checkIn, err := time.Parse(dateLayout, body.CheckIn)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid check_in; expected YYYY-MM-DD")
		return
	}
	checkOut, err := time.Parse(dateLayout, body.CheckOut)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid check_out; expected YYYY-MM-DD")
		return
	}

	validation, err := s.pricer.ValidateBookingPrice(r.Context(), body.RoomTypeID, checkIn, checkOut, body.ExpectedTotalCents)
	if err != nil {
		writeServiceError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, validation)
}
