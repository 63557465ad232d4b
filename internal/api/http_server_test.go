package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"hotelier/internal/availability"
	"hotelier/internal/config"
	"hotelier/internal/database"
	"hotelier/internal/models"
	"hotelier/internal/pricing"
	"hotelier/internal/repository"
	"hotelier/internal/service"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testAPIKey = "test-api-key"

type apiFixture struct {
	srv *httptest.Server
	db  *database.DB
	rt  *models.RoomType
}

func newAPIFixture(t *testing.T, numRooms int) *apiFixture {
	t.Helper()

	logger := zerolog.New(io.Discard)
	db, err := database.NewDB(":memory:", &logger)
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	ctx := context.Background()
	rt := &models.RoomType{
		HotelID:           1,
		Name:              "Standard",
		BasePriceCents:    10000,
		Currency:          "USD",
		MaxAdultOccupancy: 2,
		MaxChildOccupancy: 1,
		IsActive:          true,
	}
	require.NoError(t, db.CreateRoomType(ctx, rt))
	for i := 0; i < numRooms; i++ {
		require.NoError(t, db.CreateRoom(ctx, &models.Room{
			HotelID:    1,
			RoomTypeID: rt.ID,
			RoomNumber: fmt.Sprintf("%d01", i+1),
			Status:     models.RoomAvailable,
			IsActive:   true,
		}))
	}

	calc := availability.NewCalculator(db, &logger)
	pricer := pricing.NewEngine(db, models.DefaultTaxRateBasisPoints, &logger)
	bookings := service.NewBookingService(db, calc, nil, nil, nil, nil, &logger)

	cfg := config.APIConfig{
		Port: 0,
		Auth: config.APIAuthConfig{
			Enabled:      true,
			HeaderAPIKey: "x-api-key",
			APIKeys: []config.APIClientKey{
				{Key: testAPIKey, Name: "tests"},
				{Key: "readonly-key", Name: "readonly", Permissions: []string{"read:availability"}},
			},
		},
		RateLimit: config.APIRateLimitConfig{RPS: 1000, Burst: 1000},
	}

	httpServer := NewHTTPServer(cfg, bookings, calc, pricer, &logger)
	srv := httptest.NewServer(httpServer.Handler())
	t.Cleanup(srv.Close)

	return &apiFixture{srv: srv, db: db, rt: rt}
}

func (f *apiFixture) do(t *testing.T, method, path string, body any, apiKey string) (*http.Response, map[string]any) {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, f.srv.URL+path, reader)
	require.NoError(t, err)
	if apiKey != "" {
		req.Header.Set("x-api-key", apiKey)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { _ = resp.Body.Close() })

	var decoded map[string]any
	_ = json.NewDecoder(resp.Body).Decode(&decoded)
	return resp, decoded
}

func (f *apiFixture) bookingBody(total int64) map[string]any {
	return map[string]any{
		"hotel_id":          1,
		"room_type_id":      f.rt.ID,
		"check_in":          "2027-06-10",
		"check_out":         "2027-06-12",
		"num_adults":        2,
		"total_price_cents": total,
	}
}

func TestAuthRequired(t *testing.T) {
	f := newAPIFixture(t, 1)

	resp, _ := f.do(t, http.MethodGet, "/api/v1/availability?room_type_id=1&check_in=2027-06-10&check_out=2027-06-12", nil, "")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp, _ = f.do(t, http.MethodGet, "/api/v1/availability?room_type_id=1&check_in=2027-06-10&check_out=2027-06-12", nil, "wrong-key")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// healthz открыт без ключа.
	resp, body := f.do(t, http.MethodGet, "/healthz", nil, "")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "ok", body["status"])
}

func TestPermissionDenied(t *testing.T) {
	f := newAPIFixture(t, 1)

	// Ключ с правом только на чтение доступности.
	resp, _ := f.do(t, http.MethodPost, "/api/v1/bookings", f.bookingBody(22400), "readonly-key")
	assert.Equal(t, http.StatusForbidden, resp.StatusCode)

	resp, _ = f.do(t, http.MethodGet, "/api/v1/availability?room_type_id=1&check_in=2027-06-10&check_out=2027-06-12", nil, "readonly-key")
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestCreateBookingEndpoint(t *testing.T) {
	f := newAPIFixture(t, 2)

	resp, body := f.do(t, http.MethodPost, "/api/v1/bookings", f.bookingBody(22400), testAPIKey)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	assert.Equal(t, "pending", body["status"])
	assert.Equal(t, float64(22400), body["total_price_cents"])
	assert.Equal(t, float64(2400), body["tax_cents"])
	assert.Len(t, body["confirmation_code"], models.ConfirmationCodeLength)
	assert.NotEmpty(t, resp.Header.Get("x-request-id"))
}

func TestCreateBookingPriceMismatch(t *testing.T) {
	f := newAPIFixture(t, 1)

	resp, body := f.do(t, http.MethodPost, "/api/v1/bookings", f.bookingBody(100), testAPIKey)
	assert.Equal(t, http.StatusUnprocessableEntity, resp.StatusCode)
	assert.Equal(t, float64(22400), body["calculated_cents"])
}

func TestCreateBookingNoAvailability(t *testing.T) {
	f := newAPIFixture(t, 1)

	resp, _ := f.do(t, http.MethodPost, "/api/v1/bookings", f.bookingBody(22400), testAPIKey)
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	resp, _ = f.do(t, http.MethodPost, "/api/v1/bookings", f.bookingBody(22400), testAPIKey)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestBookingEventEndpoint(t *testing.T) {
	f := newAPIFixture(t, 1)

	resp, created := f.do(t, http.MethodPost, "/api/v1/bookings", f.bookingBody(22400), testAPIKey)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	id := int64(created["id"].(float64))

	// Недопустимое событие из pending отклоняется с перечнем допустимых.
	resp, body := f.do(t, http.MethodPost, fmt.Sprintf("/api/v1/bookings/%d/events", id),
		map[string]any{"event": "CHECK_OUT"}, testAPIKey)
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.NotEmpty(t, body["valid_events"])

	// Оплата без референса — 400.
	resp, _ = f.do(t, http.MethodPost, fmt.Sprintf("/api/v1/bookings/%d/events", id),
		map[string]any{"event": "PAYMENT_RECEIVED"}, testAPIKey)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, body = f.do(t, http.MethodPost, fmt.Sprintf("/api/v1/bookings/%d/events", id),
		map[string]any{"event": "PAYMENT_RECEIVED", "payment_reference": "pay_1"}, testAPIKey)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "confirmed", body["status"])
	assert.Equal(t, "paid", body["payment_status"])

	// История содержит создание и подтверждение.
	resp, body = f.do(t, http.MethodGet, fmt.Sprintf("/api/v1/bookings/%d/history", id), nil, testAPIKey)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	history := body["history"].([]any)
	assert.Len(t, history, 2)
}

func TestGetBookingByCode(t *testing.T) {
	f := newAPIFixture(t, 1)

	resp, created := f.do(t, http.MethodPost, "/api/v1/bookings", f.bookingBody(22400), testAPIKey)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	code := created["confirmation_code"].(string)

	resp, body := f.do(t, http.MethodGet, "/api/v1/bookings/by-code/"+code+"?hotel_id=1", nil, testAPIKey)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, created["id"], body["id"])

	resp, _ = f.do(t, http.MethodGet, "/api/v1/bookings/by-code/MISSING1?hotel_id=1", nil, testAPIKey)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestHoldEndpoints(t *testing.T) {
	f := newAPIFixture(t, 1)

	body := f.bookingBody(22400)
	body["hold_minutes"] = 30
	resp, created := f.do(t, http.MethodPost, "/api/v1/holds", body, testAPIKey)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	assert.NotEmpty(t, created["soft_hold_expires_at"])
	id := int64(created["id"].(float64))

	resp, extended := f.do(t, http.MethodPost, fmt.Sprintf("/api/v1/holds/%d/extend", id),
		map[string]any{"minutes": 20}, testAPIKey)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEqual(t, created["soft_hold_expires_at"], extended["soft_hold_expires_at"])

	resp, _ = f.do(t, http.MethodDelete, fmt.Sprintf("/api/v1/holds/%d", id), nil, testAPIKey)
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// Повторное снятие: брони больше нет.
	resp, _ = f.do(t, http.MethodDelete, fmt.Sprintf("/api/v1/holds/%d", id), nil, testAPIKey)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestAvailabilityEndpoints(t *testing.T) {
	f := newAPIFixture(t, 3)

	path := fmt.Sprintf("/api/v1/availability?room_type_id=%d&check_in=2027-06-10&check_out=2027-06-12", f.rt.ID)
	resp, body := f.do(t, http.MethodGet, path, nil, testAPIKey)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, true, body["is_available"])
	assert.Equal(t, float64(3), body["available_count"])

	_, _ = f.do(t, http.MethodPost, "/api/v1/bookings", f.bookingBody(22400), testAPIKey)

	resp, body = f.do(t, http.MethodGet, path, nil, testAPIKey)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(2), body["available_count"])

	calPath := fmt.Sprintf("/api/v1/availability/calendar?room_type_id=%d&check_in=2027-06-09&check_out=2027-06-13", f.rt.ID)
	resp, body = f.do(t, http.MethodGet, calPath, nil, testAPIKey)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	days := body["days"].([]any)
	require.Len(t, days, 4)

	// До заезда и после выезда номер свободен.
	first := days[0].(map[string]any)
	assert.Equal(t, float64(3), first["available"])

	resp, _ = f.do(t, http.MethodGet, "/api/v1/availability?room_type_id=999&check_in=2027-06-10&check_out=2027-06-12", nil, testAPIKey)
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestPricingEndpoints(t *testing.T) {
	f := newAPIFixture(t, 1)

	resp, body := f.do(t, http.MethodPost, "/api/v1/pricing/quote", map[string]any{
		"room_type_id": f.rt.ID,
		"check_in":     "2027-06-10",
		"check_out":    "2027-06-12",
	}, testAPIKey)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, float64(2), body["nights"])
	assert.Equal(t, float64(20000), body["subtotal_cents"])
	assert.Equal(t, float64(2400), body["tax_cents"])
	assert.Equal(t, float64(22400), body["total_cents"])

	resp, body = f.do(t, http.MethodPost, "/api/v1/pricing/validate", map[string]any{
		"room_type_id":         f.rt.ID,
		"check_in":             "2027-06-10",
		"check_out":            "2027-06-12",
		"expected_total_cents": 22401,
	}, testAPIKey)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	// Расхождение в 1 цент при 2 ночах внутри допуска.
	assert.Equal(t, true, body["is_valid"])
}

func TestAvailabilityCaching(t *testing.T) {
	f := newAPIFixture(t, 3)

	logger := zerolog.New(io.Discard)
	cache := repository.NewMemoryAvailabilityCache(time.Minute)
	calc := availability.NewCalculator(f.db, &logger)
	pricer := pricing.NewEngine(f.db, models.DefaultTaxRateBasisPoints, &logger)
	bookings := service.NewBookingService(f.db, calc, nil, nil, nil, cache, &logger)

	cfg := config.APIConfig{
		Auth:      config.APIAuthConfig{Enabled: false},
		RateLimit: config.APIRateLimitConfig{RPS: 1000, Burst: 1000},
	}
	srv := httptest.NewServer(NewHTTPServer(cfg, bookings, calc, pricer, &logger).WithCache(cache).Handler())
	defer srv.Close()

	path := fmt.Sprintf("/api/v1/availability?room_type_id=%d&check_in=2027-06-10&check_out=2027-06-12", f.rt.ID)
	get := func() map[string]any {
		resp, err := http.Get(srv.URL + path)
		require.NoError(t, err)
		defer resp.Body.Close()
		require.Equal(t, http.StatusOK, resp.StatusCode)
		var body map[string]any
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
		return body
	}

	assert.Equal(t, float64(3), get()["available_count"])

	// Первый запрос положил снимок в кэш.
	checkIn := time.Date(2027, 6, 10, 0, 0, 0, 0, time.UTC)
	checkOut := time.Date(2027, 6, 12, 0, 0, 0, 0, time.UTC)
	snap, err := cache.Get(context.Background(), f.rt.ID, checkIn, checkOut)
	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, int64(3), snap.Available)

	// Подмененный снимок подтверждает, что чтения идут из кэша.
	require.NoError(t, cache.Set(context.Background(), f.rt.ID, checkIn, checkOut, &models.Availability{
		RoomTypeID: f.rt.ID,
		Available:  99,
		TotalRooms: 99,
	}))
	assert.Equal(t, float64(99), get()["available_count"])

	// Создание брони сбрасывает кэш, следующий запрос считает заново.
	data, err := json.Marshal(f.bookingBody(22400))
	require.NoError(t, err)
	resp, err := http.Post(srv.URL+"/api/v1/bookings", "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	assert.Equal(t, float64(2), get()["available_count"])
}

func TestRateLimit(t *testing.T) {
	f := newAPIFixture(t, 1)

	logger := zerolog.New(io.Discard)
	cfg := config.APIConfig{
		Auth:      config.APIAuthConfig{Enabled: false},
		RateLimit: config.APIRateLimitConfig{RPS: 0.001, Burst: 1},
	}
	calc := availability.NewCalculator(f.db, &logger)
	pricer := pricing.NewEngine(f.db, models.DefaultTaxRateBasisPoints, &logger)
	bookings := service.NewBookingService(f.db, calc, nil, nil, nil, nil, &logger)
	limited := httptest.NewServer(NewHTTPServer(cfg, bookings, calc, pricer, &logger).Handler())
	defer limited.Close()

	get := func() int {
		resp, err := http.Get(limited.URL + "/api/v1/availability?room_type_id=1&check_in=2027-06-10&check_out=2027-06-12")
		require.NoError(t, err)
		resp.Body.Close()
		return resp.StatusCode
	}

	assert.Equal(t, http.StatusOK, get())
	assert.Equal(t, http.StatusTooManyRequests, get())
}
