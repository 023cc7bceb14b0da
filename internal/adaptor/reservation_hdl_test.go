package adaptor

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"villa-booking/internal/data/entity"
	"villa-booking/internal/dto/request"
	"villa-booking/internal/dto/response"
	"villa-booking/internal/usecase"
	"villa-booking/pkg/utils"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mockReservationService struct {
	mock.Mock
}

func (m *mockReservationService) Create(ctx context.Context, guestID string, req *request.CreateReservationRequest) (*response.ReservationResponse, error) {
	args := m.Called(ctx, guestID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*response.ReservationResponse), args.Error(1)
}

func (m *mockReservationService) Modify(ctx context.Context, guestID, reservationID string, req *request.ModifyReservationRequest) (*response.ReservationResponse, error) {
	args := m.Called(ctx, guestID, reservationID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*response.ReservationResponse), args.Error(1)
}

func (m *mockReservationService) Cancel(ctx context.Context, guestID, reservationID, reason string) error {
	args := m.Called(ctx, guestID, reservationID, reason)
	return args.Error(0)
}

func (m *mockReservationService) GetByID(ctx context.Context, guestID, reservationID string) (*entity.Reservation, error) {
	args := m.Called(ctx, guestID, reservationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entity.Reservation), args.Error(1)
}

func (m *mockReservationService) ListByGuest(ctx context.Context, guestID string, req *request.PaginatedRequest) (*response.PaginatedResponse[response.ReservationResponse], error) {
	args := m.Called(ctx, guestID, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*response.PaginatedResponse[response.ReservationResponse]), args.Error(1)
}

func (m *mockReservationService) ConfirmFromPayment(ctx context.Context, reservationID, attemptID uuid.UUID) error {
	args := m.Called(ctx, reservationID, attemptID)
	return args.Error(0)
}

func withURLParam(r *http.Request, key, value string) *http.Request {
	rctx := chi.NewRouteContext()
	rctx.URLParams.Add(key, value)
	return r.WithContext(context.WithValue(r.Context(), chi.RouteCtxKey, rctx))
}

func postCreate(t *testing.T, handler *ReservationHandler, guestID string, body any) *httptest.ResponseRecorder {
	t.Helper()

	payload, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/reservations", bytes.NewReader(payload))
	if guestID != "" {
		req = req.WithContext(utils.SetGuestContext(req.Context(), guestID))
	}
	rec := httptest.NewRecorder()
	handler.Create(rec, req)
	return rec
}

func TestCreate(t *testing.T) {
	svc := new(mockReservationService)
	handler := NewReservationHandler(svc, zap.NewNop())

	body := request.CreateReservationRequest{
		CheckIn:    "2027-07-15",
		CheckOut:   "2027-07-18",
		GuestCount: 2,
	}
	svc.On("Create", mock.Anything, "guest-1", &body).Return(&response.ReservationResponse{
		ID:     uuid.NewString(),
		Status: entity.ReservationStatusPending,
	}, nil)

	rec := postCreate(t, handler, "guest-1", body)

	assert.Equal(t, http.StatusCreated, rec.Code)
	svc.AssertExpectations(t)
}

func TestCreate_RequiresIdentity(t *testing.T) {
	svc := new(mockReservationService)
	handler := NewReservationHandler(svc, zap.NewNop())

	rec := postCreate(t, handler, "", request.CreateReservationRequest{
		CheckIn:    "2027-07-15",
		CheckOut:   "2027-07-18",
		GuestCount: 2,
	})

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	svc.AssertNotCalled(t, "Create")
}

func TestCreate_ConflictPayload(t *testing.T) {
	svc := new(mockReservationService)
	handler := NewReservationHandler(svc, zap.NewNop())

	conflictErr := &usecase.ConflictError{
		ConflictingDates: []time.Time{
			time.Date(2027, 7, 17, 0, 0, 0, 0, time.UTC),
			time.Date(2027, 7, 18, 0, 0, 0, 0, time.UTC),
		},
		Suggestions: []entity.DateRange{
			{CheckIn: time.Date(2027, 7, 19, 0, 0, 0, 0, time.UTC), CheckOut: time.Date(2027, 7, 22, 0, 0, 0, 0, time.UTC)},
		},
	}
	svc.On("Create", mock.Anything, "guest-1", mock.Anything).Return(nil, conflictErr)

	rec := postCreate(t, handler, "guest-1", request.CreateReservationRequest{
		CheckIn:    "2027-07-15",
		CheckOut:   "2027-07-19",
		GuestCount: 2,
	})

	require.Equal(t, http.StatusConflict, rec.Code)

	var envelope struct {
		Errors response.ConflictResponse `json:"errors"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &envelope))
	assert.Equal(t, []string{"2027-07-17", "2027-07-18"}, envelope.Errors.ConflictingDates)
	require.Len(t, envelope.Errors.Suggestions, 1)
	assert.Equal(t, "2027-07-19", envelope.Errors.Suggestions[0].CheckIn)
}

func TestCreate_RejectsBadDates(t *testing.T) {
	svc := new(mockReservationService)
	handler := NewReservationHandler(svc, zap.NewNop())

	rec := postCreate(t, handler, "guest-1", request.CreateReservationRequest{
		CheckIn:    "July 15th",
		CheckOut:   "2027-07-18",
		GuestCount: 2,
	})

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	svc.AssertNotCalled(t, "Create")
}

func TestCancelHandler(t *testing.T) {
	svc := new(mockReservationService)
	handler := NewReservationHandler(svc, zap.NewNop())

	id := uuid.NewString()
	svc.On("Cancel", mock.Anything, "guest-1", id, "change of plans").Return(nil)

	payload, err := json.Marshal(request.CancelReservationRequest{Reason: "change of plans"})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodDelete, "/api/reservations/"+id, bytes.NewReader(payload))
	req = req.WithContext(utils.SetGuestContext(req.Context(), "guest-1"))
	req = withURLParam(req, "id", id)

	rec := httptest.NewRecorder()
	handler.Cancel(rec, req)

	assert.Equal(t, http.StatusOK, rec.Code)
	svc.AssertExpectations(t)
}

func TestCancelHandler_NotCancellable(t *testing.T) {
	svc := new(mockReservationService)
	handler := NewReservationHandler(svc, zap.NewNop())

	id := uuid.NewString()
	svc.On("Cancel", mock.Anything, "guest-1", id, "").Return(usecase.ErrNotCancellable)

	req := httptest.NewRequest(http.MethodDelete, "/api/reservations/"+id, nil)
	req = req.WithContext(utils.SetGuestContext(req.Context(), "guest-1"))
	req = withURLParam(req, "id", id)

	rec := httptest.NewRecorder()
	handler.Cancel(rec, req)

	assert.Equal(t, http.StatusUnprocessableEntity, rec.Code)
}
