package cars

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-playground/validator/v10"

	"github.com/motorscan/carhealth/internal/cache"
	"github.com/motorscan/carhealth/internal/events"
	"github.com/motorscan/carhealth/internal/http/middleware"
	"github.com/motorscan/carhealth/internal/storage"
	"github.com/motorscan/carhealth/internal/types"
	"github.com/motorscan/carhealth/internal/utils/response"
)

type CarHandlers struct {
	storage   storage.Storage
	cache     *cache.ValidationCache
	publisher events.Publisher
}

// NewCarHandlers creates a new car handlers instance
func NewCarHandlers(st storage.Storage, vc *cache.ValidationCache, publisher events.Publisher) *CarHandlers {
	return &CarHandlers{
		storage:   st,
		cache:     vc,
		publisher: publisher,
	}
}

// ownedCar loads the car and checks the requester owns it. On failure
// it writes the error response and returns ok=false.
func (h *CarHandlers) ownedCar(w http.ResponseWriter, r *http.Request) (types.Car, string, bool) {
	userID, ok := middleware.GetUserIDFromContext(r.Context())
	if !ok {
		response.WriteJSON(w, http.StatusUnauthorized, response.GeneralError(errors.New("user not authenticated")))
		return types.Car{}, "", false
	}

	carID := r.PathValue("carId")
	car, err := h.storage.GetCar(carID)
	if errors.Is(err, storage.ErrNotFound) {
		response.WriteJSON(w, http.StatusNotFound, response.GeneralError(errors.New("car not found")))
		return types.Car{}, "", false
	}
	if err != nil {
		response.WriteJSON(w, http.StatusInternalServerError, response.GeneralError(err))
		return types.Car{}, "", false
	}

	if car.UserID != userID {
		response.WriteJSON(w, http.StatusForbidden, response.GeneralError(errors.New("you do not have permission to access this car")))
		return types.Car{}, "", false
	}

	return car, userID, true
}

// Create registers a new draft car
// @Summary Create a car submission in draft status
// @Tags cars
// @Accept json
// @Produce json
// @Param request body types.CarCreateRequest true "Car details"
// @Success 201 {object} map[string]string "Car created successfully"
// @Failure 400 {object} response.Response "Validation failed"
// @Security BearerAuth
// @Router /cars [post]
func (h *CarHandlers) Create() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := middleware.GetUserIDFromContext(r.Context())
		if !ok {
			response.WriteJSON(w, http.StatusUnauthorized, response.GeneralError(errors.New("user not authenticated")))
			return
		}

		var req types.CarCreateRequest
		err := json.NewDecoder(r.Body).Decode(&req)
		if errors.Is(err, io.EOF) {
			response.WriteJSON(w, http.StatusBadRequest, response.GeneralError(errors.New("request body cannot be empty")))
			return
		} else if err != nil {
			response.WriteJSON(w, http.StatusBadRequest, response.GeneralError(err))
			return
		}

		validate := validator.New()
		if err := validate.Struct(req); err != nil {
			if ve, ok := err.(validator.ValidationErrors); ok {
				response.WriteJSON(w, http.StatusBadRequest, response.ValidationError(ve))
				return
			}
			response.WriteJSON(w, http.StatusBadRequest, response.GeneralError(err))
			return
		}

		carID, err := h.storage.CreateCar(userID, req)
		if err != nil {
			response.WriteJSON(w, http.StatusInternalServerError, response.GeneralError(err))
			return
		}

		slog.Info("Car created",
			slog.String("car_id", carID),
			slog.String("user_id", userID))

		// Callers thread this id through every later media call; nothing
		// else identifies the submission.
		response.WriteJSON(w, http.StatusCreated, response.RequestOK("Car created successfully", map[string]string{
			"id": carID,
		}))
	}
}

// Get returns a single car
// @Summary Get a car by ID
// @Tags cars
// @Produce json
// @Param carId path string true "Car ID"
// @Success 200 {object} types.Car "Car retrieved successfully"
// @Failure 404 {object} response.Response "Car not found"
// @Security BearerAuth
// @Router /cars/{carId} [get]
func (h *CarHandlers) Get() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		car, _, ok := h.ownedCar(w, r)
		if !ok {
			return
		}

		response.WriteJSON(w, http.StatusOK, response.RequestOK("Car retrieved successfully", car))
	}
}

// List returns the requester's cars
// @Summary List the authenticated user's cars
// @Tags cars
// @Produce json
// @Success 200 {array} types.Car "Cars retrieved successfully"
// @Security BearerAuth
// @Router /cars [get]
func (h *CarHandlers) List() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := middleware.GetUserIDFromContext(r.Context())
		if !ok {
			response.WriteJSON(w, http.StatusUnauthorized, response.GeneralError(errors.New("user not authenticated")))
			return
		}

		cars, err := h.storage.ListCarsByUser(userID)
		if err != nil {
			response.WriteJSON(w, http.StatusInternalServerError, response.GeneralError(errors.New("failed to list cars")))
			return
		}

		response.WriteJSON(w, http.StatusOK, response.RequestOK("Cars retrieved successfully", cars))
	}
}

// Update edits a car's details while it is still editable
// @Summary Update car details
// @Tags cars
// @Accept json
// @Produce json
// @Param carId path string true "Car ID"
// @Param request body types.CarUpdateRequest true "Fields to update"
// @Success 200 {object} response.Response "Car updated successfully"
// @Failure 400 {object} response.Response "Car is locked for analysis"
// @Security BearerAuth
// @Router /cars/{carId} [put]
func (h *CarHandlers) Update() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		car, _, ok := h.ownedCar(w, r)
		if !ok {
			return
		}

		if car.Status.Locked() {
			response.WriteJSON(w, http.StatusBadRequest, response.GeneralError(
				fmt.Errorf("cannot update car: it is in %s status and has been locked for analysis", car.Status)))
			return
		}

		var req types.CarUpdateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			response.WriteJSON(w, http.StatusBadRequest, response.GeneralError(errors.New("invalid request body")))
			return
		}

		validate := validator.New()
		if err := validate.Struct(req); err != nil {
			if ve, ok := err.(validator.ValidationErrors); ok {
				response.WriteJSON(w, http.StatusBadRequest, response.ValidationError(ve))
				return
			}
			response.WriteJSON(w, http.StatusBadRequest, response.GeneralError(err))
			return
		}

		if err := h.storage.UpdateCar(car.ID, req); err != nil {
			response.WriteJSON(w, http.StatusInternalServerError, response.GeneralError(err))
			return
		}

		response.WriteJSON(w, http.StatusOK, response.RequestOK("Car updated successfully", nil))
	}
}

// Submit hands the car off for analysis
// @Summary Submit a car for health analysis
// @Tags cars
// @Produce json
// @Param carId path string true "Car ID"
// @Success 200 {object} response.Response "Car submitted successfully"
// @Failure 400 {object} response.Response "Media requirements not met"
// @Security BearerAuth
// @Router /cars/{carId}/submit [post]
func (h *CarHandlers) Submit() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		car, userID, ok := h.ownedCar(w, r)
		if !ok {
			return
		}

		if car.Status.Locked() {
			response.WriteJSON(w, http.StatusBadRequest, response.GeneralError(errors.New("car has already been submitted")))
			return
		}

		result, err := h.cache.Validation(r.Context(), car.ID)
		if err != nil {
			response.WriteJSON(w, http.StatusInternalServerError, response.GeneralError(errors.New("failed to validate media")))
			return
		}

		// The submit gate is the loose one: a single photo is enough to
		// hand the car over, even while the checklist still reports it
		// incomplete. Analysts handle partial sets.
		if !result.CanSubmit {
			response.WriteJSON(w, http.StatusBadRequest, response.GeneralError(errors.New("at least one photo is required before submitting")))
			return
		}

		if err := h.storage.UpdateCarStatus(car.ID, types.CarStatusSubmitted); err != nil {
			response.WriteJSON(w, http.StatusInternalServerError, response.GeneralError(err))
			return
		}

		h.publisher.PublishCarStatusChanged(userID, car.ID, types.CarStatusSubmitted)

		slog.Info("Car submitted for analysis",
			slog.String("car_id", car.ID),
			slog.String("user_id", userID),
			slog.Int("completion", result.CompletionPercentage))

		response.WriteJSON(w, http.StatusOK, response.RequestOK("Car submitted successfully", map[string]any{
			"status":     types.CarStatusSubmitted,
			"isValid":    result.IsValid,
			"completion": result.CompletionPercentage,
		}))
	}
}
