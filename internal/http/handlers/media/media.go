package media

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path"

	"github.com/go-playground/validator/v10"

	"github.com/motorscan/carhealth/internal/cache"
	"github.com/motorscan/carhealth/internal/checklist"
	"github.com/motorscan/carhealth/internal/config"
	"github.com/motorscan/carhealth/internal/events"
	"github.com/motorscan/carhealth/internal/http/middleware"
	blobService "github.com/motorscan/carhealth/internal/services/media"
	"github.com/motorscan/carhealth/internal/storage"
	"github.com/motorscan/carhealth/internal/types"
	mediatypes "github.com/motorscan/carhealth/internal/types/media"
	"github.com/motorscan/carhealth/internal/utils/response"
)

// proxyMemoryLimit caps how much of a multipart body is held in memory
// before spilling to temp files.
const proxyMemoryLimit = 32 << 20

type MediaHandlers struct {
	storage   storage.Storage
	blobs     *blobService.Service
	cache     *cache.ValidationCache
	publisher events.Publisher
	mediaCfg  *config.Media
}

// NewMediaHandlers creates a new media handlers instance
func NewMediaHandlers(st storage.Storage, blobs *blobService.Service, vc *cache.ValidationCache, publisher events.Publisher, mediaCfg *config.Media) *MediaHandlers {
	return &MediaHandlers{
		storage:   st,
		blobs:     blobs,
		cache:     vc,
		publisher: publisher,
		mediaCfg:  mediaCfg,
	}
}

// ownedCar loads the car and checks the requester owns it. On failure
// it writes the error response and returns ok=false.
func (h *MediaHandlers) ownedCar(w http.ResponseWriter, r *http.Request) (types.Car, string, bool) {
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
		response.WriteJSON(w, http.StatusForbidden, response.GeneralError(errors.New("you do not have permission to access media for this car")))
		return types.Car{}, "", false
	}

	return car, userID, true
}

// validateUploadPolicy enforces the server-side mirror of the client
// validator: allowed MIME types, byte ceilings, and (when the client
// measured it) the video duration bounds.
func (h *MediaHandlers) validateUploadPolicy(req mediatypes.UploadRequest) error {
	switch req.Type {
	case mediatypes.TypePhoto:
		if !allowedMime(req.MimeType, []string{"image/jpeg", "image/jpg", "image/png"}) {
			return errors.New("invalid photo type: allowed types are image/jpeg, image/jpg, image/png")
		}
		if req.FileSize > h.mediaCfg.MaxPhotoSize {
			return fmt.Errorf("photo size exceeds maximum allowed size of %dMB", h.mediaCfg.MaxPhotoSize/(1024*1024))
		}
		if req.PhotoType == "" {
			return errors.New("photoType is required for photo uploads")
		}
		if !mediatypes.ValidPhotoType(req.PhotoType) {
			return fmt.Errorf("unknown photo type: %s", req.PhotoType)
		}
	case mediatypes.TypeVideo:
		if !allowedMime(req.MimeType, []string{"video/mp4"}) {
			return errors.New("invalid video type: allowed types are video/mp4")
		}
		if req.FileSize > h.mediaCfg.MaxVideoSize {
			return fmt.Errorf("video size exceeds maximum allowed size of %dMB", h.mediaCfg.MaxVideoSize/(1024*1024))
		}
		if req.Duration > 0 {
			if req.Duration < float64(h.mediaCfg.MinVideoDuration) {
				return fmt.Errorf("video must be at least %d seconds long", h.mediaCfg.MinVideoDuration)
			}
			if req.Duration > float64(h.mediaCfg.MaxVideoDuration) {
				return fmt.Errorf("video must be no longer than %d seconds", h.mediaCfg.MaxVideoDuration)
			}
		}
	}
	return nil
}

func allowedMime(mime string, allowed []string) bool {
	for _, a := range allowed {
		if mime == a {
			return true
		}
	}
	return false
}

// UploadRequest authorizes one file transfer
// @Summary Request upload authorization (presigned URL)
// @Tags media
// @Accept json
// @Produce json
// @Param carId path string true "Car ID"
// @Param request body mediatypes.UploadRequest true "Upload request"
// @Success 201 {object} mediatypes.UploadAuthorization "Upload authorization granted"
// @Failure 400 {object} response.Response "Invalid file type or size"
// @Failure 403 {object} response.Response "Not the car owner"
// @Security BearerAuth
// @Router /cars/{carId}/media/upload-request [post]
func (h *MediaHandlers) UploadRequest() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		car, _, ok := h.ownedCar(w, r)
		if !ok {
			return
		}

		if car.Status.Locked() {
			response.WriteJSON(w, http.StatusBadRequest, response.GeneralError(
				fmt.Errorf("cannot upload media: car is in %s status and has been locked for analysis", car.Status)))
			return
		}

		h.issueAuthorization(w, r, car)
	}
}

// issueAuthorization validates one upload request, persists the pending
// media row, and answers with a presigned destination.
func (h *MediaHandlers) issueAuthorization(w http.ResponseWriter, r *http.Request, car types.Car) {
	var req mediatypes.UploadRequest
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

	if err := h.validateUploadPolicy(req); err != nil {
		response.WriteJSON(w, http.StatusBadRequest, response.GeneralError(err))
		return
	}

	storageKey := h.blobs.GenerateStorageKey(car.ID, req.Type, req.FileName)

	mediaID, err := h.storage.CreateMedia(mediatypes.Media{
		CarID:            car.ID,
		Type:             req.Type,
		PhotoType:        req.PhotoType,
		FileName:         path.Base(storageKey),
		OriginalFileName: req.FileName,
		MimeType:         req.MimeType,
		FileSize:         req.FileSize,
		StorageKey:       storageKey,
		Width:            req.Width,
		Height:           req.Height,
		Duration:         req.Duration,
	})
	if err != nil {
		response.WriteJSON(w, http.StatusInternalServerError, response.GeneralError(err))
		return
	}

	uploadURL, expiresIn, err := h.blobs.PresignedUploadURL(r.Context(), storageKey)
	if err != nil {
		response.WriteJSON(w, http.StatusInternalServerError, response.GeneralError(err))
		return
	}

	slog.Info("Upload authorized",
		slog.String("car_id", car.ID),
		slog.String("media_id", mediaID),
		slog.String("type", string(req.Type)))

	response.WriteJSON(w, http.StatusCreated, response.RequestOK("Upload authorization granted", mediatypes.UploadAuthorization{
		MediaID:   mediaID,
		UploadURL: uploadURL,
		ExpiresIn: int64(expiresIn),
	}))
}

// Register confirms a completed direct transfer
// @Summary Register media metadata after upload
// @Tags media
// @Accept json
// @Produce json
// @Param carId path string true "Car ID"
// @Param mediaId path string true "Media ID from upload request"
// @Param request body mediatypes.RegisterRequest true "Registration payload"
// @Success 200 {object} mediatypes.Media "Media registered successfully"
// @Failure 404 {object} response.Response "Media not found"
// @Security BearerAuth
// @Router /cars/{carId}/media/{mediaId}/register [put]
func (h *MediaHandlers) Register() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		car, userID, ok := h.ownedCar(w, r)
		if !ok {
			return
		}
		mediaID := r.PathValue("mediaId")

		var req mediatypes.RegisterRequest
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

		err := h.storage.MarkUploaded(car.ID, mediaID, req.StorageKey, req.StorageURL, req.ThumbnailURL, req.Metadata)
		if errors.Is(err, storage.ErrNotFound) {
			response.WriteJSON(w, http.StatusNotFound, response.GeneralError(errors.New("media not found")))
			return
		}
		if err != nil {
			response.WriteJSON(w, http.StatusInternalServerError, response.GeneralError(err))
			return
		}

		h.cache.InvalidateCar(r.Context(), car.ID)

		m, err := h.storage.GetMedia(car.ID, mediaID)
		if err != nil {
			response.WriteJSON(w, http.StatusInternalServerError, response.GeneralError(err))
			return
		}

		h.afterMediaChange(r, car, userID, &m)

		response.WriteJSON(w, http.StatusOK, response.RequestOK("Media registered successfully", m))
	}
}

// ProxyUpload receives the file bytes directly and performs storage
// plus registration in one call
// @Summary Upload file through the backend (bypasses CORS)
// @Tags media
// @Accept multipart/form-data
// @Produce json
// @Param carId path string true "Car ID"
// @Param mediaId path string true "Media ID from upload request"
// @Success 200 {object} map[string]string "File uploaded successfully"
// @Failure 400 {object} response.Response "Invalid file or upload failed"
// @Failure 404 {object} response.Response "Media not found"
// @Security BearerAuth
// @Router /cars/{carId}/media/{mediaId}/upload [post]
func (h *MediaHandlers) ProxyUpload() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		car, userID, ok := h.ownedCar(w, r)
		if !ok {
			return
		}
		mediaID := r.PathValue("mediaId")

		m, err := h.storage.GetMedia(car.ID, mediaID)
		if errors.Is(err, storage.ErrNotFound) {
			response.WriteJSON(w, http.StatusNotFound, response.GeneralError(errors.New("media not found")))
			return
		}
		if err != nil {
			response.WriteJSON(w, http.StatusInternalServerError, response.GeneralError(err))
			return
		}

		if err := r.ParseMultipartForm(proxyMemoryLimit); err != nil {
			response.WriteJSON(w, http.StatusBadRequest, response.GeneralError(errors.New("invalid multipart body")))
			return
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			response.WriteJSON(w, http.StatusBadRequest, response.GeneralError(errors.New("no file provided")))
			return
		}
		defer file.Close()

		if err := h.blobs.PutObject(r.Context(), m.StorageKey, file, header.Size, m.MimeType); err != nil {
			response.WriteJSON(w, http.StatusInternalServerError, response.GeneralError(err))
			return
		}

		storageURL := h.blobs.MediaURL(m.StorageKey)
		thumbnailURL := ""
		if m.Type == mediatypes.TypePhoto {
			thumbnailURL = storageURL
		}

		if err := h.storage.MarkUploaded(car.ID, mediaID, m.StorageKey, storageURL, thumbnailURL, nil); err != nil {
			response.WriteJSON(w, http.StatusInternalServerError, response.GeneralError(err))
			return
		}

		h.cache.InvalidateCar(r.Context(), car.ID)

		m.StorageURL = storageURL
		m.ThumbnailURL = thumbnailURL
		m.IsUploaded = true
		h.afterMediaChange(r, car, userID, &m)

		response.WriteJSON(w, http.StatusOK, response.RequestOK("File uploaded successfully", map[string]string{
			"storageKey": m.StorageKey,
			"storageUrl": storageURL,
		}))
	}
}

// List returns all media for a car
// @Summary Get all media for a car
// @Tags media
// @Produce json
// @Param carId path string true "Car ID"
// @Success 200 {array} mediatypes.Media "Media list retrieved successfully"
// @Security BearerAuth
// @Router /cars/{carId}/media [get]
func (h *MediaHandlers) List() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		car, _, ok := h.ownedCar(w, r)
		if !ok {
			return
		}

		assets, err := h.cache.MediaList(r.Context(), car.ID)
		if err != nil {
			response.WriteJSON(w, http.StatusInternalServerError, response.GeneralError(errors.New("failed to list media")))
			return
		}

		response.WriteJSON(w, http.StatusOK, response.RequestOK("Media list retrieved successfully", assets))
	}
}

// Validate runs the server-side required-media check
// @Summary Validate required media presence with warnings
// @Tags media
// @Produce json
// @Param carId path string true "Car ID"
// @Success 200 {object} mediatypes.ValidationResult "Validation result with warnings"
// @Security BearerAuth
// @Router /cars/{carId}/media/validate [get]
func (h *MediaHandlers) Validate() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		car, _, ok := h.ownedCar(w, r)
		if !ok {
			return
		}

		result, err := h.cache.Validation(r.Context(), car.ID)
		if err != nil {
			response.WriteJSON(w, http.StatusInternalServerError, response.GeneralError(errors.New("failed to validate media")))
			return
		}

		response.WriteJSON(w, http.StatusOK, response.RequestOK("Validation result", result))
	}
}

// Delete soft-deletes a media asset
// @Summary Delete media
// @Tags media
// @Param carId path string true "Car ID"
// @Param mediaId path string true "Media ID"
// @Success 204 "Media deleted successfully"
// @Failure 404 {object} response.Response "Media not found"
// @Security BearerAuth
// @Router /cars/{carId}/media/{mediaId} [delete]
func (h *MediaHandlers) Delete() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		car, _, ok := h.ownedCar(w, r)
		if !ok {
			return
		}

		if car.Status.Locked() {
			response.WriteJSON(w, http.StatusBadRequest, response.GeneralError(
				fmt.Errorf("cannot delete media: car is in %s status and has been locked for analysis", car.Status)))
			return
		}

		mediaID := r.PathValue("mediaId")
		err := h.storage.SoftDeleteMedia(car.ID, mediaID)
		if errors.Is(err, storage.ErrNotFound) {
			response.WriteJSON(w, http.StatusNotFound, response.GeneralError(errors.New("media not found")))
			return
		}
		if err != nil {
			response.WriteJSON(w, http.StatusInternalServerError, response.GeneralError(err))
			return
		}

		// Stored bytes are left in place; only the record goes away.
		h.cache.InvalidateCar(r.Context(), car.ID)

		w.WriteHeader(http.StatusNoContent)
	}
}

// checklistItem is one row of the shooting guide shown before and
// during capture.
type checklistItem struct {
	Key         string `json:"key"`
	Label       string `json:"label"`
	Description string `json:"description"`
	Required    bool   `json:"required"`
	Completed   bool   `json:"completed"`
}

var photoGuidance = map[mediatypes.PhotoType]string{
	mediatypes.PhotoFront:     "Stand a few meters back and capture the whole front of the car",
	mediatypes.PhotoRear:      "Capture the whole rear of the car including the bumper",
	mediatypes.PhotoLeft:      "Capture the full left side from a slight angle",
	mediatypes.PhotoRight:     "Capture the full right side from a slight angle",
	mediatypes.PhotoInterior:  "Capture the dashboard and front seats from the driver door",
	mediatypes.PhotoEngineBay: "Open the hood and capture the entire engine bay",
}

// Checklist returns the shooting guide with per-item completion
// @Summary Get the required-media checklist with guidance
// @Tags media
// @Produce json
// @Param carId path string true "Car ID"
// @Success 200 {array} checklistItem "Checklist retrieved successfully"
// @Security BearerAuth
// @Router /cars/{carId}/media/checklist [get]
func (h *MediaHandlers) Checklist() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		car, _, ok := h.ownedCar(w, r)
		if !ok {
			return
		}

		assets, err := h.cache.MediaList(r.Context(), car.ID)
		if err != nil {
			response.WriteJSON(w, http.StatusInternalServerError, response.GeneralError(errors.New("failed to build checklist")))
			return
		}

		result := checklist.Evaluate(assets)
		missing := make(map[mediatypes.PhotoType]bool, len(result.MissingPhotos))
		for _, pt := range result.MissingPhotos {
			missing[pt] = true
		}

		items := make([]checklistItem, 0, len(mediatypes.RequiredPhotoTypes)+1)
		for _, pt := range mediatypes.RequiredPhotoTypes {
			items = append(items, checklistItem{
				Key:         string(pt),
				Label:       checklist.Label(pt),
				Description: photoGuidance[pt],
				Required:    true,
				Completed:   !missing[pt],
			})
		}
		items = append(items, checklistItem{
			Key:         "engineSound",
			Label:       "Engine Sound Video",
			Description: "Record 10 to 20 seconds of the engine running with the hood open",
			Required:    true,
			Completed:   result.HasVideo,
		})

		response.WriteJSON(w, http.StatusOK, response.RequestOK("Checklist retrieved successfully", items))
	}
}

// Replace retires an asset and authorizes its substitute in one call
// @Summary Replace an existing media asset
// @Tags media
// @Accept json
// @Produce json
// @Param carId path string true "Car ID"
// @Param mediaId path string true "Media ID being replaced"
// @Param request body mediatypes.UploadRequest true "Upload request for the replacement"
// @Success 201 {object} mediatypes.UploadAuthorization "Replacement upload authorized"
// @Failure 404 {object} response.Response "Media not found"
// @Security BearerAuth
// @Router /cars/{carId}/media/{mediaId}/replace [post]
func (h *MediaHandlers) Replace() http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		car, _, ok := h.ownedCar(w, r)
		if !ok {
			return
		}

		if car.Status.Locked() {
			response.WriteJSON(w, http.StatusBadRequest, response.GeneralError(
				fmt.Errorf("cannot replace media: car is in %s status and has been locked for analysis", car.Status)))
			return
		}

		mediaID := r.PathValue("mediaId")
		err := h.storage.SoftDeleteMedia(car.ID, mediaID)
		if errors.Is(err, storage.ErrNotFound) {
			response.WriteJSON(w, http.StatusNotFound, response.GeneralError(errors.New("media not found")))
			return
		}
		if err != nil {
			response.WriteJSON(w, http.StatusInternalServerError, response.GeneralError(err))
			return
		}

		h.cache.InvalidateCar(r.Context(), car.ID)

		h.issueAuthorization(w, r, car)
	}
}

// afterMediaChange recomputes the checklist, flips a draft car to
// media_uploaded once it validates, and pushes events to the owner.
func (h *MediaHandlers) afterMediaChange(r *http.Request, car types.Car, userID string, m *mediatypes.Media) {
	h.publisher.PublishMediaRegistered(userID, *m)

	assets, err := h.storage.ListMediaByCar(car.ID)
	if err != nil {
		slog.Error("Failed to recompute media validation",
			slog.String("car_id", car.ID),
			slog.String("error", err.Error()))
		return
	}

	result := checklist.Evaluate(assets).ToValidationResult()
	h.publisher.PublishValidation(userID, car.ID, result)

	if result.IsValid && car.Status == types.CarStatusDraft {
		if err := h.storage.UpdateCarStatus(car.ID, types.CarStatusMediaUploaded); err != nil {
			slog.Error("Failed to update car status",
				slog.String("car_id", car.ID),
				slog.String("error", err.Error()))
			return
		}
		h.publisher.PublishCarStatusChanged(userID, car.ID, types.CarStatusMediaUploaded)
	}
}
