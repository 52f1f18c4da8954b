package cars

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/motorscan/carhealth/internal/cache"
	"github.com/motorscan/carhealth/internal/events"
	"github.com/motorscan/carhealth/internal/http/middleware"
	"github.com/motorscan/carhealth/internal/storage"
	"github.com/motorscan/carhealth/internal/types"
	mediatypes "github.com/motorscan/carhealth/internal/types/media"
)

type fakeStorage struct {
	storage.Storage

	cars   map[string]types.Car
	assets map[string][]mediatypes.Media
	nextID int
}

func newFakeStorage() *fakeStorage {
	return &fakeStorage{
		cars:   make(map[string]types.Car),
		assets: make(map[string][]mediatypes.Media),
	}
}

func (f *fakeStorage) CreateCar(userID string, req types.CarCreateRequest) (string, error) {
	f.nextID++
	id := fmt.Sprintf("car-%d", f.nextID)
	f.cars[id] = types.Car{ID: id, UserID: userID, Make: req.Make, Model: req.Model, Year: req.Year, Status: types.CarStatusDraft}
	return id, nil
}

func (f *fakeStorage) GetCar(id string) (types.Car, error) {
	car, ok := f.cars[id]
	if !ok {
		return types.Car{}, storage.ErrNotFound
	}
	return car, nil
}

func (f *fakeStorage) UpdateCar(id string, req types.CarUpdateRequest) error {
	if _, ok := f.cars[id]; !ok {
		return storage.ErrNotFound
	}
	return nil
}

func (f *fakeStorage) UpdateCarStatus(id string, status types.CarStatus) error {
	car, ok := f.cars[id]
	if !ok {
		return storage.ErrNotFound
	}
	car.Status = status
	f.cars[id] = car
	return nil
}

func (f *fakeStorage) ListCarsByUser(userID string) ([]types.Car, error) {
	var out []types.Car
	for _, c := range f.cars {
		if c.UserID == userID {
			out = append(out, c)
		}
	}
	return out, nil
}

func (f *fakeStorage) ListMediaByCar(carID string) ([]mediatypes.Media, error) {
	return f.assets[carID], nil
}

func (f *fakeStorage) DeleteAbandonedUploads(olderThan time.Duration) (int64, error) {
	return 0, nil
}

func setupHandlers(t *testing.T) (*CarHandlers, *fakeStorage, *miniredis.Miniredis, func()) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	st := newFakeStorage()
	vc := cache.NewValidationCache(st, redisClient)

	h := NewCarHandlers(st, vc, events.NopPublisher{})

	cleanup := func() {
		redisClient.Close()
		mr.Close()
	}
	return h, st, mr, cleanup
}

func router(h *CarHandlers, userID string) http.Handler {
	auth := func(next http.HandlerFunc) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := context.WithValue(r.Context(), middleware.UserIDKey, userID)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}

	mux := http.NewServeMux()
	mux.Handle("POST /cars", auth(h.Create()))
	mux.Handle("GET /cars", auth(h.List()))
	mux.Handle("GET /cars/{carId}", auth(h.Get()))
	mux.Handle("PUT /cars/{carId}", auth(h.Update()))
	mux.Handle("POST /cars/{carId}/submit", auth(h.Submit()))
	return mux
}

func doJSON(t *testing.T, handler http.Handler, method, target string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, target, &buf)
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestCreate_ReturnsID(t *testing.T) {
	h, st, _, cleanup := setupHandlers(t)
	defer cleanup()

	mux := router(h, "user-1")
	rec := doJSON(t, mux, http.MethodPost, "/cars", types.CarCreateRequest{
		Make: "Honda", Model: "Civic", Year: 2020,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	var env struct {
		Data map[string]string `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &env))
	id := env.Data["id"]
	require.NotEmpty(t, id)

	car, err := st.GetCar(id)
	require.NoError(t, err)
	assert.Equal(t, types.CarStatusDraft, car.Status)
}

func TestCreate_ValidationFailure(t *testing.T) {
	h, _, _, cleanup := setupHandlers(t)
	defer cleanup()

	mux := router(h, "user-1")
	rec := doJSON(t, mux, http.MethodPost, "/cars", types.CarCreateRequest{Make: "Honda"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestGet_OwnershipEnforced(t *testing.T) {
	h, st, _, cleanup := setupHandlers(t)
	defer cleanup()

	id, _ := st.CreateCar("owner", types.CarCreateRequest{Make: "Kia", Model: "Rio", Year: 2019})

	rec := doJSON(t, router(h, "owner"), http.MethodGet, "/cars/"+id, nil)
	assert.Equal(t, http.StatusOK, rec.Code)

	rec = doJSON(t, router(h, "intruder"), http.MethodGet, "/cars/"+id, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestUpdate_LockedCarRejected(t *testing.T) {
	h, st, _, cleanup := setupHandlers(t)
	defer cleanup()

	id, _ := st.CreateCar("user-1", types.CarCreateRequest{Make: "Kia", Model: "Rio", Year: 2019})
	st.UpdateCarStatus(id, types.CarStatusReportReady)

	rec := doJSON(t, router(h, "user-1"), http.MethodPut, "/cars/"+id, types.CarUpdateRequest{Mileage: 120000})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "locked for analysis")
}

// Submission needs only one photo, not the full checklist.
func TestSubmit_LooseGate(t *testing.T) {
	h, st, mr, cleanup := setupHandlers(t)
	defer cleanup()

	id, _ := st.CreateCar("user-1", types.CarCreateRequest{Make: "Kia", Model: "Rio", Year: 2019})
	mux := router(h, "user-1")

	// no media at all: rejected
	rec := doJSON(t, mux, http.MethodPost, "/cars/"+id+"/submit", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Contains(t, rec.Body.String(), "at least one photo is required")

	// one photo: accepted even though the checklist is far from valid
	st.assets[id] = []mediatypes.Media{
		{CarID: id, Type: mediatypes.TypePhoto, PhotoType: mediatypes.PhotoFront, IsUploaded: true},
	}
	// the rejected attempt cached its validation result; age it out
	mr.FastForward(46 * time.Second)

	rec = doJSON(t, mux, http.MethodPost, "/cars/"+id+"/submit", nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	car, _ := st.GetCar(id)
	assert.Equal(t, types.CarStatusSubmitted, car.Status)

	// resubmission is rejected once locked
	rec = doJSON(t, mux, http.MethodPost, "/cars/"+id+"/submit", nil)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
