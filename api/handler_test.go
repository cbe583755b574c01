package api

import (
	"bufio"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/emsroute/ers/core/dispatch"
	"github.com/emsroute/ers/core/model"
	coresim "github.com/emsroute/ers/core/sim"
	"github.com/emsroute/ers/core/traffic"
	"github.com/emsroute/ers/infra/logger"
	memstore "github.com/emsroute/ers/infra/store"
	"github.com/emsroute/ers/internal/eventbus"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestRouter(t *testing.T) (*gin.Engine, *memstore.Memory) {
	t.Helper()
	st := memstore.NewMemory()
	st.PutCity(model.City{ID: 1, Name: "Springfield"})
	st.PutNode(model.Node{ID: 1, Lat: 0, Lon: 0, Kind: model.NodeIntersection, City: 1})
	st.PutNode(model.Node{ID: 2, Lat: 0.01, Lon: 0, Name: "General", Kind: model.NodeHospital, City: 1})
	st.PutNode(model.Node{ID: 3, Lat: 0.02, Lon: 0, Kind: model.NodeStation, City: 1})
	st.PutEdge(model.Edge{ID: 10, From: 1, To: 2, Weight: 5, Active: true})
	st.PutEdge(model.Edge{ID: 11, From: 2, To: 1, Weight: 5, Active: true})
	st.PutEdge(model.Edge{ID: 12, From: 3, To: 2, Weight: 2, Active: true})
	st.PutEdge(model.Edge{ID: 13, From: 2, To: 3, Weight: 2, Active: true})
	st.PutAmbulance(model.Ambulance{ID: "amb-1", Status: model.AmbulanceAvailable, CurrentNode: 3})

	log := logger.NopLogger{}
	overlay := traffic.New(st, nil)
	d, err := dispatch.NewDispatcher(st, overlay, log, nil)
	require.NoError(t, err)
	bus := eventbus.New[coresim.TrackingEvent]()
	sm, err := coresim.New(st, d, bus, nil, log, nil, time.Millisecond)
	require.NoError(t, err)

	return NewRouter(NewHandler(d, sm, st, log), nil), st
}

func postJSON(t *testing.T, r *gin.Engine, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func getJSON(t *testing.T, r *gin.Engine, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	r, _ := newTestRouter(t)
	w := getJSON(t, r, "/health")
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestListCities(t *testing.T) {
	r, _ := newTestRouter(t)
	w := getJSON(t, r, "/cities")
	require.Equal(t, http.StatusOK, w.Code)
	var cities []model.City
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &cities))
	require.Len(t, cities, 1)
	assert.Equal(t, "Springfield", cities[0].Name)
}

func TestListHospitals(t *testing.T) {
	r, _ := newTestRouter(t)
	w := getJSON(t, r, "/route/cities/1/hospitals")
	require.Equal(t, http.StatusOK, w.Code)
	var hospitals []model.Node
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &hospitals))
	require.Len(t, hospitals, 1)
	assert.Equal(t, "General", hospitals[0].Name)
}

func TestAutoDispatch(t *testing.T) {
	r, st := newTestRouter(t)
	w := postJSON(t, r, "/route/requests/auto", `{"city_id":1,"lat":0,"lon":0,"caller_name":"Jo"}`)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var res autoDispatchResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))
	assert.Equal(t, model.NodeID(1), res.Request.Source)
	assert.Equal(t, model.NodeID(2), res.Request.Destination)
	assert.Equal(t, "amb-1", res.Ambulance.ID)
	assert.InDelta(t, 5.0, res.ETAMinutes, 1e-9)
	assert.InDelta(t, 2.0, res.Assignment.ETA, 1e-9)
	assert.NotEmpty(t, res.Route)

	amb, err := st.Ambulance(context.Background(), "amb-1")
	require.NoError(t, err)
	assert.Equal(t, model.AmbulanceAssigned, amb.Status)
}

func TestAutoDispatchRejectsMissingFields(t *testing.T) {
	r, _ := newTestRouter(t)
	w := postJSON(t, r, "/route/requests/auto", `{"city_id":1}`)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAutoDispatchNoAmbulance(t *testing.T) {
	r, st := newTestRouter(t)
	st.PutAmbulance(model.Ambulance{ID: "amb-1", Status: model.AmbulanceAssigned, CurrentNode: 3})

	w := postJSON(t, r, "/route/requests/auto", `{"city_id":1,"lat":0,"lon":0}`)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Contains(t, w.Body.String(), "no ambulance")
}

func TestAutoDispatchUnknownCity(t *testing.T) {
	r, _ := newTestRouter(t)
	w := postJSON(t, r, "/route/requests/auto", `{"city_id":42,"lat":0,"lon":0}`)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCompleteWithoutAssignment(t *testing.T) {
	r, _ := newTestRouter(t)
	w := postJSON(t, r, "/ambulance/amb-1/complete", "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestCompleteAfterDispatch(t *testing.T) {
	r, st := newTestRouter(t)
	w := postJSON(t, r, "/route/requests/auto", `{"city_id":1,"lat":0,"lon":0}`)
	require.Equal(t, http.StatusOK, w.Code)

	w = postJSON(t, r, "/ambulance/amb-1/complete", "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var done dispatch.Completion
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &done))
	assert.Equal(t, "amb-1", done.AmbulanceID)

	amb, err := st.Ambulance(context.Background(), "amb-1")
	require.NoError(t, err)
	assert.Equal(t, model.AmbulanceAvailable, amb.Status)
}

func TestDebugRouteUnknownRequest(t *testing.T) {
	r, _ := newTestRouter(t)
	w := getJSON(t, r, "/route/requests/nope/debug")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestDebugRouteAfterDispatch(t *testing.T) {
	r, _ := newTestRouter(t)
	w := postJSON(t, r, "/route/requests/auto", `{"city_id":1,"lat":0,"lon":0}`)
	require.Equal(t, http.StatusOK, w.Code)
	var res autoDispatchResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))

	w = getJSON(t, r, "/route/requests/"+res.Request.ID+"/debug")
	require.Equal(t, http.StatusOK, w.Code)
	var report dispatch.DebugReport
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &report))
	assert.NotEmpty(t, report.Steps)
	assert.Equal(t, []model.NodeID{1, 2}, report.Path)
}

func TestStreamUnknownRequest(t *testing.T) {
	r, _ := newTestRouter(t)
	w := getJSON(t, r, "/route/requests/nope/stream")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestStreamTrackingUntilCompleted(t *testing.T) {
	r, st := newTestRouter(t)
	w := postJSON(t, r, "/route/requests/auto", `{"city_id":1,"lat":0,"lon":0}`)
	require.Equal(t, http.StatusOK, w.Code)
	var res autoDispatchResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &res))

	srv := httptest.NewServer(r)
	defer srv.Close()

	resp, err := http.Get(srv.URL + "/route/requests/" + res.Request.ID + "/stream")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var last coresim.TrackingEvent
	scanner := bufio.NewScanner(resp.Body)
	for scanner.Scan() {
		line := scanner.Text()
		if !strings.HasPrefix(line, "data:") {
			continue
		}
		require.NoError(t, json.Unmarshal([]byte(strings.TrimPrefix(line, "data:")), &last))
		if last.Status == coresim.StatusCompleted {
			break
		}
	}
	assert.Equal(t, coresim.StatusCompleted, last.Status)
	assert.Equal(t, float64(1), last.Progress)

	req, err := st.Request(context.Background(), res.Request.ID)
	require.NoError(t, err)
	assert.Equal(t, model.RequestCompleted, req.Status)
}
