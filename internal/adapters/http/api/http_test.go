package api_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	. "github.com/smartystreets/goconvey/convey"

	"github.com/okian/futsalrank/internal/adapters/http/api"
	"github.com/okian/futsalrank/pkg/metrics"
)

type mockStats struct {
	stats map[string]any
}

func (m *mockStats) Stats(context.Context) map[string]any { return m.stats }

func TestServer_Register(t *testing.T) {
	Convey("Given a new ops server", t, func() {
		stats := &mockStats{stats: map[string]any{"teams": 4}}
		mux := http.NewServeMux()
		api.NewServer(stats).Register(context.Background(), mux)

		Convey("When requesting /healthz", func() {
			metrics.RecordRecommendationServed()
			req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)

			Convey("Then the Prometheus exposition is returned", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Body.String(), ShouldContainSubstring, "futsal_matchmaking_recommendations_served_total")
			})
		})

		Convey("When requesting /stats", func() {
			req := httptest.NewRequest(http.MethodGet, "/stats", nil)
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)

			Convey("Then stats are returned as JSON", func() {
				So(w.Code, ShouldEqual, http.StatusOK)
				So(w.Header().Get("Content-Type"), ShouldStartWith, "application/json")
				var body map[string]any
				So(json.NewDecoder(w.Body).Decode(&body), ShouldBeNil)
				So(body["teams"], ShouldEqual, 4.0)
			})
		})

		Convey("When posting to /stats", func() {
			req := httptest.NewRequest(http.MethodPost, "/stats", nil)
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)

			Convey("Then the method is refused", func() {
				So(w.Code, ShouldEqual, http.StatusMethodNotAllowed)
				So(w.Header().Get("Allow"), ShouldEqual, http.MethodGet)
				var body map[string]string
				So(json.NewDecoder(w.Body).Decode(&body), ShouldBeNil)
				So(body["code"], ShouldEqual, "method_not_allowed")
			})
		})

		Convey("When requesting an unknown path", func() {
			req := httptest.NewRequest(http.MethodGet, "/leaderboard", nil)
			w := httptest.NewRecorder()
			mux.ServeHTTP(w, req)

			Convey("Then it is not found", func() {
				So(w.Code, ShouldEqual, http.StatusNotFound)
			})
		})
	})
}

func TestMetricsMiddleware(t *testing.T) {
	Convey("Given a handler wrapped by the metrics middleware", t, func() {
		h := api.MetricsMiddleware(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusTeapot)
			_, _ = w.Write([]byte("short and stout"))
		}, "teapot")

		Convey("When it is called", func() {
			w := httptest.NewRecorder()
			h(w, httptest.NewRequest(http.MethodGet, "/teapot", nil))

			Convey("Then the response passes through untouched", func() {
				So(w.Code, ShouldEqual, http.StatusTeapot)
				So(w.Body.String(), ShouldEqual, "short and stout")
			})

			Convey("And the request is exported", func() {
				req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
				rec := httptest.NewRecorder()
				api.NewHealthHandler().HandleHealth(rec, req)
				So(rec.Body.String(), ShouldContainSubstring, `futsal_matchmaking_http_requests_total{endpoint="teapot",method="GET",status_code="418"}`)
				So(rec.Body.String(), ShouldContainSubstring, `futsal_matchmaking_http_errors_total{endpoint="teapot",error_type="client_error",method="GET"}`)
			})
		})
	})
}
