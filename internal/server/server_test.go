package server_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"time"

	"github.com/golang/mock/gomock"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/tupyy/rigctl/internal/dispatch"
	"github.com/tupyy/rigctl/internal/entity"
	"github.com/tupyy/rigctl/internal/history"
	"github.com/tupyy/rigctl/internal/profile"
	"github.com/tupyy/rigctl/internal/registry"
	"github.com/tupyy/rigctl/internal/server"
)

type fakeRuns struct {
	runs  []history.Run
	limit int
	err   error
}

func (f *fakeRuns) List(limit int) ([]history.Run, error) {
	f.limit = limit
	return f.runs, f.err
}

var _ = Describe("http api", func() {
	var (
		ctrl      *gomock.Controller
		commander *server.MockCommander
		runs      *fakeRuns
		router    http.Handler
	)

	do := func(method, path, body string) *httptest.ResponseRecorder {
		var req *http.Request
		if body == "" {
			req = httptest.NewRequest(method, path, nil)
		} else {
			req = httptest.NewRequest(method, path, strings.NewReader(body))
		}
		rec := httptest.NewRecorder()
		router.ServeHTTP(rec, req)
		return rec
	}

	BeforeEach(func() {
		ctrl = gomock.NewController(GinkgoT())
		commander = server.NewMockCommander(ctrl)
		runs = &fakeRuns{}
		metrics := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			fmt.Fprint(w, "rig_ticks_total 1")
		})
		router = server.New(":0", commander, runs, metrics).Router()
	})

	AfterEach(func() {
		ctrl.Finish()
	})

	Context("profile", func() {
		It("starts the selected profile without a body", func() {
			commander.EXPECT().StartProfile("").Return(nil)
			Expect(do(http.MethodPost, "/api/v1/profile/start", "").Code).To(Equal(http.StatusAccepted))
		})

		It("starts the profile at path", func() {
			commander.EXPECT().StartProfile("/recipes/a.xlsx").Return(nil)
			Expect(do(http.MethodPost, "/api/v1/profile/start", `{"path":"/recipes/a.xlsx"}`).Code).To(Equal(http.StatusAccepted))
		})

		It("maps start errors", func() {
			commander.EXPECT().StartProfile("").Return(profile.ErrNoSource)
			rec := do(http.MethodPost, "/api/v1/profile/start", "")
			Expect(rec.Code).To(Equal(http.StatusConflict))
			Expect(rec.Body.String()).To(ContainSubstring("no profile source selected"))

			commander.EXPECT().StartProfile("x.csv").Return(fmt.Errorf("%w: x.csv", dispatch.ErrEmptyProfile))
			Expect(do(http.MethodPost, "/api/v1/profile/start", `{"path":"x.csv"}`).Code).To(Equal(http.StatusUnprocessableEntity))

			Expect(do(http.MethodPost, "/api/v1/profile/start", `{"path":`).Code).To(Equal(http.StatusBadRequest))
		})

		It("stops the run", func() {
			commander.EXPECT().StopProfile()
			Expect(do(http.MethodPost, "/api/v1/profile/stop", "").Code).To(Equal(http.StatusAccepted))
		})

		It("selects the source", func() {
			commander.EXPECT().SelectProfileSource("/recipes/b.csv")
			Expect(do(http.MethodPut, "/api/v1/profile/source", `{"path":"/recipes/b.csv"}`).Code).To(Equal(http.StatusAccepted))
			Expect(do(http.MethodPut, "/api/v1/profile/source", `{}`).Code).To(Equal(http.StatusBadRequest))
		})
	})

	Context("recording", func() {
		It("selects the log destination", func() {
			commander.EXPECT().SelectLogDestination("/data/run.log")
			Expect(do(http.MethodPut, "/api/v1/log/destination", `{"path":"/data/run.log"}`).Code).To(Equal(http.StatusAccepted))
		})

		It("toggles recording", func() {
			commander.EXPECT().SetRecording(false)
			Expect(do(http.MethodPut, "/api/v1/recording", `{"enabled":false}`).Code).To(Equal(http.StatusAccepted))
			Expect(do(http.MethodPut, "/api/v1/recording", `{}`).Code).To(Equal(http.StatusBadRequest))
		})
	})

	Context("manual values", func() {
		It("accepts numbers, strings and null", func() {
			commander.EXPECT().ApplyManualValues(map[string]string{
				"mfc_n2":  "12.5",
				"valve_1": "open",
				"heater":  "",
			}).Return(nil)

			rec := do(http.MethodPost, "/api/v1/manual", `{"mfc_n2":12.5,"valve_1":"open","heater":null}`)
			Expect(rec.Code).To(Equal(http.StatusAccepted))
		})

		It("maps channel errors", func() {
			commander.EXPECT().ApplyManualValues(gomock.Any()).Return(fmt.Errorf("%w: nope", registry.ErrUnknownChannel))
			Expect(do(http.MethodPost, "/api/v1/manual", `{"nope":1}`).Code).To(Equal(http.StatusNotFound))

			commander.EXPECT().ApplyManualValues(gomock.Any()).Return(fmt.Errorf("%w: tc_1", registry.ErrReadOnly))
			Expect(do(http.MethodPost, "/api/v1/manual", `{"tc_1":1}`).Code).To(Equal(http.StatusUnprocessableEntity))
		})

		It("rejects other json values", func() {
			Expect(do(http.MethodPost, "/api/v1/manual", `{"valve_1":true}`).Code).To(Equal(http.StatusBadRequest))
			Expect(do(http.MethodPost, "/api/v1/manual", `[1,2]`).Code).To(Equal(http.StatusBadRequest))
		})
	})

	It("stops a controller", func() {
		commander.EXPECT().StopController("heater").Return(nil)
		Expect(do(http.MethodPost, "/api/v1/controllers/heater/stop", "").Code).To(Equal(http.StatusAccepted))

		commander.EXPECT().StopController("tc_1").Return(dispatch.ErrNotController)
		Expect(do(http.MethodPost, "/api/v1/controllers/tc_1/stop", "").Code).To(Equal(http.StatusUnprocessableEntity))
	})

	It("returns the status", func() {
		soll := 50.0
		commander.EXPECT().Snapshot().Return(entity.Snapshot{
			Tick:      7,
			Recording: true,
			Channels: []entity.ChannelStatus{
				{Name: "heater", Kind: "pi", Soll: &soll, State: "running"},
			},
		})

		rec := do(http.MethodGet, "/api/v1/status", "")
		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Header().Get("Content-Type")).To(Equal("application/json"))

		var s entity.Snapshot
		Expect(json.Unmarshal(rec.Body.Bytes(), &s)).To(Succeed())
		Expect(s.Tick).To(Equal(uint64(7)))
		Expect(s.Channels).To(HaveLen(1))
		Expect(*s.Channels[0].Soll).To(Equal(50.0))
	})

	Context("runs", func() {
		It("lists runs with a limit", func() {
			started := time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)
			runs.runs = []history.Run{{ID: "a", Profile: "recipe.xlsx", Started: started, Reason: "stopped"}}

			rec := do(http.MethodGet, "/api/v1/runs?limit=5", "")
			Expect(rec.Code).To(Equal(http.StatusOK))
			Expect(runs.limit).To(Equal(5))

			var got []history.Run
			Expect(json.Unmarshal(rec.Body.Bytes(), &got)).To(Succeed())
			Expect(got).To(HaveLen(1))
			Expect(got[0].ID).To(Equal("a"))

			do(http.MethodGet, "/api/v1/runs", "")
			Expect(runs.limit).To(Equal(20))
		})

		It("rejects an invalid limit", func() {
			Expect(do(http.MethodGet, "/api/v1/runs?limit=-1", "").Code).To(Equal(http.StatusBadRequest))
		})

		It("reports journal errors", func() {
			runs.err = errors.New("database closed")
			Expect(do(http.MethodGet, "/api/v1/runs", "").Code).To(Equal(http.StatusInternalServerError))
		})
	})

	It("serves metrics", func() {
		rec := do(http.MethodGet, "/metrics", "")
		Expect(rec.Code).To(Equal(http.StatusOK))
		Expect(rec.Body.String()).To(ContainSubstring("rig_ticks_total"))
	})

	It("rejects unknown methods", func() {
		Expect(do(http.MethodGet, "/api/v1/profile/start", "").Code).To(Equal(http.StatusMethodNotAllowed))
	})
})
