package server

import (
	"log/slog"
	"net/http"

	"github.com/raterudder/electrohold/pkg/log"
	"github.com/raterudder/electrohold/pkg/types"
)

type sensorResponse struct {
	Value      any            `json:"value"`
	Available  bool           `json:"available"`
	Unit       string         `json:"unit"`
	Attributes map[string]any `json:"attributes"`
}

type stateResponse struct {
	Initialized bool                      `json:"initialized"`
	State       types.SensorState         `json:"state"`
	Sensors     map[string]sensorResponse `json:"sensors"`
}

const unitEURPerKWh = "EUR/kWh"

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	state := s.state.State()
	resp := stateResponse{
		Initialized: state.Initialized(),
		State:       state,
	}
	if resp.Initialized {
		resp.Sensors = map[string]sensorResponse{
			"current": {
				Value:      value(state.Current.Value.Valid, state.Current.Value.Decimal.InexactFloat64()),
				Available:  state.Current.Value.Valid,
				Unit:       unitEURPerKWh,
				Attributes: state.Attributes(),
			},
		}
		for _, b := range []types.Band{types.BandDay, types.BandNight} {
			reading := state.Reading(b)
			resp.Sensors[string(b)] = sensorResponse{
				Value:      value(reading.Value.Valid, reading.Value.Decimal.InexactFloat64()),
				Available:  reading.Value.Valid,
				Unit:       unitEURPerKWh,
				Attributes: state.BandAttributes(b),
			}
		}
	}
	writeJSON(w, resp, http.StatusOK)
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	queued := s.refresher.Trigger()
	log.Ctx(r.Context()).InfoContext(r.Context(), "manual refresh requested", slog.Bool("queued", queued))
	writeJSON(w, struct {
		Queued bool `json:"queued"`
	}{Queued: queued}, http.StatusAccepted)
}

func value(ok bool, v float64) any {
	if !ok {
		return nil
	}
	return v
}
