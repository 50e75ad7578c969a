package api

import (
	"net/http"

	"github.com/quench-lab/sweep-core/internal/variable"
)

// variableView is the API representation of a sweepable variable. It
// carries the raw descriptor plus the calibrated display labels and the
// calibrated bounds, so UIs can render either unit system.
type variableView struct {
	variable.Variable

	DisplayName string   `json:"display_name"`
	DisplayUnit string   `json:"display_unit,omitempty"`
	DisplayMin  *float64 `json:"display_min,omitempty"`
	DisplayMax  *float64 `json:"display_max,omitempty"`
}

// handleListVariables returns all sweepable variables in declaration order.
func (s *Server) handleListVariables(w http.ResponseWriter, _ *http.Request) {
	vars := s.registry.List()

	views := make([]variableView, 0, len(vars))
	for i := range vars {
		v := vars[i]
		view := variableView{
			Variable:    v,
			DisplayName: v.DisplayName(),
			DisplayUnit: v.DisplayUnit(),
		}
		if v.Min != nil {
			m := v.Calibration.ToCalibrated(*v.Min)
			view.DisplayMin = &m
		}
		if v.Max != nil {
			m := v.Calibration.ToCalibrated(*v.Max)
			view.DisplayMax = &m
		}
		views = append(views, view)
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"variables": views,
		"count":     len(views),
	})
}
