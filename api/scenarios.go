/*
scenarios.go - Demo scenario loaders for testing and demonstrations

PURPOSE:

	Provides pre-built scenarios that populate the practice with doctors and
	open slots so the booking flow can be tried without manual setup.

AVAILABLE SCENARIOS:

	morning-clinic: Two GPs, hourly slots tomorrow 09:00-12:00
	week-ahead:     One GP, a 10:00 slot on each of the next five days
	walk-in:        One GP, slots 1h, 3h and 25h from now, one per refund tier

HOW SCENARIOS WORK:
 1. Register the scenario's doctors (already registered ones are kept)
 2. Add Available slots through the engine as the calling admin

	Nothing is reset: the ledger and notes are append-only, so loading a
	scenario only adds records.

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "morning-clinic"}

ADDING NEW SCENARIOS:
 1. Add to 'scenarios' slice with ID, name, description
 2. Add a loader to 'loaders'

SEE ALSO:
  - handlers.go: Route table
*/
package api

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/warp/gp-ledger/generic"
	"github.com/warp/gp-ledger/gp"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

var scenarios = []ScenarioDTO{
	{
		ID:          "morning-clinic",
		Name:        "Morning Clinic",
		Description: "Two GPs with hourly slots tomorrow morning",
	},
	{
		ID:          "week-ahead",
		Name:        "Week Ahead",
		Description: "One GP with a daily 10:00 slot for the next five days",
	},
	{
		ID:          "walk-in",
		Name:        "Walk-in",
		Description: "Slots 1h, 3h and 25h away, one per cancellation refund tier",
	},
}

type demoDoctor struct {
	address   generic.Address
	name      string
	specialty string
}

var (
	drHale  = demoDoctor{"0xd0c0000000000000000000000000000000000001", "Dr. Robin Hale", "General Practice"}
	drOkafo = demoDoctor{"0xd0c0000000000000000000000000000000000002", "Dr. Ada Okafo", "Paediatrics"}
)

var demoFee = generic.NewAmount(1_000_000)

type scenarioLoader func(ctx context.Context, h *Handler, admin generic.Address, now time.Time) (*ScenarioResultDTO, error)

var loaders = map[string]scenarioLoader{
	"morning-clinic": loadMorningClinic,
	"week-ahead":     loadWeekAhead,
	"walk-in":        loadWalkIn,
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, scenarios)
}

// LoadScenario loads a predefined scenario. The caller must be an admin.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if !decode(w, r, &req) {
		return
	}
	load, ok := loaders[req.ScenarioID]
	if !ok {
		writeError(w, http.StatusBadRequest, "Unknown scenario", nil)
		return
	}

	result, err := load(r.Context(), h, CallerFrom(r.Context()), h.Engine.Now())
	if err != nil {
		h.writeEngineError(w, err)
		return
	}
	result.ScenarioID = req.ScenarioID
	h.log.Info().Str("scenario", req.ScenarioID).Int("bookings", len(result.Bookings)).Msg("scenario loaded")
	writeJSON(w, http.StatusOK, result)
}

// =============================================================================
// SCENARIO LOADERS
// =============================================================================

func loadMorningClinic(ctx context.Context, h *Handler, admin generic.Address, now time.Time) (*ScenarioResultDTO, error) {
	res := &ScenarioResultDTO{}
	day := startOfDay(now).AddDate(0, 0, 1)
	for _, d := range []demoDoctor{drHale, drOkafo} {
		if err := h.ensureDoctor(ctx, admin, d, res); err != nil {
			return nil, err
		}
		for hour := 9; hour < 12; hour++ {
			if err := h.addSlot(ctx, admin, d, day.Add(time.Duration(hour)*time.Hour), res); err != nil {
				return nil, err
			}
		}
	}
	return res, nil
}

func loadWeekAhead(ctx context.Context, h *Handler, admin generic.Address, now time.Time) (*ScenarioResultDTO, error) {
	res := &ScenarioResultDTO{}
	if err := h.ensureDoctor(ctx, admin, drHale, res); err != nil {
		return nil, err
	}
	for i := 1; i <= 5; i++ {
		date := startOfDay(now).AddDate(0, 0, i).Add(10 * time.Hour)
		if err := h.addSlot(ctx, admin, drHale, date, res); err != nil {
			return nil, err
		}
	}
	return res, nil
}

func loadWalkIn(ctx context.Context, h *Handler, admin generic.Address, now time.Time) (*ScenarioResultDTO, error) {
	res := &ScenarioResultDTO{}
	if err := h.ensureDoctor(ctx, admin, drOkafo, res); err != nil {
		return nil, err
	}
	for _, lead := range []time.Duration{time.Hour, 3 * time.Hour, 25 * time.Hour} {
		if err := h.addSlot(ctx, admin, drOkafo, now.Add(lead).Truncate(time.Minute), res); err != nil {
			return nil, err
		}
	}
	return res, nil
}

// =============================================================================
// HELPERS
// =============================================================================

func (h *Handler) ensureDoctor(ctx context.Context, admin generic.Address, d demoDoctor, res *ScenarioResultDTO) error {
	err := h.Engine.AddDoctor(ctx, admin, d.address, d.name, d.specialty)
	if err != nil && !errors.Is(err, gp.ErrAlreadyRegistered) {
		return err
	}
	res.Doctors = append(res.Doctors, d.address.String())
	return nil
}

func (h *Handler) addSlot(ctx context.Context, admin generic.Address, d demoDoctor, date time.Time, res *ScenarioResultDTO) error {
	id, err := h.Engine.AddBooking(ctx, admin, gp.Slot{Date: date, Doctor: d.address, Fee: demoFee})
	if err != nil {
		return err
	}
	res.Bookings = append(res.Bookings, id)
	return nil
}

func startOfDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
