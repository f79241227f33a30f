/*
scenarios_test.go - Tests for demo scenarios

PURPOSE:
	Each scenario loads through the engine as the calling admin and leaves
	bookable slots behind.
*/
package api

import (
	"context"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/gp-ledger/generic"
	"github.com/warp/gp-ledger/gp"
)

func TestScenarios_List(t *testing.T) {
	s := newTestServer(t)

	rec := s.do("GET", "/api/scenarios", "", nil)

	require.Equal(t, http.StatusOK, rec.Code)
	list := decodeAs[[]ScenarioDTO](t, rec)
	assert.Len(t, list, len(loaders))
	for _, sc := range list {
		assert.Contains(t, loaders, sc.ID)
	}
}

func TestScenario_MorningClinic(t *testing.T) {
	// GIVEN: An empty practice
	// WHEN: The admin loads morning-clinic
	// THEN: Two doctors and six Available slots tomorrow morning exist

	s := newTestServer(t)

	rec := s.do("POST", "/api/scenarios/load", testAdmin, LoadScenarioRequest{ScenarioID: "morning-clinic"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	res := decodeAs[ScenarioResultDTO](t, rec)
	assert.Equal(t, "morning-clinic", res.ScenarioID)
	assert.Len(t, res.Doctors, 2)
	assert.Len(t, res.Bookings, 6)

	ids, err := s.engine.Bookings(context.Background(), "2025-03-11")
	require.NoError(t, err)
	assert.Equal(t, res.Bookings, ids)

	b, err := s.engine.Booking(context.Background(), testAdmin, ids[0])
	require.NoError(t, err)
	assert.Equal(t, gp.StatusAvailable, b.Status)
	assert.Equal(t, time.Date(2025, time.March, 11, 9, 0, 0, 0, time.UTC), b.AppointmentDate)
}

func TestScenario_LoadTwiceKeepsDoctors(t *testing.T) {
	s := newTestServer(t)

	for i := 0; i < 2; i++ {
		rec := s.do("POST", "/api/scenarios/load", testAdmin, LoadScenarioRequest{ScenarioID: "week-ahead"})
		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	}

	doctors, err := s.engine.Doctors(context.Background())
	require.NoError(t, err)
	assert.Len(t, doctors, 1)

	ids, err := s.engine.Bookings(context.Background(), "2025-03-12")
	require.NoError(t, err)
	assert.Len(t, ids, 2)
}

func TestScenario_WalkInCoversRefundTiers(t *testing.T) {
	// GIVEN: The walk-in slots 1h, 3h and 25h away
	// WHEN: A patient books and cancels each one
	// THEN: The refunds follow the 0/50/100 tiers

	s := newTestServer(t)
	rec := s.do("POST", "/api/scenarios/load", testAdmin, LoadScenarioRequest{ScenarioID: "walk-in"})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	res := decodeAs[ScenarioResultDTO](t, rec)
	require.Len(t, res.Bookings, 3)

	ctx := context.Background()
	require.NoError(t, s.engine.RegisterPatient(ctx, testPatient, gp.PatientProfile{Name: "Pat"}))

	var refunds []int64
	for _, id := range res.Bookings {
		require.NoError(t, s.engine.Book(ctx, testPatient, id, "walk-in", demoFee))
		refund, err := s.engine.CancelBooking(ctx, testPatient, id)
		require.NoError(t, err)
		refunds = append(refunds, refund.Value.IntPart())
	}
	assert.Equal(t, []int64{0, demoFee.Percent(50).Value.IntPart(), demoFee.Value.IntPart()}, refunds)
}

func TestScenario_Rejections(t *testing.T) {
	s := newTestServer(t)

	rec := s.do("POST", "/api/scenarios/load", testDoctor, LoadScenarioRequest{ScenarioID: "walk-in"})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = s.do("POST", "/api/scenarios/load", testAdmin, LoadScenarioRequest{ScenarioID: "year-end"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)

	doctors, err := s.engine.Doctors(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []generic.Address{}, doctors)
}
