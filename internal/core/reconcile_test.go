package core

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ids(set ...string) map[string]struct{} {
	m := make(map[string]struct{}, len(set))
	for _, id := range set {
		m[id] = struct{}{}
	}
	return m
}

func actions(ds []Decision) map[string]Action {
	m := make(map[string]Action, len(ds))
	for _, d := range ds {
		m[d.Vehicle.ID] = d.Action
	}
	return m
}

var reconcileVehicles = []Vehicle{
	{ID: "ev01", Brand: "Tesla", Model: "Model 3"},
	{ID: "ev02", Brand: "BMW", Model: "i4"},
	{ID: "ev03", Brand: "Kia", Model: "EV6"},
}

func TestClassify_Full(t *testing.T) {
	ds, err := Classify(reconcileVehicles, ids("ev01", "ev02"), ModeFull, "")
	require.NoError(t, err)

	assert.Equal(t, map[string]Action{
		"ev01": ActionUpdate,
		"ev02": ActionUpdate,
		"ev03": ActionInsert,
	}, actions(ds))
}

func TestClassify_FullKeepsOrder(t *testing.T) {
	ds, err := Classify(reconcileVehicles, nil, ModeFull, "")
	require.NoError(t, err)
	require.Len(t, ds, 3)
	for i, d := range ds {
		assert.Equal(t, reconcileVehicles[i].ID, d.Vehicle.ID)
		assert.Equal(t, ActionInsert, d.Action)
	}
}

func TestClassify_Latest(t *testing.T) {
	ds, err := Classify(reconcileVehicles, ids("ev01", "ev02"), ModeLatest, "")
	require.NoError(t, err)

	assert.Equal(t, map[string]Action{
		"ev01": ActionSkip,
		"ev02": ActionSkip,
		"ev03": ActionInsert,
	}, actions(ds))
}

func TestClassify_Single(t *testing.T) {
	ds, err := Classify(reconcileVehicles, ids("ev02"), ModeSingle, "ev02")
	require.NoError(t, err)
	require.Len(t, ds, 1)
	assert.Equal(t, Decision{Vehicle: reconcileVehicles[1], Action: ActionUpdate}, ds[0])

	ds, err = Classify(reconcileVehicles, ids("ev02"), ModeSingle, "ev03")
	require.NoError(t, err)
	require.Len(t, ds, 1)
	assert.Equal(t, ActionInsert, ds[0].Action)
}

func TestClassify_SingleNotFound(t *testing.T) {
	ds, err := Classify(reconcileVehicles, ids("ev99"), ModeSingle, "ev99")
	assert.True(t, errors.Is(err, ErrVehicleNotFound))
	assert.Nil(t, ds)
}

func TestClassify_UnknownMode(t *testing.T) {
	_, err := Classify(reconcileVehicles, nil, Mode("partial"), "")
	assert.ErrorIs(t, err, ErrUnknownMode)
	assert.Contains(t, err.Error(), `"partial"`)
}

func TestClassify_Empty(t *testing.T) {
	ds, err := Classify(nil, ids("ev01"), ModeFull, "")
	require.NoError(t, err)
	assert.Empty(t, ds)
}
