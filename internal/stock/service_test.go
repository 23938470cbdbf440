package stock

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestCostPerUnit(t *testing.T) {
	item := Item{Cost: 20, CostPer: 5}
	require.InDelta(t, 4, item.CostPerUnit(), 1e-9)

	require.Zero(t, Item{Cost: 20}.CostPerUnit())
}

func TestValidateItem(t *testing.T) {
	valid := Item{Name: "Beans", Category: "Dry goods", Unit: "kg", Cost: 12, CostPer: 1}
	require.NoError(t, validate(valid))

	cases := map[string]Item{
		"missing name":      {Category: "Dry goods", Unit: "kg", CostPer: 1},
		"negative quantity": {Name: "Beans", Category: "Dry goods", Unit: "kg", QuantityAvailable: -1, CostPer: 1},
		"negative cost":     {Name: "Beans", Category: "Dry goods", Unit: "kg", Cost: -5, CostPer: 1},
		"zero cost per":     {Name: "Beans", Category: "Dry goods", Unit: "kg"},
	}
	for name, item := range cases {
		t.Run(name, func(t *testing.T) {
			require.ErrorIs(t, validate(item), ErrInvalidItem)
		})
	}
}
