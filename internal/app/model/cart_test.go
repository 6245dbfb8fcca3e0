package model

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCart_Recalculate(t *testing.T) {
	now := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	cart := &Cart{
		Lines: []CartLine{
			{MedicationID: 1, Quantity: 2, UnitPrice: 9.99},
			{MedicationID: 2, Quantity: 0, UnitPrice: 4.50},
			{MedicationID: 3, Quantity: 3, UnitPrice: 0.10},
		},
	}

	cart.Recalculate(now)

	assert.Len(t, cart.Lines, 2)
	assert.Nil(t, cart.LineFor(2))
	assert.Equal(t, 5, cart.TotalItems)
	assert.Equal(t, 20.28, cart.TotalAmount)
	assert.Equal(t, now, cart.LastUpdated)
}

func TestCart_RecalculateEmpty(t *testing.T) {
	cart := &Cart{TotalItems: 4, TotalAmount: 12}
	cart.Recalculate(time.Now())

	assert.Equal(t, 0, cart.TotalItems)
	assert.Equal(t, 0.0, cart.TotalAmount)
}

func TestCart_LineOperations(t *testing.T) {
	cart := &Cart{
		Lines: []CartLine{
			{MedicationID: 1, Quantity: 2},
			{MedicationID: 2, Quantity: 1},
		},
	}

	assert.Equal(t, 2, cart.QuantityOf(1))
	assert.Equal(t, 0, cart.QuantityOf(99))

	cart.LineFor(2).Quantity = 7
	assert.Equal(t, 7, cart.QuantityOf(2))

	assert.True(t, cart.RemoveLine(1))
	assert.False(t, cart.RemoveLine(1))
	assert.Len(t, cart.Lines, 1)

	cart.ClearLines()
	assert.NotNil(t, cart.Lines)
	assert.Empty(t, cart.Lines)
}

func TestRoundCents(t *testing.T) {
	assert.Equal(t, 49.95, RoundCents(9.99*5))
	assert.Equal(t, 0.3, RoundCents(0.1+0.2))
	assert.Equal(t, 1.01, RoundCents(1.005+0.000001))
}

func TestMedication_Helpers(t *testing.T) {
	now := time.Now()
	past := now.Add(-time.Hour)
	future := now.Add(time.Hour)

	med := &Medication{IsActive: true, Stock: 5, MinStockLevel: 10, ExpiryDate: &past}
	assert.True(t, med.IsExpired(now))
	assert.True(t, med.IsLowStock())
	assert.True(t, med.Available())

	med.ExpiryDate = &future
	med.Stock = 20
	assert.False(t, med.IsExpired(now))
	assert.False(t, med.IsLowStock())

	med.IsActive = false
	assert.False(t, med.Available())

	noExpiry := &Medication{}
	assert.False(t, noExpiry.IsExpired(now))
}

func TestParseDosageForm(t *testing.T) {
	form, ok := ParseDosageForm("tablet")
	assert.True(t, ok)
	assert.Equal(t, DosageTablet, form)

	form, ok = ParseDosageForm("Syrup")
	assert.True(t, ok)
	assert.Equal(t, DosageSyrup, form)

	_, ok = ParseDosageForm("injection")
	assert.False(t, ok)
}
