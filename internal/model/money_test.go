package model

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseMoney(t *testing.T) {
	tests := []struct {
		in      string
		want    Money
		wantErr bool
	}{
		{"100", 10000, false},
		{"150.5", 15050, false},
		{"0.01", 1, false},
		{"-100.00", -10000, false},
		{"1.001", 0, true},
		{"abc", 0, true},
		{"", 0, true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseMoney(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestMoneyString(t *testing.T) {
	assert.Equal(t, "150.00", NewMoney(150, 0).String())
	assert.Equal(t, "0.05", Money(5).String())
	assert.Equal(t, "-100.00", NewMoney(100, 0).Neg().String())
}

func TestMoneyJSON(t *testing.T) {
	b, err := json.Marshal(struct {
		Balance Money `json:"balance"`
	}{NewMoney(50, 0)})
	require.NoError(t, err)
	assert.JSONEq(t, `{"balance":50.00}`, string(b))

	var in struct {
		A Money `json:"a"`
		B Money `json:"b"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"a":"12.34","b":7}`), &in))
	assert.Equal(t, Money(1234), in.A)
	assert.Equal(t, Money(700), in.B)

	assert.Error(t, json.Unmarshal([]byte(`{"a":"1.234"}`), &in))
}
