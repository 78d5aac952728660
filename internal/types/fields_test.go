package types_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/weftworks/weft/internal/types"
)

func TestFieldValueEqual(t *testing.T) {
	tests := []struct {
		name string
		a, b types.FieldValue
		want bool
	}{
		{"same text", types.NewText("x"), types.NewText("x"), true},
		{"different text", types.NewText("x"), types.NewText("y"), false},
		{"kind mismatch", types.NewText("1"), types.NewInt(1), false},
		{"same int", types.NewInt(7), types.NewInt(7), true},
		{"same bool", types.NewBool(true), types.NewBool(true), true},
		{"bool mismatch", types.NewBool(true), types.NewBool(false), false},
		{"same list", types.NewList("a", "b"), types.NewList("a", "b"), true},
		{"list order matters", types.NewList("a", "b"), types.NewList("b", "a"), false},
		{"list length mismatch", types.NewList("a"), types.NewList("a", "b"), false},
		{"enum vs text", types.NewEnum("high"), types.NewText("high"), false},
		{"nulls equal", types.NewNull(), types.NewNull(), true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.a.Equal(tc.b))
			assert.Equal(t, tc.want, tc.b.Equal(tc.a), "Equal should be symmetric")
		})
	}
}

func TestFieldValueDate(t *testing.T) {
	day := time.Date(2026, 3, 14, 0, 0, 0, 0, time.UTC)

	got, err := types.NewDate(day).Date()
	assert.NoError(t, err)
	assert.True(t, got.Equal(day))

	_, err = types.NewText("not a date").Date()
	assert.Error(t, err)
}

func TestFieldValueString(t *testing.T) {
	tests := []struct {
		name string
		v    types.FieldValue
		want string
	}{
		{"text", types.NewText("hello"), "hello"},
		{"int", types.NewInt(42), "42"},
		{"bool", types.NewBool(false), "false"},
		{"list", types.NewList("a", "b", "c"), "a, b, c"},
		{"enum", types.NewEnum("high"), "high"},
		{"null", types.NewNull(), ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.v.String())
		})
	}
}
