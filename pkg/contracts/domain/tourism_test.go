package domain

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseTravelerType(t *testing.T) {
	tests := []struct {
		input   string
		want    TravelerType
		wantErr bool
	}{
		{input: "domestic", want: TravelerDomestic},
		{input: "Foreign", want: TravelerForeign},
		{input: " OVERSEAS ", want: TravelerOverseas},
		{input: "total", want: TravelerTotal},
		{input: "tourists", wantErr: true},
		{input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			got, err := ParseTravelerType(tt.input)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestTravelerTypeJSON(t *testing.T) {
	data, err := json.Marshal(map[string]TravelerType{"t": TravelerOverseas})
	require.NoError(t, err)
	assert.JSONEq(t, `{"t":"overseas"}`, string(data))

	var decoded struct {
		T TravelerType `json:"t"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"t":"domestic"}`), &decoded))
	assert.Equal(t, TravelerDomestic, decoded.T)

	assert.Error(t, json.Unmarshal([]byte(`{"t":"alien"}`), &decoded))
}

func TestTravelerTypeZeroValueIsTotal(t *testing.T) {
	var tt TravelerType
	assert.Equal(t, TravelerTotal, tt)
	assert.False(t, tt.IsConcrete())
	assert.True(t, tt.Valid())
	assert.False(t, TravelerType(42).Valid())
}

func TestWideRecordTotalIsDerived(t *testing.T) {
	w := WideRecord{Domestic: 100, Foreign: 10, Overseas: 1}

	assert.Equal(t, 111.0, w.Total())
	assert.Equal(t, 111.0, w.Count(TravelerTotal))
	assert.Equal(t, 10.0, w.Count(TravelerForeign))
	assert.Equal(t, Counts{Domestic: 100, Foreign: 10, Overseas: 1, Total: 111}, w.Counts())
}

func TestWideRecordObserved(t *testing.T) {
	var built WideRecord
	for _, tt := range ConcreteTravelerTypes() {
		assert.True(t, built.Observed(tt), "hand-built records observe every category")
	}
	assert.False(t, built.Observed(TravelerTotal))

	var partial WideRecord
	partial.Set(TravelerForeign, 5)
	partial.Set(TravelerTotal, 99)

	assert.True(t, partial.Observed(TravelerForeign))
	assert.False(t, partial.Observed(TravelerDomestic))
	assert.False(t, partial.Observed(TravelerOverseas))
	assert.Equal(t, 5.0, partial.Total())
}

func TestDivisionLabel(t *testing.T) {
	assert.Equal(t, "Alpha, North", DivisionLabel("Alpha", "North"))
	assert.Equal(t, "Alpha", DivisionLabel("Alpha", ""))
	assert.Equal(t, "North", DivisionLabel("", "North"))
}

func TestChangeBetween(t *testing.T) {
	tests := []struct {
		name        string
		base, end   float64
		wantDefined bool
		want        float64
		wantString  string
	}{
		{name: "increase", base: 100, end: 150, wantDefined: true, want: 50, wantString: "+50"},
		{name: "decrease", base: 200, end: 150, wantDefined: true, want: -25, wantString: "-25"},
		{name: "no change", base: 300, end: 300, wantDefined: true, want: 0, wantString: "0"},
		{name: "zero baseline", base: 0, end: 100, wantString: "-"},
		{name: "nan baseline", base: math.NaN(), end: 100, wantString: "-"},
		{name: "rounding", base: 3, end: 4, wantDefined: true, want: 100.0 / 3, wantString: "+33.33"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ChangeBetween(tt.base, tt.end)
			v, ok := got.Value()
			assert.Equal(t, tt.wantDefined, ok)
			if tt.wantDefined {
				assert.InDelta(t, tt.want, v, 1e-9)
			}
			assert.Equal(t, tt.wantString, got.String())
		})
	}
}

func TestPercentChangeJSON(t *testing.T) {
	payload := struct {
		A PercentChange `json:"a"`
		B PercentChange `json:"b"`
	}{A: DefinedChange(50), B: UndefinedChange}

	data, err := json.Marshal(payload)
	require.NoError(t, err)
	assert.JSONEq(t, `{"a":50,"b":"-"}`, string(data))

	var decoded struct {
		A PercentChange `json:"a"`
		B PercentChange `json:"b"`
	}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, payload.A, decoded.A)
	assert.False(t, decoded.B.IsDefined())

	assert.Equal(t, UndefinedChange, DefinedChange(math.Inf(1)))
}

func TestTrendSeriesSparkline(t *testing.T) {
	s := TrendSeries{Points: []TrendPoint{
		{Year: 2019, Count: 0},
		{Year: 2021, Count: 50},
		{Year: 2022, Count: math.NaN()},
		{Year: 2023, Count: 150},
	}}

	assert.Equal(t, []TrendPoint{{Year: 2021, Count: 50}, {Year: 2023, Count: 150}}, s.Sparkline())
	assert.Len(t, s.Points, 4, "raw series keeps zero and missing points")
}

func TestTrendSeriesReference(t *testing.T) {
	v := 100.0
	s := TrendSeries{References: []ReferenceCount{{Year: 2019, Count: &v}, {Year: 2021}}}

	got, ok := s.Reference(2019)
	assert.True(t, ok)
	assert.Equal(t, 100.0, got)

	_, ok = s.Reference(2021)
	assert.False(t, ok)
	_, ok = s.Reference(2023)
	assert.False(t, ok)
}
