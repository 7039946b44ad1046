package exporter

import (
	"fmt"
	"math"
	"strconv"
	"strings"

	"phtourism/pkg/contracts/domain"
)

var siPrefixes = []string{"y", "z", "a", "f", "p", "µ", "m", "", "k", "M", "G", "T", "P", "E", "Z", "Y"}

// formatCount formats a count without a fixed precision: 1200 stays "1200".
func formatCount(f float64) string {
	return strconv.FormatFloat(f, 'f', -1, 64)
}

// formatBool formats a boolean value for CSV output
func formatBool(b bool) string {
	if b {
		return "true"
	}
	return "false"
}

// FormatSI formats v with an SI prefix and the given number of significant
// digits: FormatSI(1234, 2) is "1.2k", FormatSI(123, 2) is "120".
func FormatSI(v float64, precision int) string {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return "-"
	}
	precision = max(1, min(21, precision))

	sign := ""
	if v < 0 {
		sign, v = "-", -v
	}

	coeff, exp := decimalParts(v, precision)
	pe := max(-8, min(8, int(math.Floor(float64(exp)/3))))
	i := exp - pe*3 + 1
	n := len(coeff)

	var s string
	switch {
	case i == n:
		s = coeff
	case i > n:
		s = coeff + strings.Repeat("0", i-n)
	case i > 0:
		s = coeff[:i] + "." + coeff[i:]
	default:
		digits, _ := decimalParts(v, max(0, precision+i-1))
		s = "0." + strings.Repeat("0", -i) + digits
	}
	return sign + s + siPrefixes[8+pe]
}

// FormatSITrim is FormatSI with insignificant trailing zeros removed, as used
// for legend labels: 200000 is "200k", 1000000 is "1M".
func FormatSITrim(v float64) string {
	s := FormatSI(v, 6)
	end := len(s)
	for end > 0 && (s[end-1] < '0' || s[end-1] > '9') && s[end-1] != '.' {
		end--
	}
	num, suffix := s[:end], s[end:]
	if strings.Contains(num, ".") {
		num = strings.TrimRight(num, "0")
		num = strings.TrimSuffix(num, ".")
	}
	return num + suffix
}

// decimalParts returns the significant digits of x rounded to p digits and the
// decimal exponent of the first digit. p <= 0 keeps every digit.
func decimalParts(x float64, p int) (string, int) {
	prec := p - 1
	if p <= 0 {
		prec = -1
	}
	s := strconv.FormatFloat(x, 'e', prec, 64)
	mantissa, expText, _ := strings.Cut(s, "e")
	exp, _ := strconv.Atoi(expText)
	return strings.Replace(mantissa, ".", "", 1), exp
}

// FormatChange renders a percentage change for display: "+50%", "-25%", or
// "-" when undefined.
func FormatChange(p domain.PercentChange) string {
	v, ok := p.Value()
	switch {
	case !ok:
		return "-"
	case v > 0:
		return "+" + FormatSI(v, 2) + "%"
	case v == 0:
		return "0%"
	}
	return FormatSI(v, 2) + "%"
}

// LegendTicks returns n evenly spaced, rounded values up to maxValue for a
// magnitude legend: LegendTicks(1e6, 5) is 200k, 400k, 600k, 800k, 1M.
func LegendTicks(maxValue float64, n int) []float64 {
	if n <= 0 || maxValue <= 0 || math.IsNaN(maxValue) || math.IsInf(maxValue, 0) {
		return []float64{}
	}
	step := niceStep(maxValue / float64(n))
	ticks := make([]float64, 0, n+1)
	for k := 1; float64(k)*step <= maxValue*(1+1e-9); k++ {
		ticks = append(ticks, float64(k)*step)
	}
	return ticks
}

func niceStep(raw float64) float64 {
	mag := math.Pow(10, math.Floor(math.Log10(raw)))
	switch r := raw / mag; {
	case r <= 1:
		return mag
	case r <= 2:
		return 2 * mag
	case r <= 5:
		return 5 * mag
	}
	return 10 * mag
}
