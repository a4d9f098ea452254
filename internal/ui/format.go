package ui

import (
	"strconv"
	"strings"
	"time"

	"github.com/bamsammich/ferry/internal/stats"
)

var rateUnits = [...]string{"B/s", "KB/s", "MB/s", "GB/s", "TB/s", "PB/s"}

// FormatRate renders bytes per second with three significant digits.
func FormatRate(bytesPerSec float64) string {
	if bytesPerSec <= 0 {
		return "0 B/s"
	}
	i := 0
	for bytesPerSec >= 1024 && i < len(rateUnits)-1 {
		bytesPerSec /= 1024
		i++
	}
	prec := 0
	switch {
	case bytesPerSec < 10:
		prec = 2
	case bytesPerSec < 100:
		prec = 1
	}
	return strconv.FormatFloat(bytesPerSec, 'f', prec, 64) + " " + rateUnits[i]
}

// FormatETA is FormatDuration with "--" for an unknown remainder.
func FormatETA(d time.Duration) string {
	if d <= 0 {
		return "--"
	}
	return FormatDuration(d)
}

// FormatDuration renders d as "7s", "3m 05s" or "1h 02m 03s".
func FormatDuration(d time.Duration) string {
	secs := int64(d.Round(time.Second) / time.Second)
	h, m, s := secs/3600, secs/60%60, secs%60

	var b strings.Builder
	if h > 0 {
		b.WriteString(strconv.FormatInt(h, 10) + "h ")
	}
	if h > 0 || m > 0 {
		b.WriteString(pad2(m, h > 0) + "m ")
	}
	b.WriteString(pad2(s, h > 0 || m > 0) + "s")
	return b.String()
}

func pad2(n int64, pad bool) string {
	s := strconv.FormatInt(n, 10)
	if pad && n < 10 {
		return "0" + s
	}
	return s
}

// FormatCount groups digits in thousands: 14302 → "14,302".
func FormatCount(n int64) string {
	digits := strconv.FormatInt(n, 10)
	sign := ""
	if n < 0 {
		sign, digits = "-", digits[1:]
	}
	var groups []string
	for len(digits) > 3 {
		groups = append([]string{digits[len(digits)-3:]}, groups...)
		digits = digits[:len(digits)-3]
	}
	return sign + strings.Join(append([]string{digits}, groups...), ",")
}

// ProgressBar draws pct (clamped to [0, 1]) as width ▪/□ cells.
func ProgressBar(pct float64, width int) string {
	if width <= 0 {
		return ""
	}
	filled := int(min(max(pct, 0), 1) * float64(width))
	return strings.Repeat("▪", filled) + strings.Repeat("□", width-filled)
}

// Percent returns done/total clamped to [0, 1]; an unknown total is 0.
func Percent(done, total int64) float64 {
	if total <= 0 {
		return 0
	}
	return min(float64(done)/float64(total), 1)
}

// FormatBytes renders a byte count in binary units.
func FormatBytes(b int64) string {
	return stats.FormatBytes(b)
}
