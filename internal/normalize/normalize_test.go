package normalize_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"shipdecl/internal/domain"
	"shipdecl/internal/normalize"
)

func TestTrackingNumber(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"8846 0237 3339", "884602373339"},
		{"884-602-373-339", "884602373339"},
		{" 884.602/373#339 ", "884602373339"},
		{"", ""},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, normalize.TrackingNumber(tt.in))
		})
	}
}

func TestAWBNumber(t *testing.T) {
	t.Run("eleven digits gain a dash", func(t *testing.T) {
		assert.Equal(t, "235-30462681", normalize.AWBNumber("23530462681"))
		assert.Equal(t, "235-30462681", normalize.AWBNumber("235 30462681"))
	})

	t.Run("canonical form is idempotent", func(t *testing.T) {
		once := normalize.AWBNumber("235-30462681")
		assert.Equal(t, "235-30462681", once)
		assert.Equal(t, once, normalize.AWBNumber(once))
	})

	t.Run("dash halves are trimmed", func(t *testing.T) {
		assert.Equal(t, "AB-1234", normalize.AWBNumber("AB - 1234"))
	})

	t.Run("other values pass through", func(t *testing.T) {
		assert.Equal(t, "12345", normalize.AWBNumber("12345"))
		assert.Equal(t, "", normalize.AWBNumber(""))
	})
}

func TestPDONumbers(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"single", "PDO 2500444_dtd251006_NST.pdf", []string{"2500444"}},
		{"ampersand pair", "PDO 2500430 & 2500432_dtd250926_IFC.pdf", []string{"2500430", "2500432"}},
		{"comma partials", "PDO2500437,439,440,441_dtd251003_NST.pdf", []string{"2500437", "2500439", "2500440", "2500441"}},
		{"none", "scan_0001.pdf", []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, normalize.PDONumbers(tt.in))
		})
	}
}

func TestITRNumber(t *testing.T) {
	got, ok := normalize.ITRNumber("ITR 2502027_Invoice.pdf")
	require.True(t, ok)
	assert.Equal(t, "ITR 2502027", got)

	got, ok = normalize.ITRNumber("awb_som2502101.pdf")
	require.True(t, ok)
	assert.Equal(t, "SOM 2502101", got)

	_, ok = normalize.ITRNumber("invoice.pdf")
	assert.False(t, ok)
}

func TestParseDate(t *testing.T) {
	want := time.Date(2025, time.September, 23, 0, 0, 0, 0, time.UTC)
	for _, in := range []string{
		"23SEP25", "23sep2025", "2025-09-23", "2025-09-23T08:30:00",
		"23/09/2025", "23-09-2025", "23 Sep 2025", "23-Sep-2025", "23-Sep-25", "2025/09/23",
	} {
		t.Run(in, func(t *testing.T) {
			got, ok := normalize.ParseDate(in)
			require.True(t, ok)
			assert.Equal(t, want, got)
		})
	}

	for _, in := range []string{"", "soon", "31FEB25", "99/99/2025"} {
		t.Run("invalid "+in, func(t *testing.T) {
			_, ok := normalize.ParseDate(in)
			assert.False(t, ok)
		})
	}
}

func TestFormatDate(t *testing.T) {
	d := time.Date(2025, time.October, 3, 0, 0, 0, 0, time.UTC)
	assert.Equal(t, "03/10/2025", normalize.FormatDate(&d))
	assert.Equal(t, "", normalize.FormatDate(nil))
}

func TestCountryName(t *testing.T) {
	assert.Equal(t, "SINGAPORE", normalize.CountryName("sg"))
	assert.Equal(t, "UNITED KINGDOM", normalize.CountryName("GB"))
	assert.Equal(t, "ATLANTIS", normalize.CountryName("atlantis"))
}

func TestFormatCurrencyValue(t *testing.T) {
	assert.Equal(t, "1,234,567.50", normalize.FormatCurrencyValue(1234567.5, "USD"))
	assert.Equal(t, "12,345,679", normalize.FormatCurrencyValue(12345678.9, "IDR"))
	assert.Equal(t, "999.00", normalize.FormatCurrencyValue(999, "SGD"))
	assert.Equal(t, "-1,000.00", normalize.FormatCurrencyValue(-1000, "EUR"))
}

func TestDetectMode(t *testing.T) {
	table := map[string]string{"fedex": "COURIER", "singapore airlines": "AIR", "eva air": "AIR"}

	m, ok := normalize.DetectModeFromCarrier("FedEx International Priority", table)
	require.True(t, ok)
	assert.Equal(t, domain.TransportModeCourier, m)

	m, ok = normalize.DetectModeFromCarrier("EVA Air Cargo", table)
	require.True(t, ok)
	assert.Equal(t, domain.TransportModeAir, m)

	_, ok = normalize.DetectModeFromCarrier("", table)
	assert.False(t, ok)

	m, ok = normalize.DetectModeFromText("Port of Loading: Genoa")
	require.True(t, ok)
	assert.Equal(t, domain.TransportModeSea, m)

	_, ok = normalize.DetectModeFromText("nothing useful")
	assert.False(t, ok)
}
