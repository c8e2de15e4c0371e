package features

import (
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sampleInput() map[string]any {
	return map[string]any{
		"company":     "Dell",
		"type_name":   "Notebook",
		"ram":         8.0,
		"weight":      2.0,
		"touchscreen": 0.0,
		"ips":         1.0,
		"ppi":         141.21,
		"cpu_brand":   "Intel Core i5",
		"hdd":         0.0,
		"ssd":         256.0,
		"gpu_brand":   "Intel",
		"os":          "Windows",
	}
}

func TestValidate_Valid(t *testing.T) {
	rec, err := Validate(sampleInput())
	require.NoError(t, err)

	assert.Equal(t, FeatureRecord{
		Company:     "Dell",
		TypeName:    "Notebook",
		RAM:         8,
		Weight:      2.0,
		Touchscreen: 0,
		IPS:         1,
		PPI:         141.21,
		CPUBrand:    "Intel Core i5",
		HDD:         0,
		SSD:         256,
		GPUBrand:    "Intel",
		OS:          "Windows",
	}, rec)
}

func TestValidate_RAM(t *testing.T) {
	for _, ram := range RAMSizes {
		in := sampleInput()
		in["ram"] = ram
		_, err := Validate(in)
		assert.NoError(t, err, "ram=%d should be accepted", ram)
	}

	for _, ram := range []any{5, 3.0, 8.5, 128, 0, "8"} {
		in := sampleInput()
		in["ram"] = ram
		_, err := Validate(in)

		var verr *ValidationError
		require.True(t, errors.As(err, &verr), "ram=%v should be rejected", ram)
		assert.True(t, verr.Has(FieldRAM))
	}
}

func TestValidate_BoundsInclusive(t *testing.T) {
	tests := []struct {
		field string
		value any
		ok    bool
	}{
		{FieldWeight, 0.5, true},
		{FieldWeight, 5.0, true},
		{FieldWeight, 0.49, false},
		{FieldWeight, 5.01, false},
		{FieldPPI, 90.0, true},
		{FieldPPI, 400.0, true},
		{FieldPPI, 89.9, false},
		{FieldPPI, 400.1, false},
		{FieldHDD, 2000.0, true},
		{FieldHDD, 2001.0, false},
		{FieldHDD, -1.0, false},
		{FieldSSD, 2048.0, true},
		{FieldSSD, 2049.0, false},
		{FieldSSD, 128.5, false},
		{FieldTouchscreen, 1.0, true},
		{FieldTouchscreen, 2.0, false},
		{FieldIPS, true, true},
		{FieldIPS, "yes", false},
	}

	for _, tt := range tests {
		in := sampleInput()
		in[tt.field] = tt.value
		_, err := Validate(in)
		if tt.ok {
			assert.NoError(t, err, "%s=%v", tt.field, tt.value)
		} else {
			assert.Error(t, err, "%s=%v", tt.field, tt.value)
		}
	}
}

func TestValidate_DefaultsFlags(t *testing.T) {
	in := sampleInput()
	delete(in, "touchscreen")
	delete(in, "ips")

	rec, err := Validate(in)
	require.NoError(t, err)
	assert.Zero(t, rec.Touchscreen)
	assert.Zero(t, rec.IPS)
}

func TestValidate_RequiredFields(t *testing.T) {
	for _, field := range []string{FieldCompany, FieldTypeName, FieldRAM, FieldWeight, FieldPPI,
		FieldCPUBrand, FieldHDD, FieldSSD, FieldGPUBrand, FieldOS} {
		in := sampleInput()
		delete(in, field)

		_, err := Validate(in)
		var verr *ValidationError
		require.True(t, errors.As(err, &verr), "missing %s should fail", field)
		assert.True(t, verr.Has(field))
	}
}

func TestValidate_ReportsEveryViolation(t *testing.T) {
	in := sampleInput()
	in["company"] = "Nokia"
	in["ram"] = 5
	in["weight"] = 9.0
	in["os"] = nil

	_, err := Validate(in)
	var verr *ValidationError
	require.True(t, errors.As(err, &verr))
	assert.Len(t, verr.Violations, 4)
	for _, f := range []string{FieldCompany, FieldRAM, FieldWeight, FieldOS} {
		assert.True(t, verr.Has(f), "expected violation for %s", f)
	}
	assert.Contains(t, err.Error(), "company")
}

func TestValidate_JSONNumber(t *testing.T) {
	body := `{"company":"HP","type_name":"Gaming","ram":16,"weight":2.5,"ppi":141.21,
		"cpu_brand":"Intel Core i7","hdd":1000,"ssd":512,"gpu_brand":"Nvidia","os":"Windows"}`
	dec := json.NewDecoder(strings.NewReader(body))
	dec.UseNumber()
	var in map[string]any
	require.NoError(t, dec.Decode(&in))

	rec, err := Validate(in)
	require.NoError(t, err)
	assert.Equal(t, 16, rec.RAM)
	assert.Equal(t, 1000, rec.HDD)
}

func TestValidate_RoundTripThroughMap(t *testing.T) {
	rec, err := Validate(sampleInput())
	require.NoError(t, err)

	again, err := Validate(rec.Map())
	require.NoError(t, err)
	assert.Equal(t, rec, again)
}

func TestFingerprint_OrderIndependent(t *testing.T) {
	a, err := Validate(sampleInput())
	require.NoError(t, err)

	// same values inserted in a different order and with int instead of float
	reordered := map[string]any{}
	keys := []string{"os", "gpu_brand", "ssd", "hdd", "cpu_brand", "ppi", "ips", "touchscreen", "weight", "ram", "type_name", "company"}
	src := sampleInput()
	for _, k := range keys {
		reordered[k] = src[k]
	}
	reordered["ram"] = 8
	reordered["weight"] = 2

	b, err := Validate(reordered)
	require.NoError(t, err)

	assert.Equal(t, a.Fingerprint(), b.Fingerprint())
}

func TestFingerprint_DiffersOnAnyField(t *testing.T) {
	base, err := Validate(sampleInput())
	require.NoError(t, err)

	changes := map[string]any{
		"company":     "HP",
		"ram":         16,
		"weight":      2.1,
		"touchscreen": 1,
		"ppi":         200.0,
		"ssd":         512,
		"os":          "Mac",
	}
	for field, value := range changes {
		in := sampleInput()
		in[field] = value
		other, err := Validate(in)
		require.NoError(t, err)
		assert.NotEqual(t, base.Fingerprint(), other.Fingerprint(), "changing %s", field)
	}
}

func TestVector_ColumnOrder(t *testing.T) {
	rec, err := Validate(sampleInput())
	require.NoError(t, err)

	v := rec.Vector()
	require.Len(t, v, 12)
	names := make([]string, len(v))
	for i, c := range v {
		names[i] = c.Name
	}
	assert.Equal(t, []string{"Company", "TypeName", "Ram", "Weight", "Touchscreen", "Ips", "ppi",
		"Cpu brand", "HDD", "SSD", "Gpu brand", "os"}, names)
	assert.Equal(t, "Dell", v[0].Category)
	assert.True(t, v[0].Categorical)
	assert.Equal(t, 8.0, v[2].Value)
}
