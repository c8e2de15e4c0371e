package features

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// canonical renders every field as name=value, sorted by name, so the digest
// depends only on field values and never on how the record was assembled.
func (r FeatureRecord) canonical() string {
	pairs := map[string]string{
		FieldCompany:     r.Company,
		FieldTypeName:    r.TypeName,
		FieldRAM:         strconv.Itoa(r.RAM),
		FieldWeight:      strconv.FormatFloat(r.Weight, 'g', -1, 64),
		FieldTouchscreen: strconv.Itoa(r.Touchscreen),
		FieldIPS:         strconv.Itoa(r.IPS),
		FieldPPI:         strconv.FormatFloat(r.PPI, 'g', -1, 64),
		FieldCPUBrand:    r.CPUBrand,
		FieldHDD:         strconv.Itoa(r.HDD),
		FieldSSD:         strconv.Itoa(r.SSD),
		FieldGPUBrand:    r.GPUBrand,
		FieldOS:          r.OS,
	}

	keys := make([]string, 0, len(pairs))
	for k := range pairs {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var b strings.Builder
	for _, k := range keys {
		b.WriteString(k)
		b.WriteByte('=')
		b.WriteString(pairs[k])
		b.WriteByte(0x1f)
	}
	return b.String()
}

// Fingerprint returns the cache key for the record. It is stable for the
// lifetime of the process; nothing persists it.
func (r FeatureRecord) Fingerprint() string {
	return fmt.Sprintf("prediction:%016x", xxhash.Sum64String(r.canonical()))
}
