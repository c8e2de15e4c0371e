// Package features defines the laptop feature record accepted by the predictor,
// its enumerated domains, the schema validator that builds it from untyped input,
// and the fingerprint used as the result cache key.
package features

// Field names as they appear in API payloads and persisted records.
const (
	FieldCompany     = "company"
	FieldTypeName    = "type_name"
	FieldRAM         = "ram"
	FieldWeight      = "weight"
	FieldTouchscreen = "touchscreen"
	FieldIPS         = "ips"
	FieldPPI         = "ppi"
	FieldCPUBrand    = "cpu_brand"
	FieldHDD         = "hdd"
	FieldSSD         = "ssd"
	FieldGPUBrand    = "gpu_brand"
	FieldOS          = "os"
)

// Enumerated domains of the categorical fields.
var (
	Companies = []string{"Apple", "HP", "Acer", "Asus", "Dell", "Lenovo", "MSI", "Toshiba", "Samsung", "Other"}
	TypeNames = []string{"Ultrabook", "Notebook", "Netbook", "Gaming", "2 in 1 Convertible", "Workstation"}
	CPUBrands = []string{"Intel Core i3", "Intel Core i5", "Intel Core i7", "AMD Processor", "Other Intel Processor"}
	GPUBrands = []string{"Intel", "AMD", "Nvidia"}
	OSes      = []string{"Mac", "Windows", "Others/No OS/Linux"}

	// RAMSizes lists the only accepted RAM capacities in GB.
	RAMSizes = []int{2, 4, 6, 8, 12, 16, 24, 32, 64}
)

// Closed numeric ranges, inclusive of both bounds.
const (
	MinWeight = 0.5
	MaxWeight = 5.0
	MinPPI    = 90.0
	MaxPPI    = 400.0
	MinHDD    = 0
	MaxHDD    = 2000
	MinSSD    = 0
	MaxSSD    = 2048
)

// FeatureRecord is the canonical, validated description of a laptop.
// Values are only produced by Validate and are never mutated afterwards.
type FeatureRecord struct {
	Company     string  `json:"company"`
	TypeName    string  `json:"type_name"`
	RAM         int     `json:"ram"`
	Weight      float64 `json:"weight"`
	Touchscreen int     `json:"touchscreen"`
	IPS         int     `json:"ips"`
	PPI         float64 `json:"ppi"`
	CPUBrand    string  `json:"cpu_brand"`
	HDD         int     `json:"hdd"`
	SSD         int     `json:"ssd"`
	GPUBrand    string  `json:"gpu_brand"`
	OS          string  `json:"os"`
}

// Map returns the record as an untyped map keyed by API field names.
// Validate(r.Map()) yields r again.
func (r FeatureRecord) Map() map[string]any {
	return map[string]any{
		FieldCompany:     r.Company,
		FieldTypeName:    r.TypeName,
		FieldRAM:         r.RAM,
		FieldWeight:      r.Weight,
		FieldTouchscreen: r.Touchscreen,
		FieldIPS:         r.IPS,
		FieldPPI:         r.PPI,
		FieldCPUBrand:    r.CPUBrand,
		FieldHDD:         r.HDD,
		FieldSSD:         r.SSD,
		FieldGPUBrand:    r.GPUBrand,
		FieldOS:          r.OS,
	}
}
