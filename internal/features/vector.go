package features

// Model column names, in the order the regressor was trained with.
const (
	ColCompany     = "Company"
	ColTypeName    = "TypeName"
	ColRAM         = "Ram"
	ColWeight      = "Weight"
	ColTouchscreen = "Touchscreen"
	ColIPS         = "Ips"
	ColPPI         = "ppi"
	ColCPUBrand    = "Cpu brand"
	ColHDD         = "HDD"
	ColSSD         = "SSD"
	ColGPUBrand    = "Gpu brand"
	ColOS          = "os"
)

// Column is one input of the model: either a category label or a number.
type Column struct {
	Name        string
	Category    string
	Value       float64
	Categorical bool
}

// Vector is the canonical, ordered model input built from a FeatureRecord.
type Vector []Column

// Vector converts the record into model input columns.
func (r FeatureRecord) Vector() Vector {
	return Vector{
		{Name: ColCompany, Category: r.Company, Categorical: true},
		{Name: ColTypeName, Category: r.TypeName, Categorical: true},
		{Name: ColRAM, Value: float64(r.RAM)},
		{Name: ColWeight, Value: r.Weight},
		{Name: ColTouchscreen, Value: float64(r.Touchscreen)},
		{Name: ColIPS, Value: float64(r.IPS)},
		{Name: ColPPI, Value: r.PPI},
		{Name: ColCPUBrand, Category: r.CPUBrand, Categorical: true},
		{Name: ColHDD, Value: float64(r.HDD)},
		{Name: ColSSD, Value: float64(r.SSD)},
		{Name: ColGPUBrand, Category: r.GPUBrand, Categorical: true},
		{Name: ColOS, Category: r.OS, Categorical: true},
	}
}
