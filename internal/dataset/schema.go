package dataset

// RequiredColumns is the full sales schema. Datasets lacking some of these
// still load; the features depending on them are switched off.
var RequiredColumns = []string{
	ColOrderDate, ColRegion, ColState, ColCity, ColCategory,
	ColSales, ColProfit, ColQuantity, ColSegment, ColSubCategory,
}

// MissingColumns returns required minus present, in required order.
func MissingColumns(present, required []string) []string {
	have := make(map[string]struct{}, len(present))
	for _, c := range present {
		have[c] = struct{}{}
	}
	var missing []string
	for _, c := range required {
		if _, ok := have[c]; !ok {
			missing = append(missing, c)
		}
	}
	return missing
}

// CheckSchema returns a SchemaWarning when required columns are absent, or nil.
func CheckSchema(d *Dataset) *SchemaWarning {
	missing := MissingColumns(d.Columns, RequiredColumns)
	if len(missing) == 0 {
		return nil
	}
	return &SchemaWarning{Missing: missing}
}

// Feature names one dashboard section
type Feature string

const (
	FeatureDateRange       Feature = "date_range"
	FeatureFilterRegion    Feature = "filter_region"
	FeatureFilterState     Feature = "filter_state"
	FeatureFilterCity      Feature = "filter_city"
	FeatureSalesByCategory Feature = "sales_by_category"
	FeatureSalesByRegion   Feature = "sales_by_region"
	FeatureSalesOverTime   Feature = "sales_over_time"
	FeatureSalesHierarchy  Feature = "sales_hierarchy"
	FeatureSalesBySegment  Feature = "sales_by_segment"
	FeatureCategoryShare   Feature = "category_share"
	FeatureSampleTable     Feature = "sample_table"
	FeaturePivotTable      Feature = "pivot_table"
	FeatureSalesVsProfit   Feature = "sales_vs_profit"
)

// Capability binds a feature to the columns it cannot run without.
type Capability struct {
	Feature  Feature
	Requires []string
}

// Capabilities is the feature table in page order. The sample table has no
// gate: its column problems surface as a TableRenderError placeholder.
var Capabilities = []Capability{
	{FeatureDateRange, []string{ColOrderDate}},
	{FeatureFilterRegion, []string{ColRegion}},
	{FeatureFilterState, []string{ColState}},
	{FeatureFilterCity, []string{ColCity}},
	{FeatureSalesByCategory, []string{ColCategory, ColSales}},
	{FeatureSalesByRegion, []string{ColRegion, ColSales}},
	{FeatureSalesOverTime, []string{ColOrderDate, ColSales}},
	{FeatureSalesHierarchy, []string{ColRegion, ColCategory, ColSubCategory, ColState, ColSales}},
	{FeatureSalesBySegment, []string{ColSegment, ColSales}},
	{FeatureCategoryShare, []string{ColCategory, ColSales}},
	{FeatureSampleTable, nil},
	{FeaturePivotTable, []string{ColOrderDate, ColSubCategory}},
	{FeatureSalesVsProfit, []string{ColSales, ColProfit, ColQuantity}},
}

// CapabilitySet is the result of checking the feature table against one
// dataset's columns.
type CapabilitySet map[Feature][]string

// CheckCapabilities evaluates every feature once. The returned set maps each
// feature to its missing columns; an empty entry means enabled.
func CheckCapabilities(columns []string) CapabilitySet {
	set := make(CapabilitySet, len(Capabilities))
	for _, c := range Capabilities {
		set[c.Feature] = MissingColumns(columns, c.Requires)
	}
	return set
}

// Enabled reports whether every column the feature needs is present.
func (s CapabilitySet) Enabled(f Feature) bool {
	missing, known := s[f]
	return known && len(missing) == 0
}

// Missing returns the columns keeping the feature disabled
func (s CapabilitySet) Missing(f Feature) []string {
	return s[f]
}
