package model

// CPRLevels is the Central Pivot Range derived from one reference bar.
type CPRLevels struct {
	Pivot         float64 `json:"pivot"`
	BottomCentral float64 `json:"bc"`
	TopCentral    float64 `json:"tc"`
	WidthPct      float64 `json:"width_pct"`
}

// CamarillaLevels holds the H3/H4 and L3/L4 bands around a central point.
type CamarillaLevels struct {
	H3     float64 `json:"h3"`
	L3     float64 `json:"l3"`
	H4     float64 `json:"h4"`
	L4     float64 `json:"l4"`
	Center float64 `json:"center"`
}

// CenterPolicy selects the Camarilla central point.
type CenterPolicy string

const (
	// CenterPivotAverage uses (high+low+close)/3.
	CenterPivotAverage CenterPolicy = "pivot"
	// CenterClose uses the reference close.
	CenterClose CenterPolicy = "close"
)

// Granularity selects which bar series the Inside Camarilla test compares.
type Granularity string

const (
	GranularityMonthly Granularity = "monthly"
	GranularityDaily   Granularity = "daily"
)
