package domain

// ConnectionTuple is one row of the router connection table. Addresses may
// carry a ":port" suffix.
type ConnectionTuple struct {
	SrcAddress string `json:"srcAddress"`
	DstAddress string `json:"dstAddress"`
	Protocol   string `json:"protocol,omitempty"`
}

// GeoRecord is the location and organization data known for one IP.
// City and Organization are nil when the provider has no value.
type GeoRecord struct {
	IP           string  `json:"ip"`
	Latitude     float64 `json:"latitude"`
	Longitude    float64 `json:"longitude"`
	City         *string `json:"city"`
	Organization *string `json:"organization"`
}

// ExportRecord is one remote destination as served to the dashboard.
type ExportRecord struct {
	IP   string  `json:"ip"`
	Lat  float64 `json:"lat"`
	Lon  float64 `json:"lon"`
	Org  *string `json:"org"`
	City *string `json:"city"`
}
