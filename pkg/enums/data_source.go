package enums

// DataSource tells a caller where a query result came from.
type DataSource string

const (
	DataSourceNetwork DataSource = "network"
	DataSourceCache   DataSource = "cache"
)

// String implements fmt.Stringer.
func (s DataSource) String() string {
	return string(s)
}

// IsDegraded reports whether the data was served without reaching upstream.
func (s DataSource) IsDegraded() bool {
	return s == DataSourceCache
}
