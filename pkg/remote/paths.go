package remote

import (
	"net/url"

	"github.com/angelmondragon/posdesk/pkg/enums"
)

// CollectionPath is the REST collection endpoint for a local collection.
func CollectionPath(table enums.Collection) string {
	return "/" + string(table)
}

// RecordPath addresses one record; settings are addressed by owner id.
func RecordPath(table enums.Collection, id string) string {
	return "/" + string(table) + "/" + url.PathEscape(id)
}

// ScopeQuery filters a collection by its owning store or business.
func ScopeQuery(column, value string) url.Values {
	if column == "" || value == "" {
		return nil
	}
	return url.Values{column: []string{value}}
}
