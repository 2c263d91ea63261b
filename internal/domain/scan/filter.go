package scan

import "github.com/om239903-ai/internship-project/internal/domain/model"

// Filter applies the predicates the source query cannot enforce.
type Filter struct {
	cfg model.ScanConfig
}

// NewFilter builds a filter from a normalized config.
func NewFilter(cfg model.ScanConfig) Filter {
	return Filter{cfg: cfg}
}

// Keep reports whether item survives the config's filters.
func (f Filter) Keep(item model.SourceItem) bool {
	if item.Archived && !f.cfg.IncludeArchived {
		return false
	}

	filters := f.cfg.Filters
	if filters.Pipeline != "" && !propEquals(item, model.PropertyPipeline, filters.Pipeline) {
		return false
	}
	if filters.Stage != "" && !propEquals(item, model.PropertyDealStage, filters.Stage) {
		return false
	}
	if dr := filters.DateRange; dr != nil {
		ts := ParseSourceTime(item.Properties[dr.Property])
		if ts == nil {
			return false
		}
		if dr.From != nil && ts.Before(*dr.From) {
			return false
		}
		if dr.To != nil && ts.After(*dr.To) {
			return false
		}
	}
	return true
}

// Split partitions items into kept and the number dropped.
func (f Filter) Split(items []model.SourceItem) ([]model.SourceItem, int) {
	kept := make([]model.SourceItem, 0, len(items))
	for _, item := range items {
		if f.Keep(item) {
			kept = append(kept, item)
		}
	}
	return kept, len(items) - len(kept)
}

func propEquals(item model.SourceItem, key, want string) bool {
	v := stringProp(item.Properties, key)
	return v != nil && *v == want
}
