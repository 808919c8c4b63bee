package calc

import (
	"context"
	"errors"

	"github.com/rshade/lcamatch/internal/indicator"
	"github.com/rshade/lcamatch/internal/lcaerr"
	"github.com/rshade/lcamatch/internal/store"
)

// PropertySetName is the IFC property set the exported values belong to.
const PropertySetName = "CPset_LCA"

// ElementExport holds the values written back into one IFC element. A nil
// indicator is unknown, not zero.
type ElementExport struct {
	GWP    *float64 `json:"GWP"`
	PENRE  *float64 `json:"PENRE"`
	UBP    *float64 `json:"UBP"`
	Volume float64  `json:"volume"`
}

// Export maps element GUIDs to their exported values.
type Export struct {
	ProjectID   string                   `json:"projectId"`
	PropertySet string                   `json:"propertySet"`
	Elements    map[string]ElementExport `json:"elements"`
}

// ExportIndicators returns the cached core indicators of every element,
// keyed by GUID.
func (e *Engine) ExportIndicators(ctx context.Context, projectID string) (*Export, error) {
	in, err := e.projects.LoadCalculationInput(ctx, projectID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, lcaerr.NotFound("project", projectID)
	}
	if err != nil {
		return nil, err
	}

	out := &Export{
		ProjectID:   projectID,
		PropertySet: PropertySetName,
		Elements:    make(map[string]ElementExport, len(in.Elements)),
	}
	for _, el := range in.Elements {
		el := el
		v := el.IndicatorValues()
		var volume float64
		for _, l := range in.Layers[el.ID] {
			volume += l.Volume
		}
		out.Elements[el.GUID] = ElementExport{
			GWP:    v.Ptr(indicator.GWPTotal),
			PENRE:  v.Ptr(indicator.PENRETotal),
			UBP:    v.Ptr(indicator.UBP),
			Volume: volume,
		}
	}
	return out, nil
}
