// Package openepd adapts the Building Transparency EC3 / OpenEPD API.
//
// OpenEPD declares GWP per declared unit. Values are converted to per-kg
// during sync: mass units are rescaled, per-m³ values are divided by the
// EPD density and per-m² declarations are skipped.
package openepd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rshade/lcamatch/internal/config"
	"github.com/rshade/lcamatch/internal/indicator"
	"github.com/rshade/lcamatch/internal/logging"
	"github.com/rshade/lcamatch/internal/material"
	"github.com/rshade/lcamatch/internal/source"
)

// ErrMissingAPIKey is returned by a sync when no OpenEPD API key is set.
var ErrMissingAPIKey = errors.New("OPENEPD_API_KEY is not configured")

const (
	// PageSize is the number of EPDs requested per page.
	PageSize = 100

	// MaxPages caps one sync. A pull that hits the cap is incomplete.
	MaxPages = 200
)

type searchResponse struct {
	Results []epd  `json:"results"`
	Count   int    `json:"count"`
	Next    string `json:"next"`
}

type epd struct {
	ID           string `json:"id"`
	Name         string `json:"name"`
	ProductName  string `json:"product_name"`
	Manufacturer struct {
		Name string `json:"name"`
	} `json:"manufacturer"`
	Category struct {
		Name string `json:"name"`
	} `json:"category"`
	DeclaredUnit string        `json:"declared_unit"`
	Density      source.Number `json:"density"`
	GWP          struct {
		A1A2A3 source.Number `json:"a1a2a3"`
		C      source.Number `json:"c"`
		Total  source.Number `json:"total"`
	} `json:"gwp"`
	PlantOrGroup struct {
		OwnedBy struct {
			Name string `json:"name"`
		} `json:"owned_by"`
	} `json:"plant_or_group"`
	ValidUntil      string `json:"valid_until"`
	ProgramOperator struct {
		Name string `json:"name"`
	} `json:"program_operator"`
}

// Info returns the OpenEPD source metadata for cfg.
func Info(cfg config.SourceConfig) source.Info {
	return source.Info{
		ID:                 material.SourceOpenEPD,
		Name:               "OpenEPD / EC3 (Global)",
		Region:             "Global",
		CountryFlag:        "🌍",
		URL:                "https://buildingtransparency.org",
		Description:        "Global EPD database from Building Transparency (EC3), GWP only.",
		Indicators:         []indicator.Key{indicator.GWPTotal},
		RequiredIndicators: []indicator.Key{indicator.GWPTotal},
		RequiresAuth:       true,
		IsConfigured:       cfg.APIKey != "",
		Priority:           cfg.Priority,
		SearchStyle:        source.SearchSubstring,
	}
}

// New creates the OpenEPD adapter. client may be nil.
func New(
	cfg config.SourceConfig,
	st source.MaterialStore,
	client *http.Client,
	timeout, ttl time.Duration,
	opts ...source.Option,
) *source.Base {
	f := &fetcher{
		http:    source.NewHTTPClient(client, timeout, source.BearerHeader(cfg.APIKey)),
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:  cfg.APIKey,
		now:     time.Now,
	}
	return source.NewBase(Info(cfg), st, f, ttl, opts...)
}

type fetcher struct {
	http    *source.HTTPClient
	baseURL string
	apiKey  string
	now     func() time.Time
}

// Fetch follows the paginated EPD listing.
func (f *fetcher) Fetch(ctx context.Context) (source.FetchResult, error) {
	if f.apiKey == "" {
		return source.FetchResult{}, ErrMissingAPIKey
	}
	log := logging.FromContext(ctx)
	syncedAt := f.now().UTC()

	next := fmt.Sprintf("%s/api/epds?q=&page_size=%d", f.baseURL, PageSize)
	res := source.FetchResult{}
	for page := 0; next != ""; page++ {
		if page == MaxPages {
			log.Warn().
				Ctx(ctx).
				Str("component", "source").
				Str("operation", "fetch").
				Str("source", string(material.SourceOpenEPD)).
				Int("max_pages", MaxPages).
				Msg("page cap reached, pull is incomplete")
			return res, nil
		}
		var body searchResponse
		if err := f.http.GetJSON(ctx, next, &body); err != nil {
			if page == 0 {
				return source.FetchResult{}, err
			}
			// Keep the pages already read but never prune on a partial pull.
			res.Errors++
			return res, nil
		}
		for _, raw := range body.Results {
			m, ok := f.normalize(ctx, raw, syncedAt)
			if !ok {
				res.Skipped++
				continue
			}
			res.Materials = append(res.Materials, m)
		}
		next = f.resolve(next, body.Next)
	}
	res.Complete = true
	return res, nil
}

// resolve turns a relative "next" link into an absolute URL.
func (f *fetcher) resolve(current, next string) string {
	if next == "" {
		return ""
	}
	base, err := url.Parse(current)
	if err != nil {
		return next
	}
	ref, err := url.Parse(next)
	if err != nil {
		return ""
	}
	return base.ResolveReference(ref).String()
}

// declaredGWP returns total, or A1-A3 plus C when total is missing.
func declaredGWP(raw epd) (float64, bool) {
	if raw.GWP.Total.Valid {
		return raw.GWP.Total.Value, true
	}
	if !raw.GWP.A1A2A3.Valid {
		return 0, false
	}
	v := raw.GWP.A1A2A3.Value
	if raw.GWP.C.Valid {
		v += raw.GWP.C.Value
	}
	return v, true
}

func (f *fetcher) normalize(ctx context.Context, raw epd, syncedAt time.Time) (material.NormalizedMaterial, bool) {
	if raw.ID == "" {
		return material.NormalizedMaterial{}, false
	}
	gwp, ok := declaredGWP(raw)
	if !ok {
		return material.NormalizedMaterial{}, false
	}

	unit := raw.DeclaredUnit
	if strings.TrimSpace(unit) == "" {
		unit = "kg"
	}
	density := raw.Density.Positive()
	var d float64
	if density != nil {
		d = *density
	}
	perKg, known, err := indicator.NormalizePerKg(gwp, unit, d)
	if err != nil {
		return material.NormalizedMaterial{}, false
	}
	if !known {
		logging.FromContext(ctx).Debug().
			Ctx(ctx).
			Str("component", "source").
			Str("operation", "normalize").
			Str("source", string(material.SourceOpenEPD)).
			Str("declared_unit", unit).
			Str("epd_id", raw.ID).
			Msg("unknown declared unit, using GWP as declared")
	}

	name := firstNonEmpty(raw.ProductName, raw.Name, raw.PlantOrGroup.OwnedBy.Name, "Unknown")
	m := material.NormalizedMaterial{
		Source:       material.SourceOpenEPD,
		SourceID:     raw.ID,
		Name:         name,
		Category:     raw.Category.Name,
		Density:      density,
		DeclaredUnit: unit,
		Indicators:   indicator.Values{indicator.GWPTotal: perKg},
		Metadata: material.Metadata{
			Version:  firstNonEmpty(raw.ProgramOperator.Name, "openEPD"),
			Scope:    "A1-A3",
			SyncedAt: syncedAt,
			URL:      "https://buildingtransparency.org/ec3/epds/" + url.PathEscape(raw.ID),
		},
	}
	if t, err := time.Parse("2006-01-02", strings.TrimSpace(raw.ValidUntil)); err == nil {
		m.Metadata.ValidUntil = &t
	} else if t, err := time.Parse(time.RFC3339, strings.TrimSpace(raw.ValidUntil)); err == nil {
		m.Metadata.ValidUntil = &t
	}
	m.Normalize()
	return m, true
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if s := strings.TrimSpace(v); s != "" {
			return s
		}
	}
	return ""
}
