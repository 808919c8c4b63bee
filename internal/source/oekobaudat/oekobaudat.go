// Package oekobaudat adapts the German Ökobaudat ILCD+EPD soda4LCA API.
//
// The list endpoint only returns summaries, so a sync pages through the
// process list and then loads every process in its extended view. LCIA
// amounts of the production modules A1, A2, A3 (or the aggregated "A1-A3")
// are summed per declared unit and converted into per-kg factors through
// the reference flow property. Datasets declared per m², m or piece cannot
// be converted and are skipped.
package oekobaudat

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/rshade/lcamatch/internal/config"
	"github.com/rshade/lcamatch/internal/indicator"
	"github.com/rshade/lcamatch/internal/logging"
	"github.com/rshade/lcamatch/internal/material"
	"github.com/rshade/lcamatch/internal/source"
)

const (
	// PageSize is the list page size; a shorter page ends the listing.
	PageSize = 500

	// DetailConcurrency bounds parallel process detail requests.
	DetailConcurrency = 8

	standard = "EN 15804+A2"
	scope    = "A1-A3"
)

// methodIndicators maps EN 15804+A2 LCIA method UUIDs to indicator keys.
//
//nolint:gochecknoglobals // static lookup table
var methodIndicators = map[string]indicator.Key{
	"77e416eb-a363-4258-a04e-171d843a6460": indicator.GWPTotal,
	"06dcd26f-025f-401a-a7c1-5e457eb54637": indicator.GWPFossil,
	"f0e10c0d-47a7-4834-8730-3791b0e7fa44": indicator.GWPBiogenic,
	"1b321880-abef-4fa6-8e2e-a81e2a385165": indicator.GWPLuluc,
	"804ebede-a544-4d93-b3a0-6cf4d1f4f7c2": indicator.PENRETotal,
	"20f32be2-61a2-4856-85b1-2e3348cdc44c": indicator.PERETotal,
	"b5c63067-53a0-45a4-8a32-6cfc1b7d7c10": indicator.AP,
	"7fa1de06-7340-475f-8b8f-adf37ab446d7": indicator.ODP,
	"96215749-760c-4595-9e51-7b5462eb33a3": indicator.POCP,
	"f7c73bb9-ab1a-4249-9c6d-379a0de6f67e": indicator.ADPMineral,
	"804ebede-a544-4d93-b3a0-6cf4d1f4f7c3": indicator.ADPFossil,
}

//nolint:gochecknoglobals // static lookup table
var productionModules = map[string]bool{"A1": true, "A2": true, "A3": true, "A1-A3": true}

type listResponse struct {
	Data []struct {
		UUID           string `json:"uuid"`
		Name           string `json:"name"`
		Classification string `json:"classification"`
	} `json:"data"`
	TotalCount int `json:"totalCount"`
	PageSize   int `json:"pageSize"`
	PageNumber int `json:"pageNumber"`
}

type process struct {
	UUID                      string `json:"uuid"`
	Name                      string `json:"name"`
	ClassificationInformation struct {
		Classification []struct {
			Class []struct {
				Value string `json:"value"`
				Level int    `json:"level"`
			} `json:"class"`
		} `json:"classification"`
	} `json:"classificationInformation"`
	LCIAResults []struct {
		Method struct {
			UUID string `json:"uuid"`
			Name string `json:"name"`
		} `json:"method"`
		Amounts []struct {
			Module string        `json:"module"`
			Value  source.Number `json:"value"`
		} `json:"amounts"`
	} `json:"lciaResults"`
	FlowProperties []flowProperty `json:"flowProperties"`
}

type flowProperty struct {
	Name                  string        `json:"name"`
	MeanValue             source.Number `json:"meanValue"`
	Unit                  string        `json:"unit"`
	ReferenceUnit         string        `json:"referenceUnit"`
	ReferenceFlowProperty bool          `json:"referenceFlowProperty"`
}

func (fp flowProperty) unit() string {
	if u := strings.TrimSpace(fp.ReferenceUnit); u != "" {
		return u
	}
	return strings.TrimSpace(fp.Unit)
}

func (fp flowProperty) isDensity() bool {
	name := strings.ToLower(fp.Name)
	return strings.Contains(name, "density") || strings.Contains(name, "rohdichte")
}

var (
	errNoGWP            = errors.New("no production-stage GWP")
	errNoDeclaredUnit   = errors.New("no reference flow property")
	errNoReferenceValue = errors.New("reference amount missing")
)

// Indicators lists every key Ökobaudat can supply.
func Indicators() []indicator.Key {
	keys := make([]indicator.Key, 0, len(methodIndicators))
	for _, k := range methodIndicators {
		keys = append(keys, k)
	}
	indicator.SortKeys(keys)
	return keys
}

// Info returns the Ökobaudat source metadata for cfg.
func Info(cfg config.SourceConfig) source.Info {
	return source.Info{
		ID:                 material.SourceOekobaudat,
		Name:               "Ökobaudat",
		Region:             "DE",
		CountryFlag:        "🇩🇪",
		URL:                "https://oekobaudat.de",
		Description:        "German construction materials database with EN 15804+A2 indicators including all GWP variants.",
		Indicators:         Indicators(),
		RequiredIndicators: []indicator.Key{indicator.GWPTotal},
		RequiresAuth:       false,
		IsConfigured:       true,
		Priority:           cfg.Priority,
		SearchStyle:        source.SearchKeyword,
	}
}

// New creates the Ökobaudat adapter. client may be nil.
func New(
	cfg config.SourceConfig,
	st source.MaterialStore,
	client *http.Client,
	timeout, ttl time.Duration,
	opts ...source.Option,
) *source.Base {
	datastock := cfg.DatastockID
	if datastock == "" {
		datastock = config.DefaultOekobaudatDatastock
	}
	f := &fetcher{
		http:      source.NewHTTPClient(client, timeout, nil),
		baseURL:   strings.TrimRight(cfg.BaseURL, "/"),
		datastock: datastock,
		now:       time.Now,
	}
	return source.NewBase(Info(cfg), st, f, ttl, opts...)
}

type fetcher struct {
	http      *source.HTTPClient
	baseURL   string
	datastock string
	now       func() time.Time
}

func (f *fetcher) processesURL() string {
	return fmt.Sprintf("%s/datastocks/%s/processes", f.baseURL, url.PathEscape(f.datastock))
}

// Fetch lists every process and loads the details with bounded
// concurrency. Failed detail requests are counted in Errors, which keeps
// the pull from pruning.
func (f *fetcher) Fetch(ctx context.Context) (source.FetchResult, error) {
	log := logging.FromContext(ctx)

	uuids, err := f.list(ctx)
	if err != nil {
		return source.FetchResult{}, err
	}

	syncedAt := f.now().UTC()
	var (
		mu  sync.Mutex
		res = source.FetchResult{Complete: true}
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(DetailConcurrency)
	for _, id := range uuids {
		id := id
		g.Go(func() error {
			var p process
			u := fmt.Sprintf("%s/%s?format=json&view=extended", f.processesURL(), url.PathEscape(id))
			if err := f.http.GetJSON(gctx, u, &p); err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				log.Warn().
					Ctx(ctx).
					Str("component", "source").
					Str("operation", "fetch_detail").
					Str("source", string(material.SourceOekobaudat)).
					Str("process_uuid", id).
					Err(err).
					Msg("process detail unavailable")
				mu.Lock()
				res.Errors++
				mu.Unlock()
				return nil
			}
			if p.UUID == "" {
				p.UUID = id
			}
			m, err := normalize(p, syncedAt)
			if err != nil {
				log.Debug().
					Ctx(ctx).
					Str("component", "source").
					Str("operation", "normalize").
					Str("source", string(material.SourceOekobaudat)).
					Str("process_uuid", p.UUID).
					Err(err).
					Msg("process skipped")
			}
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				res.Skipped++
				return nil
			}
			res.Materials = append(res.Materials, m)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return source.FetchResult{}, err
	}

	sort.Slice(res.Materials, func(i, j int) bool {
		return res.Materials[i].SourceID < res.Materials[j].SourceID
	})
	return res, nil
}

// list pages through the process list until a short page.
func (f *fetcher) list(ctx context.Context) ([]string, error) {
	var uuids []string
	for start := 0; ; start += PageSize {
		var page listResponse
		u := fmt.Sprintf("%s?format=json&pageSize=%d&startIndex=%d", f.processesURL(), PageSize, start)
		if err := f.http.GetJSON(ctx, u, &page); err != nil {
			return nil, fmt.Errorf("listing processes at %d: %w", start, err)
		}
		for _, item := range page.Data {
			if item.UUID != "" {
				uuids = append(uuids, item.UUID)
			}
		}
		if len(page.Data) < PageSize {
			return uuids, nil
		}
	}
}

// normalize maps an extended process dataset. Amounts are declared per
// reference amount of the reference flow property; they are divided by that
// amount and then converted to per kg. A process without GWP, without a
// declared unit or with a unit that has no per-kg form is rejected.
func normalize(p process, syncedAt time.Time) (material.NormalizedMaterial, error) {
	declared := extractIndicators(p)
	if _, ok := declared.Get(indicator.GWPTotal); !ok {
		return material.NormalizedMaterial{}, errNoGWP
	}
	ref, ok := referenceProperty(p)
	if !ok {
		return material.NormalizedMaterial{}, errNoDeclaredUnit
	}
	perUnit, ok := declared.DivideBy(ref.MeanValue.Value)
	if !ref.MeanValue.Valid || !ok {
		return material.NormalizedMaterial{}, errNoReferenceValue
	}

	rho := density(p)
	var d float64
	if rho != nil {
		d = *rho
	}
	unit := ref.unit()
	vals, err := indicator.NormalizeValuesPerKg(perUnit, unit, d)
	if err != nil {
		return material.NormalizedMaterial{}, fmt.Errorf("declared unit %q: %w", unit, err)
	}

	m := material.NormalizedMaterial{
		Source:       material.SourceOekobaudat,
		SourceID:     p.UUID,
		Name:         strings.TrimSpace(p.Name),
		Category:     category(p),
		Density:      rho,
		DeclaredUnit: unit,
		Indicators:   vals,
		Metadata: material.Metadata{
			Version:  standard,
			Scope:    scope,
			SyncedAt: syncedAt,
			URL:      "https://oekobaudat.de",
		},
	}
	if m.Name != "" {
		m.LocalizedNames = map[string]string{"de": m.Name}
	}
	m.Normalize()
	return m, nil
}

// referenceProperty returns the flagged reference flow property, or else the
// first flow property that is not a density.
func referenceProperty(p process) (flowProperty, bool) {
	for _, fp := range p.FlowProperties {
		if fp.ReferenceFlowProperty && fp.unit() != "" {
			return fp, true
		}
	}
	for _, fp := range p.FlowProperties {
		if !fp.isDensity() && fp.unit() != "" {
			return fp, true
		}
	}
	return flowProperty{}, false
}

// extractIndicators sums the production-stage amounts per method. A method
// without any production-stage amount stays absent.
func extractIndicators(p process) indicator.Values {
	vals := indicator.Values{}
	for _, r := range p.LCIAResults {
		key, ok := methodIndicators[r.Method.UUID]
		if !ok {
			continue
		}
		var (
			sum   float64
			found bool
		)
		for _, a := range r.Amounts {
			if productionModules[strings.ToUpper(strings.TrimSpace(a.Module))] && a.Value.Valid {
				sum += a.Value.Value
				found = true
			}
		}
		if found {
			vals[key] = sum
		}
	}
	return vals
}

// density returns the first flow property named like a density.
func density(p process) *float64 {
	for _, fp := range p.FlowProperties {
		if fp.isDensity() {
			return fp.MeanValue.Positive()
		}
	}
	return nil
}

// category returns the most specific classification class.
func category(p process) string {
	if len(p.ClassificationInformation.Classification) == 0 {
		return material.DefaultCategory
	}
	best, level := "", -1
	for _, c := range p.ClassificationInformation.Classification[0].Class {
		if c.Level > level && strings.TrimSpace(c.Value) != "" {
			best, level = c.Value, c.Level
		}
	}
	if best == "" {
		return material.DefaultCategory
	}
	return best
}
