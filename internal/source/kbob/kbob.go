// Package kbob adapts the Swiss KBOB dataset published by lcadata.ch.
//
// KBOB records carry GWP, PENRE and UBP per kilogram. A record is only kept
// when all three are present, at least one is non-zero and it has a
// positive density.
package kbob

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/rshade/lcamatch/internal/config"
	"github.com/rshade/lcamatch/internal/indicator"
	"github.com/rshade/lcamatch/internal/material"
	"github.com/rshade/lcamatch/internal/source"
)

// ErrMissingAPIKey is returned by a sync when no KBOB API key is set.
var ErrMissingAPIKey = errors.New("KBOB_API_KEY is not configured")

const (
	scope    = "A1-A3"
	standard = "KBOB/ecobau/IPB"
)

// apiResponse is the body of GET /api/kbob/materials.
type apiResponse struct {
	Success        bool          `json:"success"`
	Version        string        `json:"version"`
	Materials      []apiMaterial `json:"materials"`
	Count          int           `json:"count"`
	TotalMaterials int           `json:"totalMaterials"`
}

type apiMaterial struct {
	UUID    string        `json:"uuid"`
	NameDE  string        `json:"nameDE"`
	NameFR  string        `json:"nameFR"`
	Group   string        `json:"group"`
	Density source.Number `json:"density"`
	Unit    string        `json:"unit"`
	UBP     source.Number `json:"ubp21Total"`
	GWP     source.Number `json:"gwpTotal"`
	PENRE   source.Number `json:"primaryEnergyNonRenewableTotal"`
}

// Info returns the KBOB source metadata for cfg.
func Info(cfg config.SourceConfig) source.Info {
	core := []indicator.Key{indicator.GWPTotal, indicator.PENRETotal, indicator.UBP}
	return source.Info{
		ID:                 material.SourceKBOB,
		Name:               "KBOB",
		Region:             "CH",
		CountryFlag:        "🇨🇭",
		URL:                "https://www.lcadata.ch",
		Description:        "Swiss KBOB construction materials database with GWP, UBP and primary energy indicators.",
		Indicators:         core,
		RequiredIndicators: core,
		RequiresAuth:       true,
		IsConfigured:       cfg.APIKey != "",
		Priority:           cfg.Priority,
		SearchStyle:        source.SearchSubstring,
	}
}

// New creates the KBOB adapter. client may be nil.
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

// Fetch downloads the complete material list in one request.
func (f *fetcher) Fetch(ctx context.Context) (source.FetchResult, error) {
	if f.apiKey == "" {
		return source.FetchResult{}, ErrMissingAPIKey
	}

	var body apiResponse
	url := f.baseURL + "/api/kbob/materials?pageSize=all"
	if err := f.http.GetJSON(ctx, url, &body); err != nil {
		return source.FetchResult{}, err
	}

	version := body.Version
	if version == "" {
		version = "unknown"
	}
	syncedAt := f.now().UTC()

	res := source.FetchResult{Complete: true}
	for _, raw := range body.Materials {
		m, ok := normalize(raw, version, syncedAt)
		if !ok {
			res.Skipped++
			continue
		}
		res.Materials = append(res.Materials, m)
	}
	if len(body.Materials) == 0 {
		return res, fmt.Errorf("kbob returned no materials (version %s)", version)
	}
	return res, nil
}

// valid mirrors the KBOB record filter.
func valid(raw apiMaterial) bool {
	if raw.UUID == "" || !raw.GWP.Valid || !raw.UBP.Valid || !raw.PENRE.Valid {
		return false
	}
	if raw.GWP.Value == 0 && raw.UBP.Value == 0 && raw.PENRE.Value == 0 {
		return false
	}
	return raw.Density.Positive() != nil
}

func normalize(raw apiMaterial, version string, syncedAt time.Time) (material.NormalizedMaterial, bool) {
	if !valid(raw) {
		return material.NormalizedMaterial{}, false
	}
	names := map[string]string{}
	if raw.NameDE != "" {
		names["de"] = raw.NameDE
	}
	if raw.NameFR != "" {
		names["fr"] = raw.NameFR
	}
	unit := raw.Unit
	if unit == "" {
		unit = "kg"
	}
	m := material.NormalizedMaterial{
		Source:         material.SourceKBOB,
		SourceID:       raw.UUID,
		Name:           strings.TrimSpace(raw.NameDE),
		LocalizedNames: names,
		Category:       raw.Group,
		Density:        raw.Density.Positive(),
		DeclaredUnit:   unit,
		Indicators: indicator.Values{
			indicator.GWPTotal:   raw.GWP.Value,
			indicator.PENRETotal: raw.PENRE.Value,
			indicator.UBP:        raw.UBP.Value,
		},
		Metadata: material.Metadata{
			Version:  version + " (" + standard + ")",
			Scope:    scope,
			SyncedAt: syncedAt,
			URL:      "https://www.lcadata.ch",
		},
	}
	if m.Name == "" {
		m.Name = strings.TrimSpace(raw.NameFR)
	}
	m.Normalize()
	return m, true
}
