package domain

import (
	"fmt"
	"strings"
	"time"
	_ "time/tzdata"
	"unicode"

	"cloud.google.com/go/civil"
	"github.com/google/uuid"

	"github.com/wilhg/metadata/pkg/errmodel"
)

// UserHistoryDatasource is created for every app at registration.
const UserHistoryDatasource = "user_history"

// AppID is a lowercase-only application identifier.
type AppID string

func ParseAppID(s string) (AppID, error) {
	if s == "" {
		return "", errmodel.Validation("invalid_app_id", "app id must not be empty", nil)
	}
	for _, r := range s {
		if !unicode.IsLower(r) {
			return "", errmodel.Validation("invalid_app_id",
				fmt.Sprintf("app id %q must contain only lowercase letters", s), map[string]any{"app_id": s})
		}
	}
	return AppID(s), nil
}

func (id AppID) String() string { return string(id) }

// Timezone is an IANA zone name.
type Timezone string

func ParseTimezone(s string) (Timezone, error) {
	if s == "" {
		return "", errmodel.Validation("invalid_timezone", "timezone must not be empty", nil)
	}
	if _, err := time.LoadLocation(s); err != nil {
		return "", errmodel.Validation("invalid_timezone", fmt.Sprintf("invalid timezone: %s", s), map[string]any{"timezone": s})
	}
	return Timezone(s), nil
}

// Organization owns apps and a warehouse project whose client-admin role
// is bound to Principals.
type Organization struct {
	ID               int64
	Name             string
	WarehouseProject string
	Principals       []string
	CreatedAt        time.Time
	Lifecycle
}

func NewOrganization(name, warehouseProject string, now time.Time) (*Organization, error) {
	if strings.TrimSpace(name) == "" {
		return nil, errmodel.Validation("invalid_name", "organization name is required", nil)
	}
	if strings.TrimSpace(warehouseProject) == "" {
		return nil, errmodel.Validation("invalid_project", "organization warehouse project is required",
			map[string]any{"organization": name})
	}
	return &Organization{
		Name:             name,
		WarehouseProject: warehouseProject,
		CreatedAt:        now.UTC(),
		Lifecycle:        NewLifecycle(now),
	}, nil
}

// SetPrincipals replaces the principal list, dropping blanks and
// duplicates. A converged organization is invalidated when the list changes.
func (o *Organization) SetPrincipals(principals []string, now time.Time) bool {
	next := make([]string, 0, len(principals))
	seen := map[string]bool{}
	for _, p := range principals {
		p = strings.TrimSpace(p)
		if p == "" || seen[p] {
			continue
		}
		seen[p] = true
		next = append(next, p)
	}
	if equalStrings(o.Principals, next) {
		return false
	}
	o.Principals = next
	o.Invalidate(now)
	return true
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Datasource tracks how far an app's data for one source is complete.
type Datasource struct {
	ID          string
	AppID       AppID
	HasDataFrom civil.Date
	HasDataUpTo *civil.Date
}

// UpdateDataFreshness moves HasDataUpTo forward; earlier dates are ignored.
func (d *Datasource) UpdateDataFreshness(upTo civil.Date) bool {
	if d.HasDataUpTo != nil && !d.HasDataUpTo.Before(upTo) {
		return false
	}
	d.HasDataUpTo = &upTo
	return true
}

// App is one game/product scoped to an organization.
type App struct {
	ID           AppID
	Timezone     Timezone
	Organization *Organization
	APIKey       string
	CreatedAt    time.Time
	Datasources  []*Datasource
	Integrations Integrations
	Lifecycle
}

// NewApp creates an app with a fresh api key and the user_history
// datasource starting at hasDataFrom, or the creation date when nil.
func NewApp(id AppID, org *Organization, tz Timezone, hasDataFrom *civil.Date, now time.Time) (*App, error) {
	if org == nil {
		return nil, errmodel.Validation("invalid_organization", "app requires an organization", map[string]any{"app_id": string(id)})
	}
	app := &App{
		ID:           id,
		Timezone:     tz,
		Organization: org,
		APIKey:       newAPIKey(),
		CreatedAt:    now.UTC(),
		Lifecycle:    NewLifecycle(now),
	}
	from := civil.DateOf(app.CreatedAt)
	if hasDataFrom != nil {
		from = *hasDataFrom
	}
	if err := app.AddDatasource(&Datasource{ID: UserHistoryDatasource, AppID: id, HasDataFrom: from}); err != nil {
		return nil, err
	}
	return app, nil
}

func newAPIKey() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:16]
}

func (a *App) Datasource(id string) *Datasource {
	for _, ds := range a.Datasources {
		if ds.ID == id {
			return ds
		}
	}
	return nil
}

func (a *App) AddDatasource(ds *Datasource) error {
	if a.Datasource(ds.ID) != nil {
		return errmodel.Conflict(fmt.Sprintf("datasource %s already exists", ds.ID),
			map[string]any{"app_id": string(a.ID), "datasource": ds.ID}, nil)
	}
	a.Datasources = append(a.Datasources, ds)
	return nil
}

// EventVendor is the registry vendor of the app's events.
func (a *App) EventVendor() string { return GameSpecificVendorPrefix + string(a.ID) }

// IntegrationKind names an attached integration record.
type IntegrationKind string

const (
	IntegrationAppsflyer        IntegrationKind = "appsflyer"
	IntegrationAppsflyerCostETL IntegrationKind = "appsflyer_cost_etl"
	IntegrationITunes           IntegrationKind = "store_itunes"
	IntegrationGooglePlay       IntegrationKind = "store_google_play"
)

type AppsflyerIntegration struct {
	Reports            []string `json:"reports"`
	HomeFolder         string   `json:"home_folder"`
	AppIDs             []string `json:"app_ids"`
	ExternalBucketName string   `json:"external_bucket_name"`
}

type AppsflyerCostETLIntegration struct {
	BucketName   string   `json:"bucket_name"`
	Reports      []string `json:"reports"`
	AndroidAppID string   `json:"android_app_id"`
	IOSAppID     string   `json:"ios_app_id"`
}

type StoreITunes struct {
	AppSKUID     string `json:"app_sku_id"`
	AppleID      string `json:"apple_id"`
	IssuerID     string `json:"issuer_id"`
	KeyID        string `json:"key_id"`
	KeyValue     string `json:"key_value"`
	VendorNumber string `json:"vendor_number"`
}

type StoreGooglePlay struct {
	AppBundleID      string `json:"app_bundle_id"`
	ServiceAccount   string `json:"service_account"`
	ReportBucketName string `json:"report_bucket_name"`
}

// Integrations are attached to an app and stored, never reconciled.
type Integrations struct {
	Appsflyer        *AppsflyerIntegration        `json:"appsflyer,omitempty"`
	AppsflyerCostETL *AppsflyerCostETLIntegration `json:"appsflyer_cost_etl,omitempty"`
	ITunes           *StoreITunes                 `json:"store_itunes,omitempty"`
	GooglePlay       *StoreGooglePlay             `json:"store_google_play,omitempty"`
}
