package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/Boomlive-ai/analytics.boomlive.in/internal/shared"
	"github.com/Boomlive-ai/analytics.boomlive.in/internal/tokens"
)

const (
	youtubePartnerURL   = "https://www.googleapis.com/youtube/partner/v1"
	youtubeDataURL      = "https://www.googleapis.com/youtube/v3"
	youtubeAnalyticsURL = "https://youtubeanalytics.googleapis.com/v2"
	analyticsAdminURL   = "https://analyticsadmin.googleapis.com/v1beta"
	analyticsDataURL    = "https://analyticsdata.googleapis.com/v1beta"
)

// youtubeReport is one of the reports combined by [GoogleService.YouTubeAnalytics].
type youtubeReport struct {
	name       string
	metrics    string
	dimensions string
	sort       string
}

var youtubeReports = []youtubeReport{
	{name: "monetization", metrics: "estimatedRevenue,estimatedAdRevenue,estimatedRedPartnerRevenue", dimensions: "month", sort: "-month"},
	{name: "audience_insights", metrics: "views,estimatedMinutesWatched,averageViewDuration,subscribersGained,likes,comments", dimensions: "day", sort: "-day"},
	{name: "demographics", metrics: "viewerPercentage", dimensions: "ageGroup,gender"},
}

var (
	ga4ViewerMetrics = []string{
		"activeUsers", "newUsers", "sessions", "engagedSessions", "screenPageViews", "bounceRate",
		"engagementRate", "averageSessionDuration", "eventCount",
	}
	ga4AdminMetrics = []string{
		"totalRevenue", "retentionRate", "newVsReturningUsers", "sessionConversionRate",
		"audienceCategoryAffinity", "sessionQuality",
	}
	ga4ViewerDimensions = []string{"date", "deviceCategory", "country", "city", "browser"}
	ga4AdminDimensions  = []string{
		"sessionDefaultChannelGroup", "landingPage", "previousPagePath", "exitPage",
		"userEngagementDuration", "interests", "videoTitle", "contentType",
	}
)

// ContentOwners is the YouTube Partner contentOwners list response.
type ContentOwners struct {
	Kind  string         `json:"kind"`
	Items []ContentOwner `json:"items"`
}

type ContentOwner struct {
	ID          string `json:"id"`
	DisplayName string `json:"displayName"`
}

// AccountSummaries is the GA4 Admin accountSummaries list response.
type AccountSummaries struct {
	AccountSummaries []AccountSummary `json:"accountSummaries"`
	NextPageToken    string           `json:"nextPageToken,omitempty"`
}

type AccountSummary struct {
	Name              string            `json:"name"`
	Account           string            `json:"account"`
	DisplayName       string            `json:"displayName"`
	PropertySummaries []PropertySummary `json:"propertySummaries"`
}

type PropertySummary struct {
	Property     string `json:"property"`
	DisplayName  string `json:"displayName"`
	PropertyType string `json:"propertyType"`
	Parent       string `json:"parent,omitempty"`
}

// GA4Property is one flattened row of [AccountSummaries].
type GA4Property struct {
	AccountID    string `json:"account_id"`
	AccountName  string `json:"account_name"`
	PropertyID   string `json:"property_id"`
	PropertyName string `json:"property_name"`
	PropertyType string `json:"property_type"`
}

type runReportRequest struct {
	DateRanges []dateRange `json:"dateRanges"`
	Metrics    []named     `json:"metrics"`
	Dimensions []named     `json:"dimensions"`
}

type dateRange struct {
	StartDate string `json:"startDate"`
	EndDate   string `json:"endDate"`
}

type named struct {
	Name string `json:"name"`
}

func names(values ...[]string) []named {
	var out []named
	for _, set := range values {
		for _, v := range set {
			out = append(out, named{Name: v})
		}
	}
	return out
}

// GoogleService fetches YouTube and Google Analytics 4 data.
type GoogleService struct {
	client *Client
}

func NewGoogleService(c *Client) *GoogleService {
	return &GoogleService{client: c}
}

func (s *GoogleService) get(ctx context.Context, accessToken, endpoint string, result any) error {
	return s.client.doRequest(ctx, "google", accessToken, http.MethodGet, endpoint, nil, result)
}

// PartnerChannels lists the YouTube content owners the user manages.
func (s *GoogleService) PartnerChannels(ctx context.Context, src tokens.TokenSource) (json.RawMessage, error) {
	tok, err := token(ctx, src)
	if err != nil {
		return nil, err
	}

	var out json.RawMessage
	if err := s.get(ctx, tok, youtubePartnerURL+"/contentOwners?fetchMine=true", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// OwnerChannel returns the authenticated user's own channel.
func (s *GoogleService) OwnerChannel(ctx context.Context, src tokens.TokenSource) (json.RawMessage, error) {
	tok, err := token(ctx, src)
	if err != nil {
		return nil, err
	}

	var out json.RawMessage
	if err := s.get(ctx, tok, youtubeDataURL+"/channels?part=id,snippet&mine=true", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// YouTubeAnalytics runs the monetization, audience and demographics reports for a content owner.
//
// A failed report is embedded in the result as {"error": ...} instead of failing the whole call.
func (s *GoogleService) YouTubeAnalytics(ctx context.Context, src tokens.TokenSource, contentOwnerID string, r DateRange) (map[string]json.RawMessage, error) {
	if contentOwnerID == "" {
		return nil, fmt.Errorf("%w: content_owner_id", shared.ErrMissingArgument)
	}

	tok, err := token(ctx, src)
	if err != nil {
		return nil, err
	}
	return s.youtubeReports(ctx, tok, contentOwnerID, r), nil
}

// YouTubeAnalyticsAuto discovers the first content owner the user manages and runs [GoogleService.YouTubeAnalytics]
// for it.
func (s *GoogleService) YouTubeAnalyticsAuto(ctx context.Context, src tokens.TokenSource, r DateRange) (map[string]json.RawMessage, error) {
	tok, err := token(ctx, src)
	if err != nil {
		return nil, err
	}

	var owners ContentOwners
	if err := s.get(ctx, tok, youtubePartnerURL+"/contentOwners?fetchMine=true", &owners); err != nil {
		return nil, err
	}

	if len(owners.Items) == 0 || owners.Items[0].ID == "" {
		return nil, fmt.Errorf("%w: no YouTube content owner ID found", shared.ErrNotFound)
	}

	return s.youtubeReports(ctx, tok, owners.Items[0].ID, r), nil
}

func (s *GoogleService) youtubeReports(ctx context.Context, tok, contentOwnerID string, r DateRange) map[string]json.RawMessage {
	combined := make(map[string]json.RawMessage, len(youtubeReports))
	for _, report := range youtubeReports {
		q := url.Values{
			"ids":        {"contentOwner==" + contentOwnerID},
			"startDate":  {r.Start},
			"endDate":    {r.End},
			"metrics":    {report.metrics},
			"dimensions": {report.dimensions},
		}
		if report.sort != "" {
			q.Set("sort", report.sort)
		}

		var out json.RawMessage
		if err := s.get(ctx, tok, youtubeAnalyticsURL+"/reports?"+q.Encode(), &out); err != nil {
			s.client.logger.Warn("youtube report failed", "report", report.name, "error", err)
			combined[report.name] = reportError(report.name, err)
			continue
		}
		combined[report.name] = out
	}
	return combined
}

func reportError(name string, err error) json.RawMessage {
	detail := err.Error()
	var remote *shared.RemoteError
	if errors.As(err, &remote) && remote.Body != "" {
		detail = remote.Body
	}
	data, _ := json.Marshal(map[string]string{"error": fmt.Sprintf("Failed to fetch %s data: %s", name, detail)})
	return data
}

// GA4Properties lists every GA4 property the user can see, flattened across accounts.
func (s *GoogleService) GA4Properties(ctx context.Context, src tokens.TokenSource) ([]GA4Property, error) {
	tok, err := token(ctx, src)
	if err != nil {
		return nil, err
	}

	summaries, err := s.accountSummaries(ctx, tok)
	if err != nil {
		return nil, err
	}

	properties := []GA4Property{}
	for _, account := range summaries.AccountSummaries {
		for _, p := range account.PropertySummaries {
			properties = append(properties, GA4Property{
				AccountID:    account.Account,
				AccountName:  account.DisplayName,
				PropertyID:   p.Property,
				PropertyName: p.DisplayName,
				PropertyType: p.PropertyType,
			})
		}
	}
	return properties, nil
}

func (s *GoogleService) accountSummaries(ctx context.Context, tok string) (*AccountSummaries, error) {
	var summaries AccountSummaries
	if err := s.get(ctx, tok, analyticsAdminURL+"/accountSummaries", &summaries); err != nil {
		return nil, err
	}
	if len(summaries.AccountSummaries) == 0 {
		return nil, fmt.Errorf("%w: no GA4 properties found for the authenticated user", shared.ErrNotFound)
	}
	return &summaries, nil
}

// GA4Analytics runs a GA4 report for a property. Admin access adds revenue, retention and content dimensions.
func (s *GoogleService) GA4Analytics(ctx context.Context, src tokens.TokenSource, propertyID string, r DateRange, admin bool) (json.RawMessage, error) {
	propertyID = strings.TrimPrefix(propertyID, "properties/")
	if propertyID == "" {
		return nil, fmt.Errorf("%w: property_id", shared.ErrMissingArgument)
	}

	tok, err := token(ctx, src)
	if err != nil {
		return nil, err
	}
	return s.runReport(ctx, tok, propertyID, r, admin)
}

// GA4AnalyticsAuto runs [GoogleService.GA4Analytics] for the first property of the first account.
func (s *GoogleService) GA4AnalyticsAuto(ctx context.Context, src tokens.TokenSource, r DateRange, admin bool) (json.RawMessage, error) {
	tok, err := token(ctx, src)
	if err != nil {
		return nil, err
	}

	summaries, err := s.accountSummaries(ctx, tok)
	if err != nil {
		return nil, err
	}

	first := summaries.AccountSummaries[0]
	if len(first.PropertySummaries) == 0 {
		return nil, fmt.Errorf("%w: no GA4 property ID found", shared.ErrNotFound)
	}

	property := first.PropertySummaries[0].Property
	propertyID := property[strings.LastIndex(property, "/")+1:]
	if propertyID == "" {
		return nil, fmt.Errorf("%w: no GA4 property ID found", shared.ErrNotFound)
	}

	return s.runReport(ctx, tok, propertyID, r, admin)
}

func (s *GoogleService) runReport(ctx context.Context, tok, propertyID string, r DateRange, admin bool) (json.RawMessage, error) {
	body := runReportRequest{
		DateRanges: []dateRange{{StartDate: r.Start, EndDate: r.End}},
		Metrics:    names(ga4ViewerMetrics),
		Dimensions: names(ga4ViewerDimensions),
	}
	if admin {
		body.Metrics = names(ga4ViewerMetrics, ga4AdminMetrics)
		body.Dimensions = names(ga4ViewerDimensions, ga4AdminDimensions)
	}

	endpoint := fmt.Sprintf("%s/properties/%s:runReport", analyticsDataURL, url.PathEscape(propertyID))

	var out json.RawMessage
	if err := s.client.doRequest(ctx, "google", tok, http.MethodPost, endpoint, body, &out); err != nil {
		return nil, err
	}
	return out, nil
}
