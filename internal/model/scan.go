package model

import "time"

// Category identifies one compliance dimension a scan can evaluate.
type Category string

const (
	CategoryGDPR          Category = "gdpr"
	CategoryAccessibility Category = "accessibility"
	CategorySecurity      Category = "security"
	CategoryPerformance   Category = "performance"
	CategorySEO           Category = "seo"
)

// Categories lists every category in canonical order. Ordering-sensitive
// output (recommendations, failure messages) follows this order.
var Categories = []Category{
	CategoryGDPR,
	CategoryAccessibility,
	CategorySecurity,
	CategoryPerformance,
	CategorySEO,
}

// Title returns the human label used in recommendations.
func (c Category) Title() string {
	switch c {
	case CategoryGDPR:
		return "GDPR"
	case CategoryAccessibility:
		return "Accessibility"
	case CategorySecurity:
		return "Security"
	case CategoryPerformance:
		return "Performance"
	case CategorySEO:
		return "SEO"
	default:
		return string(c)
	}
}

// Rank is the category's position in canonical order, or -1.
func (c Category) Rank() int {
	for i, cc := range Categories {
		if cc == c {
			return i
		}
	}
	return -1
}

// ScanStatus is the lifecycle state of a scan.
type ScanStatus string

const (
	ScanPending   ScanStatus = "pending"
	ScanScanning  ScanStatus = "scanning"
	ScanCompleted ScanStatus = "completed"
	ScanFailed    ScanStatus = "failed"
)

// IsTerminal reports whether no further transitions are allowed.
func (s ScanStatus) IsTerminal() bool {
	return s == ScanCompleted || s == ScanFailed
}

// IsActive reports whether the scan still blocks new scans of the same URL.
func (s ScanStatus) IsActive() bool {
	return s == ScanPending || s == ScanScanning
}

// ScanOptions selects which analyzers run.
type ScanOptions struct {
	GDPR          bool `json:"gdpr"`
	Accessibility bool `json:"accessibility"`
	Security      bool `json:"security"`
	Performance   bool `json:"performance"`
	SEO           bool `json:"seo"`

	// CustomRules are opaque rule identifiers handed to analyzers as-is.
	CustomRules []string `json:"customRules,omitempty"`
}

// DefaultScanOptions enables the three categories scanned when a request
// carries no options.
func DefaultScanOptions() ScanOptions {
	return ScanOptions{GDPR: true, Accessibility: true, Security: true}
}

// Has reports whether the category is enabled.
func (o ScanOptions) Has(c Category) bool {
	switch c {
	case CategoryGDPR:
		return o.GDPR
	case CategoryAccessibility:
		return o.Accessibility
	case CategorySecurity:
		return o.Security
	case CategoryPerformance:
		return o.Performance
	case CategorySEO:
		return o.SEO
	}
	return false
}

// Enabled returns the enabled categories in canonical order.
func (o ScanOptions) Enabled() []Category {
	var out []Category
	for _, c := range Categories {
		if o.Has(c) {
			out = append(out, c)
		}
	}
	return out
}

// CategoryResult is one analyzer's verdict.
type CategoryResult struct {
	Score           int      `json:"score"`
	Issues          []string `json:"issues"`
	Recommendations []string `json:"recommendations"`

	// Failed marks a degraded result recorded when the analyzer errored or timed out.
	Failed bool `json:"failed,omitempty"`
}

// ComplianceStatus is the coarse band the overall score falls into.
type ComplianceStatus string

const (
	ComplianceExcellent ComplianceStatus = "excellent"
	ComplianceGood      ComplianceStatus = "good"
	ComplianceFair      ComplianceStatus = "fair"
	CompliancePoor      ComplianceStatus = "poor"
	ComplianceCritical  ComplianceStatus = "critical"
)

// Overall summarises all enabled categories.
type Overall struct {
	Score            int              `json:"score"`
	Grade            string           `json:"grade"`
	TotalIssues      int              `json:"totalIssues"`
	Recommendations  []string         `json:"recommendations"`
	PriorityIssues   []string         `json:"priorityIssues"`
	ComplianceStatus ComplianceStatus `json:"complianceStatus"`
}

// Results holds one sub-result per enabled category plus the overall summary.
type Results struct {
	GDPR          *CategoryResult `json:"gdpr,omitempty"`
	Accessibility *CategoryResult `json:"accessibility,omitempty"`
	Security      *CategoryResult `json:"security,omitempty"`
	Performance   *CategoryResult `json:"performance,omitempty"`
	SEO           *CategoryResult `json:"seo,omitempty"`

	Overall Overall `json:"overall"`
}

// Get returns the sub-result for c, or nil.
func (r *Results) Get(c Category) *CategoryResult {
	if r == nil {
		return nil
	}
	switch c {
	case CategoryGDPR:
		return r.GDPR
	case CategoryAccessibility:
		return r.Accessibility
	case CategorySecurity:
		return r.Security
	case CategoryPerformance:
		return r.Performance
	case CategorySEO:
		return r.SEO
	}
	return nil
}

// Set stores the sub-result for c.
func (r *Results) Set(c Category, res *CategoryResult) {
	switch c {
	case CategoryGDPR:
		r.GDPR = res
	case CategoryAccessibility:
		r.Accessibility = res
	case CategorySecurity:
		r.Security = res
	case CategoryPerformance:
		r.Performance = res
	case CategorySEO:
		r.SEO = res
	}
}

// Scan is one execution of the analyzers against a target URL.
type Scan struct {
	ID              string `json:"id"`
	URLID           string `json:"urlId"`
	ProjectID       string `json:"projectId,omitempty"`
	RequestedBy     string `json:"requestedBy"`
	ScheduledScanID string `json:"scheduledScanId,omitempty"`

	Status  ScanStatus  `json:"status"`
	Options ScanOptions `json:"scanOptions"`

	// Results is present iff Status is completed.
	Results *Results `json:"results,omitempty"`

	// DurationMS is wall time in milliseconds, set on the terminal transition.
	DurationMS   int64  `json:"scanDuration,omitempty"`
	ErrorMessage string `json:"errorMessage,omitempty"`

	CreatedAt   time.Time  `json:"createdAt"`
	StartedAt   *time.Time `json:"startedAt,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}
