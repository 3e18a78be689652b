// Package capability defines the closed vocabulary of service categories
// QuickGig agents can be hired for. Both the intent classifier and the agent
// recommender import this package so the same tag set drives prompt
// construction, keyword fallback, and completion estimates.
package capability

import (
	"fmt"
	"strings"
	"time"
)

// Capability is one entry of the closed service-category vocabulary.
type Capability string

const (
	LogoDesign       Capability = "logo-design"
	Copywriting      Capability = "copywriting"
	WebDevelopment   Capability = "web-development"
	SocialMedia      Capability = "social-media"
	VideoEditing     Capability = "video-editing"
	DataAnalysis     Capability = "data-analysis"
	Translation      Capability = "translation"
	SEO              Capability = "seo"
	UIUXDesign       Capability = "ui-ux-design"
	SmartContractDev Capability = "smart-contract-dev"
)

// BaseRate is the per-capability budget unit (in USDC) used by the
// deterministic fallback estimator: low = count × BaseRate, high = 3×.
const BaseRate = 10.0

// all lists the vocabulary in presentation order. The order is stable and
// doubles as the priority order for fallback detection results.
var all = []Capability{
	LogoDesign,
	Copywriting,
	WebDevelopment,
	SocialMedia,
	VideoEditing,
	DataAnalysis,
	Translation,
	SEO,
	UIUXDesign,
	SmartContractDev,
}

var index = func() map[Capability]bool {
	m := make(map[Capability]bool, len(all))
	for _, c := range all {
		m[c] = true
	}
	return m
}()

// All returns the full vocabulary in presentation order.
func All() []Capability {
	out := make([]Capability, len(all))
	copy(out, all)
	return out
}

// IsValid reports whether c is a member of the closed vocabulary.
func (c Capability) IsValid() bool {
	return index[c]
}

// Parse converts a raw string into a Capability, rejecting anything outside
// the vocabulary. Model output and query parameters go through here.
func Parse(s string) (Capability, error) {
	c := Capability(strings.ToLower(strings.TrimSpace(s)))
	if !index[c] {
		return "", fmt.Errorf("unknown capability %q", s)
	}
	return c, nil
}

// triggers maps each capability to the substrings that activate it in the
// keyword fallback path. Matching is case-insensitive substring containment.
var triggers = map[Capability][]string{
	LogoDesign:       {"logo", "brand identity", "branding"},
	Copywriting:      {"copy", "tagline", "slogan", "blog post", "article", "product description"},
	WebDevelopment:   {"website", "web app", "landing page", "frontend", "backend", "rest api"},
	SocialMedia:      {"social media", "instagram", "twitter", "tiktok", "content calendar"},
	VideoEditing:     {"video", "edit footage", "youtube", "reel", "trailer"},
	DataAnalysis:     {"data", "analytics", "dashboard", "report", "spreadsheet"},
	Translation:      {"translate", "translation", "localize", "localization"},
	SEO:              {"seo", "search ranking", "keywords", "search engine"},
	UIUXDesign:       {"ui design", "ux design", "wireframe", "mockup", "user interface", "figma"},
	SmartContractDev: {"smart contract", "solidity", "token", "nft", "defi", "on-chain"},
}

// Detect runs the keyword fallback over a message and returns every
// capability with at least one matching trigger, in vocabulary order.
// It never invents tags and may return an empty slice.
func Detect(message string) []Capability {
	lowered := strings.ToLower(message)

	var matched []Capability
	for _, c := range all {
		for _, trigger := range triggers[c] {
			if strings.Contains(lowered, trigger) {
				matched = append(matched, c)
				break
			}
		}
	}
	return matched
}

// CompletionEstimate describes how long work in a category typically takes.
type CompletionEstimate struct {
	Label   string        `json:"label"`
	Typical time.Duration `json:"-"`
}

// genericEstimate is used for any capability missing from the table.
var genericEstimate = CompletionEstimate{Label: "3-5 days", Typical: 96 * time.Hour}

var completionEstimates = map[Capability]CompletionEstimate{
	LogoDesign:       {Label: "2-3 days", Typical: 60 * time.Hour},
	Copywriting:      {Label: "1-2 days", Typical: 36 * time.Hour},
	WebDevelopment:   {Label: "1-2 weeks", Typical: 264 * time.Hour},
	SocialMedia:      {Label: "2-4 days", Typical: 72 * time.Hour},
	VideoEditing:     {Label: "3-5 days", Typical: 96 * time.Hour},
	DataAnalysis:     {Label: "2-4 days", Typical: 72 * time.Hour},
	Translation:      {Label: "1-2 days", Typical: 36 * time.Hour},
	SEO:              {Label: "1 week", Typical: 168 * time.Hour},
	UIUXDesign:       {Label: "4-6 days", Typical: 120 * time.Hour},
	SmartContractDev: {Label: "1-2 weeks", Typical: 264 * time.Hour},
}

// EstimatedCompletion returns the typical turnaround for a capability,
// falling back to a generic estimate when the capability has no entry.
func EstimatedCompletion(c Capability) CompletionEstimate {
	if est, ok := completionEstimates[c]; ok {
		return est
	}
	return genericEstimate
}
