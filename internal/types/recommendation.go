package types

import (
	"encoding/json"
	"fmt"
	"time"
)

// RecommendationAction is the action an agent recommends.
type RecommendationAction string

const (
	ActionIrrigate    RecommendationAction = "IRRIGATE"
	ActionDelay       RecommendationAction = "DELAY"
	ActionMonitor     RecommendationAction = "MONITOR"
	ActionPreIrrigate RecommendationAction = "PRE_IRRIGATE"
)

// AgentType identifies the backend agent that produced a recommendation.
type AgentType string

const (
	AgentFireAdaptiveIrrigation AgentType = "FIRE_ADAPTIVE_IRRIGATION"
	AgentWaterEfficiency        AgentType = "WATER_EFFICIENCY"
	AgentPSPSAnticipation       AgentType = "PSPS_ANTICIPATION"
)

// APIRecommendation is a recommendation as served by the backend.
type APIRecommendation struct {
	ID                       string               `json:"id"`
	FieldID                  string               `json:"field_id"`
	AgentType                AgentType            `json:"agent_type"`
	Action                   RecommendationAction `json:"action"`
	Title                    string               `json:"title"`
	Reason                   string               `json:"reason"`
	RecommendedTiming        *time.Time           `json:"recommended_timing"`
	ZonesAffected            *string              `json:"zones_affected"`
	Confidence               float64              `json:"confidence"`
	FireRiskReductionPercent *float64             `json:"fire_risk_reduction_percent"`
	WaterSavedLiters         *float64             `json:"water_saved_liters"`
	PSPSAlert                bool                 `json:"psps_alert"`
	Accepted                 bool                 `json:"accepted"`
	AcceptedAt               *time.Time           `json:"accepted_at"`
	CreatedAt                time.Time            `json:"created_at"`
	UpdatedAt                time.Time            `json:"updated_at"`
}

// RecommendationList is a page of backend recommendations.
type RecommendationList struct {
	Recommendations []APIRecommendation `json:"recommendations"`
	Total           int                 `json:"total"`
	Page            int                 `json:"page"`
	PageSize        int                 `json:"page_size"`
}

// DemoRecommendation is a placeholder card shown when the backend has no data
// or cannot be reached.
type DemoRecommendation struct {
	ID          string               `json:"id"`
	Title       string               `json:"title"`
	Action      RecommendationAction `json:"action"`
	FieldName   string               `json:"field_name"`
	Description string               `json:"description"`
	Timing      string               `json:"timing"`
	WaterAmount string               `json:"water_amount"`
}

// RecommendationKind discriminates the Recommendation union.
type RecommendationKind string

const (
	KindAPI  RecommendationKind = "api"
	KindDemo RecommendationKind = "demo"
)

// Recommendation is a dashboard card. Exactly one of API or Demo is set,
// matching Kind.
type Recommendation struct {
	Kind RecommendationKind  `json:"kind"`
	API  *APIRecommendation  `json:"api,omitempty"`
	Demo *DemoRecommendation `json:"demo,omitempty"`
}

// FromAPI wraps a backend recommendation.
func FromAPI(r APIRecommendation) Recommendation {
	return Recommendation{Kind: KindAPI, API: &r}
}

// FromDemo wraps a placeholder recommendation.
func FromDemo(r DemoRecommendation) Recommendation {
	return Recommendation{Kind: KindDemo, Demo: &r}
}

// ID returns the identifier of whichever variant is set.
func (r Recommendation) ID() string {
	switch r.Kind {
	case KindAPI:
		return r.API.ID
	case KindDemo:
		return r.Demo.ID
	default:
		panic(fmt.Sprintf("recommendation: unknown kind %q", r.Kind))
	}
}

// Title returns the card title of whichever variant is set.
func (r Recommendation) Title() string {
	switch r.Kind {
	case KindAPI:
		return r.API.Title
	case KindDemo:
		return r.Demo.Title
	default:
		panic(fmt.Sprintf("recommendation: unknown kind %q", r.Kind))
	}
}

// UnmarshalJSON enforces that the payload matches the discriminant.
func (r *Recommendation) UnmarshalJSON(data []byte) error {
	type alias Recommendation
	var a alias
	if err := json.Unmarshal(data, &a); err != nil {
		return err
	}
	switch a.Kind {
	case KindAPI:
		if a.API == nil || a.Demo != nil {
			return fmt.Errorf("recommendation: kind %q requires only the api payload", a.Kind)
		}
	case KindDemo:
		if a.Demo == nil || a.API != nil {
			return fmt.Errorf("recommendation: kind %q requires only the demo payload", a.Kind)
		}
	default:
		return fmt.Errorf("recommendation: unknown kind %q", a.Kind)
	}
	*r = Recommendation(a)
	return nil
}
