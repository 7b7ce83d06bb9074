package domain

import (
	"encoding/json"
	"strings"
	"time"
)

// TaskStatus is the server-side lifecycle state of an analysis task
type TaskStatus string

const (
	TaskNew        TaskStatus = "new"
	TaskProcessing TaskStatus = "processing"
	TaskDone       TaskStatus = "done"
	TaskError      TaskStatus = "error"
)

// Terminal reports whether no further transitions can happen
func (s TaskStatus) Terminal() bool {
	return s == TaskDone || s == TaskError
}

// Wire returns the status string used by the status endpoint
func (s TaskStatus) Wire() string {
	switch s {
	case TaskDone:
		return WireStatusCompleted
	case TaskError:
		return WireStatusError
	}
	return WireStatusProcessing
}

// Wire-level status strings
const (
	WireStatusFound      = "found"
	WireStatusProcessing = "processing"
	WireStatusCompleted  = "completed"
	WireStatusError      = "error"
)

// AnalysisTask is an asynchronous unit of analysis work
type AnalysisTask struct {
	ID         string          `json:"id"`
	ListingKey string          `json:"listing_key"`
	Product    ProductInfo     `json:"product"`
	Status     TaskStatus      `json:"status"`
	Result     *ProductPayload `json:"result,omitempty"`
	Error      string          `json:"error,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
	UpdatedAt  time.Time       `json:"updated_at"`
}

// TaskEvent is pushed to stream subscribers on every task transition
type TaskEvent struct {
	TaskID string          `json:"task_id"`
	Status string          `json:"status"`
	Data   *ProductPayload `json:"data,omitempty"`
	Error  string          `json:"error,omitempty"`
}

// CategoryPayload is the wire form of one category of the breakdown
type CategoryPayload struct {
	Score    *float64 `json:"score"`
	Rating   string   `json:"rating"`
	Analysis string   `json:"analysis"`
}

// ProductPayload is the analysis result carried as "data" on the wire
type ProductPayload struct {
	Brand        string                       `json:"brand"`
	ProductName  string                       `json:"product_name"`
	Category     string                       `json:"category,omitempty"`
	URL          string                       `json:"url,omitempty"`
	Breakdown    map[Category]CategoryPayload `json:"sustainability_breakdown"`
	Score        *int                         `json:"sustainability_score,omitempty"`
	Certainty    Certainty                    `json:"certainty"`
	Message      string                       `json:"message,omitempty"`
	Alternatives []Alternative                `json:"alternatives"`
}

// SubmitResponse is the body of POST /api/product
type SubmitResponse struct {
	Success   bool            `json:"success"`
	Status    string          `json:"status,omitempty"`
	Data      *ProductPayload `json:"data,omitempty"`
	ProductID string          `json:"product_id,omitempty"`
	Error     string          `json:"error,omitempty"`
}

// StatusResponse is the body of GET /api/product/{id}/status
type StatusResponse struct {
	Success bool            `json:"success"`
	Status  string          `json:"status"`
	Data    *ProductPayload `json:"data,omitempty"`
	Error   string          `json:"error,omitempty"`
}

// ScoreResponse is the body of GET /api/score
type ScoreResponse struct {
	Success bool        `json:"success"`
	Data    *BrandScore `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// ProductAnalysis is the structured output of the analysis service
type ProductAnalysis struct {
	ProductName     string `json:"product_name"`
	Brand           string `json:"brand"`
	ProductCategory string `json:"product_category"`
	Materials       struct {
		Analysis  string `json:"analysis"`
		Type      string `json:"type"`
		Reasoning string `json:"reasoning"`
	} `json:"materials"`
	ManufacturingAndOrigin struct {
		CountryOfOrigin   string `json:"country_of_origin"`
		LaborImplications string `json:"labor_implications"`
		Reasoning         string `json:"reasoning"`
	} `json:"manufacturing_and_origin"`
	LogisticsAndShipping struct {
		ShipsFromLocation           string `json:"ships_from_location"`
		ShippingDistanceImplication string `json:"shipping_distance_implication"`
		Reasoning                   string `json:"reasoning"`
	} `json:"logistics_and_shipping"`
	Packaging struct {
		Mentioned   FlexBool `json:"mentioned"`
		Description string   `json:"description"`
		Reasoning   string   `json:"reasoning"`
	} `json:"packaging"`
	DurabilityAndLongevity struct {
		Assessment string `json:"assessment"`
		Reasoning  string `json:"reasoning"`
	} `json:"durability_and_longevity"`
	Certifications struct {
		HasCertifications FlexBool `json:"has_certifications"`
		List              []string `json:"list"`
	} `json:"certifications"`
	OverallSummary string `json:"overall_summary"`
}

// FlexBool decodes both JSON booleans and "true"/"false" strings.
// Model output is not always strict about the type.
type FlexBool bool

func (b *FlexBool) UnmarshalJSON(data []byte) error {
	var v bool
	if err := json.Unmarshal(data, &v); err == nil {
		*b = FlexBool(v)
		return nil
	}
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		*b = false
		return nil
	}
	*b = FlexBool(strings.EqualFold(strings.TrimSpace(s), "true") || strings.EqualFold(strings.TrimSpace(s), "yes"))
	return nil
}
