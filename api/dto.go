/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the margin domain model from the external API contract.

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

DECIMALS:
  Money and rates are decimal.Decimal and travel as JSON strings ("12.50").
  Requests may also send bare numbers.

ROWS:
  RowDTO.Type carries the numeric row sentinel (-1 .. -7). Clients switch on
  it and never infer a row's meaning from its amounts.

VALIDATION:
  Request types carry go-playground/validator tags. Decimal fields are
  validated as numbers through a custom type func (see validate.go).

SEE ALSO:
  - handlers.go: Uses these types
  - validate.go: Validator setup
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/margin-engine/margin"
)

// =============================================================================
// REFERENCE DATA
// =============================================================================

type GroupDTO struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

type CreateGroupRequest struct {
	ID   int64  `json:"id" validate:"gt=0"`
	Name string `json:"name" validate:"required,max=200"`
}

type CategoryDTO struct {
	ID      int64  `json:"id"`
	Name    string `json:"name"`
	GroupID int64  `json:"group_id"`
}

type CreateCategoryRequest struct {
	ID      int64  `json:"id" validate:"gt=0"`
	Name    string `json:"name" validate:"required,max=200"`
	GroupID int64  `json:"group_id" validate:"gt=0"`
}

type BracketDTO struct {
	Minimum decimal.Decimal `json:"minimum" validate:"gte=0"`
	Maximum decimal.Decimal `json:"maximum" validate:"gte=0"`
	Rate    decimal.Decimal `json:"rate"`
}

type TableDTO struct {
	OwnerKind string       `json:"owner_kind"`
	OwnerID   int64        `json:"owner_id"`
	Brackets  []BracketDTO `json:"brackets"`
}

// PutTableRequest replaces a whole table.
type PutTableRequest struct {
	Brackets []BracketDTO `json:"brackets" validate:"dive"`
}

// =============================================================================
// CALCULATIONS
// =============================================================================

type CreateCalculationRequest struct {
	Title          string          `json:"title" validate:"required,max=200"`
	UserMarginRate decimal.Decimal `json:"user_margin_rate"`
}

type AddItemRequest struct {
	CategoryID  int64           `json:"category_id" validate:"gt=0"`
	Description string          `json:"description" validate:"max=500"`
	Price       decimal.Decimal `json:"price" validate:"gte=0"`
	Quantity    decimal.Decimal `json:"quantity" validate:"gte=0"`
}

type SetUserMarginRequest struct {
	Rate decimal.Decimal `json:"rate"`
}

type ItemDTO struct {
	ID          string          `json:"id"`
	CategoryID  int64           `json:"category_id"`
	Description string          `json:"description,omitempty"`
	Price       decimal.Decimal `json:"price"`
	Quantity    decimal.Decimal `json:"quantity"`
	Total       decimal.Decimal `json:"total"`
}

type GroupAggregateDTO struct {
	GroupID      int64           `json:"group_id"`
	Amount       decimal.Decimal `json:"amount"`
	Rate         decimal.Decimal `json:"rate"`
	MarginAmount decimal.Decimal `json:"margin_amount"`
	Total        decimal.Decimal `json:"total"`
}

type CalculationDTO struct {
	ID      string              `json:"id"`
	Title   string              `json:"title"`
	Date    string              `json:"date"`
	StateID string              `json:"state_id,omitempty"`
	Items   []ItemDTO           `json:"items"`
	Groups  []GroupAggregateDTO `json:"groups"`

	ItemsTotal         decimal.Decimal `json:"items_total"`
	GlobalMarginRate   decimal.Decimal `json:"global_margin_rate"`
	GlobalMarginAmount decimal.Decimal `json:"global_margin_amount"`
	UserMarginRate     decimal.Decimal `json:"user_margin_rate"`
	UserMarginAmount   decimal.Decimal `json:"user_margin_amount"`
	NetTotal           decimal.Decimal `json:"net_total"`
	OverallTotal       decimal.Decimal `json:"overall_total"`
}

// =============================================================================
// ROLLUP
// =============================================================================

// RowDTO is one report row. Fields a variant does not carry are omitted.
type RowDTO struct {
	Type         int              `json:"type"`
	Kind         string           `json:"kind"`
	GroupID      *int64           `json:"group_id,omitempty"`
	Amount       *decimal.Decimal `json:"amount,omitempty"`
	Rate         *decimal.Decimal `json:"rate,omitempty"`
	MarginAmount *decimal.Decimal `json:"margin_amount,omitempty"`
	Total        *decimal.Decimal `json:"total,omitempty"`
}

type UnresolvedDTO struct {
	Owner  string          `json:"owner"`
	Amount decimal.Decimal `json:"amount"`
}

type RollupDTO struct {
	Rows []RowDTO `json:"rows"`

	ItemsTotal         decimal.Decimal `json:"items_total"`
	GlobalMarginRate   decimal.Decimal `json:"global_margin_rate"`
	GlobalMarginAmount decimal.Decimal `json:"global_margin_amount"`
	UserMarginRate     decimal.Decimal `json:"user_margin_rate"`
	UserMarginAmount   decimal.Decimal `json:"user_margin_amount"`
	NetTotal           decimal.Decimal `json:"net_total"`
	OverallTotal       decimal.Decimal `json:"overall_total"`

	Unresolved []UnresolvedDTO `json:"unresolved,omitempty"`
}

type GroupTotalDTO struct {
	ID    int64           `json:"id" validate:"gt=0"`
	Total decimal.Decimal `json:"total"`
}

// SimulateRequest is an adjustment query.
type SimulateRequest struct {
	Adjust         bool            `json:"adjust"`
	UserMarginRate decimal.Decimal `json:"user_margin_rate"`
	Groups         []GroupTotalDTO `json:"groups" validate:"dive"`
}

// =============================================================================
// SCENARIOS / ERRORS
// =============================================================================

// ScenarioDTO represents a demo scenario.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id" validate:"required"`
}

// ContinuityDTO points at the bracket cell at fault.
type ContinuityDTO struct {
	Index int    `json:"index"`
	Kind  string `json:"kind"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toGroupDTO(g margin.Group) GroupDTO {
	return GroupDTO{ID: int64(g.ID), Name: g.Name}
}

func toCategoryDTO(c margin.Category) CategoryDTO {
	return CategoryDTO{ID: int64(c.ID), Name: c.Name, GroupID: int64(c.GroupID)}
}

func toTableDTO(t margin.RangeTable) TableDTO {
	dto := TableDTO{
		OwnerKind: string(t.Owner.Kind),
		OwnerID:   t.Owner.ID,
		Brackets:  make([]BracketDTO, len(t.Brackets)),
	}
	for i, b := range t.Brackets {
		dto.Brackets[i] = BracketDTO{Minimum: b.Minimum, Maximum: b.Maximum, Rate: b.Rate}
	}
	return dto
}

func (b BracketDTO) bracket() margin.Bracket {
	return margin.Bracket{Minimum: b.Minimum, Maximum: b.Maximum, Rate: b.Rate}
}

func toCalculationDTO(c *margin.Calculation) CalculationDTO {
	dto := CalculationDTO{
		ID:                 string(c.ID),
		Title:              c.Title,
		Date:               c.Date.Format(time.DateOnly),
		StateID:            c.StateID,
		Items:              make([]ItemDTO, len(c.Items)),
		Groups:             make([]GroupAggregateDTO, len(c.Groups)),
		ItemsTotal:         c.ItemsTotal,
		GlobalMarginRate:   c.GlobalMarginRate,
		GlobalMarginAmount: c.GlobalMarginAmount,
		UserMarginRate:     c.UserMarginRate,
		UserMarginAmount:   c.UserMarginAmount,
		NetTotal:           c.NetTotal,
		OverallTotal:       c.OverallTotal,
	}
	for i, it := range c.Items {
		dto.Items[i] = ItemDTO{
			ID:          string(it.ID),
			CategoryID:  int64(it.CategoryID),
			Description: it.Description,
			Price:       it.Price,
			Quantity:    it.Quantity,
			Total:       it.Total(),
		}
	}
	for i, g := range c.Groups {
		dto.Groups[i] = GroupAggregateDTO{
			GroupID:      int64(g.GroupID),
			Amount:       g.Amount,
			Rate:         g.Rate,
			MarginAmount: g.MarginAmount,
			Total:        g.Total,
		}
	}
	return dto
}

func toRollupDTO(r margin.RollupResult) RollupDTO {
	dto := RollupDTO{
		Rows:               make([]RowDTO, len(r.Rows)),
		ItemsTotal:         r.ItemsTotal,
		GlobalMarginRate:   r.GlobalMarginRate,
		GlobalMarginAmount: r.GlobalMarginAmount,
		UserMarginRate:     r.UserMarginRate,
		UserMarginAmount:   r.UserMarginAmount,
		NetTotal:           r.NetTotal,
		OverallTotal:       r.OverallTotal,
	}
	for i, row := range r.Rows {
		dto.Rows[i] = toRowDTO(row)
	}
	for _, u := range r.Unresolved {
		dto.Unresolved = append(dto.Unresolved, UnresolvedDTO{Owner: u.Owner.String(), Amount: u.Amount})
	}
	return dto
}

func toRowDTO(row margin.Row) RowDTO {
	dto := RowDTO{Type: int(row.Type()), Kind: row.Type().String()}
	switch r := row.(type) {
	case margin.EmptyRow:
	case margin.GroupRow:
		id := int64(r.GroupID)
		dto.GroupID = &id
		dto.Amount, dto.Rate, dto.MarginAmount, dto.Total = ptr(r.Amount), ptr(r.Rate), ptr(r.MarginAmount), ptr(r.Total)
	case margin.GroupsTotalRow:
		dto.Total = ptr(r.Total)
	case margin.GlobalMarginRow:
		dto.Rate, dto.Amount = ptr(r.Rate), ptr(r.Amount)
	case margin.NetTotalRow:
		dto.Total = ptr(r.Total)
	case margin.UserMarginRow:
		dto.Rate, dto.Amount = ptr(r.Rate), ptr(r.Amount)
	case margin.OverallTotalRow:
		dto.Total = ptr(r.Total)
	}
	return dto
}

func (q SimulateRequest) query() *margin.AdjustmentQuery {
	groups := make([]margin.GroupTotal, len(q.Groups))
	for i, g := range q.Groups {
		groups[i] = margin.GroupTotal{ID: margin.GroupID(g.ID), Total: g.Total}
	}
	return &margin.AdjustmentQuery{Adjust: q.Adjust, UserMarginRate: q.UserMarginRate, Groups: groups}
}

func ptr(d decimal.Decimal) *decimal.Decimal {
	return &d
}
