package audit

import "time"

// TimelineFilters narrows the audit timeline. From and To are inclusive
// calendar days.
type TimelineFilters struct {
	From     time.Time
	To       time.Time
	ActorID  int64
	Entity   string
	EntityID string
	Action   string
	Page     int
	PageSize int
}

// TimelineRow is one recorded change.
type TimelineRow struct {
	ID         int64          `json:"id"`
	At         time.Time      `json:"at"`
	ActorID    int64          `json:"actor_id,omitempty"`
	ActorEmail string         `json:"actor_email,omitempty"`
	Action     string         `json:"action"`
	Entity     string         `json:"entity"`
	EntityID   string         `json:"entity_id"`
	Meta       map[string]any `json:"meta,omitempty"`
}

// PagingInfo describes the position of a timeline page.
type PagingInfo struct {
	Page     int  `json:"page"`
	PageSize int  `json:"page_size"`
	HasNext  bool `json:"has_next"`
	PrevPage int  `json:"prev_page,omitempty"`
	NextPage int  `json:"next_page,omitempty"`
}

// Result is one timeline page.
type Result struct {
	Rows   []TimelineRow `json:"rows"`
	Paging PagingInfo    `json:"paging"`
}
